// Package message decodes the messages exchanged between the Slack page,
// the Emoji Studio page and the bridge, and routes each to its handler.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Type string

const (
	CredentialCaptured Type = "CREDENTIAL_CAPTURED"
	AuthFailed         Type = "AUTH_FAILED"
	RequestCartState   Type = "REQUEST_CART_STATE"
	AddToCart          Type = "ADD_TO_CART"
	RemoveFromCart     Type = "REMOVE_FROM_CART"
	UploadOne          Type = "UPLOAD_ONE"
	SyncProgress       Type = "SYNC_PROGRESS"
	ClearData          Type = "CLEAR_DATA"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrMissingPayload = errors.New("message has no payload")
)

// Message is the wire form: {"type": "...", "payload": {...}}.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses the wire form. The type is checked at dispatch.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return Message{}, errors.New("decode message: missing type")
	}
	return m, nil
}

// New builds a message with payload encoded as JSON. A nil payload is left
// out.
func New(t Type, payload any) (Message, error) {
	m := Message{Type: t}
	if payload == nil {
		return m, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	m.Payload = b
	return m, nil
}

type AuthFailedPayload struct {
	Workspace string `json:"workspace"`
}

type RemovePayload struct {
	Name      string `json:"name"`
	Workspace string `json:"workspace"`
}

type UploadOnePayload struct {
	Name     string `json:"name"`
	DataURL  string `json:"dataUrl"`
	MIMEType string `json:"mimeType"`
}

// Reply is the generic acknowledgement. Error is set when Success is false.
type Reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type AddReply struct {
	Success bool `json:"success"`
	Size    int  `json:"size"`
}
