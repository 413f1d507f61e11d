package uploader

import (
	"encoding/json"
	"fmt"
)

type Kind int

const (
	KindSuccess Kind = iota + 1
	KindAuthExpired
	KindRejected
	KindNetworkError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "Success"
	case KindAuthExpired:
		return "AuthExpired"
	case KindRejected:
		return "Rejected"
	case KindNetworkError:
		return "NetworkError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Outcome is the result of one upload. Code is Slack's error code when
// Slack answered with one.
type Outcome struct {
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (o Outcome) Success() bool { return o.Kind == KindSuccess }

func (o Outcome) MarshalJSON() ([]byte, error) {
	type wire Outcome
	return json.Marshal(struct {
		wire
		Success bool `json:"success"`
	}{wire(o), o.Success()})
}

var rejectedMessages = map[string]string{
	"error_name_taken":    "An emoji with this name already exists in the workspace. Rename it and try again.",
	"error_bad_name_i18n": "Slack does not accept this emoji name. Use lowercase letters, numbers, hyphens and underscores.",
	"error_missing_scope": "Your Slack account is not allowed to add custom emoji in this workspace.",
}

var authCodes = map[string]bool{
	"not_authed":   true,
	"invalid_auth": true,
}

const authMessage = "Your Slack session expired. Open the workspace in the browser to refresh it, then try again."

// Classify maps a Slack error code to an outcome kind.
func Classify(code string) Kind {
	switch {
	case code == "":
		return KindSuccess
	case authCodes[code]:
		return KindAuthExpired
	case rejectedMessages[code] != "":
		return KindRejected
	}
	return KindNetworkError
}

func outcome(name, code string, err error) Outcome {
	o := Outcome{Kind: Classify(code), Name: name, Code: code}
	switch o.Kind {
	case KindSuccess:
		if err != nil {
			o.Kind = KindNetworkError
			o.Message = "Upload failed: " + err.Error()
			break
		}
		o.Message = fmt.Sprintf("Added :%s: to Slack.", name)
	case KindAuthExpired:
		o.Message = authMessage
	case KindRejected:
		o.Message = rejectedMessages[code]
	default:
		o.Message = "Upload failed: " + code
	}
	return o
}
