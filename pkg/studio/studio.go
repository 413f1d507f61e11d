// Package studio hands the resident workspace's emoji and session to the
// Emoji Studio web app.
package studio

import (
	"context"
	"time"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/provider"
)

// Message types understood by the Emoji Studio page.
const (
	TypeSyncedData   = "EMOJI_STUDIO_SYNCED_DATA"
	TypeSyncProgress = "EMOJI_STUDIO_SYNC_PROGRESS"
	TypeCreateEmoji  = "EMOJI_STUDIO_CREATE_EMOJI"
	TypeClearData    = "CLEAR_EMOJI_STUDIO_DATA"
)

// Envelope is the data contract with Emoji Studio.
type Envelope struct {
	Workspace  string           `json:"workspace"`
	EmojiData  []provider.Emoji `json:"emojiData"`
	EmojiCount int              `json:"emojiCount"`
	Token      string           `json:"token"`
	Cookie     string           `json:"cookie"`
	Version    string           `json:"version"`
}

type Meta struct {
	Source   string    `json:"source"`
	TeamID   string    `json:"teamId,omitempty"`
	SyncedAt time.Time `json:"syncedAt"`
}

// Message is what gets posted into the Emoji Studio page.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
	Meta any    `json:"meta,omitempty"`
}

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

type Progress struct {
	Status     Status `json:"status"`
	EmojiCount int    `json:"emojiCount,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Publisher delivers messages to an open Emoji Studio page. It returns
// ErrNoStudioPage when none is open.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// CredentialSource reports the resident credential, if any, and forgets it
// on Disconnect.
type CredentialSource interface {
	Load() (*credential.Record, error)
	Disconnect() error
}

// Inventory is the emoji listing the sync reads from.
type Inventory interface {
	Refresh(ctx context.Context, rec credential.Record) (*provider.EmojiCache, error)
	CustomEmojis() []provider.Emoji
	Forget() error
}
