package studio

import (
	"fmt"
	"time"

	"github.com/emojistudio/slack-emoji-bridge/pkg/storage"
)

type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSuccess State = "success"
	StateError   State = "error"
)

type Settings struct {
	AutoSyncEnabled bool      `json:"autoSyncEnabled"`
	IntervalMinutes int       `json:"intervalMinutes"`
	LastAttempt     time.Time `json:"lastAttempt,omitempty"`
	LastSuccess     time.Time `json:"lastSuccess,omitempty"`
	State           State     `json:"state"`
	LastError       string    `json:"lastError,omitempty"`
}

func (s Settings) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// staleSync is how long a "syncing" state is trusted before it is assumed
// to be left over from an interrupted run.
const staleSync = 10 * time.Minute

// Due reports whether an automatic sync should run at now.
func (s Settings) Due(now time.Time) bool {
	if !s.AutoSyncEnabled || s.IntervalMinutes <= 0 {
		return false
	}
	if s.State == StateSyncing && now.Sub(s.LastAttempt) < staleSync {
		return false
	}
	return s.LastAttempt.IsZero() || now.Sub(s.LastAttempt) >= s.Interval()
}

// LoadSettings returns the stored settings, or defaults with auto sync on
// at the given interval.
func LoadSettings(kv storage.KV, def time.Duration) (Settings, error) {
	s := Settings{
		AutoSyncEnabled: true,
		IntervalMinutes: int(def / time.Minute),
		State:           StateIdle,
	}
	if _, err := kv.Get(storage.KeySyncSettings, &s); err != nil {
		return Settings{}, fmt.Errorf("load sync settings: %w", err)
	}
	if s.State == "" {
		s.State = StateIdle
	}
	return s, nil
}

func SaveSettings(kv storage.KV, s Settings) error {
	if s.IntervalMinutes < 0 {
		return fmt.Errorf("interval must not be negative, got %d minutes", s.IntervalMinutes)
	}
	return kv.Put(storage.KeySyncSettings, s)
}
