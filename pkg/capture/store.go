package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/storage"
	"go.uber.org/zap"
)

// CredentialStore is the repository for the resident credential record and
// the capture windows' bookkeeping. Nothing is cached: every call reads or
// writes durable storage.
type CredentialStore struct {
	kv     storage.KV
	logger *zap.Logger
}

// markers remember the last accepted capture and when each workspace last
// produced a user-visible notification.
type markers struct {
	LastKey      string               `json:"lastKey,omitempty"`
	LastCommit   time.Time            `json:"lastCommit,omitempty"`
	Notification map[string]time.Time `json:"notification,omitempty"`
}

func NewCredentialStore(kv storage.KV, logger *zap.Logger) *CredentialStore {
	return &CredentialStore{kv: kv, logger: logger}
}

// Load returns the resident record or nil. A legacy value holding several
// workspaces is migrated to the single most recently captured one and
// written back before it is returned.
func (s *CredentialStore) Load() (*credential.Record, error) {
	var raw json.RawMessage
	ok, err := s.kv.Get(storage.KeyCredentialRecord, &raw)
	if err != nil {
		return nil, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	rec, legacy, err := decodeResident(raw)
	if err != nil {
		return nil, err
	}
	if !legacy {
		return rec, nil
	}
	if rec == nil {
		s.logger.Warn("Legacy credential value holds no workspaces, clearing")
		return nil, s.kv.Delete(storage.KeyCredentialRecord)
	}

	s.logger.Info("Migrated legacy multi-workspace credentials",
		zap.String("workspace", rec.Workspace),
		zap.Time("captured_at", rec.CapturedAt),
	)
	if err := s.Save(*rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *CredentialStore) Save(rec credential.Record) error {
	return s.kv.Put(storage.KeyCredentialRecord, rec)
}

// Clear removes the resident record and capture bookkeeping.
func (s *CredentialStore) Clear() error {
	return s.kv.Delete(storage.KeyCredentialRecord, storage.KeyCaptureMarkers)
}

func (s *CredentialStore) markers() markers {
	var m markers
	if _, err := s.kv.Get(storage.KeyCaptureMarkers, &m); err != nil {
		s.logger.Warn("Discarding unreadable capture markers", zap.Error(err))
		m = markers{}
	}
	if m.Notification == nil {
		m.Notification = make(map[string]time.Time)
	}
	return m
}

func (s *CredentialStore) saveMarkers(m markers) error {
	return s.kv.Put(storage.KeyCaptureMarkers, m)
}

// decodeResident accepts the single-record format and the legacy
// workspace -> record map. For the legacy map it picks the record with the
// greatest capture time; ties go to the greatest workspace name so the
// result does not depend on map order.
func decodeResident(raw json.RawMessage) (*credential.Record, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, fmt.Errorf("decode credential record: %w", err)
	}
	if ws, ok := fields["workspace"]; ok && len(ws) > 0 && ws[0] == '"' {
		var rec credential.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, false, fmt.Errorf("decode credential record: %w", err)
		}
		return &rec, false, nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var best *credential.Record
	for _, name := range names {
		rec, err := decodeLegacy(name, fields[name])
		if err != nil {
			return nil, true, err
		}
		if best == nil || !rec.CapturedAt.Before(best.CapturedAt) {
			best = &rec
		}
	}
	return best, true, nil
}

type legacyRecord struct {
	Workspace       string          `json:"workspace"`
	Token           string          `json:"token"`
	Cookie          string          `json:"cookie"`
	TeamID          string          `json:"teamId"`
	ClientRequestID string          `json:"clientRequestId"`
	CapturedAt      json.RawMessage `json:"capturedAt"`
	Timestamp       json.RawMessage `json:"timestamp"`
}

func decodeLegacy(name string, raw json.RawMessage) (credential.Record, error) {
	var l legacyRecord
	if err := json.Unmarshal(raw, &l); err != nil {
		return credential.Record{}, fmt.Errorf("decode legacy record %q: %w", name, err)
	}
	rec := credential.Record{
		Workspace:       l.Workspace,
		Token:           l.Token,
		Cookie:          l.Cookie,
		TeamID:          l.TeamID,
		ClientRequestID: l.ClientRequestID,
	}
	if rec.Workspace == "" {
		rec.Workspace = name
	}
	if t, ok := parseLegacyTime(l.CapturedAt); ok {
		rec.CapturedAt = t
	} else if t, ok := parseLegacyTime(l.Timestamp); ok {
		rec.CapturedAt = t
	}
	return rec, nil
}

// parseLegacyTime accepts epoch milliseconds or an RFC 3339 string.
func parseLegacyTime(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	}
	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}
