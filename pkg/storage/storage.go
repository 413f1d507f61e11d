// Package storage is the durable key-value store shared by every component.
// Values are JSON documents; each Put is atomic for its key and there are
// no transactions spanning keys.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const (
	KeyCredentialRecord = "credential-record"
	KeyCaptureMarkers   = "capture-markers"
	KeyCartItems        = "cart-items"
	KeyLastSyncTime     = "last-sync-time"
	KeySyncSettings     = "sync-settings"
	KeyStudioSyncData   = "studio-sync-data"
	KeyStudioSyncMeta   = "studio-sync-meta"
	KeyPendingCreate    = "pending-emoji-create"
)

var ErrClosed = errors.New("storage is closed")

// KV is implemented by Bolt and Memory.
type KV interface {
	// Get decodes the value stored under key into v. It reports false when
	// the key is absent.
	Get(key string, v any) (bool, error)
	Put(key string, v any) error
	Delete(keys ...string) error
}

// Memory is a KV kept in process memory. Values still round-trip through
// JSON so callers observe the same semantics as with Bolt.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(key string, v any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}
