// Package cart holds emoji waiting to be uploaded. The list lives in
// durable storage and is re-read before every operation.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/storage"
	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
	"go.uber.org/zap"
)

// MaxItems is the cart capacity.
const MaxItems = 100

var (
	ErrCartFull    = errors.New("cart is full")
	ErrDuplicate   = errors.New("an emoji with this name is already in the cart for this workspace")
	ErrNotFound    = errors.New("emoji not in cart")
	ErrInvalidName = errors.New("emoji names may only contain lowercase letters, numbers, hyphens and underscores")
	ErrNoPayload   = errors.New("emoji has no image data")
)

type Source string

const (
	SourceLocalUpload Source = "local-upload"
	SourceSlackmojis  Source = "slackmojis"
	SourceContextMenu Source = "context-menu"
)

// Item is one pending emoji. URL is a data URL for resolved media or the
// remote address it was picked from.
type Item struct {
	Name         string    `json:"name"`
	Workspace    string    `json:"workspace"`
	URL          string    `json:"url"`
	MIMEType     string    `json:"mimeType,omitempty"`
	Source       Source    `json:"source"`
	FileSize     int64     `json:"fileSize,omitempty"`
	OriginalName string    `json:"originalName,omitempty"`
	AddedAt      time.Time `json:"addedAt"`
}

// Badge displays the short status text next to the extension icon.
type Badge interface {
	SetBadge(text string)
}

// CredentialSource reports the resident credential, if any.
type CredentialSource interface {
	Load() (*credential.Record, error)
}

type Store struct {
	kv     storage.KV
	creds  CredentialSource
	badge  Badge
	now    func() time.Time
	logger *zap.Logger

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewStore returns a cart backed by kv. creds and badge may be nil.
func NewStore(kv storage.KV, creds CredentialSource, badge Badge, logger *zap.Logger) *Store {
	return &Store{
		kv:     kv,
		creds:  creds,
		badge:  badge,
		now:    time.Now,
		logger: logger,
	}
}

func (s *Store) load() ([]Item, error) {
	var items []Item
	if _, err := s.kv.Get(storage.KeyCartItems, &items); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return items, nil
}

func (s *Store) save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	if err := s.kv.Put(storage.KeyCartItems, items); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	s.updateBadge(len(items))
	return nil
}

// List returns the cart in insertion order.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add appends item and returns the new cart size.
func (s *Store) Add(ctx context.Context, item Item) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !text.ValidEmojiName(item.Name) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, item.Name)
	}
	if item.URL == "" {
		return 0, ErrNoPayload
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return 0, err
	}
	if len(items) >= MaxItems {
		return len(items), ErrCartFull
	}
	if indexOf(items, item.Name, item.Workspace) >= 0 {
		return len(items), fmt.Errorf("%w: %s", ErrDuplicate, item.Name)
	}

	items = append(items, item)
	if err := s.save(items); err != nil {
		return 0, err
	}
	s.logger.Debug("Added emoji to cart",
		zap.String("name", item.Name),
		zap.String("workspace", item.Workspace),
		zap.String("source", string(item.Source)),
		zap.Int("size", len(items)),
	)
	return len(items), nil
}

// Remove deletes the (name, workspace) item. A miss leaves the cart as is.
func (s *Store) Remove(ctx context.Context, name, workspace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(items, name, workspace)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	items = append(items[:i], items[i+1:]...)
	return s.save(items)
}

// Rename changes an item's name, remembering the name it was added under.
func (s *Store) Rename(ctx context.Context, workspace, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !text.ValidEmojiName(to) {
		return fmt.Errorf("%w: %q", ErrInvalidName, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(items, from, workspace)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, from)
	}
	if from == to {
		return nil
	}
	if indexOf(items, to, workspace) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, to)
	}
	if items[i].OriginalName == "" {
		items[i].OriginalName = from
	}
	items[i].Name = to
	return s.save(items)
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(nil)
}

// RefreshBadge recomputes the badge without touching the cart.
func (s *Store) RefreshBadge(ctx context.Context) error {
	items, err := s.List(ctx)
	if err != nil {
		return err
	}
	s.updateBadge(len(items))
	return nil
}

func (s *Store) updateBadge(count int) {
	if s.badge == nil {
		return
	}
	s.badge.SetBadge(BadgeText(count, s.connected()))
}

func (s *Store) connected() bool {
	if s.creds == nil {
		return false
	}
	rec, err := s.creds.Load()
	if err != nil {
		s.logger.Warn("Failed to read credential for badge", zap.Error(err))
		return false
	}
	return rec != nil && rec.Valid()
}

// BadgeText is the item count, a check mark for an empty cart with a
// credential, or nothing.
func BadgeText(count int, connected bool) string {
	switch {
	case count > 0:
		return strconv.Itoa(count)
	case connected:
		return "✓"
	}
	return ""
}

func indexOf(items []Item, name, workspace string) int {
	for i, it := range items {
		if it.Name == name && it.Workspace == workspace {
			return i
		}
	}
	return -1
}
