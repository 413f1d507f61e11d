package cart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/emojistudio/slack-emoji-bridge/pkg/capture"
	"github.com/emojistudio/slack-emoji-bridge/pkg/clock"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/storage"
)

type recordingBadge struct {
	texts []string
}

func (b *recordingBadge) SetBadge(text string) { b.texts = append(b.texts, text) }

func (b *recordingBadge) last() string {
	if len(b.texts) == 0 {
		return ""
	}
	return b.texts[len(b.texts)-1]
}

type staticCreds struct {
	rec *credential.Record
}

func (c staticCreds) Load() (*credential.Record, error) { return c.rec, nil }

func item(name, workspace string) Item {
	return Item{
		Name:      name,
		Workspace: workspace,
		URL:       "data:image/png;base64,iVBORw0KGgo=",
		MIMEType:  "image/png",
		Source:    SourceContextMenu,
	}
}

func newTestStore(t *testing.T, kv storage.KV) (*Store, *recordingBadge) {
	t.Helper()
	badge := &recordingBadge{}
	return NewStore(kv, nil, badge, zaptest.NewLogger(t)), badge
}

func TestAddDuplicate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemory())

	size, err := s.Add(ctx, item("party_parrot", "acme"))
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	_, err = s.Add(ctx, item("party_parrot", "acme"))
	assert.ErrorIs(t, err, ErrDuplicate)

	size, err = s.Add(ctx, item("party_parrot", "beta"))
	require.NoError(t, err)
	assert.Equal(t, 2, size, "same name in another workspace is allowed")
}

func TestAddCartFull(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s, _ := newTestStore(t, kv)

	for i := 0; i < MaxItems; i++ {
		_, err := s.Add(ctx, item(fmt.Sprintf("emoji_%03d", i), "acme"))
		require.NoError(t, err)
	}

	size, err := s.Add(ctx, item("one_too_many", "acme"))
	assert.ErrorIs(t, err, ErrCartFull)
	assert.Equal(t, MaxItems, size)

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, MaxItems)
	assert.Equal(t, "emoji_000", items[0].Name)
	assert.Equal(t, "emoji_099", items[MaxItems-1].Name)
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemory())

	tests := []struct {
		name string
		item Item
		want error
	}{
		{"uppercase", item("PartyParrot", "acme"), ErrInvalidName},
		{"space", item("party parrot", "acme"), ErrInvalidName},
		{"empty", item("", "acme"), ErrInvalidName},
		{"no payload", Item{Name: "ok", Workspace: "acme"}, ErrNoPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Add(ctx, tt.item)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemory())
	for _, n := range []string{"a", "b", "c"} {
		_, err := s.Add(ctx, item(n, "acme"))
		require.NoError(t, err)
	}

	err := s.Remove(ctx, "zzz", "acme")
	assert.ErrorIs(t, err, ErrNotFound)
	err = s.Remove(ctx, "b", "beta")
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(items))

	require.NoError(t, s.Remove(ctx, "b", "acme"))
	items, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names(items))
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemory())
	_, err := s.Add(ctx, item("a", "acme"))
	require.NoError(t, err)
	_, err = s.Add(ctx, item("b", "acme"))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Rename(ctx, "acme", "a", "b"), ErrDuplicate)
	assert.ErrorIs(t, s.Rename(ctx, "acme", "a", "Bad Name"), ErrInvalidName)
	assert.ErrorIs(t, s.Rename(ctx, "acme", "missing", "c"), ErrNotFound)

	require.NoError(t, s.Rename(ctx, "acme", "a", "c"))
	require.NoError(t, s.Rename(ctx, "acme", "c", "d"))
	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b"}, names(items))
	assert.Equal(t, "a", items[0].OriginalName)
}

func TestStateLivesInStorage(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	first, _ := newTestStore(t, kv)
	_, err := first.Add(ctx, item("a", "acme"))
	require.NoError(t, err)

	second, _ := newTestStore(t, kv)
	_, err = second.Add(ctx, item("b", "acme"))
	require.NoError(t, err)

	items, err := first.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(items))
	assert.False(t, items[0].AddedAt.IsZero())
}

func TestBadge(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	badge := &recordingBadge{}
	creds := staticCreds{rec: &credential.Record{Workspace: "acme", Token: "xoxc-1", Cookie: "d=xoxd-2"}}
	s := NewStore(kv, creds, badge, zaptest.NewLogger(t))

	_, err := s.Add(ctx, item("a", "acme"))
	require.NoError(t, err)
	assert.Equal(t, "1", badge.last())

	_, err = s.Add(ctx, item("b", "acme"))
	require.NoError(t, err)
	assert.Equal(t, "2", badge.last())

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, "✓", badge.last())

	BadgeNotifier{Store: s}.AuthFailed("acme")
	assert.Equal(t, AuthFailedBadge, badge.last())
	BadgeNotifier{Store: s}.DataCaptured(*creds.rec, true)
	assert.Equal(t, "✓", badge.last())

	s.creds = staticCreds{}
	require.NoError(t, s.RefreshBadge(ctx))
	assert.Equal(t, "", badge.last())
}

func TestBadgeClearedOnDisconnect(t *testing.T) {
	logger := zaptest.NewLogger(t)
	kv := storage.NewMemory()
	badge := &recordingBadge{}
	creds := capture.NewCredentialStore(kv, logger)
	s := NewStore(kv, creds, badge, logger)
	coord := capture.NewCoordinator(capture.DefaultConfig(), creds, capture.NewPendingTable(), clock.NewFake(time.Now()), BadgeNotifier{Store: s}, logger)

	res, err := coord.Commit(credential.Record{Workspace: "acme", Token: "xoxc-1", Cookie: "d=xoxd-2"})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, "✓", badge.last())

	require.NoError(t, coord.Disconnect())
	assert.Equal(t, "", badge.last())
}

func TestAddFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := newTestStore(t, storage.NewMemory())

	gif := []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00!\xf9\x04\x00\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")
	p := filepath.Join(dir, "Party Parrot!!.gif")
	require.NoError(t, os.WriteFile(p, gif, 0o600))

	it, size, err := s.AddFile(ctx, p, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, size)
	assert.Equal(t, "party_parrot_", it.Name)
	assert.Equal(t, "image/gif", it.MIMEType)
	assert.Equal(t, SourceLocalUpload, it.Source)
	assert.Contains(t, it.URL, "data:image/gif;base64,")

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o600))
	_, _, err = s.AddFile(ctx, txt, "acme")
	assert.ErrorIs(t, err, ErrNotMedia)

	big := filepath.Join(dir, "big.png")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxFileBytes+1), 0o600))
	_, _, err = s.AddFile(ctx, big, "acme")
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Contains(t, err.Error(), "10 MiB")
}

func TestBadgeText(t *testing.T) {
	assert.Equal(t, "3", BadgeText(3, true))
	assert.Equal(t, "3", BadgeText(3, false))
	assert.Equal(t, "✓", BadgeText(0, true))
	assert.Equal(t, "", BadgeText(0, false))
}

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}
