package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/clock"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/storage"
	"github.com/emojistudio/slack-emoji-bridge/pkg/version"
)

var (
	ErrNotConnected   = errors.New("no Slack workspace connected, open Slack in the browser first")
	ErrNoStudioPage   = errors.New("no Emoji Studio page is open")
	ErrSyncInProgress = errors.New("a sync is already running")
)

// AutoSyncCheck is how often the auto sync schedule is evaluated.
const AutoSyncCheck = time.Minute

type Syncer struct {
	kv          storage.KV
	creds       CredentialSource
	inventory   Inventory
	publisher   Publisher
	clk         clock.Clock
	defInterval time.Duration
	logger      *zap.Logger

	running sync.Mutex
}

// NewSyncer wires a syncer. publisher may be nil when no page is driven.
func NewSyncer(kv storage.KV, creds CredentialSource, inventory Inventory, publisher Publisher, clk clock.Clock, autoSync time.Duration, logger *zap.Logger) *Syncer {
	return &Syncer{
		kv:          kv,
		creds:       creds,
		inventory:   inventory,
		publisher:   publisher,
		clk:         clk,
		defInterval: autoSync,
		logger:      logger,
	}
}

func (s *Syncer) Settings() (Settings, error) {
	return LoadSettings(s.kv, s.defInterval)
}

// Configure turns auto sync on or off and sets its interval; a zero
// interval keeps the current one.
func (s *Syncer) Configure(enabled bool, intervalMinutes int) (Settings, error) {
	st, err := s.Settings()
	if err != nil {
		return Settings{}, err
	}
	st.AutoSyncEnabled = enabled
	if intervalMinutes > 0 {
		st.IntervalMinutes = intervalMinutes
	}
	if err := SaveSettings(s.kv, st); err != nil {
		return Settings{}, err
	}
	return st, nil
}

func (s *Syncer) updateSettings(fn func(*Settings)) {
	st, err := s.Settings()
	if err != nil {
		s.logger.Warn("Failed to read sync settings", zap.Error(err))
		return
	}
	fn(&st)
	if err := SaveSettings(s.kv, st); err != nil {
		s.logger.Warn("Failed to save sync settings", zap.Error(err))
	}
}

// Sync refreshes the emoji inventory, stores the envelope for Emoji Studio
// and posts it to an open Emoji Studio page.
func (s *Syncer) Sync(ctx context.Context) (*Envelope, error) {
	if !s.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.running.Unlock()

	rec, err := s.creds.Load()
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Valid() {
		return nil, ErrNotConnected
	}

	started := s.clk.Now()
	s.updateSettings(func(st *Settings) {
		st.State = StateSyncing
		st.LastAttempt = started
	})
	s.ReportProgress(ctx, Progress{Status: StatusStarted})

	env, err := s.sync(ctx, *rec)
	if err != nil {
		s.updateSettings(func(st *Settings) {
			st.State = StateError
			st.LastError = err.Error()
		})
		s.ReportProgress(ctx, Progress{Status: StatusError, Error: err.Error()})
		s.logger.Error("Sync to Emoji Studio failed", zap.String("workspace", rec.Workspace), zap.Error(err))
		return nil, err
	}

	s.updateSettings(func(st *Settings) {
		st.State = StateSuccess
		st.LastSuccess = s.clk.Now()
		st.LastError = ""
	})
	s.ReportProgress(ctx, Progress{Status: StatusCompleted, EmojiCount: env.EmojiCount})
	s.logger.Info("Synced to Emoji Studio",
		zap.String("workspace", rec.Workspace),
		zap.Int("emoji_count", env.EmojiCount),
		zap.Duration("took", s.clk.Now().Sub(started)),
	)
	return env, nil
}

func (s *Syncer) sync(ctx context.Context, rec credential.Record) (*Envelope, error) {
	if _, err := s.inventory.Refresh(ctx, rec); err != nil {
		return nil, fmt.Errorf("refresh emoji: %w", err)
	}
	emojis := s.inventory.CustomEmojis()
	env := &Envelope{
		Workspace:  rec.Workspace,
		EmojiData:  emojis,
		EmojiCount: len(emojis),
		Token:      rec.Token,
		Cookie:     rec.Cookie,
		Version:    version.Version,
	}
	meta := Meta{Source: "extension", TeamID: rec.TeamID, SyncedAt: s.clk.Now().UTC()}

	if err := s.kv.Put(storage.KeyStudioSyncData, env); err != nil {
		return nil, err
	}
	if err := s.kv.Put(storage.KeyStudioSyncMeta, meta); err != nil {
		return nil, err
	}
	if err := s.kv.Put(storage.KeyLastSyncTime, meta.SyncedAt); err != nil {
		return nil, err
	}

	s.publish(ctx, Message{Type: TypeSyncedData, Data: env, Meta: meta})
	return env, nil
}

// ReportProgress forwards a progress update to the Emoji Studio page.
func (s *Syncer) ReportProgress(ctx context.Context, p Progress) {
	s.publish(ctx, Message{Type: TypeSyncProgress, Data: p})
}

func (s *Syncer) publish(ctx context.Context, msg Message) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoStudioPage):
		s.logger.Debug("Emoji Studio is not open, message kept in storage only", zap.String("type", msg.Type))
	default:
		s.logger.Warn("Failed to post to Emoji Studio", zap.String("type", msg.Type), zap.Error(err))
	}
}

// LastSync returns when the last successful sync stored its data.
func (s *Syncer) LastSync() (time.Time, bool, error) {
	var t time.Time
	ok, err := s.kv.Get(storage.KeyLastSyncTime, &t)
	return t, ok, err
}

// StoredEnvelope returns the envelope of the last sync.
func (s *Syncer) StoredEnvelope() (*Envelope, error) {
	var env Envelope
	ok, err := s.kv.Get(storage.KeyStudioSyncData, &env)
	if err != nil || !ok {
		return nil, err
	}
	return &env, nil
}

// PendingCreate is one resolved media payload waiting for Emoji Studio's
// create dialog.
type PendingCreate struct {
	Name      string    `json:"name"`
	DataURL   string    `json:"dataUrl"`
	MIMEType  string    `json:"mimeType"`
	SourceURL string    `json:"sourceUrl,omitempty"`
	Workspace string    `json:"workspace,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// StageCreate stores p for Emoji Studio and posts it to an open page.
func (s *Syncer) StageCreate(ctx context.Context, p PendingCreate) error {
	if p.DataURL == "" {
		return errors.New("nothing to create: media has no data")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.clk.Now().UTC()
	}
	if err := s.kv.Put(storage.KeyPendingCreate, p); err != nil {
		return err
	}
	s.publish(ctx, Message{Type: TypeCreateEmoji, Data: p})
	return nil
}

// ClearData forgets the credential, the last sync and everything staged
// for Emoji Studio, and tells an open Emoji Studio page to do the same.
func (s *Syncer) ClearData(ctx context.Context) error {
	if err := s.creds.Disconnect(); err != nil {
		return err
	}
	if err := s.kv.Delete(
		storage.KeyLastSyncTime,
		storage.KeyStudioSyncData,
		storage.KeyStudioSyncMeta,
		storage.KeyPendingCreate,
	); err != nil {
		return err
	}
	if err := s.inventory.Forget(); err != nil {
		s.logger.Warn("Failed to drop emoji cache", zap.Error(err))
	}
	s.publish(ctx, Message{Type: TypeClearData})
	s.logger.Info("Cleared extension data")
	return nil
}

// StartAutoSync checks the schedule every AutoSyncCheck and syncs when the
// settings say one is due. It blocks until ctx is done.
func (s *Syncer) StartAutoSync(ctx context.Context, sched clock.Scheduler) {
	stop := sched.Every(AutoSyncCheck, func(now time.Time) {
		s.autoSync(ctx, now)
	})
	defer stop()
	<-ctx.Done()
}

func (s *Syncer) autoSync(ctx context.Context, now time.Time) {
	st, err := s.Settings()
	if err != nil {
		s.logger.Warn("Failed to read sync settings", zap.Error(err))
		return
	}
	if !st.Due(now) {
		return
	}
	rec, err := s.creds.Load()
	if err != nil || rec == nil || !rec.Valid() {
		return
	}
	s.logger.Info("Auto-syncing data to Emoji Studio", zap.String("workspace", rec.Workspace))
	if _, err := s.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
		s.logger.Debug("Auto sync failed", zap.Error(err))
	}
}
