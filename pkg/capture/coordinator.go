// Package capture owns the resident Slack credential: it pairs intercepted
// request bodies with their headers, deduplicates bursts of identical
// captures and keeps at most one workspace in storage.
package capture

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/emojistudio/slack-emoji-bridge/pkg/clock"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
	"go.uber.org/zap"
)

type Config struct {
	// DedupWindow drops a capture whose dedup key matches the previous
	// accepted capture within the window.
	DedupWindow time.Duration
	// NotifyDebounce limits showNotification to once per workspace per window.
	NotifyDebounce time.Duration
	PendingTTL     time.Duration
	SweepInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		DedupWindow:    5 * time.Second,
		NotifyDebounce: 10 * time.Second,
		PendingTTL:     30 * time.Second,
		SweepInterval:  10 * time.Second,
	}
}

// Notifier receives capture events.
type Notifier interface {
	DataCaptured(rec credential.Record, showNotification bool)
	AuthFailed(workspace string)
	Disconnected()
}

// CommitResult is the reply to a CREDENTIAL_CAPTURED message.
type CommitResult struct {
	Accepted         bool `json:"accepted"`
	ShowNotification bool `json:"showNotification"`
}

type Coordinator struct {
	cfg       Config
	store     *CredentialStore
	pending   PendingTable
	extractor credential.Extractor
	clock     clock.Clock
	notifier  Notifier
	logger    *zap.Logger

	mu sync.Mutex
}

func NewCoordinator(cfg Config, store *CredentialStore, pending PendingTable, clk clock.Clock, notifier Notifier, logger *zap.Logger) *Coordinator {
	if pending == nil {
		pending = NewPendingTable()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Coordinator{
		cfg:       cfg,
		store:     store,
		pending:   pending,
		extractor: credential.Extractor{Now: clk.Now},
		clock:     clk,
		notifier:  notifier,
		logger:    logger,
	}
}

// Load returns the resident record, migrating legacy storage first.
func (c *Coordinator) Load() (*credential.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Load()
}

// Start runs the pending-request sweep until ctx is done.
func (c *Coordinator) Start(ctx context.Context, sched clock.Scheduler) error {
	if _, err := c.Load(); err != nil {
		return fmt.Errorf("load resident credential: %w", err)
	}
	stop := sched.Every(c.cfg.SweepInterval, func(now time.Time) { c.Sweep(now) })
	defer stop()
	<-ctx.Done()
	return nil
}

// Sweep drops pending requests older than the TTL.
func (c *Coordinator) Sweep(now time.Time) int {
	n := c.pending.Sweep(now.Add(-c.cfg.PendingTTL))
	if n > 0 {
		c.logger.Debug("Swept stale pending requests", zap.Int("count", n), zap.Int("remaining", c.pending.Len()))
	}
	return n
}

// OnInterceptedRequestBody stashes the form token of an outgoing Slack API
// request until its headers are observed.
func (c *Coordinator) OnInterceptedRequestBody(requestID, requestURL string, form url.Values) {
	tok := form.Get("token")
	if tok == "" {
		return
	}
	c.pending.Put(requestID, PendingRequest{
		URL:       requestURL,
		FormToken: tok,
		Timestamp: c.clock.Now(),
	})
}

// OnInterceptedResponseHeaders completes a capture started by
// OnInterceptedRequestBody. Headers without a pending body are ignored.
func (c *Coordinator) OnInterceptedResponseHeaders(requestID string, headers http.Header, requestURL string) (CommitResult, error) {
	p, ok := c.pending.Take(requestID)
	if !ok {
		return CommitResult{}, nil
	}

	formToken := p.FormToken
	if dec, err := url.QueryUnescape(formToken); err == nil {
		formToken = dec
	}

	rec := c.extractor.Extract(headers, url.Values{"token": {formToken}}, requestURL)
	if rec.Token == "" {
		rec.Token = formToken
	}

	switch {
	case rec.Valid():
		return c.Commit(rec)
	case rec.Partial():
		c.OnPartialCapture(rec)
	default:
		c.logger.Debug("Incomplete capture ignored",
			zap.String("workspace", rec.Workspace),
			zap.Bool("has_token", rec.Token != ""),
			zap.Bool("has_cookie", rec.Cookie != ""),
		)
	}
	return CommitResult{}, nil
}

// Commit makes rec the resident record unless it repeats the previous
// accepted capture within the dedup window.
func (c *Coordinator) Commit(rec credential.Record) (CommitResult, error) {
	if err := rec.Validate(); err != nil {
		return CommitResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = now
	}
	key := rec.DedupKey()

	m := c.store.markers()
	if m.LastKey == key && now.Sub(m.LastCommit) < c.cfg.DedupWindow {
		c.logger.Debug("Duplicate capture dropped",
			zap.String("workspace", rec.Workspace),
			zap.Duration("since_last", now.Sub(m.LastCommit)),
		)
		return CommitResult{}, nil
	}

	resident, err := c.store.Load()
	if err != nil {
		c.logger.Warn("Resident credential unreadable, overwriting", zap.Error(err))
	}
	if resident != nil && resident.Workspace != rec.Workspace {
		c.logger.Info("Replacing resident workspace",
			zap.String("previous", resident.Workspace),
			zap.String("workspace", rec.Workspace),
		)
	}

	if err := c.store.Save(rec); err != nil {
		return CommitResult{}, fmt.Errorf("save credential: %w", err)
	}

	show := true
	if last, ok := m.Notification[rec.Workspace]; ok && now.Sub(last) < c.cfg.NotifyDebounce {
		show = false
	}
	if show {
		m.Notification[rec.Workspace] = now
	}
	for ws, t := range m.Notification {
		if ws != rec.Workspace && now.Sub(t) >= c.cfg.NotifyDebounce {
			delete(m.Notification, ws)
		}
	}
	m.LastKey = key
	m.LastCommit = now
	if err := c.store.saveMarkers(m); err != nil {
		// The record itself is already durable.
		c.logger.Warn("Failed to save capture markers", zap.Error(err))
	}

	c.logger.Info("Captured Slack credentials",
		zap.String("workspace", rec.Workspace),
		zap.String("token_prefix", text.TokenPrefix(rec.Token, 10)),
		zap.String("team_id", rec.TeamID),
		zap.Bool("show_notification", show),
	)
	c.notifier.DataCaptured(rec, show)
	return CommitResult{Accepted: true, ShowNotification: show}, nil
}

// OnPartialCapture reports a workspace seen without a usable token. The
// resident record is left untouched.
func (c *Coordinator) OnPartialCapture(rec credential.Record) {
	if rec.Workspace == "" {
		return
	}
	c.logger.Warn("Slack session has no usable token", zap.String("workspace", rec.Workspace))
	c.notifier.AuthFailed(rec.Workspace)
}

// Disconnect forgets the resident record and its capture windows.
func (c *Coordinator) Disconnect() error {
	c.mu.Lock()
	err := c.store.Clear()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	c.logger.Info("Disconnected Slack workspace")
	c.notifier.Disconnected()
	return nil
}
