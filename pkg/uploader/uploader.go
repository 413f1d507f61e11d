// Package uploader adds custom emoji to a Slack workspace with the resident
// browser credential.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/emojistudio/slack-emoji-bridge/pkg/cart"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/limiter"
	"github.com/emojistudio/slack-emoji-bridge/pkg/media"
	"github.com/emojistudio/slack-emoji-bridge/pkg/provider/edge"
	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
)

var ErrNoPayload = errors.New("emoji has no image data")

// EmojiAdder is the part of the edge client the uploader needs.
type EmojiAdder interface {
	EmojiAdd(ctx context.Context, name string, image []byte, mimeType string) error
}

// ClientFactory binds a client to a credential.
type ClientFactory func(rec credential.Record) (EmojiAdder, error)

// MediaSource resolves cart items that still point at a remote URL.
type MediaSource interface {
	Resolve(ctx context.Context, req media.Request) (media.Payload, error)
}

type Uploader struct {
	newClient ClientFactory
	media     MediaSource
	limiter   *rate.Limiter
	logger    *zap.Logger
}

type Option func(*Uploader)

func WithMediaSource(m MediaSource) Option {
	return func(u *Uploader) { u.media = m }
}

// WithLimiter replaces the pacing between batch items.
func WithLimiter(l *rate.Limiter) Option {
	return func(u *Uploader) { u.limiter = l }
}

func New(factory ClientFactory, interval time.Duration, logger *zap.Logger, opts ...Option) *Uploader {
	u := &Uploader{
		newClient: factory,
		limiter:   limiter.Upload(interval),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// EdgeFactory builds edge clients sharing httpClient.
func EdgeFactory(httpClient *http.Client, userAgent string) ClientFactory {
	return func(rec credential.Record) (EmojiAdder, error) {
		return edge.New(rec,
			edge.OptionHTTPClient(httpClient),
			edge.OptionUserAgent(userAgent),
		)
	}
}

// Upload sends one emoji. An invalid record or name is returned as an error
// and no request is made; everything Slack or the network says comes back
// as an Outcome.
func (u *Uploader) Upload(ctx context.Context, rec credential.Record, item cart.Item) (Outcome, error) {
	if err := rec.Validate(); err != nil {
		return Outcome{}, err
	}
	if !text.ValidEmojiName(item.Name) {
		return Outcome{}, fmt.Errorf("%w: %q", cart.ErrInvalidName, item.Name)
	}

	payload, err := u.payload(ctx, item)
	if err != nil {
		return Outcome{}, fmt.Errorf("load %s: %w", item.Name, err)
	}
	mimeType := payload.MIMEType
	if (mimeType == "" || mimeType == "application/octet-stream") && item.MIMEType != "" {
		mimeType = item.MIMEType
	}

	client, err := u.newClient(rec)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	err = client.EmojiAdd(ctx, item.Name, payload.Data, mimeType)

	var o Outcome
	var apiErr *edge.APIError
	switch {
	case err == nil:
		o = outcome(item.Name, "", nil)
	case errors.As(err, &apiErr):
		o = outcome(item.Name, apiErr.Code, nil)
	default:
		o = outcome(item.Name, "", err)
	}

	u.logger.Info("Emoji upload finished",
		zap.String("workspace", rec.Workspace),
		zap.String("name", item.Name),
		zap.Stringer("outcome", o.Kind),
		zap.String("code", o.Code),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return o, nil
}

func (u *Uploader) payload(ctx context.Context, item cart.Item) (media.Payload, error) {
	switch {
	case item.URL == "":
		return media.Payload{}, ErrNoPayload
	case strings.HasPrefix(item.URL, "data:"):
		return media.DecodeDataURL(item.URL)
	case u.media == nil:
		return media.Payload{}, fmt.Errorf("%w: %s is not a data URL", ErrNoPayload, item.URL)
	}
	return u.media.Resolve(ctx, media.Request{URL: item.URL})
}

// Result pairs a batch item with how it went. Err is set for items that
// were never sent because they were malformed.
type Result struct {
	Item    cart.Item
	Outcome Outcome
	Err     error
}

// Batch uploads items in order, at most one per limiter tick. It stops at
// the first AuthExpired since every later item would fail the same way.
// report, if set, is called after each item.
func (u *Uploader) Batch(ctx context.Context, rec credential.Record, items []cart.Item, report func(i int, r Result)) ([]Result, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(items))
	for i, item := range items {
		if err := u.limiter.Wait(ctx); err != nil {
			return results, err
		}

		o, err := u.Upload(ctx, rec, item)
		r := Result{Item: item, Outcome: o, Err: err}
		if err != nil {
			r.Outcome = Outcome{Kind: KindRejected, Name: item.Name, Message: err.Error()}
		}
		results = append(results, r)
		if report != nil {
			report(i, r)
		}
		if o.Kind == KindAuthExpired {
			u.logger.Warn("Stopping batch, Slack session expired",
				zap.String("workspace", rec.Workspace),
				zap.Int("uploaded", i),
				zap.Int("skipped", len(items)-i-1),
			)
			break
		}
	}
	return results, nil
}

// Cart is what DrainCart needs from the cart store.
type Cart interface {
	List(ctx context.Context) ([]cart.Item, error)
	Remove(ctx context.Context, name, workspace string) error
}

// DrainCart uploads the whole cart and removes the items that made it.
func (u *Uploader) DrainCart(ctx context.Context, rec credential.Record, c Cart, report func(i int, r Result)) ([]Result, error) {
	items, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	results, batchErr := u.Batch(ctx, rec, items, report)
	for _, r := range results {
		if !r.Outcome.Success() {
			continue
		}
		if err := c.Remove(context.WithoutCancel(ctx), r.Item.Name, r.Item.Workspace); err != nil && !errors.Is(err, cart.ErrNotFound) {
			return results, err
		}
	}
	return results, batchErr
}

// Summary counts outcomes by kind.
func Summary(results []Result) map[Kind]int {
	m := make(map[Kind]int)
	for _, r := range results {
		m[r.Outcome.Kind]++
	}
	return m
}
