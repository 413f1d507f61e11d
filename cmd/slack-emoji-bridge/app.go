package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/capture"
	"github.com/emojistudio/slack-emoji-bridge/pkg/cart"
	"github.com/emojistudio/slack-emoji-bridge/pkg/clock"
	"github.com/emojistudio/slack-emoji-bridge/pkg/config"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/handler"
	"github.com/emojistudio/slack-emoji-bridge/pkg/media"
	"github.com/emojistudio/slack-emoji-bridge/pkg/message"
	"github.com/emojistudio/slack-emoji-bridge/pkg/provider"
	"github.com/emojistudio/slack-emoji-bridge/pkg/server"
	"github.com/emojistudio/slack-emoji-bridge/pkg/storage"
	"github.com/emojistudio/slack-emoji-bridge/pkg/studio"
	"github.com/emojistudio/slack-emoji-bridge/pkg/transport"
	"github.com/emojistudio/slack-emoji-bridge/pkg/uploader"
)

// app holds every long-lived component, wired once per command run.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db          *storage.Bolt
	coordinator *capture.Coordinator
	cart        *cart.Store
	inventory   *provider.Inventory
	uploader    *uploader.Uploader
	syncer      *studio.Syncer
	dispatcher  *message.Dispatcher

	fetcher   *media.DirectFetch
	media     *mediaRelay
	publisher *publisherRelay
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := storage.OpenBolt(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		publisher: &publisherRelay{},
	}

	transportOpts := transport.Options{
		UserAgent:   cfg.UserAgent,
		ProxyURL:    cfg.ProxyURL,
		Fingerprint: cfg.Fingerprint,
		Timeout:     60 * time.Second,
	}
	httpClient := transport.ProvideHTTPClient(nil, logger, transportOpts)

	store := capture.NewCredentialStore(db, logger)
	a.cart = cart.NewStore(db, store, cart.LogBadge{Logger: logger}, logger)
	a.coordinator = capture.NewCoordinator(capture.Config{
		DedupWindow:    cfg.DedupWindow,
		NotifyDebounce: cfg.NotifyDebounce,
		PendingTTL:     cfg.PendingTTL,
		SweepInterval:  cfg.SweepInterval,
	}, store, capture.NewPendingTable(), clock.Real{}, capture.Notifiers{
		capture.NewLogNotifier(logger),
		cart.BadgeNotifier{Store: a.cart},
	}, logger)

	a.fetcher = &media.DirectFetch{Client: httpClient, UserAgent: cfg.UserAgent}
	a.media = &mediaRelay{}
	a.media.bind(media.NewResolver(logger, media.DefaultStrategies(a.fetcher, nil)...))

	a.uploader = uploader.New(
		uploader.EdgeFactory(httpClient, cfg.UserAgent),
		cfg.UploadInterval,
		logger,
		uploader.WithMediaSource(a.media),
	)

	a.inventory = provider.NewInventory(
		provider.SessionFactory(provider.SessionOptions{Transport: transportOpts}, logger),
		cfg.EmojisCache,
		logger,
	)
	if rec, err := a.coordinator.Load(); err == nil && rec != nil {
		a.inventory.LoadCache(rec.Workspace)
	}

	a.syncer = studio.NewSyncer(db, a.coordinator, a.inventory, a.publisher, clock.Real{}, cfg.AutoSync, logger)

	a.dispatcher = message.NewDispatcher(message.Deps{
		Capture:  a.coordinator,
		Cart:     a.cart,
		Uploader: a.uploader,
		Studio:   a.syncer,
	}, logger)

	return a, nil
}

func (a *app) handlers() server.Handlers {
	return server.Handlers{
		Emoji:  handler.NewEmojiHandler(a.inventory, a.logger),
		Auth:   handler.NewAuthHandler(a.coordinator, a.inventory, a.syncer, a.logger),
		Cart:   handler.NewCartHandler(a.cart, a.coordinator, a.logger),
		Upload: handler.NewUploadHandler(a.uploader, a.cart, a.coordinator, a.cfg.UploadTool, a.logger),
		Studio: handler.NewStudioHandler(a.syncer, a.logger),
	}
}

// resident returns the captured credential or an error telling the user
// how to get one.
func (a *app) resident() (credential.Record, error) {
	rec, err := a.coordinator.Load()
	if err != nil {
		return credential.Record{}, err
	}
	if rec == nil || !rec.Valid() {
		return credential.Record{}, fmt.Errorf("no Slack session captured: run %q or %q first", "capture", "import-curl")
	}
	return *rec, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// publisherRelay forwards studio messages once a browser session exists.
type publisherRelay struct {
	mu  sync.RWMutex
	pub studio.Publisher
}

func (r *publisherRelay) bind(p studio.Publisher) {
	r.mu.Lock()
	r.pub = p
	r.mu.Unlock()
}

func (r *publisherRelay) Publish(ctx context.Context, msg studio.Message) error {
	r.mu.RLock()
	p := r.pub
	r.mu.RUnlock()
	if p == nil {
		return studio.ErrNoStudioPage
	}
	return p.Publish(ctx, msg)
}

// mediaRelay swaps in page-backed strategies when a browser is attached.
type mediaRelay struct {
	mu       sync.RWMutex
	resolver *media.Resolver
}

func (r *mediaRelay) bind(res *media.Resolver) {
	r.mu.Lock()
	r.resolver = res
	r.mu.Unlock()
}

func (r *mediaRelay) Resolve(ctx context.Context, req media.Request) (media.Payload, error) {
	r.mu.RLock()
	res := r.resolver
	r.mu.RUnlock()
	return res.Resolve(ctx, req)
}
