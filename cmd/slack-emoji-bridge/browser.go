package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emojistudio/slack-emoji-bridge/pkg/browser"
	"github.com/emojistudio/slack-emoji-bridge/pkg/clock"
	"github.com/emojistudio/slack-emoji-bridge/pkg/media"
)

const defaultSlackURL = "https://app.slack.com/client"

// attachBrowser launches (or connects to) Chrome, watches every tab for
// Slack credentials and opens urls. Page-backed media strategies and the
// Emoji Studio publisher are bound to the session.
func (a *app) attachBrowser(ctx context.Context, g *errgroup.Group, urls []string) error {
	opts := browser.Options{
		Bin:         a.cfg.ChromeBin,
		ControlURL:  a.cfg.ControlURL,
		UserDataDir: a.cfg.UserDataDir,
		Headless:    a.cfg.Headless,
	}
	b, err := browser.Launch(ctx, opts, a.logger)
	if err != nil {
		return err
	}

	observer := browser.NewObserver(a.coordinator, clock.Real{}, a.logger)
	session := browser.NewSession(b, observer, a.dispatcher, a.cfg.StudioURL, a.logger)
	a.publisher.bind(browser.NewStudioPublisher(session, a.cfg.StudioURL, a.logger))

	g.Go(func() error {
		stop := clock.Real{}.Every(a.cfg.SweepInterval, func(now time.Time) { observer.Sweep(now) })
		defer stop()
		<-ctx.Done()
		return nil
	})
	g.Go(func() error {
		err := session.Run(ctx)
		if opts.ControlURL == "" {
			if cerr := b.Close(); cerr != nil {
				a.logger.Debug("Failed to close Chrome", zap.Error(cerr))
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	for i, u := range urls {
		page, err := session.Open(ctx, u)
		if err != nil {
			return fmt.Errorf("open %s: %w", u, err)
		}
		// The first tab is usually Slack itself; media it cannot fetch
		// directly is loaded through it.
		if i == 0 {
			strategies := media.DefaultStrategies(a.fetcher, browser.NewPageMedia(page))
			a.media.bind(media.NewResolver(a.logger, strategies...))
		}
	}
	return nil
}
