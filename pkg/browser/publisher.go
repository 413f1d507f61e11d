package browser

import (
	"context"
	"strings"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/studio"
)

const postMessageJS = `(msg, origin) => { window.postMessage(msg, origin); return true; }`

// PageLister lists the open tabs.
type PageLister interface {
	Pages() []*rod.Page
}

// StudioPublisher posts messages into every open Emoji Studio tab.
type StudioPublisher struct {
	pages  PageLister
	origin string
	logger *zap.Logger
}

func NewStudioPublisher(pages PageLister, origin string, logger *zap.Logger) *StudioPublisher {
	return &StudioPublisher{pages: pages, origin: strings.TrimRight(origin, "/"), logger: logger}
}

// IsStudioURL reports whether rawURL is served from the Emoji Studio origin.
func (p *StudioPublisher) IsStudioURL(rawURL string) bool {
	return rawURL == p.origin || strings.HasPrefix(rawURL, p.origin+"/")
}

func (p *StudioPublisher) Publish(ctx context.Context, msg studio.Message) error {
	sent := 0
	for _, page := range p.pages.Pages() {
		info, err := page.Info()
		if err != nil || !p.IsStudioURL(info.URL) {
			continue
		}
		if _, err := page.Context(ctx).Evaluate(rod.Eval(postMessageJS, msg, p.origin)); err != nil {
			p.logger.Debug("Failed to post to Emoji Studio tab", zap.String("url", info.URL), zap.Error(err))
			continue
		}
		sent++
	}
	if sent == 0 {
		return studio.ErrNoStudioPage
	}
	p.logger.Debug("Posted to Emoji Studio", zap.String("type", msg.Type), zap.Int("tabs", sent))
	return nil
}
