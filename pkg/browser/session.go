package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
)

// BindingName is the window function page scripts call to reach the bridge.
const BindingName = "emojiBridge"

var ErrUntrustedPage = errors.New("page is not allowed to call the bridge")

// TrustedBindingURL reports whether a page at rawURL may call the binding:
// Slack, slackmojis and the Emoji Studio origin.
func TrustedBindingURL(rawURL, studioOrigin string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	if s, err := url.Parse(studioOrigin); err == nil && s.Host != "" &&
		strings.EqualFold(u.Scheme, s.Scheme) && strings.EqualFold(u.Host, s.Host) {
		return true
	}
	if u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if text.IsSlackHost(host) {
		return true
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil && etld1 == "slackmojis.com"
}

// Handler answers a JSON message from a page with a JSON reply.
type Handler interface {
	HandleJSON(ctx context.Context, raw []byte) []byte
}

type Options struct {
	Bin         string
	ControlURL  string
	UserDataDir string
	Headless    bool
}

// Launch starts Chrome, or attaches to the one at opts.ControlURL.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*rod.Browser, error) {
	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	logger.Info("Connected to Chrome", zap.String("control_url", controlURL))
	return b, nil
}

// Session attaches the observer and the page binding to every tab of a
// browser, including tabs opened later.
type Session struct {
	browser      *rod.Browser
	observer     *Observer
	handler      Handler
	studioOrigin string
	logger       *zap.Logger

	mu    sync.Mutex
	pages map[proto.TargetTargetID]*rod.Page
	urls  map[proto.TargetTargetID]string // top frame url per tab
	wg    sync.WaitGroup
}

func NewSession(b *rod.Browser, observer *Observer, handler Handler, studioOrigin string, logger *zap.Logger) *Session {
	return &Session{
		browser:      b,
		observer:     observer,
		handler:      handler,
		studioOrigin: strings.TrimRight(studioOrigin, "/"),
		logger:       logger,
		pages:        make(map[proto.TargetTargetID]*rod.Page),
		urls:         make(map[proto.TargetTargetID]string),
	}
}

func (s *Session) setURL(id proto.TargetTargetID, rawURL string) {
	s.mu.Lock()
	s.urls[id] = rawURL
	s.mu.Unlock()
}

// callBinding answers a binding call from the tab id. The binding survives
// navigation, so the tab's current url is checked on every call.
func (s *Session) callBinding(ctx context.Context, id proto.TargetTargetID, raw []byte) ([]byte, error) {
	s.mu.Lock()
	current := s.urls[id]
	s.mu.Unlock()
	if !TrustedBindingURL(current, s.studioOrigin) {
		s.logger.Warn("Rejected bridge call from untrusted page", zap.String("url", current))
		return nil, ErrUntrustedPage
	}
	return s.handler.HandleJSON(ctx, raw), nil
}

// Browser returns the underlying browser.
func (s *Session) Browser() *rod.Browser { return s.browser }

// Open navigates a new tab to url.
func (s *Session) Open(ctx context.Context, url string) (*rod.Page, error) {
	p, err := s.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	s.attach(ctx, p)
	return p, nil
}

// Pages returns the attached tabs.
func (s *Session) Pages() []*rod.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*rod.Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p)
	}
	return out
}

// Run watches the browser until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	b := s.browser.Context(ctx)
	wait := b.EachEvent(
		func(ev *proto.TargetTargetCreated) {
			if ev.TargetInfo.Type != proto.TargetTargetInfoTypePage {
				return
			}
			p, err := s.browser.PageFromTarget(ev.TargetInfo.TargetID)
			if err != nil {
				s.logger.Debug("Failed to attach to new tab", zap.Error(err))
				return
			}
			s.attach(ctx, p)
		},
		func(ev *proto.TargetTargetDestroyed) {
			s.mu.Lock()
			delete(s.pages, ev.TargetID)
			delete(s.urls, ev.TargetID)
			s.mu.Unlock()
		},
	)
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}

	pages, err := b.Pages()
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	for _, p := range pages {
		s.attach(ctx, p)
	}

	wait()
	s.wg.Wait()
	return ctx.Err()
}

func (s *Session) attach(ctx context.Context, page *rod.Page) {
	s.mu.Lock()
	if _, ok := s.pages[page.TargetID]; ok {
		s.mu.Unlock()
		return
	}
	s.pages[page.TargetID] = page
	s.mu.Unlock()

	p := page.Context(ctx)
	if info, err := p.Info(); err == nil {
		s.setURL(page.TargetID, info.URL)
	}
	if err := (proto.NetworkEnable{}).Call(p); err != nil {
		s.logger.Debug("Failed to enable network events", zap.Error(err))
	}
	if _, err := p.Expose(BindingName, func(arg gson.JSON) (interface{}, error) {
		raw, err := arg.MarshalJSON()
		if err != nil {
			return nil, err
		}
		reply, err := s.callBinding(ctx, page.TargetID, raw)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(reply), nil
	}); err != nil {
		s.logger.Debug("Failed to expose bridge binding", zap.Error(err))
	}

	wait := p.EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.Request == nil || !IsCaptureURL(ev.Request.URL) || !ev.Request.HasPostData {
				return
			}
			body := ev.Request.PostData
			if body == "" {
				res, err := proto.NetworkGetRequestPostData{RequestID: ev.RequestID}.Call(p)
				if err != nil {
					s.logger.Debug("Request body unavailable", zap.String("url", ev.Request.URL), zap.Error(err))
					return
				}
				body = res.PostData
			}
			ct := HeadersFromProtocol(ev.Request.Headers).Get("Content-Type")
			s.observer.RequestBody(string(ev.RequestID), ev.Request.URL, ct, []byte(body))
		},
		func(ev *proto.NetworkRequestWillBeSentExtraInfo) {
			h := HeadersFromProtocol(ev.Headers)
			if !CarriesSession(h) {
				return
			}
			s.observer.RequestHeaders(string(ev.RequestID), h)
		},
		func(ev *proto.NetworkLoadingFailed) {
			s.observer.Forget(string(ev.RequestID))
		},
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame != nil && ev.Frame.ParentID == "" {
				s.setURL(page.TargetID, ev.Frame.URL)
				s.observer.Navigated(ev.Frame.URL)
			}
		},
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		wait()
	}()
}

// CarriesSession reports whether request headers hold a Slack d cookie.
func CarriesSession(h http.Header) bool {
	for _, c := range h.Values("Cookie") {
		for _, part := range strings.Split(c, ";") {
			if strings.HasPrefix(strings.TrimSpace(part), "d=") {
				return true
			}
		}
	}
	return false
}
