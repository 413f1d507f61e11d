// Package browser drives a Chrome instance over the DevTools protocol: it
// watches Slack tabs for API traffic carrying the session credential and
// bridges page scripts to the message dispatcher.
package browser

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/capture"
	"github.com/emojistudio/slack-emoji-bridge/pkg/clock"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
)

var apiPathRe = regexp.MustCompile(`^/api/(emoji|client|users|team)\.`)

// halfTTL bounds how long one half of a request waits for the other.
const halfTTL = 30 * time.Second

// Capture is the coordinator side of the observer.
type Capture interface {
	OnInterceptedRequestBody(requestID, requestURL string, form url.Values)
	OnInterceptedResponseHeaders(requestID string, headers http.Header, requestURL string) (capture.CommitResult, error)
	OnPartialCapture(rec credential.Record)
}

type earlyHeaders struct {
	headers http.Header
	seen    time.Time
}

type pendingBody struct {
	url  string
	seen time.Time
}

// Observer pairs intercepted request bodies with the request headers that
// DevTools reports separately, in whichever order they arrive.
type Observer struct {
	capture Capture
	clock   clock.Clock
	logger  *zap.Logger

	mu     sync.Mutex
	bodies map[string]pendingBody // body seen and waiting for headers
	early  map[string]earlyHeaders
}

func NewObserver(c Capture, clk clock.Clock, logger *zap.Logger) *Observer {
	return &Observer{
		capture: c,
		clock:   clk,
		logger:  logger,
		bodies:  make(map[string]pendingBody),
		early:   make(map[string]earlyHeaders),
	}
}

// IsCaptureURL reports whether rawURL is a Slack API call whose form
// carries the session token.
func IsCaptureURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" {
		return false
	}
	return text.IsSlackHost(u.Hostname()) && apiPathRe.MatchString(u.Path)
}

// LoginWorkspace returns the workspace of a Slack sign-in page.
func LoginWorkspace(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if !strings.HasPrefix(u.Path, "/signin") && !strings.HasPrefix(u.Path, "/login") {
		return "", false
	}
	ws, err := text.Workspace(rawURL)
	if err != nil {
		return "", false
	}
	return ws, true
}

// HeadersFromProtocol converts DevTools header maps to http.Header.
func HeadersFromProtocol(h map[string]gson.JSON) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		// DevTools joins repeated headers with newlines.
		for _, line := range strings.Split(v.Str(), "\n") {
			out.Add(k, line)
		}
	}
	return out
}

// RequestBody handles an outgoing request body.
func (o *Observer) RequestBody(requestID, requestURL, contentType string, body []byte) {
	if !IsCaptureURL(requestURL) {
		return
	}
	form := credential.ParseForm(contentType, body)
	if form.Get("token") == "" {
		return
	}
	o.capture.OnInterceptedRequestBody(requestID, requestURL, form)
	now := o.clock.Now()

	o.mu.Lock()
	o.prune(now)
	eh, ok := o.early[requestID]
	if ok {
		delete(o.early, requestID)
	} else {
		o.bodies[requestID] = pendingBody{url: requestURL, seen: now}
	}
	o.mu.Unlock()

	if ok {
		o.complete(requestID, eh.headers, requestURL)
	}
}

// RequestHeaders handles the full request headers, cookies included.
func (o *Observer) RequestHeaders(requestID string, headers http.Header) {
	now := o.clock.Now()

	o.mu.Lock()
	o.prune(now)
	pb, ok := o.bodies[requestID]
	if ok {
		delete(o.bodies, requestID)
	} else {
		o.early[requestID] = earlyHeaders{headers: headers, seen: now}
	}
	o.mu.Unlock()

	if ok {
		o.complete(requestID, headers, pb.url)
	}
}

// Sweep drops halves older than the TTL, consumed or not.
func (o *Observer) Sweep(now time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prune(now)
}

// prune must be called with mu held.
func (o *Observer) prune(now time.Time) int {
	n := 0
	for id, pb := range o.bodies {
		if now.Sub(pb.seen) > halfTTL {
			delete(o.bodies, id)
			n++
		}
	}
	for id, eh := range o.early {
		if now.Sub(eh.seen) > halfTTL {
			delete(o.early, id)
			n++
		}
	}
	return n
}

// Forget drops state for a request that finished or failed.
func (o *Observer) Forget(requestID string) {
	o.mu.Lock()
	delete(o.bodies, requestID)
	delete(o.early, requestID)
	o.mu.Unlock()
}

func (o *Observer) complete(requestID string, headers http.Header, requestURL string) {
	res, err := o.capture.OnInterceptedResponseHeaders(requestID, headers, requestURL)
	if err != nil {
		o.logger.Warn("Failed to commit captured credential", zap.String("url", requestURL), zap.Error(err))
		return
	}
	if res.Accepted {
		o.logger.Debug("Credential captured from page traffic", zap.String("url", requestURL))
	}
}

// Navigated handles a top-level navigation of a Slack tab.
func (o *Observer) Navigated(rawURL string) {
	ws, ok := LoginWorkspace(rawURL)
	if !ok {
		return
	}
	o.capture.OnPartialCapture(credential.Record{Workspace: ws})
}

// Pending returns how many requests wait for their other half.
func (o *Observer) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.bodies) + len(o.early)
}
