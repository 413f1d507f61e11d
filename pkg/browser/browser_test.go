package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
	"go.uber.org/zap/zaptest"

	"github.com/emojistudio/slack-emoji-bridge/pkg/capture"
	"github.com/emojistudio/slack-emoji-bridge/pkg/clock"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/studio"
)

type captured struct {
	id      string
	url     string
	token   string
	headers http.Header
}

type fakeCapture struct {
	bodies  []captured
	headers []captured
	partial []string
}

func (f *fakeCapture) OnInterceptedRequestBody(requestID, requestURL string, form url.Values) {
	f.bodies = append(f.bodies, captured{id: requestID, url: requestURL, token: form.Get("token")})
}

func (f *fakeCapture) OnInterceptedResponseHeaders(requestID string, headers http.Header, requestURL string) (capture.CommitResult, error) {
	f.headers = append(f.headers, captured{id: requestID, url: requestURL, headers: headers})
	return capture.CommitResult{Accepted: true}, nil
}

func (f *fakeCapture) OnPartialCapture(rec credential.Record) {
	f.partial = append(f.partial, rec.Workspace)
}

const emojiList = "https://acme.slack.com/api/emoji.list?_x_id=abc"

func newObserver(t *testing.T) (*Observer, *fakeCapture, *clock.Fake) {
	fc := &fakeCapture{}
	clk := clock.NewFake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	return NewObserver(fc, clk, zaptest.NewLogger(t)), fc, clk
}

func sessionHeaders() http.Header {
	return http.Header{"Cookie": {"b=1; d=xoxd-333; d-s=1700000000"}}
}

func TestIsCaptureURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{emojiList, true},
		{"https://acme.slack.com/api/client.counts", true},
		{"https://acme.slack.com/api/users.prefs.get", true},
		{"https://acme.slack.com/api/team.info", true},
		{"https://acme.slack.com/api/chat.postMessage", false},
		{"https://acme.slack.com/customize/emoji", false},
		{"https://evil.example.com/api/emoji.list", false},
		{"http://acme.slack.com/api/emoji.list", false},
		{"::", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCaptureURL(tt.url))
		})
	}
}

func TestLoginWorkspace(t *testing.T) {
	ws, ok := LoginWorkspace("https://acme.slack.com/signin?redir=%2Fcustomize")
	assert.True(t, ok)
	assert.Equal(t, "acme", ws)

	_, ok = LoginWorkspace("https://acme.slack.com/login/checkcookie")
	assert.True(t, ok)

	_, ok = LoginWorkspace("https://acme.slack.com/customize/emoji")
	assert.False(t, ok)

	_, ok = LoginWorkspace("https://example.com/signin")
	assert.False(t, ok)
}

func TestHeadersFromProtocol(t *testing.T) {
	h := HeadersFromProtocol(map[string]gson.JSON{
		"cookie":     gson.New("d=xoxd-1"),
		"Set-Cookie": gson.New("a=1\nb=2"),
	})
	assert.Equal(t, "d=xoxd-1", h.Get("Cookie"))
	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("Set-Cookie"))
}

func TestCarriesSession(t *testing.T) {
	assert.True(t, CarriesSession(sessionHeaders()))
	assert.True(t, CarriesSession(http.Header{"Cookie": {"d=xoxd-1"}}))
	assert.False(t, CarriesSession(http.Header{"Cookie": {"dd=1; b=2"}}))
	assert.False(t, CarriesSession(http.Header{}))
}

func TestObserverBodyThenHeaders(t *testing.T) {
	o, fc, _ := newObserver(t)

	o.RequestBody("r1", emojiList, "application/x-www-form-urlencoded", []byte("token=xoxc-111&count=10"))
	require.Len(t, fc.bodies, 1)
	assert.Equal(t, "xoxc-111", fc.bodies[0].token)
	assert.Empty(t, fc.headers)
	assert.Equal(t, 1, o.Pending())

	o.RequestHeaders("r1", sessionHeaders())
	require.Len(t, fc.headers, 1)
	assert.Equal(t, emojiList, fc.headers[0].url)
	assert.Zero(t, o.Pending())
}

func TestObserverHeadersThenBody(t *testing.T) {
	o, fc, _ := newObserver(t)

	o.RequestHeaders("r2", sessionHeaders())
	assert.Empty(t, fc.headers)

	o.RequestBody("r2", emojiList, "application/x-www-form-urlencoded", []byte("token=xoxc-111"))
	require.Len(t, fc.bodies, 1)
	require.Len(t, fc.headers, 1)
	assert.Equal(t, "r2", fc.headers[0].id)
	assert.Zero(t, o.Pending())
}

func TestObserverIgnores(t *testing.T) {
	o, fc, _ := newObserver(t)

	o.RequestBody("r3", "https://acme.slack.com/api/chat.postMessage", "application/x-www-form-urlencoded", []byte("token=xoxc-1"))
	o.RequestBody("r4", emojiList, "application/x-www-form-urlencoded", []byte("count=10"))
	assert.Empty(t, fc.bodies)
	assert.Zero(t, o.Pending())
}

func TestObserverExpiresEarlyHeaders(t *testing.T) {
	o, fc, clk := newObserver(t)

	o.RequestHeaders("old", sessionHeaders())
	clk.Advance(halfTTL + time.Second)
	o.RequestHeaders("new", sessionHeaders())
	assert.Equal(t, 1, o.Pending())

	o.RequestBody("old", emojiList, "application/x-www-form-urlencoded", []byte("token=xoxc-1"))
	assert.Empty(t, fc.headers)

	o.Forget("old")
	o.Forget("new")
	assert.Zero(t, o.Pending())
}

func TestObserverExpiresUnansweredBodies(t *testing.T) {
	o, fc, clk := newObserver(t)

	for i := 0; i < 1000; i++ {
		o.RequestBody(fmt.Sprintf("r%d", i), emojiList, "application/x-www-form-urlencoded", []byte("token=xoxc-1"))
	}
	assert.Equal(t, 1000, o.Pending())

	clk.Advance(time.Hour)
	o.RequestHeaders("unrelated", sessionHeaders())
	assert.Equal(t, 1, o.Pending())
	assert.Empty(t, fc.headers)

	o.RequestBody("late", emojiList, "application/x-www-form-urlencoded", []byte("token=xoxc-1"))
	clk.Advance(halfTTL + time.Second)
	assert.Equal(t, 2, o.Sweep(clk.Now()))
	assert.Zero(t, o.Pending())

	o.RequestHeaders("late", sessionHeaders())
	assert.Empty(t, fc.headers)
}

func TestObserverNavigated(t *testing.T) {
	o, fc, _ := newObserver(t)
	o.Navigated("https://acme.slack.com/customize/emoji")
	o.Navigated("https://acme.slack.com/signin")
	assert.Equal(t, []string{"acme"}, fc.partial)
}

func TestDecodeFetchResult(t *testing.T) {
	data, ct, err := decodeFetchResult(gson.New(map[string]any{"data": "R0lGODlh", "type": "image/gif"}))
	require.NoError(t, err)
	assert.Equal(t, []byte("GIF89a"), data)
	assert.Equal(t, "image/gif", ct)

	_, _, err = decodeFetchResult(gson.New(map[string]any{"error": "TypeError: Failed to fetch"}))
	assert.ErrorContains(t, err, "Failed to fetch")

	assert.Empty(t, jsError(gson.New(map[string]any{"data": "x"})))
}

type noPages struct{}

func (noPages) Pages() []*rod.Page { return nil }

func TestStudioPublisher(t *testing.T) {
	p := NewStudioPublisher(noPages{}, "https://app.emojistudio.xyz/", zaptest.NewLogger(t))
	assert.True(t, p.IsStudioURL("https://app.emojistudio.xyz/dashboard"))
	assert.True(t, p.IsStudioURL("https://app.emojistudio.xyz"))
	assert.False(t, p.IsStudioURL("https://app.emojistudio.xyz.evil.com/"))

	err := p.Publish(context.Background(), studio.Message{Type: studio.TypeClearData})
	assert.ErrorIs(t, err, studio.ErrNoStudioPage)
}

func TestTrustedBindingURL(t *testing.T) {
	const studio = "https://app.emojistudio.xyz"
	tests := []struct {
		url  string
		want bool
	}{
		{"https://acme.slack.com/customize/emoji", true},
		{"https://app.slack.com/client/T1/C1", true},
		{"https://slackmojis.com/categories/1", true},
		{"https://emojis.slackmojis.com/emojis/images/1/parrot.gif", true},
		{"https://app.emojistudio.xyz/dashboard", true},
		{"https://app.emojistudio.xyz", true},
		{"http://acme.slack.com/", false},
		{"https://evil.example.com/", false},
		{"https://slack.com.evil.example/", false},
		{"https://app.emojistudio.xyz.evil.example/", false},
		{"http://app.emojistudio.xyz/", false},
		{"about:blank", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, TrustedBindingURL(tt.url, studio))
		})
	}
}

type echoHandler struct{ calls int }

func (h *echoHandler) HandleJSON(_ context.Context, raw []byte) []byte {
	h.calls++
	return raw
}

func TestSessionBindingChecksCurrentPage(t *testing.T) {
	h := &echoHandler{}
	s := NewSession(nil, nil, h, "https://app.emojistudio.xyz/", zaptest.NewLogger(t))
	const tab = proto.TargetTargetID("tab-1")
	msg := []byte(`{"type":"CLEAR_DATA"}`)

	_, err := s.callBinding(context.Background(), tab, msg)
	assert.ErrorIs(t, err, ErrUntrustedPage)

	s.setURL(tab, "https://app.emojistudio.xyz/sync")
	reply, err := s.callBinding(context.Background(), tab, msg)
	require.NoError(t, err)
	assert.Equal(t, msg, reply)

	s.setURL(tab, "https://evil.example.com/")
	_, err = s.callBinding(context.Background(), tab, msg)
	assert.ErrorIs(t, err, ErrUntrustedPage)
	assert.Equal(t, 1, h.calls)
}
