// Package edge talks to the endpoints the Slack web client uses, replaying
// a captured browser session: the xoxc token goes in the form and the
// browser's Cookie header is sent verbatim.
package edge

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/limiter"
	"github.com/emojistudio/slack-emoji-bridge/pkg/transport"
)

// maxResponseBytes bounds how much of a reply is read.
const maxResponseBytes = 16 << 20

var ErrEmptyResponse = errors.New("empty response from slack")

// APIError is an {"ok": false} reply.
type APIError struct {
	Endpoint string
	Code     string
	// Needed is the scope Slack asked for, when it reports one.
	Needed string
}

func (e *APIError) Error() string {
	if e.Needed != "" {
		return fmt.Sprintf("%s: %s (needed: %s)", e.Endpoint, e.Code, e.Needed)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Code)
}

// StatusError is a non-2xx reply without a JSON error body.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Endpoint, e.Code, http.StatusText(e.Code))
}

// Client is bound to one workspace and one captured credential.
type Client struct {
	cl        *http.Client
	baseURL   string
	workspace string
	token     string
	cookie    string
	teamID    string
	requestID string
	userAgent string
	limiter   *rate.Limiter
	now       func() time.Time
}

type Option func(*Client)

func OptionHTTPClient(cl *http.Client) Option {
	return func(c *Client) { c.cl = cl }
}

// OptionBaseURL replaces https://<workspace>.slack.com.
func OptionBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

func OptionUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// OptionLimiter paces the paged listing calls.
func OptionLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func OptionClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a client for rec. The record must be valid.
func New(rec credential.Record, opts ...Option) (*Client, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cl:        http.DefaultClient,
		baseURL:   "https://" + rec.Workspace + ".slack.com",
		workspace: rec.Workspace,
		token:     rec.Token,
		cookie:    rec.Cookie,
		teamID:    rec.TeamID,
		requestID: rec.ClientRequestID,
		userAgent: transport.DefaultUserAgent,
		limiter:   limiter.Tier3.Limiter(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (cl *Client) Workspace() string { return cl.workspace }

// BaseRequest carries the session token every web API form starts with.
type BaseRequest struct {
	Token string
}

func (b BaseRequest) apply(v url.Values) {
	v.Set("token", b.Token)
}

// WebClientFields are the bookkeeping fields the web client appends.
type WebClientFields struct {
	XReason  string
	XMode    string
	XSonic   bool
	XAppName string
}

func webclientReason(reason string) WebClientFields {
	return WebClientFields{XReason: reason, XMode: "online"}
}

func (w WebClientFields) apply(v url.Values) {
	if w.XReason != "" {
		v.Set("_x_reason", w.XReason)
	}
	if w.XMode != "" {
		v.Set("_x_mode", w.XMode)
	}
	if w.XSonic {
		v.Set("_x_sonic", "true")
	}
	if w.XAppName != "" {
		v.Set("_x_app_name", w.XAppName)
	}
}

// endpointURL builds /api/<endpoint> with the query string the web client
// sends, in the same order.
func (cl *Client) endpointURL(endpoint string) string {
	reqID := cl.requestID
	if reqID == "" {
		reqID = credential.NewClientRequestID(cl.now())
	}
	id := uuid.New()

	q := []struct{ k, v string }{
		{"_x_id", reqID},
		{"_x_csid", base64.RawURLEncoding.EncodeToString(id[:8])},
		{"slack_route", cl.teamID},
		{"_x_version_ts", "noversion"},
		{"fp", hex.EncodeToString(id[8:9])},
		{"_x_num_retries", "0"},
	}
	var sb strings.Builder
	sb.WriteString(cl.baseURL)
	sb.WriteString("/api/")
	sb.WriteString(endpoint)
	for i, kv := range q {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(kv.k)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv.v))
	}
	return sb.String()
}

func (cl *Client) emojiPage() string {
	return cl.baseURL + "/customize/emoji"
}

func (cl *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.endpointURL(endpoint), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cookie", cl.cookie)
	req.Header.Set("Origin", cl.emojiPage())
	req.Header.Set("Referer", cl.emojiPage())
	req.Header.Set("User-Agent", cl.userAgent)
	req.Header.Set("Accept", "*/*")
	return cl.cl.Do(req)
}

// PostForm sends a urlencoded form to the endpoint.
func (cl *Client) PostForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	return cl.post(ctx, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

// ParseResponse closes resp, checks Slack's ok flag and decodes the body
// into v when v is not nil.
func (cl *Client) ParseResponse(v any, resp *http.Response) error {
	defer resp.Body.Close()
	endpoint := strings.TrimPrefix(resp.Request.URL.Path, "/api/")

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", endpoint, err)
	}
	if len(data) == 0 || !gjson.ValidBytes(data) {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
		}
		if len(data) == 0 {
			return fmt.Errorf("%s: %w", endpoint, ErrEmptyResponse)
		}
		return fmt.Errorf("%s: response is not JSON", endpoint)
	}

	res := gjson.ParseBytes(data)
	if !res.Get("ok").Bool() {
		code := res.Get("error").String()
		if code == "" {
			code = "unknown_error"
		}
		return &APIError{Endpoint: endpoint, Code: code, Needed: res.Get("needed").String()}
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}
