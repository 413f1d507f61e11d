// Package transport builds the HTTP clients used to talk to Slack.
package transport

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// DefaultUserAgent matches a current desktop Chrome.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"

var slackURL = &url.URL{Scheme: "https", Host: "slack.com", Path: "/"}

type Options struct {
	UserAgent string
	ProxyURL  string
	// Fingerprint sends HTTPS requests with a Chrome TLS fingerprint.
	Fingerprint bool
	Timeout     time.Duration
}

// ProvideHTTPClient returns a client that sets the browser User-Agent on
// every request. cookies, when given, are installed for slack.com and all
// of its workspaces; leave them nil when callers set Cookie themselves.
func ProvideHTTPClient(cookies []*http.Cookie, logger *zap.Logger, opts Options) *http.Client {
	var base http.RoundTripper
	if opts.Fingerprint {
		base = &schemeSplit{
			https: newUtlsRoundTripper(opts.ProxyURL, logger),
			plain: plainTransport(opts.ProxyURL, logger),
		}
	} else {
		base = plainTransport(opts.ProxyURL, logger)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	client := &http.Client{
		Transport: &UserAgentTransport{Base: base, UserAgent: ua},
		Timeout:   opts.Timeout,
	}

	if len(cookies) > 0 {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			logger.Error("Failed to create cookie jar", zap.Error(err))
		} else {
			jar.SetCookies(slackURL, cookies)
			client.Jar = jar
		}
	}
	return client
}

func plainTransport(proxyURL string, logger *zap.Logger) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			logger.Error("Failed to parse proxy URL, connecting directly", zap.String("proxy", proxyURL), zap.Error(err))
		} else {
			tr.Proxy = http.ProxyURL(u)
		}
	}
	return tr
}

// UserAgentTransport sets User-Agent on requests that do not carry one.
type UserAgentTransport struct {
	Base      http.RoundTripper
	UserAgent string
}

func (t *UserAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.UserAgent)
	}
	return t.Base.RoundTrip(req)
}

type schemeSplit struct {
	https http.RoundTripper
	plain http.RoundTripper
}

func (s *schemeSplit) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" {
		return s.https.RoundTrip(req)
	}
	return s.plain.RoundTrip(req)
}
