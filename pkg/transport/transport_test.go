package transport

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestProvideHTTPClientUserAgent(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	client := ProvideHTTPClient(nil, zaptest.NewLogger(t), Options{Fingerprint: true})

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom/1.0")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{DefaultUserAgent, "custom/1.0"}, got)
}

func TestProvideHTTPClientCookies(t *testing.T) {
	cookies := []*http.Cookie{{Name: "d", Value: "xoxd-abc", Domain: ".slack.com", Path: "/"}}
	client := ProvideHTTPClient(cookies, zaptest.NewLogger(t), Options{})
	require.NotNil(t, client.Jar)

	u := mustParse(t, "https://acme.slack.com/api/emoji.list")
	got := client.Jar.Cookies(u)
	require.Len(t, got, 1)
	assert.Equal(t, "xoxd-abc", got[0].Value)

	assert.Empty(t, client.Jar.Cookies(mustParse(t, "https://example.com/")))
	assert.Nil(t, ProvideHTTPClient(nil, zaptest.NewLogger(t), Options{}).Jar)
}

func TestProxyDialerFallsBack(t *testing.T) {
	logger := zaptest.NewLogger(t)
	assert.NotNil(t, proxyDialer("", logger))
	assert.NotNil(t, proxyDialer("::not a url", logger))
	assert.NotNil(t, proxyDialer("socks5://127.0.0.1:1080", logger))
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
