package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	tls "github.com/refraction-networking/utls"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// utlsRoundTripper speaks HTTP/2 over a TLS connection carrying a Chrome
// ClientHello, so requests look like they come from the browser the
// credentials were captured in.
type utlsRoundTripper struct {
	// mu guards connections and pending.
	mu          sync.Mutex
	connections map[string]*http2.ClientConn
	// pending holds hosts with a dial in flight.
	pending map[string]*sync.Cond
	dialer  proxy.Dialer
	logger  *zap.Logger
}

func newUtlsRoundTripper(proxyURL string, logger *zap.Logger) *utlsRoundTripper {
	return &utlsRoundTripper{
		connections: make(map[string]*http2.ClientConn),
		pending:     make(map[string]*sync.Cond),
		dialer:      proxyDialer(proxyURL, logger),
		logger:      logger,
	}
}

func proxyDialer(proxyURL string, logger *zap.Logger) proxy.Dialer {
	if proxyURL == "" {
		return proxy.Direct
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		logger.Error("Failed to parse proxy URL, connecting directly", zap.String("proxy", proxyURL), zap.Error(err))
		return proxy.Direct
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		logger.Error("Failed to create proxy dialer, connecting directly", zap.String("proxy", proxyURL), zap.Error(err))
		return proxy.Direct
	}
	return d
}

func (t *utlsRoundTripper) conn(ctx context.Context, host, addr string) (*http2.ClientConn, error) {
	t.mu.Lock()
	if c, ok := t.connections[host]; ok && c.CanTakeNewRequest() {
		t.mu.Unlock()
		return c, nil
	}
	if cond, ok := t.pending[host]; ok {
		cond.Wait()
		if c, ok := t.connections[host]; ok && c.CanTakeNewRequest() {
			t.mu.Unlock()
			return c, nil
		}
	}
	cond := sync.NewCond(&t.mu)
	t.pending[host] = cond
	t.mu.Unlock()

	c, err := t.dial(ctx, host, addr)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, host)
	cond.Broadcast()
	if err != nil {
		return nil, err
	}
	t.connections[host] = c
	return c, nil
}

func (t *utlsRoundTripper) dial(ctx context.Context, host, addr string) (*http2.ClientConn, error) {
	var (
		raw net.Conn
		err error
	)
	if cd, ok := t.dialer.(proxy.ContextDialer); ok {
		raw, err = cd.DialContext(ctx, "tcp", addr)
	} else {
		raw, err = t.dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	tlsConn := tls.UClient(raw, &tls.Config{ServerName: host}, tls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	if p := tlsConn.ConnectionState().NegotiatedProtocol; p != http2.NextProtoTLS {
		tlsConn.Close()
		return nil, fmt.Errorf("%s negotiated %q instead of h2", host, p)
	}

	c, err := (&http2.Transport{}).NewClientConn(tlsConn)
	if err != nil {
		tlsConn.Close()
		return nil, err
	}
	t.logger.Debug("Opened fingerprinted connection", zap.String("host", host))
	return c, nil
}

func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	addr := req.URL.Host
	if !strings.Contains(addr, ":") {
		addr += ":443"
	}
	host := req.URL.Hostname()

	c, err := t.conn(req.Context(), host, addr)
	if err != nil {
		return nil, err
	}
	resp, err := c.RoundTrip(req)
	if err != nil {
		t.mu.Lock()
		if cached, ok := t.connections[host]; ok && cached == c {
			delete(t.connections, host)
		}
		t.mu.Unlock()
		return nil, err
	}
	return resp, nil
}
