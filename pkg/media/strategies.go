package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
)

// MaxMediaBytes bounds a single acquisition.
const MaxMediaBytes = 50 << 20

// Page is the page context the DOM-dependent strategies run in. Methods
// return *Error values of kind ElementNotLoaded or CorsBlocked for the
// expected failures.
type Page interface {
	// SampleElement draws an already loaded <img>/<video> showing url (or
	// matching selector) onto a canvas and returns a PNG data URL.
	SampleElement(ctx context.Context, url, selector string) (string, error)
	// LoadImage loads url into a fresh image element and exports it as a PNG
	// data URL; crossOrigin sets crossOrigin="anonymous".
	LoadImage(ctx context.Context, url string, crossOrigin bool) (string, error)
	// Fetch issues fetch(url) from the page and returns the body and type.
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// DirectFetch GETs the URL without credentials.
type DirectFetch struct {
	Client    *http.Client
	UserAgent string
}

func (*DirectFetch) Name() string { return "direct-fetch" }

func (d *DirectFetch) Attempt(ctx context.Context, req Request) (Payload, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Payload{}, err
	}
	if d.UserAgent != "" {
		hreq.Header.Set("User-Agent", d.UserAgent)
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hreq)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Payload{}, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		return Payload{}, err
	}
	if len(data) > MaxMediaBytes {
		return Payload{}, fmt.Errorf("media larger than %d bytes", MaxMediaBytes)
	}
	return Payload{Data: data, MIMEType: resp.Header.Get("Content-Type")}, nil
}

// ElementSample captures a still frame of an element the page already
// decoded. Animated media lose their animation.
type ElementSample struct {
	Page Page
}

func (*ElementSample) Name() string { return "element-sample" }

func (e *ElementSample) Attempt(ctx context.Context, req Request) (Payload, error) {
	dataURL, err := e.Page.SampleElement(ctx, req.URL, req.Selector)
	if err != nil {
		return Payload{}, err
	}
	return DecodeDataURL(dataURL)
}

// CORSImageLoad loads the URL into a new image element. Slack-owned media
// is loaded without crossOrigin.
type CORSImageLoad struct {
	Page Page
}

func (*CORSImageLoad) Name() string { return "cors-image-load" }

func (c *CORSImageLoad) Attempt(ctx context.Context, req Request) (Payload, error) {
	crossOrigin := true
	if u, err := url.Parse(req.URL); err == nil && text.IsSlackMediaHost(u.Hostname()) {
		crossOrigin = false
	}
	dataURL, err := c.Page.LoadImage(ctx, req.URL, crossOrigin)
	if err != nil {
		return Payload{}, err
	}
	return DecodeDataURL(dataURL)
}

// DelegatedFetch repeats the direct fetch from inside the page, where the
// page's own origin and cookies apply.
type DelegatedFetch struct {
	Page Page
}

func (*DelegatedFetch) Name() string { return "delegated-fetch" }

func (d *DelegatedFetch) Attempt(ctx context.Context, req Request) (Payload, error) {
	data, contentType, err := d.Page.Fetch(ctx, req.URL)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Data: data, MIMEType: contentType}, nil
}
