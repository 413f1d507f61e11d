package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/emojistudio/slack-emoji-bridge/pkg/media"
)

// PageMedia runs the DOM-dependent media strategies inside a tab.
type PageMedia struct {
	page *rod.Page
}

func NewPageMedia(p *rod.Page) *PageMedia {
	return &PageMedia{page: p}
}

const sampleElementJS = `(url, selector) => {
	let el = selector ? document.querySelector(selector) : null;
	if (!el) {
		el = Array.from(document.querySelectorAll('img, video')).find(e => e.currentSrc === url || e.src === url);
	}
	if (!el) return { error: 'not_found' };
	const video = el.tagName === 'VIDEO';
	if (video ? el.readyState < 2 : !(el.complete && el.naturalWidth > 0)) return { error: 'not_loaded' };
	const canvas = document.createElement('canvas');
	canvas.width = video ? el.videoWidth : el.naturalWidth;
	canvas.height = video ? el.videoHeight : el.naturalHeight;
	try {
		canvas.getContext('2d').drawImage(el, 0, 0);
		return { data: canvas.toDataURL('image/png') };
	} catch (e) {
		return { error: 'tainted' };
	}
}`

const loadImageJS = `(url, crossOrigin) => new Promise(resolve => {
	const img = new Image();
	if (crossOrigin) img.crossOrigin = 'anonymous';
	img.onload = () => {
		const canvas = document.createElement('canvas');
		canvas.width = img.naturalWidth;
		canvas.height = img.naturalHeight;
		try {
			canvas.getContext('2d').drawImage(img, 0, 0);
			resolve({ data: canvas.toDataURL('image/png') });
		} catch (e) {
			resolve({ error: 'tainted' });
		}
	};
	img.onerror = () => resolve({ error: 'load_failed' });
	img.src = url;
})`

const fetchJS = `async (url) => {
	try {
		const res = await fetch(url);
		if (!res.ok) return { error: 'status ' + res.status };
		const buf = new Uint8Array(await res.arrayBuffer());
		let bin = '';
		for (let i = 0; i < buf.length; i += 0x8000) {
			bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
		}
		return { data: btoa(bin), type: res.headers.get('content-type') || '' };
	} catch (e) {
		return { error: String(e) };
	}
}`

func (m *PageMedia) eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := m.page.Context(ctx).Evaluate(rod.Eval(js, args...).ByPromise())
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

func (m *PageMedia) SampleElement(ctx context.Context, url, selector string) (string, error) {
	v, err := m.eval(ctx, sampleElementJS, url, selector)
	if err != nil {
		return "", err
	}
	if e := jsError(v); e != "" {
		return "", &media.Error{Kind: media.KindElementNotLoaded, URL: url, Err: errors.New(e)}
	}
	return v.Get("data").Str(), nil
}

func (m *PageMedia) LoadImage(ctx context.Context, url string, crossOrigin bool) (string, error) {
	v, err := m.eval(ctx, loadImageJS, url, crossOrigin)
	if err != nil {
		return "", err
	}
	if e := jsError(v); e != "" {
		return "", &media.Error{Kind: media.KindCorsBlocked, URL: url, Err: errors.New(e)}
	}
	return v.Get("data").Str(), nil
}

func (m *PageMedia) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	v, err := m.eval(ctx, fetchJS, url)
	if err != nil {
		return nil, "", err
	}
	return decodeFetchResult(v)
}

func decodeFetchResult(v gson.JSON) ([]byte, string, error) {
	if e := jsError(v); e != "" {
		return nil, "", fmt.Errorf("page fetch: %s", e)
	}
	data, err := base64.StdEncoding.DecodeString(v.Get("data").Str())
	if err != nil {
		return nil, "", fmt.Errorf("page fetch: %w", err)
	}
	return data, v.Get("type").Str(), nil
}

func jsError(v gson.JSON) string {
	if !v.Has("error") {
		return ""
	}
	return v.Get("error").Str()
}
