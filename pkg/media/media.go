// Package media turns a media URL into bytes with a trustworthy MIME type,
// trying an ordered list of acquisition strategies.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Payload is acquired media. Strategy names which acquisition path produced it.
type Payload struct {
	Data     []byte
	MIMEType string
	Strategy string
}

// DataURL encodes the payload as a base64 data URL.
func (p Payload) DataURL() string {
	mt := p.MIMEType
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Request names the media to resolve. Selector optionally pins the DOM
// element to sample.
type Request struct {
	URL      string
	Selector string
}

type Kind int

const (
	KindAllStrategiesExhausted Kind = iota + 1
	KindElementNotLoaded
	KindCorsBlocked
)

func (k Kind) String() string {
	switch k {
	case KindAllStrategiesExhausted:
		return "AllStrategiesExhausted"
	case KindElementNotLoaded:
		return "ElementNotLoaded"
	case KindCorsBlocked:
		return "CorsBlocked"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a resolution failure. errors.Is matches on Kind against the
// sentinels below.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

var (
	ErrAllStrategiesExhausted = &Error{Kind: KindAllStrategiesExhausted}
	ErrElementNotLoaded       = &Error{Kind: KindElementNotLoaded}
	ErrCorsBlocked            = &Error{Kind: KindCorsBlocked}
)

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("could not load media")
	if e.URL != "" {
		sb.WriteString(" ")
		sb.WriteString(e.URL)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Kind.String())
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.URL == "" && t.Err == nil
}

// DecodeDataURL parses "data:[<mediatype>][;base64],<data>".
func DecodeDataURL(s string) (Payload, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Payload{}, errors.New("not a data URL")
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return Payload{}, errors.New("malformed data URL")
	}

	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta = m
		isBase64 = true
	}
	mt, _, _ := strings.Cut(meta, ";")

	var raw []byte
	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return Payload{}, fmt.Errorf("decode data URL: %w", err)
		}
		raw = b
	} else {
		s, err := url.PathUnescape(data)
		if err != nil {
			return Payload{}, fmt.Errorf("decode data URL: %w", err)
		}
		raw = []byte(s)
	}
	if mt == "" {
		mt = "text/plain"
	}
	return Payload{Data: raw, MIMEType: strings.ToLower(mt)}, nil
}
