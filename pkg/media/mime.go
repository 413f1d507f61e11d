package media

import (
	"bytes"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var gifMagic = []byte{0x47, 0x49, 0x46}

// Hints classifies a URL by the media it most likely points at.
type Hints struct {
	GIF   bool
	Video bool
	Audio bool
}

func HintsFor(rawURL string) Hints {
	u := strings.ToLower(rawURL)
	return Hints{
		GIF:   strings.Contains(u, ".gif") || strings.Contains(u, "giphy") || strings.Contains(u, "tenor"),
		Video: containsAny(u, ".mp4", ".webm", ".mov", ".avi", ".mkv", "video"),
		Audio: containsAny(u, ".mp3", ".wav", ".ogg", ".m4a", "audio"),
	}
}

// CorrectMIME re-tags payloads whose reported type disagrees with what the
// URL says they are, then sniffs the bytes when the type is still unknown.
func CorrectMIME(rawURL string, p Payload) Payload {
	p.MIMEType = baseType(p.MIMEType)
	h := HintsFor(rawURL)
	lower := strings.ToLower(rawURL)

	switch {
	case h.GIF && p.MIMEType != "image/gif":
		if bytes.HasPrefix(p.Data, gifMagic) {
			p.MIMEType = "image/gif"
		} else if strings.HasSuffix(urlPath(lower), ".gif") && !isOtherImage(p.Data) {
			p.MIMEType = "image/gif"
		}
	case isImage(p.Data):
		// Canvas samples of a video or audio URL are still frames.
	case h.Video && !strings.HasPrefix(p.MIMEType, "video/"):
		switch {
		case strings.Contains(lower, ".webm"):
			p.MIMEType = "video/webm"
		case strings.Contains(lower, ".mov"):
			p.MIMEType = "video/quicktime"
		case strings.Contains(lower, ".avi"):
			p.MIMEType = "video/x-msvideo"
		default:
			p.MIMEType = "video/mp4"
		}
	case h.Audio && !strings.HasPrefix(p.MIMEType, "audio/"):
		switch {
		case strings.Contains(lower, ".wav"):
			p.MIMEType = "audio/wav"
		case strings.Contains(lower, ".ogg"):
			p.MIMEType = "audio/ogg"
		case strings.Contains(lower, ".m4a"):
			p.MIMEType = "audio/mp4"
		default:
			p.MIMEType = "audio/mpeg"
		}
	}

	if p.MIMEType == "" || p.MIMEType == "application/octet-stream" {
		if len(p.Data) > 0 {
			p.MIMEType = mimetype.Detect(p.Data).String()
			p.MIMEType = baseType(p.MIMEType)
		}
	}
	return p
}

// Extension returns the file extension, with dot, used when naming an
// upload of the given MIME type.
func Extension(mimeType string) string {
	switch baseType(mimeType) {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/png", "":
		return ".png"
	}
	if m := mimetype.Lookup(baseType(mimeType)); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if exts, err := mime.ExtensionsByType(baseType(mimeType)); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}

func isImage(data []byte) bool {
	return len(data) > 0 && strings.HasPrefix(mimetype.Detect(data).String(), "image/")
}

func isOtherImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	mt := mimetype.Detect(data)
	return strings.HasPrefix(mt.String(), "image/") && !mt.Is("image/gif")
}

func baseType(mt string) string {
	mt = strings.TrimSpace(strings.ToLower(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return path.Clean(u.Path)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
