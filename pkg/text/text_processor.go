package text

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const maxEmojiNameLen = 30

var (
	emojiNameRe     = regexp.MustCompile(`^[a-z0-9_-]+$`)
	disallowedRe    = regexp.MustCompile(`[^a-z0-9_-]`)
	underscoreRunRe = regexp.MustCompile(`_+`)
	imageURLNameRe  = regexp.MustCompile(`(?i)/([^/]+)\.(gif|png|jpg|jpeg|webp|heic|heif)(?:\?|$)`)
)

// Workspace returns the Slack workspace subdomain of rawURL, e.g. "acme" for
// https://acme.slack.com/api/emoji.list.
func Workspace(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if !IsSlackHost(host) {
		return "", fmt.Errorf("invalid Slack URL: %q", rawURL)
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 || parts[0] == "app" || parts[0] == "api" {
		return "", fmt.Errorf("invalid Slack URL: %q", rawURL)
	}
	return parts[0], nil
}

// IsSlackHost reports whether host belongs to slack.com.
func IsSlackHost(host string) bool {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
	if err != nil {
		return false
	}
	return etld1 == "slack.com"
}

// IsSlackMediaHost reports whether host serves Slack-owned media, where an
// anonymous CORS load is known to fail.
func IsSlackMediaHost(host string) bool {
	host = strings.ToLower(host)
	if IsSlackHost(host) {
		return true
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	return etld1 == "slack-edge.com"
}

// ValidEmojiName reports whether name is accepted by Slack's emoji.add.
func ValidEmojiName(name string) bool {
	return emojiNameRe.MatchString(name)
}

// NormalizeEmojiName lowercases name, replaces every character outside
// [a-z0-9_-] with an underscore, collapses underscore runs and caps the
// result at 30 characters.
func NormalizeEmojiName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = disallowedRe.ReplaceAllString(n, "_")
	n = underscoreRunRe.ReplaceAllString(n, "_")
	if len(n) > maxEmojiNameLen {
		n = n[:maxEmojiNameLen]
	}
	return n
}

// EmojiNameFromFilename derives an emoji name from a local file name.
func EmojiNameFromFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	n := NormalizeEmojiName(base)
	if n == "" || n == "_" {
		return "emoji"
	}
	return n
}

// EmojiNameFromURL extracts an emoji name from the last path segment of an
// image URL, falling back to "emoji".
func EmojiNameFromURL(rawURL string) string {
	m := imageURLNameRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "emoji"
	}
	if n := NormalizeEmojiName(m[1]); n != "" {
		return n
	}
	return "emoji"
}

// TokenPrefix returns at most the first n characters of token, suitable for
// logging.
func TokenPrefix(token string, n int) string {
	if len(token) <= n {
		return token
	}
	return token[:n]
}

func UnixToIsoRFC3339(sec int64) string {
	if sec <= 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// ProcessText guards a CSV cell against formula injection.
func ProcessText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}
