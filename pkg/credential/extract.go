package credential

import (
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
)

var (
	bearerRe = regexp.MustCompile(`Bearer\s+(xox[a-zA-Z]-[\w-]+)`)
	teamIDRe = regexp.MustCompile(`^[TE][A-Z0-9]{2,}$`)
)

// Extractor produces credential records from observed requests. Now is used
// to stamp records and mint request ids.
type Extractor struct {
	Now func() time.Time
}

func (e Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Extract uses the default extractor.
func Extract(headers http.Header, form url.Values, requestURL string) Record {
	return Extractor{}.Extract(headers, form, requestURL)
}

// Extract never fails: when nothing usable is found it returns a record with
// only the workspace set, or an empty record for non-Slack URLs.
func (e Extractor) Extract(headers http.Header, form url.Values, requestURL string) Record {
	now := e.now()
	rec := Record{CapturedAt: now}

	u, err := url.Parse(requestURL)
	if err != nil {
		return rec
	}
	if ws, err := text.Workspace(requestURL); err == nil {
		rec.Workspace = ws
	}

	rec.Cookie = strings.TrimSpace(headers.Get("Cookie"))
	d := dCookie(rec.Cookie)

	rec.Token = resolveToken(form, headers, d)
	rec.TeamID = resolveTeamID(headers, rec.Cookie, d, u)
	rec.ClientRequestID = resolveClientRequestID(headers, u, now)

	return rec
}

func resolveToken(form url.Values, headers http.Header, d string) string {
	if tok := form.Get("token"); strings.HasPrefix(tok, "xoxc") {
		return tok
	}
	if m := bearerRe.FindStringSubmatch(headers.Get("Authorization")); m != nil {
		return m[1]
	}
	if strings.HasPrefix(d, "xox") {
		return d
	}
	return ""
}

func resolveTeamID(headers http.Header, cookie, d string, u *url.URL) string {
	if id := strings.TrimSpace(headers.Get("X-Slack-Team-Id")); id != "" {
		return id
	}
	if strings.HasPrefix(strings.TrimSpace(d), "{") {
		var payload struct {
			TeamID string `json:"team_id"`
		}
		if err := json.Unmarshal([]byte(d), &payload); err == nil && payload.TeamID != "" {
			return payload.TeamID
		}
	}
	if id := cookieValue(cookie, "team_id"); id != "" {
		return id
	}
	if route := u.Query().Get("slack_route"); route != "" {
		// Enterprise routes look like "E0123ABC:T0456DEF"; the workspace team wins.
		var found string
		for _, seg := range strings.Split(route, ":") {
			if !teamIDRe.MatchString(seg) {
				continue
			}
			if found == "" || seg[0] == 'T' {
				found = seg
			}
		}
		return found
	}
	return ""
}

func resolveClientRequestID(headers http.Header, u *url.URL, now time.Time) string {
	if id := strings.TrimSpace(headers.Get("X-Slack-Client-Request-Id")); id != "" {
		return id
	}
	if id := u.Query().Get("_x_id"); id != "" {
		return id
	}
	return NewClientRequestID(now)
}

func dCookie(cookie string) string {
	v := cookieValue(cookie, "d")
	if v == "" {
		return ""
	}
	if strings.Contains(v, "%") {
		if dec, err := url.QueryUnescape(v); err == nil {
			return dec
		}
	}
	return v
}

// cookieValue finds name in a raw Cookie header without validating the
// other pairs; Slack cookie jars routinely contain values net/http rejects.
func cookieValue(cookie, name string) string {
	for _, part := range strings.Split(cookie, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && k == name {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}
