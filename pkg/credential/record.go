// Package credential turns observed Slack web-client traffic into a
// credential record: workspace, session token, the full cookie jar, team id
// and client request id.
package credential

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dedupPrefixLen = 10

var ErrInvalidRecord = errors.New("credential record is missing workspace, token or cookie")

// Record is the single resident credential. A record without token or cookie
// is partial and may only be used to signal an authentication failure.
type Record struct {
	Workspace       string    `json:"workspace"`
	Token           string    `json:"token,omitempty"`
	Cookie          string    `json:"cookie,omitempty"`
	TeamID          string    `json:"teamId,omitempty"`
	ClientRequestID string    `json:"clientRequestId,omitempty"`
	CapturedAt      time.Time `json:"capturedAt"`
}

// Valid reports whether the record can authenticate an upload.
func (r Record) Valid() bool {
	return r.Workspace != "" && r.Token != "" && r.Cookie != ""
}

// Partial reports whether the record names a workspace but carries no token.
func (r Record) Partial() bool {
	return r.Workspace != "" && r.Token == ""
}

// DedupKey is workspace plus the first ten characters of the token.
func (r Record) DedupKey() string {
	tok := r.Token
	if len(tok) > dedupPrefixLen {
		tok = tok[:dedupPrefixLen]
	}
	return r.Workspace + "_" + tok
}

// Validate returns ErrInvalidRecord naming the missing fields.
func (r Record) Validate() error {
	var missing []string
	if r.Workspace == "" {
		missing = append(missing, "workspace")
	}
	if r.Token == "" {
		missing = append(missing, "token")
	}
	if r.Cookie == "" {
		missing = append(missing, "cookie")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRecord, strings.Join(missing, ", "))
	}
	return nil
}

// DCookie returns the value of the "d" cookie from the raw Cookie header,
// URL-decoded when it is percent-encoded.
func (r Record) DCookie() string {
	return dCookie(r.Cookie)
}

// NewClientRequestID mints a web-client style request id such as
// "6b1e297c-1756862180.076".
func NewClientRequestID(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%d.%03d", id[:8], now.Unix(), now.Nanosecond()/int(time.Millisecond))
}
