// Package limiter holds the request pacing used against Slack's web API.
package limiter

import (
	"time"

	"golang.org/x/time/rate"
)

// Tier mirrors Slack's documented rate tiers.
type Tier struct {
	// Every is the sustained interval between calls.
	Every time.Duration
	Burst int
}

var (
	Tier1 = Tier{Every: 1 * time.Minute, Burst: 2}
	Tier2 = Tier{Every: 3 * time.Second, Burst: 3}
	Tier3 = Tier{Every: 1200 * time.Millisecond, Burst: 4}
	Tier4 = Tier{Every: 60 * time.Millisecond, Burst: 5}
)

// MinUploadInterval is the smallest pause between two emoji uploads.
const MinUploadInterval = 500 * time.Millisecond

func (t Tier) Limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(t.Every), t.Burst)
}

// Upload paces emoji.add calls one at a time, at least interval apart.
func Upload(interval time.Duration) *rate.Limiter {
	if interval < MinUploadInterval {
		interval = MinUploadInterval
	}
	return Tier{Every: interval, Burst: 1}.Limiter()
}
