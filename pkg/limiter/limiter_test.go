package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestUploadInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     rate.Limit
	}{
		{"floor", 100 * time.Millisecond, rate.Every(MinUploadInterval)},
		{"zero", 0, rate.Every(MinUploadInterval)},
		{"longer", 2 * time.Second, rate.Every(2 * time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Upload(tt.interval)
			assert.Equal(t, tt.want, l.Limit())
			assert.Equal(t, 1, l.Burst())
		})
	}
}

func TestUploadReservationsAreSpaced(t *testing.T) {
	l := Upload(MinUploadInterval)
	now := time.Now()

	first := l.ReserveN(now, 1)
	second := l.ReserveN(now, 1)
	assert.Zero(t, first.DelayFrom(now))
	assert.GreaterOrEqual(t, second.DelayFrom(now), MinUploadInterval-time.Millisecond)
}

func TestTierLimiter(t *testing.T) {
	l := Tier2.Limiter()
	assert.Equal(t, 3, l.Burst())
	assert.Equal(t, rate.Every(3*time.Second), l.Limit())
}
