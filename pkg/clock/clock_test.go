package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestFakeAdvanceRunsDueJobs(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	var ticks []time.Time
	stop := f.Every(10*time.Second, func(now time.Time) { ticks = append(ticks, now) })

	f.Advance(9 * time.Second)
	assert.Empty(t, ticks)

	f.Advance(21 * time.Second)
	assert.Equal(t, []time.Time{start.Add(10 * time.Second), start.Add(20 * time.Second), start.Add(30 * time.Second)}, ticks)
	assert.Equal(t, start.Add(30*time.Second), f.Now())

	stop()
	f.Advance(time.Minute)
	assert.Len(t, ticks, 3)
	assert.Equal(t, 0, f.Jobs())
}

func TestFakeOrdersJobsByDueTime(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var order []string
	f.Every(3*time.Second, func(time.Time) { order = append(order, "slow") })
	f.Every(2*time.Second, func(time.Time) { order = append(order, "fast") })

	f.Advance(6 * time.Second)
	assert.Equal(t, []string{"fast", "slow", "fast", "slow", "fast"}, order)
}

func TestRealEveryStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	var n atomic.Int32
	stop := Real{}.Every(5*time.Millisecond, func(time.Time) { n.Add(1) })
	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)
	stop()
	stop()
}
