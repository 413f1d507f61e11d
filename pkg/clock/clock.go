// Package clock abstracts wall time and periodic jobs so windows and sweeps
// can be driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Scheduler runs fn every d until the returned stop function is called.
// Stop blocks until a running fn has returned.
type Scheduler interface {
	Every(d time.Duration, fn func(now time.Time)) (stop func())
}

type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Every(d time.Duration, fn func(now time.Time)) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				fn(now)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
			<-exited
		})
	}
}

// Fake is a manually advanced Clock and Scheduler.
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	jobs []*fakeJob
	seq  int
}

type fakeJob struct {
	id      int
	every   time.Duration
	next    time.Time
	fn      func(time.Time)
	stopped bool
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Every(d time.Duration, fn func(now time.Time)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	j := &fakeJob{id: f.seq, every: d, next: f.now.Add(d), fn: fn}
	f.jobs = append(f.jobs, j)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		j.stopped = true
	}
}

// Jobs returns the number of active periodic jobs.
func (f *Fake) Jobs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.jobs {
		if !j.stopped {
			n++
		}
	}
	return n
}

// Advance moves time forward by d, running every job that falls due, in
// time order, on the calling goroutine.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var due []*fakeJob
		for _, j := range f.jobs {
			if !j.stopped && !j.next.After(target) {
				due = append(due, j)
			}
		}
		if len(due) == 0 {
			f.now = target
			f.mu.Unlock()
			return
		}
		sort.Slice(due, func(a, b int) bool {
			if due[a].next.Equal(due[b].next) {
				return due[a].id < due[b].id
			}
			return due[a].next.Before(due[b].next)
		})
		j := due[0]
		f.now = j.next
		j.next = j.next.Add(j.every)
		now := f.now
		f.mu.Unlock()

		j.fn(now)
	}
}

// Set jumps to t without running jobs; jobs are rescheduled relative to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
	for _, j := range f.jobs {
		j.next = t.Add(j.every)
	}
}
