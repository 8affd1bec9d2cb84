package clock

import (
	"sync"
	"time"
)

// Fake is a test-only Clock whose Now() only moves when Advance is called.
// Pending timers/tickers fire synchronously as the fake clock crosses their
// deadline: all due timers first, then all due tickers, each in creation order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	return f.NewTimer(d).C()
}

func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{deadline: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.timers = append(f.timers, t)
	return t
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{period: d, deadline: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves the fake clock forward by d, firing any timer or ticker
// whose deadline falls at or before the new time. Ticker firings that would
// overlap within one Advance call are coalesced into a single send.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)

	for _, t := range f.timers {
		if t.fired || t.stopped {
			continue
		}
		if !t.deadline.After(f.now) {
			t.fired = true
			select {
			case t.ch <- f.now:
			default:
			}
		}
	}

	for _, t := range f.tickers {
		if t.stopped {
			continue
		}
		for !t.deadline.After(f.now) {
			select {
			case t.ch <- f.now:
			default:
			}
			t.deadline = t.deadline.Add(t.period)
		}
	}
}

type fakeTimer struct {
	deadline time.Time
	ch       chan time.Time
	fired    bool
	stopped  bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	already := t.fired || t.stopped
	t.stopped = true
	return !already
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	active := !t.fired && !t.stopped
	t.fired = false
	t.stopped = false
	t.deadline = t.deadline.Add(d)
	return active
}

type fakeTicker struct {
	period   time.Duration
	deadline time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped = true }
