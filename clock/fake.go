package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Advance moves the fake wall clock and
// fires every timer and ticker that comes due, in deadline order. Channels
// are buffered so producers never block when a consumer is not ready; a
// ticker that is not drained drops ticks, matching time.Ticker.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	clock    *Fake
	deadline time.Time
	interval time.Duration // zero for one-shot timers
	ch       chan time.Time
	stopped  bool
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

	w := &fakeWaiter{
		clock:    f,
		deadline: f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	f.waiters = append(f.waiters, w)

	return w
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("non-positive interval for NewTicker")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w := &fakeWaiter{
		clock:    f,
		deadline: f.now.Add(d),
		interval: d,
		ch:       make(chan time.Time, 1),
	}
	f.waiters = append(f.waiters, w)

	return fakeTicker{w}
}

type fakeTicker struct {
	w *fakeWaiter
}

func (t fakeTicker) C() <-chan time.Time { return t.w.C() }
func (t fakeTicker) Stop()               { t.w.Stop() }

// Advance moves the clock forward by d, firing due waiters one deadline at a
// time so that cascading timers observe a consistent Now.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)

	for {
		w := f.nextDueLocked(target)
		if w == nil {
			break
		}

		f.now = w.deadline
		select {
		case w.ch <- w.deadline:
		default:
		}

		if w.interval > 0 {
			w.deadline = w.deadline.Add(w.interval)
		} else {
			w.stopped = true
		}
	}

	f.now = target
	f.mu.Unlock()

	// Give waiter goroutines a chance to observe the fired channels before
	// the caller asserts on their effects.
	time.Sleep(time.Millisecond)
}

func (f *Fake) nextDueLocked(target time.Time) *fakeWaiter {
	live := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.stopped {
			live = append(live, w)
		}
	}
	f.waiters = live

	sort.SliceStable(f.waiters, func(i, j int) bool {
		return f.waiters[i].deadline.Before(f.waiters[j].deadline)
	})

	if len(f.waiters) == 0 || f.waiters[0].deadline.After(target) {
		return nil
	}

	return f.waiters[0]
}

func (w *fakeWaiter) C() <-chan time.Time {
	return w.ch
}

func (w *fakeWaiter) Stop() bool {
	w.clock.mu.Lock()
	defer w.clock.mu.Unlock()

	wasActive := !w.stopped
	w.stopped = true

	return wasActive
}
