package testutil

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FakeClock is a clockwork.FakeClock whose Advance returns only after every
// AfterFunc callback it released has finished. clockwork runs those callbacks
// on their own goroutines, so tests that feed timer messages back by hand
// need the wait to see them.
type FakeClock struct {
	fake *clockwork.FakeClock

	mu      sync.Mutex
	elapsed time.Duration
	pending map[*fakeTimer]struct{}
}

// NewFakeClock returns a FakeClock at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{
		fake:    clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		pending: make(map[*fakeTimer]struct{}),
	}
}

type fakeTimer struct {
	clockwork.Timer
	clock *FakeClock
	at    time.Duration
	done  chan struct{}
	once  sync.Once
}

func (t *fakeTimer) finish() { t.once.Do(func() { close(t.done) }) }

// Stop stops the underlying timer. A stopped timer never holds up Advance.
func (t *fakeTimer) Stop() bool {
	if !t.Timer.Stop() {
		return false
	}
	t.clock.mu.Lock()
	delete(t.clock.pending, t)
	t.clock.mu.Unlock()
	t.finish()
	return true
}

// AfterFunc schedules f on the fake clock.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) clockwork.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.elapsed + d, done: make(chan struct{})}
	c.pending[t] = struct{}{}
	t.Timer = c.fake.AfterFunc(d, func() {
		defer t.finish()
		f()
	})
	return t
}

// Advance moves the clock forward by d and waits for the released callbacks.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.elapsed += d
	var due []*fakeTimer
	for t := range c.pending {
		if t.at <= c.elapsed {
			due = append(due, t)
			delete(c.pending, t)
		}
	}
	c.mu.Unlock()

	c.fake.Advance(d)
	for _, t := range due {
		<-t.done
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
