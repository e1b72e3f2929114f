package animation

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock schedules deferred callbacks. Callbacks may run on any goroutine.
// clockwork.NewRealClock serves production and clockwork.FakeClock serves
// tests; both satisfy it directly.
type Clock interface {
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// NewClock returns the wall-clock Clock.
func NewClock() Clock {
	return clockwork.NewRealClock()
}
