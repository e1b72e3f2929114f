package animation

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Visual is one overlay effect, such as a heal flash or a rage glow.
type Visual struct {
	Name       string
	Persistent bool
}

// OverlayState is a read-only copy of the overlay slots.
type OverlayState struct {
	Current   *Visual
	Suspended *Visual
}

// overlay holds at most two visuals: the one shown and a persistent one
// suspended beneath a one-shot.
type overlay struct {
	current   *Visual
	suspended *Visual
	timer     clockwork.Timer
	timerSeq  uint64
	seq       *uint64
}

func (o *overlay) showOneShot(name string, clock Clock, d time.Duration, post func(Due)) {
	if o.current != nil && o.current.Persistent {
		o.suspended = o.current
	}
	o.stopTimer()
	o.current = &Visual{Name: name}
	*o.seq++
	seq := *o.seq
	o.timerSeq = seq
	o.timer = clock.AfterFunc(d, func() { post(Due{Seq: seq, Overlay: true}) })
}

// showPersistent displays name. A one-shot on screen keeps running with name
// suspended beneath it; a different persistent visual moves to the
// suspended slot.
func (o *overlay) showPersistent(name string) {
	v := &Visual{Name: name, Persistent: true}
	switch {
	case o.current == nil:
		o.current = v
	case !o.current.Persistent:
		o.suspended = v
	case o.current.Name == name:
		// already shown
	default:
		o.suspended = o.current
		o.current = v
	}
}

// clearPersistent removes name from whichever slot holds it. Clearing the
// visual on screen promotes a suspended persistent visual.
func (o *overlay) clearPersistent(name string) {
	if o.current != nil && o.current.Persistent && o.current.Name == name {
		o.current = o.suspended
		o.suspended = nil
		return
	}
	if o.suspended != nil && o.suspended.Name == name {
		o.suspended = nil
	}
}

// expire ends the one-shot visual when seq matches the running overlay timer.
func (o *overlay) expire(seq uint64) {
	if o.timer == nil || seq != o.timerSeq {
		return
	}
	o.timer = nil
	o.current = o.suspended
	o.suspended = nil
}

func (o *overlay) stopTimer() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *overlay) reset() {
	o.stopTimer()
	o.current = nil
	o.suspended = nil
}

func (o *overlay) state() OverlayState {
	var st OverlayState
	if o.current != nil {
		c := *o.current
		st.Current = &c
	}
	if o.suspended != nil {
		s := *o.suspended
		st.Suspended = &s
	}
	return st
}
