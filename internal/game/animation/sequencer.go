// Package animation gates turn progression on presentation time. It does not
// draw anything: it schedules bounded timers for each combat event and reports
// exactly one completion per started animation back to the owner.
//
// Timer callbacks never touch sequencer state. They hand a Due message to the
// owner through the post function, and the owner feeds it back with HandleDue
// on its own goroutine.
package animation

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Kind classifies an animation.
type Kind int

const (
	BasicAttack Kind = iota
	SpecialAbility
	ItemUse
	Guard
)

// String returns a human-readable kind label.
func (k Kind) String() string {
	switch k {
	case BasicAttack:
		return "basic_attack"
	case SpecialAbility:
		return "special_ability"
	case ItemUse:
		return "item_use"
	case Guard:
		return "guard"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Durations configures every bounded wait.
type Durations struct {
	PlayerAttack  time.Duration
	EnemyAttack   time.Duration
	DrinkItem     time.Duration
	ThrownItem    time.Duration
	OneShotEffect time.Duration
	Guard         time.Duration
}

// DefaultDurations returns the standard presentation timings.
func DefaultDurations() Durations {
	return Durations{
		PlayerAttack:  700 * time.Millisecond,
		EnemyAttack:   650 * time.Millisecond,
		DrinkItem:     200 * time.Millisecond,
		ThrownItem:    600 * time.Millisecond,
		OneShotEffect: 2000 * time.Millisecond,
		Guard:         200 * time.Millisecond,
	}
}

// Event is one presentation phase.
type Event struct {
	ID       uint64
	Kind     Kind
	Actor    string
	Target   string
	Damage   int
	Duration time.Duration
	// Persistent marks an item use whose visual outlives the animation.
	Persistent bool
}

// Completed reports the end of an animation. Forced is true when a newer
// animation replaced it before its timer fired.
type Completed struct {
	Event  Event
	Forced bool
}

// Due is posted by a timer callback and must be passed back to HandleDue
// on the owning goroutine.
type Due struct {
	Seq     uint64
	Overlay bool
}

type active struct {
	event Event
	timer clockwork.Timer
}

// Sequencer owns at most one running animation plus the effect overlay.
// It is not safe for concurrent use; all methods run on the owner goroutine.
type Sequencer struct {
	clock     Clock
	post      func(Due)
	durations Durations
	logger    *zap.Logger

	nextID  uint64
	current *active
	overlay overlay
}

// NewSequencer creates a Sequencer.
//
// Precondition: clock and post must be non-nil. post may be called from any goroutine.
func NewSequencer(clock Clock, durations Durations, post func(Due), logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sequencer{clock: clock, post: post, durations: durations, logger: logger}
	s.overlay.seq = &s.nextID
	return s
}

// Durations returns the configured timings.
func (s *Sequencer) Durations() Durations { return s.durations }

// StartAttackAnimation starts a basic or special attack lasting 700ms for the
// player and 650ms for an enemy.
//
// Postcondition: Active() holds the new event. A previously running animation
// is returned as a forced completion.
func (s *Sequencer) StartAttackAnimation(actor, target string, damage int, player bool, kind Kind) (Event, *Completed) {
	d := s.durations.EnemyAttack
	if player {
		d = s.durations.PlayerAttack
	}
	return s.start(Event{Kind: kind, Actor: actor, Target: target, Damage: damage, Duration: d})
}

// StartItemUseAnimation starts an item use lasting 600ms when thrown, 200ms when drunk.
func (s *Sequencer) StartItemUseAnimation(actor, target string, thrown, persistent bool) (Event, *Completed) {
	d := s.durations.DrinkItem
	if thrown {
		d = s.durations.ThrownItem
	}
	return s.start(Event{Kind: ItemUse, Actor: actor, Target: target, Duration: d, Persistent: persistent})
}

// StartGuardAnimation starts the defend presentation.
func (s *Sequencer) StartGuardAnimation(actor string) (Event, *Completed) {
	return s.start(Event{Kind: Guard, Actor: actor, Duration: s.durations.Guard})
}

func (s *Sequencer) start(ev Event) (Event, *Completed) {
	forced := s.forceComplete()
	s.nextID++
	ev.ID = s.nextID
	seq := ev.ID
	post := s.post
	s.current = &active{
		event: ev,
		timer: s.clock.AfterFunc(ev.Duration, func() { post(Due{Seq: seq}) }),
	}
	s.logger.Debug("animation started",
		zap.Uint64("id", ev.ID),
		zap.String("kind", ev.Kind.String()),
		zap.String("actor", ev.Actor),
		zap.Duration("duration", ev.Duration),
	)
	return ev, forced
}

// forceComplete stops the running animation, if any, and returns its completion.
func (s *Sequencer) forceComplete() *Completed {
	if s.current == nil {
		return nil
	}
	prev := s.current
	s.current = nil
	if !prev.timer.Stop() {
		s.logger.Debug("animation: timer already fired or stopped",
			zap.Uint64("id", prev.event.ID))
	}
	return &Completed{Event: prev.event, Forced: true}
}

// ForceComplete ends the running animation immediately.
// Returns nil when nothing is running.
func (s *Sequencer) ForceComplete() *Completed {
	return s.forceComplete()
}

// HandleDue processes a timer message. It returns the completion when d
// ends the running animation. Stale messages for replaced animations and
// overlay messages return false.
func (s *Sequencer) HandleDue(d Due) (Completed, bool) {
	if d.Overlay {
		s.overlay.expire(d.Seq)
		return Completed{}, false
	}
	if s.current == nil || s.current.event.ID != d.Seq {
		s.logger.Debug("animation: ignoring stale timer", zap.Uint64("seq", d.Seq))
		return Completed{}, false
	}
	ev := s.current.event
	s.current = nil
	return Completed{Event: ev}, true
}

// Active returns the running animation.
func (s *Sequencer) Active() (Event, bool) {
	if s.current == nil {
		return Event{}, false
	}
	return s.current.event, true
}

// Busy reports whether an animation is running.
func (s *Sequencer) Busy() bool { return s.current != nil }

// ShowOneShot displays a wall-clock visual that clears after the one-shot
// duration, restoring any persistent visual it covered.
func (s *Sequencer) ShowOneShot(name string) {
	s.overlay.showOneShot(name, s.clock, s.durations.OneShotEffect, s.post)
}

// ShowPersistent displays a turn-bound visual. Cleared by ClearPersistent.
func (s *Sequencer) ShowPersistent(name string) { s.overlay.showPersistent(name) }

// ClearPersistent removes a persistent visual from either overlay slot.
func (s *Sequencer) ClearPersistent(name string) { s.overlay.clearPersistent(name) }

// Overlay returns the overlay state.
func (s *Sequencer) Overlay() OverlayState { return s.overlay.state() }

// Reset stops every timer and clears all state. Pending Due messages become stale.
func (s *Sequencer) Reset() {
	if s.current != nil {
		s.current.timer.Stop()
		s.current = nil
	}
	s.overlay.reset()
}
