package battle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/animation"
	"github.com/cory-johannsen/skirmish/internal/observability"
	"github.com/cory-johannsen/skirmish/internal/report"
)

// ErrEngineStopped is returned for commands sent after Run returned.
var ErrEngineStopped = errors.New("battle: engine stopped")

const (
	defaultMailboxSize = 32
	defaultSaveTimeout = 5 * time.Second
)

// EngineConfig configures an Engine. Deps.Sequencer and Deps.OnEnd are
// supplied by the engine and ignored when set.
type EngineConfig struct {
	Deps
	Clock       animation.Clock
	Durations   animation.Durations
	Store       report.Store
	MailboxSize int
	SaveTimeout time.Duration
}

type message struct {
	run   func(*Battle) error
	due   *animation.Due
	reply chan error
}

// Engine owns one Battle on a single goroutine. Commands and animation timer
// messages share one mailbox and are processed strictly in arrival order.
//
// Invariant: only the Run goroutine reads or writes the Battle.
type Engine struct {
	battle      *Battle
	store       report.Store
	saveTimeout time.Duration
	logger      *zap.Logger

	mailbox  chan message
	stopped  chan struct{}
	stopOnce sync.Once

	snapMu sync.RWMutex
	snap   Snapshot

	subMu sync.Mutex
	subs  map[chan<- Snapshot]struct{}
}

// NewEngine builds an Engine and its Battle. Call Run to start processing.
//
// Precondition: cfg.Clock, cfg.Resolver, cfg.Selector and cfg.Loot must be non-nil.
// Postcondition: a nil Store discards reports.
func NewEngine(cfg EngineConfig) *Engine {
	cfg.Logger = observability.OrNop(cfg.Logger)
	if cfg.Store == nil {
		cfg.Store = report.Nop()
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaultMailboxSize
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = defaultSaveTimeout
	}
	e := &Engine{
		store:       cfg.Store,
		saveTimeout: cfg.SaveTimeout,
		logger:      cfg.Logger,
		mailbox:     make(chan message, cfg.MailboxSize),
		stopped:     make(chan struct{}),
		subs:        make(map[chan<- Snapshot]struct{}),
	}
	deps := cfg.Deps
	deps.Sequencer = animation.NewSequencer(cfg.Clock, cfg.Durations, e.post, cfg.Logger)
	deps.OnEnd = e.record
	e.battle = New(deps)
	e.snap = e.battle.Snapshot()
	return e
}

// Run processes the mailbox until ctx is cancelled. It returns nil on
// cancellation.
//
// Postcondition: every later command returns ErrEngineStopped.
func (e *Engine) Run(ctx context.Context) error {
	defer e.stopOnce.Do(func() { close(e.stopped) })
	for {
		select {
		case <-ctx.Done():
			e.battle.seq.Reset()
			return nil
		case m := <-e.mailbox:
			e.handle(m)
			e.publish()
		}
	}
}

// handle runs one message. A panic is logged and reported to the sender;
// the engine keeps running.
func (e *Engine) handle(m message) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("battle engine: recovered panic",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("battle engine: panic: %v", r)
		}
		if m.reply != nil {
			m.reply <- err
		}
	}()
	if m.due != nil {
		e.battle.HandleDue(*m.due)
		return
	}
	if err = m.run(e.battle); err != nil {
		e.logger.Warn("battle engine: command rejected", zap.Error(err))
	}
}

// post is the sequencer's hand-off. It runs on timer goroutines.
func (e *Engine) post(d animation.Due) {
	select {
	case e.mailbox <- message{due: &d}:
	case <-e.stopped:
	}
}

func (e *Engine) do(ctx context.Context, fn func(*Battle) error) error {
	reply := make(chan error, 1)
	select {
	case e.mailbox <- message{run: fn, reply: reply}:
	case <-e.stopped:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-e.stopped:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins a new battle, replacing any previous one.
func (e *Engine) Start(ctx context.Context, s Encounter) error {
	return e.do(ctx, func(b *Battle) error { return b.Start(s) })
}

// PlayerAttack attacks the enemy with targetID, or the first living enemy.
func (e *Engine) PlayerAttack(ctx context.Context, targetID string) error {
	return e.do(ctx, func(b *Battle) error { return b.PlayerAttack(targetID) })
}

// PlayerDefend takes the defend action.
func (e *Engine) PlayerDefend(ctx context.Context) error {
	return e.do(ctx, func(b *Battle) error { return b.PlayerDefend() })
}

// PlayerUseItem uses item, entering target selection for a targeted item
// without targetID.
func (e *Engine) PlayerUseItem(ctx context.Context, item Item, targetID string) error {
	return e.do(ctx, func(b *Battle) error { return b.PlayerUseItem(item, targetID) })
}

// ConfirmTarget completes a pending target selection.
func (e *Engine) ConfirmTarget(ctx context.Context, targetID string) error {
	return e.do(ctx, func(b *Battle) error { return b.ConfirmTarget(targetID) })
}

// CancelTargetSelection abandons a pending target selection.
func (e *Engine) CancelTargetSelection(ctx context.Context) error {
	return e.do(ctx, func(b *Battle) error { return b.CancelTargetSelection() })
}

// Sync returns once every message queued before it has been processed.
func (e *Engine) Sync(ctx context.Context) error {
	return e.do(ctx, func(*Battle) error { return nil })
}

// Snapshot returns the state published after the last processed message.
func (e *Engine) Snapshot() Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snap
}

// Subscribe registers ch to receive a Snapshot after every processed message.
// A full channel misses that snapshot.
//
// Precondition: ch must not be nil.
func (e *Engine) Subscribe(ch chan<- Snapshot) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subs[ch] = struct{}{}
}

// Unsubscribe removes ch from the subscriber list.
func (e *Engine) Unsubscribe(ch chan<- Snapshot) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	delete(e.subs, ch)
}

func (e *Engine) publish() {
	snap := e.battle.Snapshot()
	e.snapMu.Lock()
	e.snap = snap
	e.snapMu.Unlock()

	e.subMu.Lock()
	subs := make([]chan<- Snapshot, 0, len(e.subs))
	for ch := range e.subs {
		subs = append(subs, ch)
	}
	e.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// record stores the finished battle's report. Failures are logged only.
func (e *Engine) record(res Result) {
	rep := res.Report()
	if err := rep.Validate(); err != nil {
		e.logger.Error("battle engine: invalid report", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.saveTimeout)
	defer cancel()
	if err := e.store.Save(ctx, rep); err != nil {
		e.logger.Error("battle engine: saving report failed",
			zap.String("battle", res.BattleID),
			zap.Error(err),
		)
		return
	}
	e.logger.Debug("battle report saved", zap.String("report", rep.ID))
}
