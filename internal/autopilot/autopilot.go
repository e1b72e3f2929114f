// Package autopilot plays the player's side of a battle: it watches engine
// snapshots and issues a command whenever the player may act.
package autopilot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/battle"
	"github.com/cory-johannsen/skirmish/internal/game/inventory"
	"github.com/cory-johannsen/skirmish/internal/observability"
)

// ActionKind is the command the pilot chooses.
type ActionKind int

const (
	Wait ActionKind = iota
	Attack
	Defend
	UseItem
)

func (k ActionKind) String() string {
	switch k {
	case Attack:
		return "attack"
	case Defend:
		return "defend"
	case UseItem:
		return "use_item"
	default:
		return "wait"
	}
}

// Action is one decision.
type Action struct {
	Kind     ActionKind
	ItemID   string
	TargetID string
}

// Policy tunes the decisions.
type Policy struct {
	// HealItem is drunk when health falls below HealBelow of max.
	HealItem  string
	HealBelow float64
	// ThrowItem is thrown at the strongest enemy in boss or multi-enemy fights.
	ThrowItem string
	// DefendBelow makes the player defend instead of attacking when no heal is left.
	DefendBelow float64
}

// DefaultPolicy heals below 35% and defends below 20%.
func DefaultPolicy() Policy {
	return Policy{HealItem: "healing_draught", HealBelow: 0.35, ThrowItem: "fire_flask", DefendBelow: 0.20}
}

// Decide picks the next action for snap. has reports whether an item is held.
//
// Postcondition: returns Wait unless the player may act right now.
func Decide(snap battle.Snapshot, has func(itemID string) bool, p Policy) Action {
	if snap.Over || !snap.PlayerTurn || snap.Animation != nil || snap.TargetSelection ||
		snap.Player == nil || len(snap.Enemies) == 0 {
		return Action{Kind: Wait}
	}
	ratio := float64(snap.Player.Health) / float64(max(snap.Player.MaxHealth, 1))
	if p.HealItem != "" && ratio < p.HealBelow && has(p.HealItem) {
		return Action{Kind: UseItem, ItemID: p.HealItem}
	}
	if p.ThrowItem != "" && (snap.Boss || len(snap.Enemies) > 1) && has(p.ThrowItem) {
		return Action{Kind: UseItem, ItemID: p.ThrowItem, TargetID: strongest(snap.Enemies).ID}
	}
	if ratio < p.DefendBelow {
		return Action{Kind: Defend}
	}
	return Action{Kind: Attack, TargetID: weakest(snap.Enemies).ID}
}

func weakest(enemies []battle.CombatantView) battle.CombatantView {
	w := enemies[0]
	for _, e := range enemies[1:] {
		if e.Health < w.Health {
			w = e
		}
	}
	return w
}

func strongest(enemies []battle.CombatantView) battle.CombatantView {
	s := enemies[0]
	for _, e := range enemies[1:] {
		if e.Attack > s.Attack {
			s = e
		}
	}
	return s
}

// Engine is the part of battle.Engine the pilot drives.
type Engine interface {
	Start(ctx context.Context, enc battle.Encounter) error
	PlayerAttack(ctx context.Context, targetID string) error
	PlayerDefend(ctx context.Context) error
	PlayerUseItem(ctx context.Context, item battle.Item, targetID string) error
	ConfirmTarget(ctx context.Context, targetID string) error
	CancelTargetSelection(ctx context.Context) error
	Snapshot() battle.Snapshot
	Subscribe(ch chan<- battle.Snapshot)
	Unsubscribe(ch chan<- battle.Snapshot)
}

// Supplies hands out consumables for battle use.
type Supplies interface {
	HasItem(itemID string) bool
	Consumable(itemID string, roller inventory.Roller) (*inventory.Consumable, error)
}

// Pilot drives one battle at a time.
type Pilot struct {
	engine   Engine
	supplies Supplies
	roller   inventory.Roller
	policy   Policy
	logger   *zap.Logger
}

// New creates a Pilot.
//
// Precondition: engine, supplies and roller must be non-nil.
func New(engine Engine, supplies Supplies, roller inventory.Roller, policy Policy, logger *zap.Logger) *Pilot {
	return &Pilot{engine: engine, supplies: supplies, roller: roller, policy: policy, logger: observability.OrNop(logger)}
}

// Run starts enc and plays it to the end.
//
// Postcondition: on nil error the returned snapshot is Over.
func (p *Pilot) Run(ctx context.Context, enc battle.Encounter) (battle.Snapshot, error) {
	notify := make(chan battle.Snapshot, 16)
	p.engine.Subscribe(notify)
	defer p.engine.Unsubscribe(notify)

	if err := p.engine.Start(ctx, enc); err != nil {
		return battle.Snapshot{}, fmt.Errorf("starting battle: %w", err)
	}
	snap := p.engine.Snapshot()
	for {
		p.logSnapshot(snap)
		if snap.Over {
			return snap, nil
		}
		act := Decide(snap, p.supplies.HasItem, p.policy)
		if act.Kind != Wait {
			if err := p.act(ctx, act); err != nil {
				if errors.Is(err, battle.ErrEngineStopped) || ctx.Err() != nil {
					return snap, err
				}
				p.logger.Warn("autopilot: action rejected",
					zap.Stringer("action", act.Kind),
					zap.Error(err),
				)
				if errors.Is(err, battle.ErrItemFailed) {
					// A failed item keeps the turn; spend it on a plain attack.
					if err := p.act(ctx, Action{Kind: Attack}); err != nil {
						p.logger.Warn("autopilot: fallback attack rejected", zap.Error(err))
					}
				}
			}
		}
		// The notification only wakes the loop; the latest state is read fresh.
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-notify:
			snap = p.engine.Snapshot()
		}
	}
}

func (p *Pilot) act(ctx context.Context, act Action) error {
	p.logger.Debug("autopilot: acting",
		zap.Stringer("action", act.Kind),
		zap.String("item", act.ItemID),
		zap.String("target", act.TargetID),
	)
	switch act.Kind {
	case Attack:
		return p.engine.PlayerAttack(ctx, act.TargetID)
	case Defend:
		return p.engine.PlayerDefend(ctx)
	case UseItem:
		item, err := p.supplies.Consumable(act.ItemID, p.roller)
		if err != nil {
			return fmt.Errorf("%w: %v", battle.ErrItemFailed, err)
		}
		if !item.Targeted() {
			return p.engine.PlayerUseItem(ctx, item, "")
		}
		if err := p.engine.PlayerUseItem(ctx, item, ""); err != nil {
			return err
		}
		if err := p.engine.ConfirmTarget(ctx, act.TargetID); err != nil {
			if cerr := p.engine.CancelTargetSelection(ctx); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
		return nil
	}
	return nil
}

func (p *Pilot) logSnapshot(s battle.Snapshot) {
	fields := []zap.Field{
		zap.String("battle", s.BattleID),
		zap.Stringer("phase", s.Phase),
		zap.Int("turn", s.Turn),
		zap.Int("enemies", len(s.Enemies)),
		zap.Int("animations_completed", s.AnimationsCompleted),
	}
	if s.Player != nil {
		fields = append(fields, zap.Int("player_health", s.Player.Health))
	}
	if s.Animation != nil {
		fields = append(fields, zap.Stringer("animation", s.Animation.Kind))
	}
	if n := len(s.Messages); n > 0 {
		fields = append(fields, zap.String("last_message", s.Messages[n-1]))
	}
	p.logger.Debug("battle snapshot", fields...)
}
