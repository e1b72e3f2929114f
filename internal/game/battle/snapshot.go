package battle

import (
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/skirmish/internal/game/animation"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/effect"
	"github.com/cory-johannsen/skirmish/internal/game/loot"
	"github.com/cory-johannsen/skirmish/internal/report"
)

// CombatantView is a read-only copy of one combatant.
type CombatantView struct {
	ID        string
	Name      string
	Health    int
	MaxHealth int
	Attack    int
	Defense   int
	Condition string
	Player    bool
	Hero      bool
	Defeated  bool
	Stunned   bool
	Effects   []effect.Instance
}

func viewOf(c *combat.Combatant) CombatantView {
	return CombatantView{
		ID:        c.ID,
		Name:      c.Name,
		Health:    c.CurrentHealth,
		MaxHealth: c.MaxHealth,
		Attack:    c.TotalAttack(),
		Defense:   c.TotalDefense(),
		Condition: c.HealthDescription(),
		Player:    c.Player,
		Hero:      c.Hero,
		Defeated:  c.IsDefeated(),
		Stunned:   c.IsStunned(),
		Effects:   c.Effects.Active(),
	}
}

// Snapshot is the read-only state exposed to the presentation layer.
type Snapshot struct {
	BattleID   string
	Phase      Phase
	PlayerTurn bool
	Turn       int
	Over       bool
	Won        bool
	Boss       bool
	Location   string
	Player     *CombatantView
	// Enemies lists living enemies in rotation order.
	Enemies  []CombatantView
	Defeated []CombatantView
	// TargetSelection is true while PendingItem waits for ConfirmTarget.
	TargetSelection bool
	PendingItem     string
	Animation       *animation.Event
	Overlay         animation.OverlayState
	// AnimationsCompleted counts completion events, forced ones included.
	AnimationsCompleted int
	Messages            []string
	Loot                *loot.Result
}

// Snapshot returns a deep copy of the current state.
func (b *Battle) Snapshot() Snapshot {
	s := Snapshot{
		BattleID:            b.id,
		Phase:               b.phase,
		PlayerTurn:          b.phase == PlayerTurn,
		Turn:                b.turn,
		Over:                b.phase.Over(),
		Won:                 b.phase == Won,
		Boss:                b.boss,
		Location:            b.locationID(),
		TargetSelection:     b.selecting,
		Overlay:             b.seq.Overlay(),
		AnimationsCompleted: b.completed,
		Messages:            append([]string(nil), b.messages...),
	}
	if b.player != nil {
		v := viewOf(b.player)
		s.Player = &v
	}
	for _, e := range b.enemies {
		s.Enemies = append(s.Enemies, viewOf(e))
	}
	for _, e := range b.defeated {
		s.Defeated = append(s.Defeated, viewOf(e))
	}
	if b.pendingItem != nil {
		s.PendingItem = b.pendingItem.ID()
	}
	if ev, ok := b.seq.Active(); ok {
		s.Animation = &ev
	}
	if b.loot != nil {
		l := loot.Result{Gold: b.loot.Gold, Items: append([]loot.Entry(nil), b.loot.Items...)}
		s.Loot = &l
	}
	return s
}

// Result summarises a finished battle.
type Result struct {
	BattleID  string
	Player    string
	Location  string
	Boss      bool
	Won       bool
	Turns     int
	Loot      loot.Result
	StartedAt time.Time
	EndedAt   time.Time
}

// Result returns the battle summary. The bool is false until the battle is over.
func (b *Battle) Result() (Result, bool) {
	if !b.phase.Over() {
		return Result{}, false
	}
	r := Result{
		BattleID:  b.id,
		Player:    b.player.Name,
		Location:  b.locationID(),
		Boss:      b.boss,
		Won:       b.phase == Won,
		Turns:     b.turn,
		StartedAt: b.startedAt,
		EndedAt:   b.endedAt,
	}
	if b.loot != nil {
		r.Loot = *b.loot
	}
	return r, true
}

// Report converts r into a storable report with a new ID.
func (r Result) Report() report.Report {
	rep := report.Report{
		ID:        uuid.NewString(),
		BattleID:  r.BattleID,
		Player:    r.Player,
		Location:  r.Location,
		Boss:      r.Boss,
		Outcome:   report.OutcomeLost,
		Turns:     r.Turns,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
	if r.Won {
		rep.Outcome = report.OutcomeWon
		rep.Gold = r.Loot.Gold
		for _, e := range r.Loot.Items {
			rep.Items = append(rep.Items, report.Item{
				ItemID:   e.ItemID,
				Quantity: e.Quantity,
				Rarity:   e.Rarity.String(),
			})
		}
	}
	return rep
}
