package inventory

import (
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/effect"
)

// Roller evaluates damage dice for thrown consumables.
type Roller interface {
	RollExpr(expr string) (dice.RollResult, error)
}

// Consumable is one held consumable ready to be used in battle.
type Consumable struct {
	def    *ItemDef
	inv    *Inventory
	roller Roller
}

// ID returns the item definition ID.
func (c *Consumable) ID() string { return c.def.ID }

// Name returns the display name.
func (c *Consumable) Name() string { return c.def.Name }

// Targeted reports whether the player must pick a single enemy.
func (c *Consumable) Targeted() bool { return c.def.Consumable.Targeted }

// Area reports whether the item hits every living enemy.
func (c *Consumable) Area() bool { return c.def.Consumable.Area }

// Thrown reports whether the item is thrown rather than drunk.
func (c *Consumable) Thrown() bool { return c.def.Consumable.Delivery == DeliveryThrown }

// Visual returns the overlay effect name shown on use, or "".
func (c *Consumable) Visual() string { return c.def.Consumable.Visual }

// Sustains reports the status effect whose lifetime the visual follows.
// The bool is false for one-shot visuals.
func (c *Consumable) Sustains() (effect.Kind, bool) {
	switch c.def.Consumable.Effect {
	case EffectRage:
		return effect.AttackBonus, true
	case EffectGuard:
		return effect.DefenseBonus, true
	default:
		return 0, false
	}
}

// UseInCombat applies the item's payload. It returns false, consuming
// nothing, when the item is no longer held or has no valid recipient.
// A successful use removes one unit from the inventory.
func (c *Consumable) UseInCombat(user *combat.Combatant, targets []*combat.Combatant) bool {
	if !c.inv.HasItem(c.def.ID) {
		return false
	}
	if !c.apply(user, combat.Living(targets)) {
		return false
	}
	return c.inv.RemoveItem(c.def.ID, 1) == nil
}

func (c *Consumable) apply(user *combat.Combatant, targets []*combat.Combatant) bool {
	cd := c.def.Consumable
	selfUsable := user != nil && !user.IsDefeated()
	switch cd.Effect {
	case EffectHeal:
		return selfUsable && user.Heal(cd.Amount) > 0
	case EffectRage:
		if !selfUsable {
			return false
		}
		user.Effects.ApplyAttackBonus(cd.Amount, cd.Turns)
		return true
	case EffectGuard:
		if !selfUsable {
			return false
		}
		user.Effects.ApplyDefenseBonus(cd.Amount, cd.Turns)
		return true
	}

	if len(targets) == 0 {
		return false
	}
	if !cd.Area {
		targets = targets[:1]
	}
	switch cd.Effect {
	case EffectDamage:
		if c.roller == nil {
			return false
		}
		res, err := c.roller.RollExpr(cd.DamageDice)
		if err != nil {
			return false
		}
		for _, t := range targets {
			t.TakeDamage(res.Total())
		}
	case EffectPoison:
		for _, t := range targets {
			t.Effects.ApplyPoison(cd.Amount, cd.Turns)
		}
	case EffectStun:
		for _, t := range targets {
			t.Effects.ApplyStun(cd.Turns)
		}
	default:
		return false
	}
	return true
}
