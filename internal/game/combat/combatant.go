// Package combat holds the combatant model and the damage resolver used by
// the battle engine.
package combat

import (
	"github.com/cory-johannsen/skirmish/internal/game/effect"
)

// Stats are the already-aggregated numbers a combatant is built from.
// Equipment bonuses are resolved upstream and passed in EquipAttack/EquipDefense.
type Stats struct {
	ID           string
	Name         string
	Level        int
	MaxHealth    int
	Attack       int
	Defense      int
	EquipAttack  int
	EquipDefense int
	Player       bool
	Hero         bool
}

// Combatant is one participant in a battle, player or enemy.
//
// Invariant: 0 <= CurrentHealth <= MaxHealth.
type Combatant struct {
	ID            string
	Name          string
	Level         int
	MaxHealth     int
	CurrentHealth int
	BaseAttack    int
	BaseDefense   int
	EquipAttack   int
	EquipDefense  int
	// Player marks the user-controlled combatant.
	Player bool
	// Hero marks a boss-tier enemy.
	Hero bool
	// Effects is held by value so a literal Combatant is usable.
	Effects effect.Set
}

// New builds a combatant at full health with no active effects.
//
// Precondition: s.MaxHealth >= 1.
func New(s Stats) *Combatant {
	maxHealth := s.MaxHealth
	if maxHealth < 1 {
		maxHealth = 1
	}
	return &Combatant{
		ID:            s.ID,
		Name:          s.Name,
		Level:         s.Level,
		MaxHealth:     maxHealth,
		CurrentHealth: maxHealth,
		BaseAttack:    s.Attack,
		BaseDefense:   s.Defense,
		EquipAttack:   s.EquipAttack,
		EquipDefense:  s.EquipDefense,
		Player:        s.Player,
		Hero:          s.Hero,
	}
}

// TotalAttack is base attack plus equipment plus the active attack bonus.
func (c *Combatant) TotalAttack() int {
	return c.BaseAttack + c.EquipAttack + c.Effects.AttackBonus()
}

// TotalDefense is base defense plus equipment plus the active defense bonus.
func (c *Combatant) TotalDefense() int {
	return c.BaseDefense + c.EquipDefense + c.Effects.DefenseBonus()
}

// IsDefeated reports whether health has reached zero.
func (c *Combatant) IsDefeated() bool { return c.CurrentHealth <= 0 }

// IsStunned reports whether an active stun forfeits this combatant's turn.
func (c *Combatant) IsStunned() bool { return c.Effects.IsStunned() }

// TakeDamage removes health and returns the amount actually removed.
// Amounts below 1 are raised to 1.
//
// Postcondition: 0 <= CurrentHealth <= MaxHealth.
func (c *Combatant) TakeDamage(amount int) int {
	if amount < 1 {
		amount = 1
	}
	if amount > c.CurrentHealth {
		amount = c.CurrentHealth
	}
	c.CurrentHealth -= amount
	return amount
}

// Heal restores health up to MaxHealth and returns the amount restored.
// Non-positive amounts and defeated combatants restore nothing.
//
// Postcondition: 0 <= CurrentHealth <= MaxHealth.
func (c *Combatant) Heal(amount int) int {
	if amount <= 0 || c.IsDefeated() {
		return 0
	}
	if room := c.MaxHealth - c.CurrentHealth; amount > room {
		amount = room
	}
	c.CurrentHealth += amount
	return amount
}

// Restore returns the combatant to full health and clears every effect.
func (c *Combatant) Restore() {
	c.CurrentHealth = c.MaxHealth
	c.Effects.Clear()
}

// HealthDescription returns a short description of the current health state.
//
// Postcondition: Returns a non-empty string.
func (c *Combatant) HealthDescription() string {
	if c.CurrentHealth <= 0 {
		return "defeated"
	}
	pct := float64(c.CurrentHealth) / float64(c.MaxHealth)
	switch {
	case pct >= 1.0:
		return "unharmed"
	case pct >= 0.85:
		return "barely scratched"
	case pct >= 0.60:
		return "lightly wounded"
	case pct >= 0.40:
		return "moderately wounded"
	case pct >= 0.20:
		return "heavily wounded"
	default:
		return "critically wounded"
	}
}

// Living returns the non-defeated members of cs in their original order.
func Living(cs []*Combatant) []*Combatant {
	out := make([]*Combatant, 0, len(cs))
	for _, c := range cs {
		if c != nil && !c.IsDefeated() {
			out = append(out, c)
		}
	}
	return out
}
