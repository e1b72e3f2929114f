package combat

import (
	"math"

	"github.com/cory-johannsen/skirmish/internal/game/dice"
)

// Damage multiplier ranges.
const (
	minDamageFactor      = 0.8
	maxDamageFactor      = 1.2
	minSpecialFactor     = 1.2
	maxSpecialFactor     = 1.6
	minAreaSpecialFactor = 0.6
	maxAreaSpecialFactor = 0.9
	criticalMultiplier   = 1.5

	// DefaultCritChance is the probability of a critical basic attack.
	DefaultCritChance = 0.10
)

// Outcome is the numeric result of one offensive action.
type Outcome struct {
	Attacker   string
	Target     string
	Damage     int
	Critical   bool
	AreaEffect bool
	// Ability is empty for basic attacks.
	Ability string
}

// IsZero reports whether the outcome carries no effect.
func (o Outcome) IsZero() bool { return o.Damage == 0 }

// Resolver computes attack damage and critical hits from an injected Source.
// It holds no mutable state of its own.
type Resolver struct {
	src        dice.Source
	critChance float64
}

// NewResolver creates a Resolver drawing from src.
// A critChance outside (0, 1] falls back to DefaultCritChance.
//
// Precondition: src must be non-nil.
func NewResolver(src dice.Source, critChance float64) *Resolver {
	if critChance <= 0 || critChance > 1 {
		critChance = DefaultCritChance
	}
	return &Resolver{src: src, critChance: critChance}
}

// CritChance returns the configured critical hit probability.
func (r *Resolver) CritChance() float64 { return r.critChance }

// baseDamage is attack minus half the defender's defense, using integer division.
func baseDamage(attacker, defender *Combatant) int {
	return attacker.TotalAttack() - defender.TotalDefense()/2
}

func scale(base int, factor float64) int {
	dmg := int(math.Floor(float64(base) * factor))
	if dmg < 1 {
		return 1
	}
	return dmg
}

// CalculateDamage returns floor((attack - defense/2) * U[0.8, 1.2]), minimum 1.
// A nil or defeated combatant yields 0.
func (r *Resolver) CalculateDamage(attacker, defender *Combatant) int {
	if !valid(attacker, defender) {
		return 0
	}
	return scale(baseDamage(attacker, defender), dice.Uniform(r.src, minDamageFactor, maxDamageFactor))
}

// IsCriticalHit performs one Bernoulli draw against the crit chance.
func (r *Resolver) IsCriticalHit() bool {
	return dice.Chance(r.src, r.critChance)
}

// CriticalDamage returns round(damage * 1.5).
//
// Postcondition: result >= damage for damage >= 0.
func CriticalDamage(damage int) int {
	return int(math.Round(float64(damage) * criticalMultiplier))
}

// CalculateSpecialAbilityDamage scales the basic damage by U[1.2, 1.6], or by
// U[0.6, 0.9] for an area effect. Minimum 1; 0 for an invalid pair.
func (r *Resolver) CalculateSpecialAbilityDamage(attacker, defender *Combatant, areaEffect bool) int {
	base := r.CalculateDamage(attacker, defender)
	if base == 0 {
		return 0
	}
	lo, hi := minSpecialFactor, maxSpecialFactor
	if areaEffect {
		lo, hi = minAreaSpecialFactor, maxAreaSpecialFactor
	}
	return scale(base, dice.Uniform(r.src, lo, hi))
}

// ResolveAttack computes a basic attack including the critical roll.
// Health is not modified; the caller commits the outcome.
func (r *Resolver) ResolveAttack(attacker, defender *Combatant) Outcome {
	dmg := r.CalculateDamage(attacker, defender)
	if dmg == 0 {
		return Outcome{}
	}
	out := Outcome{Attacker: attacker.Name, Target: defender.Name, Damage: dmg}
	if r.IsCriticalHit() {
		out.Critical = true
		out.Damage = CriticalDamage(dmg)
	}
	return out
}

// ResolveSpecial computes a named special ability against defender.
func (r *Resolver) ResolveSpecial(attacker, defender *Combatant, ability string, areaEffect bool) Outcome {
	dmg := r.CalculateSpecialAbilityDamage(attacker, defender, areaEffect)
	if dmg == 0 {
		return Outcome{}
	}
	return Outcome{
		Attacker:   attacker.Name,
		Target:     defender.Name,
		Damage:     dmg,
		AreaEffect: areaEffect,
		Ability:    ability,
	}
}

func valid(attacker, defender *Combatant) bool {
	return attacker != nil && defender != nil && !attacker.IsDefeated() && !defender.IsDefeated()
}
