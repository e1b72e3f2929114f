// Package effect tracks the temporary modifiers carried by one combatant:
// attack and defense bonuses, poison and stun. Each kind has at most one
// active instance; re-applying a kind replaces the previous instance.
package effect

import "fmt"

// Kind identifies one of the four effect slots.
type Kind int

const (
	AttackBonus Kind = iota
	DefenseBonus
	Poison
	Stun
)

// String returns the lowercase kind name used in logs and item definitions.
func (k Kind) String() string {
	switch k {
	case AttackBonus:
		return "attack_bonus"
	case DefenseBonus:
		return "defense_bonus"
	case Poison:
		return "poison"
	case Stun:
		return "stun"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Damageable receives poison damage during a tick.
type Damageable interface {
	// TakeDamage applies amount and returns the health actually removed.
	TakeDamage(amount int) int
}

// Instance is a read-only view of one effect slot.
// Amount is the bonus value for AttackBonus/DefenseBonus, damage per turn for
// Poison and zero for Stun.
type Instance struct {
	Kind   Kind
	Amount int
	Turns  int
}

// Active reports whether the slot has turns remaining.
func (i Instance) Active() bool { return i.Turns > 0 }

// TickReport describes what one turn-boundary tick did.
type TickReport struct {
	PoisonDamage int
	Expired      []Kind
}

// Set owns the four effect slots of one combatant. The zero value has every
// slot inactive and is ready to use.
// It is not safe for concurrent use; the owning battle serialises access.
type Set struct {
	slots [4]Instance
}

// NewSet returns a Set with every slot inactive.
func NewSet() *Set {
	s := &Set{}
	s.Clear()
	return s
}

func (s *Set) apply(kind Kind, amount, turns int) {
	if turns <= 0 {
		s.slots[kind] = Instance{Kind: kind}
		return
	}
	s.slots[kind] = Instance{Kind: kind, Amount: amount, Turns: turns}
}

// ApplyAttackBonus replaces any active attack bonus.
//
// Postcondition: AttackBonus() == amount for the next turns ticks when turns > 0;
// the slot is cleared when turns <= 0.
func (s *Set) ApplyAttackBonus(amount, turns int) { s.apply(AttackBonus, amount, turns) }

// ApplyDefenseBonus replaces any active defense bonus.
func (s *Set) ApplyDefenseBonus(amount, turns int) { s.apply(DefenseBonus, amount, turns) }

// ApplyPoison replaces any active poison with damagePerTurn for turns ticks.
func (s *Set) ApplyPoison(damagePerTurn, turns int) {
	if damagePerTurn <= 0 {
		turns = 0
	}
	s.apply(Poison, damagePerTurn, turns)
}

// ApplyStun stuns the owner for turns ticks.
func (s *Set) ApplyStun(turns int) { s.apply(Stun, 0, turns) }

// AttackBonus returns the active attack bonus or 0.
func (s *Set) AttackBonus() int { return s.slots[AttackBonus].Amount }

// DefenseBonus returns the active defense bonus or 0.
func (s *Set) DefenseBonus() int { return s.slots[DefenseBonus].Amount }

// PoisonDamage returns the active poison damage per turn or 0.
func (s *Set) PoisonDamage() int { return s.slots[Poison].Amount }

// IsStunned reports whether a stun is active.
func (s *Set) IsStunned() bool { return s.slots[Stun].Turns > 0 }

// Get returns the current state of kind.
func (s *Set) Get(kind Kind) Instance {
	in := s.slots[kind]
	in.Kind = kind
	return in
}

// Active returns every slot with turns remaining, in Kind order.
func (s *Set) Active() []Instance {
	var out []Instance
	for _, in := range s.slots {
		if in.Active() {
			out = append(out, in)
		}
	}
	return out
}

// Tick advances every slot by one turn boundary. Poison damage is applied to
// target before its counter is decremented. A slot reaching zero turns is
// reset and reported in Expired. A nil target skips the poison damage.
//
// Postcondition: no slot holds a non-zero Amount with zero Turns.
func (s *Set) Tick(target Damageable) TickReport {
	var report TickReport
	for i := range s.slots {
		in := &s.slots[i]
		if in.Turns <= 0 {
			continue
		}
		if in.Kind == Poison && target != nil {
			report.PoisonDamage += target.TakeDamage(in.Amount)
		}
		in.Turns--
		if in.Turns == 0 {
			in.Amount = 0
			report.Expired = append(report.Expired, in.Kind)
		}
	}
	return report
}

// Clear resets every slot to inactive.
func (s *Set) Clear() {
	for i := range s.slots {
		s.slots[i] = Instance{Kind: Kind(i)}
	}
}
