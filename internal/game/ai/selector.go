// Package ai decides how enemy combatants act: whether to use a special
// ability, which ability descriptor to use, and whom to strike.
package ai

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
)

// Lua hooks consulted before the built-in rules.
const (
	HookShouldUseSpecial = "should_use_special"
	HookChooseTarget     = "choose_target"
)

const (
	regularSpecialChance  = 0.2
	heroSpecialChance     = 0.3
	lowHealthSpecialBonus = 0.2
	randomTargetChance    = 0.10
	heroAreaOdds          = 5
	regularAreaOdds       = 10
)

var (
	heroSingleAbilities    = []string{"Crushing Blow", "Soul Rend", "Dread Strike"}
	heroAreaAbilities      = []string{"Cataclysm", "Shadow Storm"}
	regularSingleAbilities = []string{"Power Strike", "Savage Bite", "Quick Slash"}
	regularAreaAbilities   = []string{"Whirlwind", "Shockwave"}
)

// ScriptCaller evaluates Lua hooks for a location.
type ScriptCaller interface {
	// CallHook calls a named Lua function in the given location's VM.
	// Returns (LNil, nil) if the function is not defined.
	CallHook(locationID, hook string, args ...lua.LValue) (lua.LValue, error)
}

// Selector makes enemy decisions from an injected Source. When a ScriptCaller
// is configured, hook results that are not nil override the built-in rules.
type Selector struct {
	src        dice.Source
	caller     ScriptCaller
	locationID string
	logger     *zap.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithScripts routes decisions through Lua hooks for locationID first.
func WithScripts(caller ScriptCaller, locationID string) Option {
	return func(s *Selector) {
		s.caller = caller
		s.locationID = locationID
	}
}

// WithLogger sets the logger used for hook diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSelector creates a Selector.
//
// Precondition: src must be non-nil.
func NewSelector(src dice.Source, opts ...Option) *Selector {
	s := &Selector{src: src, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpecialAbilityChance returns the probability that enemy uses a special
// ability this turn: 0.2 (0.3 for hero tier), plus 0.2 below half health.
func SpecialAbilityChance(enemy *combat.Combatant) float64 {
	p := regularSpecialChance
	if enemy.Hero {
		p = heroSpecialChance
	}
	if enemy.CurrentHealth < enemy.MaxHealth/2 {
		p += lowHealthSpecialBonus
	}
	return p
}

// ShouldUseSpecialAbility performs a single draw against SpecialAbilityChance.
// A nil enemy never uses an ability.
func (s *Selector) ShouldUseSpecialAbility(enemy *combat.Combatant) bool {
	if enemy == nil {
		return false
	}
	if v, ok := s.hook(HookShouldUseSpecial,
		lua.LString(enemy.Name),
		lua.LNumber(enemy.CurrentHealth),
		lua.LNumber(enemy.MaxHealth),
		lua.LBool(enemy.Hero),
	); ok {
		if b, isBool := v.(lua.LBool); isBool {
			return bool(b)
		}
	}
	return dice.Chance(s.src, SpecialAbilityChance(enemy))
}

// SelectAttackTarget picks whom enemy strikes among the living candidates.
// A single candidate is returned directly. Otherwise, with probability 0.10
// a uniformly random candidate is chosen; failing that a hero-flagged
// candidate is preferred, then the one with the highest total attack.
//
// Postcondition: Returns nil only when no living candidate exists.
func (s *Selector) SelectAttackTarget(enemy *combat.Combatant, candidates []*combat.Combatant) *combat.Combatant {
	living := combat.Living(candidates)
	switch len(living) {
	case 0:
		return nil
	case 1:
		return living[0]
	}

	if enemy != nil {
		args := []lua.LValue{lua.LString(enemy.Name)}
		for _, c := range living {
			args = append(args, lua.LString(c.Name))
		}
		if v, ok := s.hook(HookChooseTarget, args...); ok {
			if name, isStr := v.(lua.LString); isStr {
				for _, c := range living {
					if c.Name == string(name) {
						return c
					}
				}
				s.logger.Debug("ai: script chose unknown target", zap.String("target", string(name)))
			}
		}
	}

	if dice.Chance(s.src, randomTargetChance) {
		return living[s.src.Intn(len(living))]
	}
	for _, c := range living {
		if c.Hero {
			return c
		}
	}
	strongest := living[0]
	for _, c := range living[1:] {
		if c.TotalAttack() > strongest.TotalAttack() {
			strongest = c
		}
	}
	return strongest
}

// ChooseAbilityDescriptor picks a cosmetic ability name and whether it is an
// area effect. Hero-tier enemies hit an area 1 time in 5, regular ones 1 in 10.
func (s *Selector) ChooseAbilityDescriptor(enemy *combat.Combatant) (string, bool) {
	hero := enemy != nil && enemy.Hero
	odds, single, area := regularAreaOdds, regularSingleAbilities, regularAreaAbilities
	if hero {
		odds, single, area = heroAreaOdds, heroSingleAbilities, heroAreaAbilities
	}
	if s.src.Intn(odds) == 0 {
		return area[s.src.Intn(len(area))], true
	}
	return single[s.src.Intn(len(single))], false
}

// hook calls a Lua hook and reports whether it returned a non-nil value.
func (s *Selector) hook(name string, args ...lua.LValue) (lua.LValue, bool) {
	if s.caller == nil {
		return nil, false
	}
	v, err := s.caller.CallHook(s.locationID, name, args...)
	if err != nil {
		s.logger.Warn("ai: hook failed", zap.String("hook", name), zap.Error(err))
		return nil, false
	}
	if v == nil || v == lua.LNil {
		return nil, false
	}
	return v, true
}
