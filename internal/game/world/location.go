// Package world loads battle locations: the location data provider that
// supplies each battle's tier, loot table, encounter pool and scripts.
package world

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/skirmish/internal/game/loot"
)

// Location is one place a battle can be fought.
type Location struct {
	ID          string
	Name        string
	Description string
	Type        loot.LocationType
	// LootTable lists material identifiers; weights come from the loot catalogue.
	LootTable []string
	// Enemies lists npc template IDs for ordinary encounters.
	Enemies []string
	// Boss is the npc template ID of the location's hero-tier enemy, or "".
	Boss                   string
	ScriptDir              string
	ScriptInstructionLimit int
}

// LootRequest builds the loot request for a battle won here.
func (l *Location) LootRequest(heroDefeated bool) loot.Request {
	return loot.Request{
		Location:     l.Type,
		LootTable:    append([]string(nil), l.LootTable...),
		HeroDefeated: heroDefeated,
	}
}

// Validate checks the location's invariants.
//
// Postcondition: Returns nil iff ID and Name are set, every listed identifier
// is non-empty, and the script limit is not negative.
func (l *Location) Validate() error {
	var errs []error
	if l.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if l.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	for i, m := range l.LootTable {
		if m == "" {
			errs = append(errs, fmt.Errorf("loot_table[%d] must not be empty", i))
		}
	}
	for i, e := range l.Enemies {
		if e == "" {
			errs = append(errs, fmt.Errorf("enemies[%d] must not be empty", i))
		}
	}
	if l.ScriptInstructionLimit < 0 {
		errs = append(errs, errors.New("script_instruction_limit must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("location %q: %w", l.ID, errors.Join(errs...))
	}
	return nil
}
