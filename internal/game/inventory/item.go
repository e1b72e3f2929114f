// Package inventory provides the item catalogue, the player's backpack and
// gold purse, and the consumables usable in battle.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/skirmish/internal/game/dice"
)

// Kind constants for ItemDef.Kind.
const (
	KindConsumable = "consumable"
	KindMaterial   = "material"
)

// EffectType names what a consumable does when used.
type EffectType string

const (
	EffectHeal   EffectType = "heal"
	EffectRage   EffectType = "rage"
	EffectGuard  EffectType = "guard"
	EffectDamage EffectType = "damage"
	EffectPoison EffectType = "poison"
	EffectStun   EffectType = "stun"
)

// Delivery is how a consumable reaches its target.
type Delivery string

const (
	DeliveryDrink  Delivery = "drink"
	DeliveryThrown Delivery = "thrown"
)

// ConsumableDef is the combat payload of a consumable item.
type ConsumableDef struct {
	Effect EffectType `yaml:"effect"`
	// Amount is the heal amount, the bonus value, or the poison damage per turn.
	Amount     int      `yaml:"amount"`
	Turns      int      `yaml:"turns"`
	DamageDice string   `yaml:"damage_dice"`
	Area       bool     `yaml:"area"`
	Targeted   bool     `yaml:"targeted"`
	Delivery   Delivery `yaml:"delivery"`
	Visual     string   `yaml:"visual"`
}

// ItemDef defines the static properties of an item loaded from YAML.
type ItemDef struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Kind        string         `yaml:"kind"`
	Weight      float64        `yaml:"weight"`
	Stackable   bool           `yaml:"stackable"`
	MaxStack    int            `yaml:"max_stack"`
	Value       int            `yaml:"value"`
	Consumable  *ConsumableDef `yaml:"consumable"`
}

// Validate checks that the ItemDef satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid; otherwise every
// violation is reported.
func (d *ItemDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if d.Kind != KindConsumable && d.Kind != KindMaterial {
		errs = append(errs, fmt.Errorf("kind must be consumable or material; got %q", d.Kind))
	}
	if d.MaxStack < 1 {
		errs = append(errs, errors.New("max_stack must be >= 1"))
	}
	if d.Weight < 0 {
		errs = append(errs, errors.New("weight must be >= 0"))
	}
	if d.Kind == KindConsumable {
		if d.Consumable == nil {
			errs = append(errs, errors.New("consumable block is required when kind is consumable"))
		} else {
			errs = append(errs, d.Consumable.validate()...)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("item %q: %w", d.ID, errors.Join(errs...))
	}
	return nil
}

func (c *ConsumableDef) validate() []error {
	var errs []error
	if c.Delivery != DeliveryDrink && c.Delivery != DeliveryThrown {
		errs = append(errs, fmt.Errorf("delivery must be drink or thrown; got %q", c.Delivery))
	}
	switch c.Effect {
	case EffectHeal:
		if c.Amount < 1 {
			errs = append(errs, errors.New("heal amount must be >= 1"))
		}
	case EffectRage, EffectGuard, EffectPoison:
		if c.Amount < 1 || c.Turns < 1 {
			errs = append(errs, fmt.Errorf("%s requires amount >= 1 and turns >= 1", c.Effect))
		}
	case EffectStun:
		if c.Turns < 1 {
			errs = append(errs, errors.New("stun turns must be >= 1"))
		}
	case EffectDamage:
		if _, err := dice.Parse(c.DamageDice); err != nil {
			errs = append(errs, fmt.Errorf("damage_dice: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown effect %q", c.Effect))
	}
	if c.Targeted && c.Area {
		errs = append(errs, errors.New("an item cannot be both targeted and area"))
	}
	if c.Targeted && c.Delivery != DeliveryThrown {
		errs = append(errs, errors.New("targeted items must be thrown"))
	}
	return errs
}

// LoadItemFromBytes parses and validates a single ItemDef.
func LoadItemFromBytes(data []byte) (*ItemDef, error) {
	var d ItemDef
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing item YAML: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadItems reads all *.yaml and *.yml files from dir and returns the parsed items.
//
// Postcondition: returns all valid ItemDefs or the first encountered error.
func LoadItems(dir string) ([]*ItemDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading item dir %q: %w", dir, err)
	}

	var items []*ItemDef
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		d, err := LoadItemFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		items = append(items, d)
	}
	return items, nil
}
