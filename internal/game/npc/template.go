// Package npc provides enemy templates and spawns leveled combatants from them.
package npc

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
)

// levelScaling is the stat growth per level above the template's own.
const levelScaling = 0.10

// Template defines a reusable enemy archetype loaded from YAML.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Level       int    `yaml:"level"`
	MaxHealth   int    `yaml:"max_health"`
	Attack      int    `yaml:"attack"`
	Defense     int    `yaml:"defense"`
	// Hero marks a boss-tier enemy with better abilities and rewards.
	Hero bool `yaml:"hero"`
}

// Validate checks that the template satisfies basic invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty, Level >= 1,
// MaxHealth >= 1, and Attack and Defense are >= 0.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("npc template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("npc template %q: name must not be empty", t.ID)
	}
	if t.Level < 1 {
		return fmt.Errorf("npc template %q: level must be >= 1", t.ID)
	}
	if t.MaxHealth < 1 {
		return fmt.Errorf("npc template %q: max_health must be >= 1", t.ID)
	}
	if t.Attack < 0 || t.Defense < 0 {
		return fmt.Errorf("npc template %q: attack and defense must be >= 0", t.ID)
	}
	return nil
}

// LoadTemplateFromBytes parses a single template from raw YAML bytes.
//
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Postcondition: Returns all templates or an error on the first parse or
// validate failure.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading npc dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

// Registry indexes templates by ID.
type Registry struct {
	byID map[string]*Template
}

// NewRegistry builds a Registry and rejects duplicate IDs.
func NewRegistry(templates []*Template) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("npc: duplicate template id %q", t.ID)
		}
		r.byID[t.ID] = t
	}
	return r, nil
}

// Get returns the template for id.
func (r *Registry) Get(id string) (*Template, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// IDs returns every template ID in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Spawn clones tmpl into a fresh combatant at level. Each level above the
// template's own adds 10% to health, attack and defense, rounded down.
// Levels at or below the template's use the template stats unchanged.
//
// Precondition: tmpl must be non-nil and valid.
// Postcondition: the combatant is at full health with no effects.
func Spawn(tmpl *Template, level int) *combat.Combatant {
	if level < tmpl.Level {
		level = tmpl.Level
	}
	factor := 1 + levelScaling*float64(level-tmpl.Level)
	scale := func(v int) int { return int(math.Floor(float64(v) * factor)) }
	return combat.New(combat.Stats{
		ID:        uuid.New().String(),
		Name:      tmpl.Name,
		Level:     level,
		MaxHealth: scale(tmpl.MaxHealth),
		Attack:    scale(tmpl.Attack),
		Defense:   scale(tmpl.Defense),
		Hero:      tmpl.Hero,
	})
}
