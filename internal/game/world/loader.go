package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/skirmish/internal/game/loot"
)

// yamlLocationFile is the top-level YAML structure for location files.
type yamlLocationFile struct {
	Location yamlLocation `yaml:"location"`
}

type yamlLocation struct {
	ID                     string            `yaml:"id"`
	Name                   string            `yaml:"name"`
	Description            string            `yaml:"description"`
	Type                   loot.LocationType `yaml:"type"`
	LootTable              []string          `yaml:"loot_table"`
	Enemies                []string          `yaml:"enemies"`
	Boss                   string            `yaml:"boss"`
	ScriptDir              string            `yaml:"script_dir"`
	ScriptInstructionLimit int               `yaml:"script_instruction_limit"`
}

// LoadLocationFromBytes parses and validates a location from YAML bytes.
//
// Postcondition: Returns a validated Location or a non-nil error.
func LoadLocationFromBytes(data []byte) (*Location, error) {
	var file yamlLocationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing location YAML: %w", err)
	}
	yl := file.Location
	loc := &Location{
		ID:                     yl.ID,
		Name:                   yl.Name,
		Description:            strings.TrimSpace(yl.Description),
		Type:                   yl.Type,
		LootTable:              yl.LootTable,
		Enemies:                yl.Enemies,
		Boss:                   yl.Boss,
		ScriptDir:              yl.ScriptDir,
		ScriptInstructionLimit: yl.ScriptInstructionLimit,
	}
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("validating location: %w", err)
	}
	return loc, nil
}

// LoadLocations loads every *.yaml or *.yml file in dir.
//
// Postcondition: Returns all validated locations or the first error encountered.
// An empty directory is an error.
func LoadLocations(dir string) ([]*Location, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading location directory %s: %w", dir, err)
	}

	var locs []*Location
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading location file %s: %w", name, err)
		}
		loc, err := LoadLocationFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading location from %s: %w", name, err)
		}
		locs = append(locs, loc)
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("no location files found in %s", dir)
	}
	return locs, nil
}
