// Package loot generates gold and material rewards at the end of a won battle.
package loot

import (
	"fmt"
	"strings"
)

// LocationType is a battle location tier. Tiers increase in value.
type LocationType int

const (
	Village LocationType = iota
	Forest
	Cave
	Ruins
	Castle
)

// LocationTypes lists every tier in increasing order.
var LocationTypes = []LocationType{Village, Forest, Cave, Ruins, Castle}

var locationNames = map[LocationType]string{
	Village: "village",
	Forest:  "forest",
	Cave:    "cave",
	Ruins:   "ruins",
	Castle:  "castle",
}

// String returns the lowercase tier name.
func (l LocationType) String() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return fmt.Sprintf("location(%d)", int(l))
}

// ParseLocationType parses a case-insensitive tier name.
func ParseLocationType(s string) (LocationType, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for l, name := range locationNames {
		if name == want {
			return l, nil
		}
	}
	return 0, fmt.Errorf("loot: unknown location type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l LocationType) MarshalText() ([]byte, error) {
	if _, ok := locationNames[l]; !ok {
		return nil, fmt.Errorf("loot: invalid location type %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so YAML content can name
// tiers directly.
func (l *LocationType) UnmarshalText(text []byte) error {
	v, err := ParseLocationType(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
