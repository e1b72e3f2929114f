package loot

import "fmt"

// Rarity is a material's quantity tier.
type Rarity int

const (
	Common Rarity = iota
	Rare
)

// String returns the lowercase rarity name.
func (r Rarity) String() string {
	switch r {
	case Common:
		return "common"
	case Rare:
		return "rare"
	default:
		return fmt.Sprintf("rarity(%d)", int(r))
	}
}

// Material is one entry of the fixed material catalogue.
// A material drawn in its native location uses NativeWeight, elsewhere ForeignWeight.
type Material struct {
	Name          string
	Rarity        Rarity
	Native        LocationType
	NativeWeight  int
	ForeignWeight int
}

// Weight returns the draw weight of m in loc.
func (m Material) Weight(loc LocationType) int {
	if loc == m.Native {
		return m.NativeWeight
	}
	return m.ForeignWeight
}

// QuantityRange returns the inclusive per-slot quantity range for a rarity.
func QuantityRange(r Rarity) (int, int) {
	if r == Rare {
		return 1, 4
	}
	return 2, 10
}

var catalogue = map[string]Material{
	"wood":      {Name: "wood", Rarity: Common, Native: Village, NativeWeight: 40, ForeignWeight: 20},
	"cloth":     {Name: "cloth", Rarity: Common, Native: Village, NativeWeight: 36, ForeignWeight: 18},
	"herb":      {Name: "herb", Rarity: Common, Native: Forest, NativeWeight: 40, ForeignWeight: 20},
	"leather":   {Name: "leather", Rarity: Common, Native: Forest, NativeWeight: 32, ForeignWeight: 16},
	"iron_ore":  {Name: "iron_ore", Rarity: Common, Native: Cave, NativeWeight: 36, ForeignWeight: 18},
	"crystal":   {Name: "crystal", Rarity: Rare, Native: Cave, NativeWeight: 16, ForeignWeight: 8},
	"bone":      {Name: "bone", Rarity: Common, Native: Ruins, NativeWeight: 30, ForeignWeight: 15},
	"runestone": {Name: "runestone", Rarity: Rare, Native: Ruins, NativeWeight: 14, ForeignWeight: 7},
	"steel":     {Name: "steel", Rarity: Common, Native: Castle, NativeWeight: 28, ForeignWeight: 14},
	"gemstone":  {Name: "gemstone", Rarity: Rare, Native: Castle, NativeWeight: 12, ForeignWeight: 6},
}

// fallbackPools is used when a location has no usable loot table.
var fallbackPools = map[LocationType][]string{
	Village: {"wood", "cloth", "herb"},
	Forest:  {"herb", "leather", "wood"},
	Cave:    {"iron_ore", "crystal", "bone"},
	Ruins:   {"bone", "runestone", "iron_ore"},
	Castle:  {"steel", "gemstone", "runestone"},
}

// LookupMaterial returns the catalogue entry for name.
func LookupMaterial(name string) (Material, bool) {
	m, ok := catalogue[name]
	return m, ok
}

// FallbackPool returns the built-in material list for loc.
func FallbackPool(loc LocationType) []string {
	pool, ok := fallbackPools[loc]
	if !ok {
		pool = fallbackPools[Village]
	}
	return append([]string(nil), pool...)
}
