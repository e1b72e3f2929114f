package loot

import (
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/dice"
)

// Request describes the battle a reward is generated for.
type Request struct {
	Location LocationType
	// LootTable lists the material identifiers eligible in the location.
	// Empty means the built-in pool for Location is used.
	LootTable    []string
	HeroDefeated bool
}

// Entry is one rewarded material stack.
type Entry struct {
	InstanceID string
	ItemID     string
	Quantity   int
	Rarity     Rarity
}

// Result is the complete reward of one battle.
type Result struct {
	Gold  int
	Items []Entry
}

// TotalQuantity sums the quantities of all entries.
func (r Result) TotalQuantity() int {
	n := 0
	for _, e := range r.Items {
		n += e.Quantity
	}
	return n
}

// Generator produces battle rewards from an injected Source.
type Generator struct {
	src    dice.Source
	logger *zap.Logger
}

// NewGenerator creates a Generator.
//
// Precondition: src must be non-nil.
func NewGenerator(src dice.Source, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{src: src, logger: logger}
}

type weighted struct {
	mat    Material
	weight int
}

// Generate rolls the gold and material reward for req.
//
// Postcondition: Items holds no duplicate ItemID; every Quantity >= 1; Gold >= 8.
func (g *Generator) Generate(req Request) Result {
	pool := g.pool(req)

	slots := dice.Between(g.src, 1, 4)
	if req.HeroDefeated {
		slots = dice.Between(g.src, 3, 6)
	}
	slots += dice.Between(g.src, 0, 3)

	var res Result
	index := make(map[string]int)
	for i := 0; i < slots; i++ {
		mat := g.draw(pool)
		qty := g.quantity(mat.Rarity, req.HeroDefeated)
		if at, ok := index[mat.Name]; ok {
			res.Items[at].Quantity += qty
			continue
		}
		index[mat.Name] = len(res.Items)
		res.Items = append(res.Items, Entry{
			InstanceID: uuid.New().String(),
			ItemID:     mat.Name,
			Quantity:   qty,
			Rarity:     mat.Rarity,
		})
	}

	res.Gold = g.RollGold(req.HeroDefeated)
	g.logger.Debug("loot generated",
		zap.String("location", req.Location.String()),
		zap.Bool("hero", req.HeroDefeated),
		zap.Int("slots", slots),
		zap.Int("stacks", len(res.Items)),
		zap.Int("gold", res.Gold),
	)
	return res
}

// RollGold rolls the gold reward: random(8,35), scaled for hero battles by HeroGold.
func (g *Generator) RollGold(hero bool) int {
	base := dice.Between(g.src, 8, 35)
	if !hero {
		return base
	}
	return HeroGold(g.src, base)
}

// HeroGold returns floor(base * U[1.8, 2.4]) + random(10, 25).
func HeroGold(src dice.Source, base int) int {
	scaled := int(math.Floor(float64(base) * dice.Uniform(src, 1.8, 2.4)))
	return scaled + dice.Between(src, 10, 25)
}

func (g *Generator) quantity(r Rarity, hero bool) int {
	lo, hi := QuantityRange(r)
	qty := dice.Between(g.src, lo, hi)
	if !hero {
		return qty
	}
	qty = int(math.Floor(float64(qty) * dice.Uniform(g.src, 1.2, 1.5)))
	if qty < 1 {
		qty = 1
	}
	return qty
}

// pool resolves the weighted candidates for req. Unknown identifiers are
// skipped; when none remain the location's fallback pool is used.
func (g *Generator) pool(req Request) []weighted {
	build := func(names []string) []weighted {
		seen := make(map[string]bool)
		var out []weighted
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			mat, ok := LookupMaterial(name)
			if !ok {
				g.logger.Warn("loot: unknown material in loot table",
					zap.String("material", name),
					zap.String("location", req.Location.String()),
				)
				continue
			}
			if w := mat.Weight(req.Location); w > 0 {
				out = append(out, weighted{mat: mat, weight: w})
			}
		}
		return out
	}

	pool := build(req.LootTable)
	if len(pool) == 0 {
		if len(req.LootTable) == 0 {
			g.logger.Info("loot: no loot table configured, using fallback pool",
				zap.String("location", req.Location.String()))
		}
		pool = build(FallbackPool(req.Location))
	}
	return pool
}

func (g *Generator) draw(pool []weighted) Material {
	total := 0
	for _, w := range pool {
		total += w.weight
	}
	r := g.src.Intn(total)
	for _, w := range pool {
		if r < w.weight {
			return w.mat
		}
		r -= w.weight
	}
	return pool[len(pool)-1].mat
}
