package loot_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/loot"
)

type fixedSrc struct {
	val int
	f   float64
}

func (f fixedSrc) Intn(n int) int {
	if f.val >= n {
		return n - 1
	}
	return f.val
}

func (f fixedSrc) Float64() float64 { return f.f }

func TestLocationType_YAMLRoundTrip(t *testing.T) {
	var doc struct {
		Type loot.LocationType `yaml:"type"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("type: Ruins\n"), &doc))
	assert.Equal(t, loot.Ruins, doc.Type)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "type: ruins\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("type: swamp\n"), &doc))
}

func TestMaterial_NativeWeightIsDouble(t *testing.T) {
	wood, ok := loot.LookupMaterial("wood")
	require.True(t, ok)
	assert.Equal(t, 40, wood.Weight(loot.Village))
	assert.Equal(t, 20, wood.Weight(loot.Castle))
	for _, l := range loot.LocationTypes {
		for _, name := range loot.FallbackPool(l) {
			m, ok := loot.LookupMaterial(name)
			require.True(t, ok, name)
			assert.Equal(t, 2*m.ForeignWeight, m.NativeWeight, name)
		}
	}
}

func TestQuantityRange(t *testing.T) {
	lo, hi := loot.QuantityRange(loot.Rare)
	assert.Equal(t, []int{1, 4}, []int{lo, hi})
	lo, hi = loot.QuantityRange(loot.Common)
	assert.Equal(t, []int{2, 10}, []int{lo, hi})
}

func TestHeroGold_Example(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := loot.HeroGold(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), 20)
		assert.GreaterOrEqual(rt, g, 46)
		assert.LessOrEqual(rt, g, 73)
	})
	assert.Equal(t, 46, loot.HeroGold(fixedSrc{val: 0, f: 0}, 20))
	assert.Equal(t, 73, loot.HeroGold(fixedSrc{val: 99, f: 1}, 20))
}

func TestGenerate_NormalBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := loot.NewGenerator(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), nil)
		loc := loot.LocationTypes[rapid.IntRange(0, 4).Draw(rt, "loc")]
		res := g.Generate(loot.Request{Location: loc, LootTable: []string{"wood", "crystal"}})

		assert.GreaterOrEqual(rt, res.Gold, 8)
		assert.LessOrEqual(rt, res.Gold, 35)
		require.NotEmpty(rt, res.Items)
		seen := map[string]bool{}
		for _, e := range res.Items {
			assert.False(rt, seen[e.ItemID], "duplicate %s", e.ItemID)
			seen[e.ItemID] = true
			assert.Contains(rt, []string{"wood", "crystal"}, e.ItemID)
			assert.GreaterOrEqual(rt, e.Quantity, 1)
			assert.NotEmpty(rt, e.InstanceID)
		}
		// 1..7 slots, each between 1 and 10 units.
		assert.LessOrEqual(rt, res.TotalQuantity(), 70)
	})
}

func TestGenerate_HeroBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := loot.NewGenerator(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), nil)
		res := g.Generate(loot.Request{Location: loot.Castle, LootTable: []string{"gemstone"}, HeroDefeated: true})
		assert.GreaterOrEqual(rt, res.Gold, 24)
		assert.LessOrEqual(rt, res.Gold, 109)
		require.Len(rt, res.Items, 1)
		// 3..9 slots of 1..6 units (floor(4*1.5)).
		assert.GreaterOrEqual(rt, res.Items[0].Quantity, 3)
		assert.LessOrEqual(rt, res.Items[0].Quantity, 54)
		assert.Equal(rt, loot.Rare, res.Items[0].Rarity)
	})
}

func TestGenerate_MinimumDraws(t *testing.T) {
	g := loot.NewGenerator(fixedSrc{val: 0, f: 0}, nil)
	res := g.Generate(loot.Request{Location: loot.Village, LootTable: []string{"wood", "cloth"}})
	require.Len(t, res.Items, 1)
	assert.Equal(t, "wood", res.Items[0].ItemID)
	assert.Equal(t, 2, res.Items[0].Quantity)
	assert.Equal(t, 8, res.Gold)
}

func TestGenerate_FallbackWhenNoTable(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	g := loot.NewGenerator(dice.NewSeededSource(3), zap.New(core))
	res := g.Generate(loot.Request{Location: loot.Cave})
	require.NotEmpty(t, res.Items)
	for _, e := range res.Items {
		assert.Contains(t, loot.FallbackPool(loot.Cave), e.ItemID)
	}
	assert.Equal(t, 1, logs.FilterMessage("loot: no loot table configured, using fallback pool").Len())
}

func TestGenerate_UnknownMaterialsFallBack(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g := loot.NewGenerator(dice.NewSeededSource(3), zap.New(core))
	res := g.Generate(loot.Request{Location: loot.Forest, LootTable: []string{"unobtainium"}})
	require.NotEmpty(t, res.Items)
	for _, e := range res.Items {
		assert.Contains(t, loot.FallbackPool(loot.Forest), e.ItemID)
	}
	assert.Equal(t, 1, logs.FilterMessage("loot: unknown material in loot table").Len())
}

func TestGenerate_NativeMaterialFavoured(t *testing.T) {
	g := loot.NewGenerator(dice.NewSeededSource(11), nil)
	counts := map[string]int{}
	for i := 0; i < 3000; i++ {
		res := g.Generate(loot.Request{Location: loot.Village, LootTable: []string{"wood", "herb"}})
		for _, e := range res.Items {
			counts[e.ItemID]++
		}
	}
	assert.Greater(t, counts["wood"], counts["herb"])
}

type fakeRewards struct {
	gold  int
	items map[string]int
	deny  string
}

func (f *fakeRewards) AddGold(n int) { f.gold += n }

func (f *fakeRewards) AddItem(id string, qty int) error {
	if id == f.deny {
		return errors.New("backpack full")
	}
	if f.items == nil {
		f.items = map[string]int{}
	}
	f.items[id] += qty
	return nil
}

func TestApply(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := &fakeRewards{deny: "bone"}
	res := loot.Result{Gold: 30, Items: []loot.Entry{
		{ItemID: "wood", Quantity: 3},
		{ItemID: "bone", Quantity: 2},
		{ItemID: "herb", Quantity: 1},
	}}
	n := loot.Apply(res, r, zap.New(core))
	assert.Equal(t, 2, n)
	assert.Equal(t, 30, r.gold)
	assert.Equal(t, map[string]int{"wood": 3, "herb": 1}, r.items)
	assert.Equal(t, 1, logs.FilterMessage("loot: reward item rejected").Len())
	assert.Equal(t, 0, loot.Apply(res, nil, nil))
}
