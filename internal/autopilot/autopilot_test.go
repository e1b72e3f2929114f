package autopilot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/autopilot"
	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/animation"
	"github.com/cory-johannsen/skirmish/internal/game/battle"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/inventory"
	"github.com/cory-johannsen/skirmish/internal/game/loot"
)

func holding(ids ...string) func(string) bool {
	return func(id string) bool {
		for _, h := range ids {
			if h == id {
				return true
			}
		}
		return false
	}
}

func turnSnapshot(hp int, enemies ...battle.CombatantView) battle.Snapshot {
	return battle.Snapshot{
		Phase:      battle.PlayerTurn,
		PlayerTurn: true,
		Player:     &battle.CombatantView{ID: "p", Health: hp, MaxHealth: 100},
		Enemies:    enemies,
	}
}

func TestDecide(t *testing.T) {
	goblin := battle.CombatantView{ID: "g", Health: 30, Attack: 4}
	ogre := battle.CombatantView{ID: "o", Health: 80, Attack: 12}
	rat := battle.CombatantView{ID: "r", Health: 5, Attack: 2}
	policy := autopilot.DefaultPolicy()

	tests := []struct {
		name string
		snap battle.Snapshot
		has  func(string) bool
		want autopilot.Action
	}{
		{"attacks the weakest enemy", turnSnapshot(90, goblin, rat), holding(), autopilot.Action{Kind: autopilot.Attack, TargetID: "r"}},
		{"heals when low", turnSnapshot(30, goblin), holding("healing_draught"), autopilot.Action{Kind: autopilot.UseItem, ItemID: "healing_draught"}},
		{"throws at the strongest of several", turnSnapshot(90, goblin, ogre), holding("fire_flask"), autopilot.Action{Kind: autopilot.UseItem, ItemID: "fire_flask", TargetID: "o"}},
		{"keeps flasks for crowds", turnSnapshot(90, goblin), holding("fire_flask"), autopilot.Action{Kind: autopilot.Attack, TargetID: "g"}},
		{"defends when nearly dead without a heal", turnSnapshot(10, goblin), holding(), autopilot.Action{Kind: autopilot.Defend}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, autopilot.Decide(tt.snap, tt.has, policy))
		})
	}
}

func TestDecide_BossFightThrowsAtSingleEnemy(t *testing.T) {
	snap := turnSnapshot(90, battle.CombatantView{ID: "dragon", Health: 200, Attack: 20, Hero: true})
	snap.Boss = true
	act := autopilot.Decide(snap, holding("fire_flask"), autopilot.DefaultPolicy())
	assert.Equal(t, autopilot.UseItem, act.Kind)
	assert.Equal(t, "dragon", act.TargetID)
}

func TestDecide_WaitsWhenPlayerCannotAct(t *testing.T) {
	base := turnSnapshot(90, battle.CombatantView{ID: "g", Health: 30})
	enemyTurn := base
	enemyTurn.PlayerTurn = false
	animating := base
	animating.Animation = &animation.Event{ID: 1}
	selecting := base
	selecting.TargetSelection = true
	over := base
	over.Over = true

	for _, s := range []battle.Snapshot{enemyTurn, animating, selecting, over, {}} {
		assert.Equal(t, autopilot.Wait, autopilot.Decide(s, holding(), autopilot.DefaultPolicy()).Kind)
	}
}

func TestDecide_ActionTargetsLivingEnemy_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "enemies")
		enemies := make([]battle.CombatantView, n)
		ids := make(map[string]bool, n)
		for i := range enemies {
			id := string(rune('a' + i))
			enemies[i] = battle.CombatantView{
				ID:     id,
				Health: rapid.IntRange(1, 100).Draw(rt, "health"),
				Attack: rapid.IntRange(0, 30).Draw(rt, "attack"),
			}
			ids[id] = true
		}
		hp := rapid.IntRange(1, 100).Draw(rt, "hp")
		act := autopilot.Decide(turnSnapshot(hp, enemies...), holding("healing_draught", "fire_flask"), autopilot.DefaultPolicy())
		if act.Kind == autopilot.Wait {
			rt.Fatalf("a player turn must produce an action")
		}
		if act.TargetID != "" && !ids[act.TargetID] {
			rt.Fatalf("target %q is not a living enemy", act.TargetID)
		}
	})
}

func kitRegistry(t *testing.T) *inventory.Registry {
	t.Helper()
	defs := []*inventory.ItemDef{
		{ID: "healing_draught", Name: "Healing Draught", Kind: inventory.KindConsumable, Stackable: true, MaxStack: 10,
			Consumable: &inventory.ConsumableDef{Effect: inventory.EffectHeal, Amount: 40, Delivery: inventory.DeliveryDrink, Visual: "heal"}},
		{ID: "fire_flask", Name: "Fire Flask", Kind: inventory.KindConsumable, Stackable: true, MaxStack: 10,
			Consumable: &inventory.ConsumableDef{Effect: inventory.EffectDamage, DamageDice: "2d6", Targeted: true, Delivery: inventory.DeliveryThrown, Visual: "fire"}},
	}
	for _, m := range []string{"wood", "cloth", "herb"} {
		defs = append(defs, &inventory.ItemDef{ID: m, Name: m, Kind: inventory.KindMaterial, Stackable: true, MaxStack: 99})
	}
	reg, err := inventory.NewRegistryFrom(defs)
	require.NoError(t, err)
	return reg
}

func quick() animation.Durations {
	return animation.Durations{
		PlayerAttack:  time.Millisecond,
		EnemyAttack:   time.Millisecond,
		DrinkItem:     time.Millisecond,
		ThrownItem:    time.Millisecond,
		OneShotEffect: time.Millisecond,
		Guard:         time.Millisecond,
	}
}

func newPilot(t *testing.T, inv *inventory.Inventory) *autopilot.Pilot {
	t.Helper()
	logger := zaptest.NewLogger(t)
	src := dice.NewSeededSource(7)
	e := battle.NewEngine(battle.EngineConfig{
		Deps: battle.Deps{
			Resolver: combat.NewResolver(src, combat.DefaultCritChance),
			Selector: ai.NewSelector(src),
			Loot:     loot.NewGenerator(src, logger),
			Rewards:  inv,
			Logger:   logger,
		},
		Clock:     animation.NewClock(),
		Durations: quick(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return autopilot.New(e, inv, dice.NewLoggedRoller(src, logger), autopilot.DefaultPolicy(), logger)
}

func hero() *combat.Combatant {
	return combat.New(combat.Stats{ID: "p", Name: "Aria", Level: 5, MaxHealth: 200, Attack: 20, Defense: 6, Player: true})
}

func TestPilot_PlaysBattleToVictory(t *testing.T) {
	inv := inventory.NewInventory(kitRegistry(t), 20, 100)
	pilot := newPilot(t, inv)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := pilot.Run(ctx, battle.Encounter{
		Player:  hero(),
		Enemies: []*combat.Combatant{combat.New(combat.Stats{ID: "g", Name: "Goblin", MaxHealth: 30, Attack: 4, Defense: 2})},
	})
	require.NoError(t, err)
	assert.True(t, snap.Over)
	assert.True(t, snap.Won)
	require.NotNil(t, snap.Loot)
	assert.Equal(t, snap.Loot.Gold, inv.Gold())
}

func TestPilot_ThrowsItemsThroughTargetSelection(t *testing.T) {
	inv := inventory.NewInventory(kitRegistry(t), 20, 100)
	require.NoError(t, inv.AddItem("fire_flask", 2))
	pilot := newPilot(t, inv)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := pilot.Run(ctx, battle.Encounter{
		Player: hero(),
		Enemies: []*combat.Combatant{
			combat.New(combat.Stats{ID: "g1", Name: "Goblin", MaxHealth: 60, Attack: 4, Defense: 2}),
			combat.New(combat.Stats{ID: "g2", Name: "Goblin Chief", MaxHealth: 60, Attack: 8, Defense: 2}),
		},
	})
	require.NoError(t, err)
	assert.True(t, snap.Won)
	assert.Zero(t, inv.Count("fire_flask"), "both flasks are thrown while two enemies stand")
}

func TestPilot_StartErrorIsReturned(t *testing.T) {
	inv := inventory.NewInventory(kitRegistry(t), 20, 100)
	pilot := newPilot(t, inv)
	_, err := pilot.Run(context.Background(), battle.Encounter{Player: hero()})
	assert.ErrorIs(t, err, battle.ErrNoEnemies)
}
