// Package main runs one battle from the command line: it loads content,
// builds the battle engine, lets the autopilot play the player's side, and
// records the outcome in the configured report store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/autopilot"
	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/animation"
	"github.com/cory-johannsen/skirmish/internal/game/battle"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/inventory"
	"github.com/cory-johannsen/skirmish/internal/game/loot"
	"github.com/cory-johannsen/skirmish/internal/game/npc"
	"github.com/cory-johannsen/skirmish/internal/game/world"
	"github.com/cory-johannsen/skirmish/internal/observability"
	"github.com/cory-johannsen/skirmish/internal/report"
	"github.com/cory-johannsen/skirmish/internal/scripting"
	"github.com/cory-johannsen/skirmish/internal/server"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
	"github.com/cory-johannsen/skirmish/internal/storage/sqlite"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	locationID := flag.String("location", "old_forest", "location to fight at")
	enemyList := flag.String("enemies", "", "comma-separated npc template IDs; empty = the location's encounter pool")
	withBoss := flag.Bool("boss", false, "add the location's boss to the encounter")
	level := flag.Int("level", 1, "enemy level")
	playerName := flag.String("player", "Aria", "player name")
	playerHP := flag.Int("player-hp", 120, "player max health")
	playerAttack := flag.Int("player-attack", 14, "player base attack")
	playerDefense := flag.Int("player-defense", 6, "player base defense")
	kit := flag.String("kit", "healing_draught:2,fire_flask:1", "starting consumables as id:qty pairs")
	history := flag.Int("history", 5, "number of recent reports to print after the battle")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var src dice.Source
	if cfg.Battle.Seed != 0 {
		src = dice.NewSeededSource(cfg.Battle.Seed)
		logger.Info("using seeded randomness", zap.Uint64("seed", cfg.Battle.Seed))
	} else {
		src = dice.NewCryptoSource()
	}
	roller := dice.NewLoggedRoller(src, logger)

	// Load content
	contentStart := time.Now()
	templates, err := npc.LoadTemplates(cfg.Content.EnemiesDir)
	if err != nil {
		logger.Fatal("loading npc templates", zap.Error(err))
	}
	npcReg, err := npc.NewRegistry(templates)
	if err != nil {
		logger.Fatal("indexing npc templates", zap.Error(err))
	}
	itemDefs, err := inventory.LoadItems(cfg.Content.ItemsDir)
	if err != nil {
		logger.Fatal("loading item definitions", zap.Error(err))
	}
	itemReg, err := inventory.NewRegistryFrom(itemDefs)
	if err != nil {
		logger.Fatal("indexing item definitions", zap.Error(err))
	}
	locations, err := world.LoadLocations(cfg.Content.LocationsDir)
	if err != nil {
		logger.Fatal("loading locations", zap.Error(err))
	}
	worldMgr, err := world.NewManager(locations)
	if err != nil {
		logger.Fatal("creating world manager", zap.Error(err))
	}
	if err := worldMgr.ValidateEnemies(func(id string) bool {
		_, ok := npcReg.Get(id)
		return ok
	}); err != nil {
		logger.Fatal("location references unknown npc template", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("npc_templates", len(templates)),
		zap.Int("items", len(itemDefs)),
		zap.Int("locations", len(locations)),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	scriptMgr := scripting.NewManager(roller, logger)
	defer scriptMgr.Close()
	for _, loc := range worldMgr.All() {
		if loc.ScriptDir == "" {
			continue
		}
		limit := loc.ScriptInstructionLimit
		if limit == 0 {
			limit = cfg.Scripting.InstructionLimit
		}
		if err := scriptMgr.LoadLocation(loc.ID, loc.ScriptDir, limit); err != nil {
			logger.Fatal("loading location scripts", zap.String("location", loc.ID), zap.Error(err))
		}
	}
	if cfg.Content.ScriptsDir != "" {
		if err := scriptMgr.LoadGlobal(cfg.Content.ScriptsDir, cfg.Scripting.InstructionLimit); err != nil {
			logger.Fatal("loading global scripts", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening report store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing report store", zap.Error(err))
		}
	}()

	inv := inventory.NewInventory(itemReg, 20, 100)
	if err := stockKit(inv, *kit); err != nil {
		logger.Fatal("stocking starting kit", zap.Error(err))
	}

	loc, ok := worldMgr.Get(*locationID)
	if !ok {
		logger.Fatal("unknown location", zap.String("location", *locationID))
	}
	enc, err := buildEncounter(npcReg, loc, *enemyList, *withBoss, *level)
	if err != nil {
		logger.Fatal("building encounter", zap.Error(err))
	}
	enc.Player = combat.New(combat.Stats{
		ID:        "player",
		Name:      *playerName,
		Level:     *level,
		MaxHealth: *playerHP,
		Attack:    *playerAttack,
		Defense:   *playerDefense,
		Player:    true,
	})
	enc.Selector = ai.NewSelector(src, ai.WithScripts(scriptMgr, loc.ID), ai.WithLogger(logger))

	engine := battle.NewEngine(battle.EngineConfig{
		Deps: battle.Deps{
			Resolver: combat.NewResolver(src, cfg.Battle.CritChance),
			Selector: ai.NewSelector(src, ai.WithLogger(logger)),
			Loot:     loot.NewGenerator(src, logger),
			Rewards:  inv,
			Logger:   logger,
		},
		Clock:       animation.NewClock(),
		Durations:   durations(cfg.Battle),
		Store:       store,
		MailboxSize: cfg.Battle.MailboxSize,
	})
	pilot := autopilot.New(engine, inv, roller, autopilot.DefaultPolicy(), logger)

	var final battle.Snapshot
	lc := server.NewLifecycle(logger)
	lc.Add("battle-engine", &server.RunnerService{Run: engine.Run})
	lc.Add("autopilot", &server.RunnerService{Run: func(runCtx context.Context) error {
		snap, err := pilot.Run(runCtx, enc)
		final = snap
		if err != nil {
			return err
		}
		// The battle is over; shut the engine down.
		cancel()
		return nil
	}})

	logger.Info("battle runner ready",
		zap.String("location", loc.ID),
		zap.Int("enemies", len(enc.Enemies)),
		zap.Duration("startup", time.Since(start)),
	)
	if err := lc.Run(ctx); err != nil {
		logger.Error("battle runner failed", zap.Error(err))
		os.Exit(1)
	}

	printResult(final, inv)
	printHistory(store, *history, logger)
}

func durations(b config.BattleConfig) animation.Durations {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return animation.Durations{
		PlayerAttack:  ms(b.PlayerAttackMs),
		EnemyAttack:   ms(b.EnemyAttackMs),
		DrinkItem:     ms(b.DrinkItemMs),
		ThrownItem:    ms(b.ThrownItemMs),
		OneShotEffect: ms(b.OneShotEffectMs),
		Guard:         ms(b.GuardMs),
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (report.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		logger.Info("recording reports to sqlite", zap.String("path", cfg.Storage.SQLitePath))
		return sqlite.Open(cfg.Storage.SQLitePath)
	case config.DriverPostgres:
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		repo, err := postgres.OpenReportRepository(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return repo, nil
	default:
		logger.Info("report storage disabled")
		return report.Nop(), nil
	}
}

// stockKit parses "id:qty,id:qty" and adds each stack to inv.
func stockKit(inv *inventory.Inventory, kit string) error {
	for _, entry := range strings.Split(kit, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, qtyText, found := strings.Cut(entry, ":")
		qty := 1
		if found {
			n, err := strconv.Atoi(qtyText)
			if err != nil || n < 1 {
				return fmt.Errorf("kit entry %q: quantity must be a positive integer", entry)
			}
			qty = n
		}
		if err := inv.AddItem(id, qty); err != nil {
			return fmt.Errorf("kit entry %q: %w", entry, err)
		}
	}
	return nil
}

func buildEncounter(reg *npc.Registry, loc *world.Location, enemyList string, withBoss bool, level int) (battle.Encounter, error) {
	ids := loc.Enemies
	if enemyList != "" {
		ids = strings.Split(enemyList, ",")
	}
	if withBoss {
		if loc.Boss == "" {
			return battle.Encounter{}, fmt.Errorf("location %q has no boss", loc.ID)
		}
		ids = append(append([]string(nil), ids...), loc.Boss)
	}
	enc := battle.Encounter{Location: loc, Boss: withBoss}
	for _, id := range ids {
		tmpl, ok := reg.Get(strings.TrimSpace(id))
		if !ok {
			return battle.Encounter{}, fmt.Errorf("unknown npc template %q", id)
		}
		enc.Enemies = append(enc.Enemies, npc.Spawn(tmpl, level))
	}
	return enc, nil
}

func printResult(s battle.Snapshot, inv *inventory.Inventory) {
	outcome := "defeat"
	if s.Won {
		outcome = "victory"
	}
	fmt.Fprintf(os.Stdout, "%s at %s after %d turns\n", outcome, s.Location, s.Turn)
	if s.Player != nil {
		fmt.Fprintf(os.Stdout, "  %s: %d/%d (%s)\n", s.Player.Name, s.Player.Health, s.Player.MaxHealth, s.Player.Condition)
	}
	if s.Loot != nil {
		fmt.Fprintf(os.Stdout, "  gold: +%d (purse %d)\n", s.Loot.Gold, inv.Gold())
		for _, e := range s.Loot.Items {
			fmt.Fprintf(os.Stdout, "  loot: %s x%d [%s]\n", e.ItemID, e.Quantity, e.Rarity)
		}
	}
}

func printHistory(store report.Store, limit int, logger *zap.Logger) {
	if limit < 1 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reports, err := store.ListRecent(ctx, limit)
	if err != nil {
		logger.Warn("listing recent reports", zap.Error(err))
		return
	}
	for _, r := range reports {
		fmt.Fprintf(os.Stdout, "history: %s %s at %s, %d turns, %d gold, %d item stacks\n",
			r.EndedAt.Format(time.RFC3339), r.Outcome, r.Location, r.Turns, r.Gold, len(r.Items))
	}
}
