// Package battle runs one turn-based fight between the player and a group of
// enemies. Battle is the synchronous state machine. Engine wraps it in a
// single goroutine that also receives the animation timer messages, so no
// timer ever touches battle state directly.
package battle

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/animation"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/effect"
	"github.com/cory-johannsen/skirmish/internal/game/loot"
	"github.com/cory-johannsen/skirmish/internal/game/world"
	"github.com/cory-johannsen/skirmish/internal/observability"
)

const (
	// defendTurns is how long the defend action's bonus lasts.
	defendTurns = 1
	// maxMessages bounds the battle log kept for snapshots.
	maxMessages = 100
)

// Item is a consumable the player can use in battle.
// *inventory.Consumable satisfies it.
type Item interface {
	ID() string
	Name() string
	Targeted() bool
	Area() bool
	Thrown() bool
	Visual() string
	Sustains() (effect.Kind, bool)
	UseInCombat(user *combat.Combatant, targets []*combat.Combatant) bool
}

// Deps are the collaborators a Battle is built from.
type Deps struct {
	Resolver  *combat.Resolver
	Selector  *ai.Selector
	Loot      *loot.Generator
	Rewards   loot.Rewards
	Sequencer *animation.Sequencer
	// OnEnd is called once when the battle reaches Won or Lost.
	OnEnd  func(Result)
	Now    func() time.Time
	Logger *zap.Logger
}

// Encounter describes the battle to start.
type Encounter struct {
	// ID defaults to a random UUID.
	ID       string
	Player   *combat.Combatant
	Enemies  []*combat.Combatant
	Location *world.Location
	// Boss marks a hero-tier encounter. A Hero enemy sets it as well.
	Boss bool
	// Selector replaces Deps.Selector for this battle, e.g. one bound to the
	// location's scripts.
	Selector *ai.Selector
}

// Battle holds the authoritative state of one fight.
// It is not safe for concurrent use; Engine serialises access.
//
// Invariant: Phase().Over() iff the player or every enemy is defeated.
type Battle struct {
	resolver        *combat.Resolver
	defaultSelector *ai.Selector
	lootGen         *loot.Generator
	rewards         loot.Rewards
	seq             *animation.Sequencer
	onEnd           func(Result)
	now             func() time.Time
	baseLogger      *zap.Logger
	// logger is baseLogger tagged with the running battle.
	logger *zap.Logger

	selector          *ai.Selector
	id                string
	player            *combat.Combatant
	enemies           []*combat.Combatant
	defeated          []*combat.Combatant
	location          *world.Location
	boss              bool
	phase             Phase
	turn              int
	currentEnemyIndex int
	enemiesToAct      int
	pendingItem       Item
	selecting         bool
	awaiting          uint64
	completed         int
	sustained         map[effect.Kind]string
	messages          []string
	loot              *loot.Result
	startedAt         time.Time
	endedAt           time.Time
}

// New creates an idle Battle in the Setup phase.
//
// Precondition: deps.Resolver, deps.Selector, deps.Loot and deps.Sequencer must be non-nil.
func New(deps Deps) *Battle {
	deps.Logger = observability.OrNop(deps.Logger)
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Battle{
		resolver:        deps.Resolver,
		defaultSelector: deps.Selector,
		lootGen:         deps.Loot,
		rewards:         deps.Rewards,
		seq:             deps.Sequencer,
		onEnd:           deps.OnEnd,
		now:             deps.Now,
		baseLogger:      deps.Logger,
		logger:          deps.Logger,
		selector:        deps.Selector,
		sustained:       make(map[effect.Kind]string),
	}
}

// Start discards any previous battle state and begins a new battle with the
// player to move.
//
// Postcondition: on success Phase() == PlayerTurn unless the player is stunned.
// Returns ErrNoEnemies, leaving the previous state untouched, when s has no
// living player or no living enemy.
func (b *Battle) Start(s Encounter) error {
	enemies := combat.Living(s.Enemies)
	if s.Player == nil || s.Player.IsDefeated() || len(enemies) == 0 {
		b.baseLogger.Error("battle setup aborted",
			zap.Bool("has_player", s.Player != nil),
			zap.Int("living_enemies", len(enemies)),
		)
		return ErrNoEnemies
	}

	b.seq.Reset()
	b.clear()
	b.id = s.ID
	if b.id == "" {
		b.id = uuid.NewString()
	}
	if s.Selector != nil {
		b.selector = s.Selector
	}
	b.player = s.Player
	b.enemies = enemies
	b.location = s.Location
	b.logger = observability.ForBattle(b.baseLogger, b.id, b.locationID())
	b.boss = s.Boss
	b.player.Effects.Clear()
	names := make([]string, 0, len(enemies))
	for _, e := range enemies {
		e.Effects.Clear()
		if e.Hero {
			b.boss = true
		}
		names = append(names, e.Name)
	}
	b.phase = PlayerTurn
	b.turn = 1
	b.startedAt = b.now()

	b.say("%s faces %s.", b.player.Name, strings.Join(names, ", "))
	b.logger.Info("battle started",
		zap.String("player", b.player.Name),
		zap.Strings("enemies", names),
		zap.Bool("boss", b.boss),
	)
	b.beginPlayerTurn()
	return nil
}

// clear resets every battle-scoped field.
func (b *Battle) clear() {
	b.selector = b.defaultSelector
	b.id = ""
	b.player = nil
	b.enemies = nil
	b.defeated = nil
	b.location = nil
	b.boss = false
	b.phase = Setup
	b.turn = 0
	b.currentEnemyIndex = 0
	b.enemiesToAct = 0
	b.pendingItem = nil
	b.selecting = false
	b.awaiting = 0
	b.completed = 0
	b.sustained = make(map[effect.Kind]string)
	b.messages = nil
	b.loot = nil
	b.startedAt = time.Time{}
	b.endedAt = time.Time{}
}

// Phase returns the current phase.
func (b *Battle) Phase() Phase { return b.phase }

// ID returns the battle ID, or "" before the first Start.
func (b *Battle) ID() string { return b.id }

func (b *Battle) checkCommand() error {
	switch {
	case b.phase.Over():
		return ErrBattleOver
	case b.phase != PlayerTurn:
		return ErrNotPlayerTurn
	case b.awaiting != 0:
		return ErrAnimationPending
	case b.selecting:
		return ErrTargetSelectionActive
	}
	return nil
}

// enemyTarget resolves a living enemy by ID. An empty ID selects the first
// living enemy.
func (b *Battle) enemyTarget(id string) (*combat.Combatant, error) {
	if id == "" {
		if len(b.enemies) == 0 {
			return nil, ErrInvalidTarget
		}
		return b.enemies[0], nil
	}
	for _, e := range b.enemies {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, id)
}

// PlayerAttack strikes the enemy with targetID, or the first living enemy
// when targetID is empty.
//
// Postcondition: on success an attack animation is running; its completion
// hands the turn to the enemies.
func (b *Battle) PlayerAttack(targetID string) error {
	if err := b.checkCommand(); err != nil {
		return err
	}
	target, err := b.enemyTarget(targetID)
	if err != nil {
		return err
	}
	out := b.resolver.ResolveAttack(b.player, target)
	target.TakeDamage(out.Damage)
	if out.Critical {
		b.say("Critical hit! %s strikes %s for %d damage.", b.player.Name, target.Name, out.Damage)
	} else {
		b.say("%s strikes %s for %d damage.", b.player.Name, target.Name, out.Damage)
	}
	b.play(b.seq.StartAttackAnimation(b.player.Name, target.Name, out.Damage, true, animation.BasicAttack))
	b.collectDefeated()
	b.checkEnd()
	return nil
}

// PlayerDefend raises the player's defense by half its base value, at least
// 1, until the end of the round.
func (b *Battle) PlayerDefend() error {
	if err := b.checkCommand(); err != nil {
		return err
	}
	bonus := max(1, b.player.BaseDefense/2)
	b.player.Effects.ApplyDefenseBonus(bonus, defendTurns)
	b.say("%s takes a defensive stance (+%d defense).", b.player.Name, bonus)
	b.play(b.seq.StartGuardAnimation(b.player.Name))
	return nil
}

// PlayerUseItem uses item. A targeted item with an empty targetID enters
// target selection instead; ConfirmTarget or CancelTargetSelection ends it.
//
// Postcondition: returns ErrItemFailed, without consuming the turn, when the
// item has no effect.
func (b *Battle) PlayerUseItem(item Item, targetID string) error {
	if err := b.checkCommand(); err != nil {
		return err
	}
	if item == nil {
		return ErrItemFailed
	}
	if item.Targeted() && targetID == "" {
		b.pendingItem = item
		b.selecting = true
		b.say("Choose a target for %s.", item.Name())
		return nil
	}
	return b.useItem(item, targetID)
}

// ConfirmTarget uses the pending item on the enemy with targetID.
// An unknown or defeated target leaves the selection open.
func (b *Battle) ConfirmTarget(targetID string) error {
	if b.phase.Over() {
		return ErrBattleOver
	}
	if !b.selecting {
		return ErrNoTargetSelection
	}
	if targetID == "" {
		return ErrInvalidTarget
	}
	if _, err := b.enemyTarget(targetID); err != nil {
		return err
	}
	item := b.pendingItem
	b.pendingItem = nil
	b.selecting = false
	return b.useItem(item, targetID)
}

// CancelTargetSelection drops the pending item. The player keeps the turn.
func (b *Battle) CancelTargetSelection() error {
	if b.phase.Over() {
		return ErrBattleOver
	}
	if !b.selecting {
		return ErrNoTargetSelection
	}
	b.say("%s puts %s away.", b.player.Name, b.pendingItem.Name())
	b.pendingItem = nil
	b.selecting = false
	return nil
}

func (b *Battle) useItem(item Item, targetID string) error {
	var (
		targets    []*combat.Combatant
		targetName string
	)
	if item.Targeted() {
		t, err := b.enemyTarget(targetID)
		if err != nil {
			return err
		}
		targets = []*combat.Combatant{t}
		targetName = t.Name
	} else {
		targets = append(targets, b.enemies...)
	}

	if !item.UseInCombat(b.player, targets) {
		b.logger.Warn("battle: item had no effect",
			zap.String("item", item.ID()),
		)
		b.say("%s has no effect.", item.Name())
		return ErrItemFailed
	}
	if targetName != "" {
		b.say("%s uses %s on %s.", b.player.Name, item.Name(), targetName)
	} else {
		b.say("%s uses %s.", b.player.Name, item.Name())
	}

	kind, sustained := item.Sustains()
	persistent := false
	if v := item.Visual(); v != "" {
		if sustained {
			b.seq.ShowPersistent(v)
			b.sustained[kind] = v
			persistent = true
		} else {
			b.seq.ShowOneShot(v)
		}
	}
	b.play(b.seq.StartItemUseAnimation(b.player.Name, targetName, item.Thrown(), persistent))
	b.collectDefeated()
	b.checkEnd()
	return nil
}

// play records ev as the animation whose completion advances the battle.
func (b *Battle) play(ev animation.Event, forced *animation.Completed) {
	b.awaiting = ev.ID
	if forced != nil {
		b.onCompleted(*forced)
	}
}

// HandleDue feeds a timer message back into the sequencer and advances the
// battle when it completes the awaited animation.
func (b *Battle) HandleDue(d animation.Due) {
	c, ok := b.seq.HandleDue(d)
	if !ok {
		return
	}
	b.onCompleted(c)
}

func (b *Battle) onCompleted(c animation.Completed) {
	b.completed++
	if c.Event.ID != b.awaiting {
		b.logger.Debug("battle: completion does not advance",
			zap.Uint64("id", c.Event.ID),
			zap.Bool("forced", c.Forced),
		)
		return
	}
	b.awaiting = 0
	switch b.phase {
	case PlayerTurn:
		b.beginEnemyTurn()
	case EnemyTurn:
		b.continueEnemyTurn()
	}
}

func (b *Battle) beginPlayerTurn() {
	if b.player.IsStunned() {
		b.say("%s is stunned and loses the turn.", b.player.Name)
		b.beginEnemyTurn()
	}
}

func (b *Battle) beginEnemyTurn() {
	b.phase = EnemyTurn
	b.currentEnemyIndex = 0
	b.enemiesToAct = len(b.enemies)
	b.logger.Debug("enemy turn",
		zap.Int("turn", b.turn),
		zap.Int("enemies", b.enemiesToAct),
	)
	b.continueEnemyTurn()
}

// continueEnemyTurn lets the next enemy act. Stunned enemies are skipped
// without an animation. When every enemy has had its turn the round ends.
func (b *Battle) continueEnemyTurn() {
	for b.enemiesToAct > 0 && !b.phase.Over() {
		enemy := b.nextActiveEnemy()
		if enemy == nil {
			break
		}
		b.enemiesToAct--
		if enemy.IsStunned() {
			b.say("%s is stunned and cannot act.", enemy.Name)
			continue
		}
		if b.enemyAct(enemy) {
			return
		}
	}
	if !b.phase.Over() {
		b.endRound()
	}
}

// nextActiveEnemy returns the enemy at the round-robin cursor and advances
// it modulo the living count.
func (b *Battle) nextActiveEnemy() *combat.Combatant {
	if len(b.enemies) == 0 {
		return nil
	}
	idx := b.currentEnemyIndex % len(b.enemies)
	b.currentEnemyIndex = (idx + 1) % len(b.enemies)
	return b.enemies[idx]
}

// enemyAct resolves one enemy action. Returns true when an animation was started.
func (b *Battle) enemyAct(enemy *combat.Combatant) bool {
	target := b.selector.SelectAttackTarget(enemy, []*combat.Combatant{b.player})
	if target == nil {
		return false
	}
	var (
		out  combat.Outcome
		kind = animation.BasicAttack
	)
	if b.selector.ShouldUseSpecialAbility(enemy) {
		name, area := b.selector.ChooseAbilityDescriptor(enemy)
		out = b.resolver.ResolveSpecial(enemy, target, name, area)
		kind = animation.SpecialAbility
		b.say("%s uses %s on %s for %d damage.", enemy.Name, name, target.Name, out.Damage)
	} else {
		out = b.resolver.ResolveAttack(enemy, target)
		if out.Critical {
			b.say("Critical hit! %s strikes %s for %d damage.", enemy.Name, target.Name, out.Damage)
		} else {
			b.say("%s strikes %s for %d damage.", enemy.Name, target.Name, out.Damage)
		}
	}
	if out.IsZero() {
		return false
	}
	target.TakeDamage(out.Damage)
	b.play(b.seq.StartAttackAnimation(enemy.Name, target.Name, out.Damage, false, kind))
	b.checkEnd()
	return true
}

// endRound ticks every living combatant's effects once and hands the turn
// back to the player.
func (b *Battle) endRound() {
	b.tick(b.player)
	for _, e := range b.enemies {
		b.tick(e)
	}
	b.collectDefeated()
	if b.checkEnd() {
		return
	}
	b.turn++
	b.phase = PlayerTurn
	b.logger.Debug("round complete", zap.Int("turn", b.turn))
	b.beginPlayerTurn()
}

func (b *Battle) tick(c *combat.Combatant) {
	rep := c.Effects.Tick(c)
	if rep.PoisonDamage > 0 {
		b.say("%s takes %d poison damage.", c.Name, rep.PoisonDamage)
	}
	for _, k := range rep.Expired {
		if c == b.player {
			if v, ok := b.sustained[k]; ok {
				b.seq.ClearPersistent(v)
				delete(b.sustained, k)
				b.restoreSustained()
			}
		}
		b.say("%s is no longer affected by %s.", c.Name, k)
	}
}

// restoreSustained shows a persistent visual whose effect is still running
// when the overlay no longer holds one. The overlay keeps two slots, so a
// third visual can push an older glow out while its effect lasts.
func (b *Battle) restoreSustained() {
	if len(b.sustained) == 0 {
		return
	}
	ov := b.seq.Overlay()
	if (ov.Current != nil && ov.Current.Persistent) || ov.Suspended != nil {
		return
	}
	kinds := make([]effect.Kind, 0, len(b.sustained))
	for k := range b.sustained {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	b.seq.ShowPersistent(b.sustained[kinds[0]])
}

// collectDefeated removes defeated enemies from the rotation immediately.
func (b *Battle) collectDefeated() {
	living := make([]*combat.Combatant, 0, len(b.enemies))
	for _, e := range b.enemies {
		if e.IsDefeated() {
			b.defeated = append(b.defeated, e)
			b.say("%s is defeated.", e.Name)
			continue
		}
		living = append(living, e)
	}
	b.enemies = living
	if len(b.enemies) == 0 {
		b.currentEnemyIndex = 0
		return
	}
	b.currentEnemyIndex %= len(b.enemies)
}

// checkEnd finishes the battle when either side is defeated. The player's
// defeat takes precedence.
func (b *Battle) checkEnd() bool {
	switch {
	case b.phase.Over():
		return true
	case b.player.IsDefeated():
		b.finish(false)
		return true
	case len(b.enemies) == 0:
		b.finish(true)
		return true
	}
	return false
}

// finish enters a terminal phase, rolls and applies loot on a win, and clears
// the battle-scoped transient state.
func (b *Battle) finish(won bool) {
	b.phase = Lost
	if won {
		b.phase = Won
	}
	b.endedAt = b.now()
	b.pendingItem = nil
	b.selecting = false
	b.awaiting = 0
	if forced := b.seq.ForceComplete(); forced != nil {
		b.onCompleted(*forced)
	}
	b.seq.Reset()
	b.sustained = make(map[effect.Kind]string)
	b.player.Effects.Clear()
	for _, e := range b.enemies {
		e.Effects.Clear()
	}
	for _, e := range b.defeated {
		e.Effects.Clear()
	}

	if won {
		res := b.lootGen.Generate(b.lootRequest())
		b.loot = &res
		applied := loot.Apply(res, b.rewards, b.logger)
		b.say("Victory! %s gains %d gold and %d materials.", b.player.Name, res.Gold, res.TotalQuantity())
		b.logger.Info("battle won",
			zap.Int("turns", b.turn),
			zap.Int("gold", res.Gold),
			zap.Int("item_stacks", len(res.Items)),
			zap.Int("applied", applied),
		)
	} else {
		b.say("%s has fallen.", b.player.Name)
		b.logger.Info("battle lost", zap.Int("turns", b.turn))
	}
	if b.onEnd != nil {
		res, _ := b.Result()
		b.onEnd(res)
	}
}

func (b *Battle) lootRequest() loot.Request {
	if b.location == nil {
		return loot.Request{Location: loot.Village, HeroDefeated: b.boss}
	}
	return b.location.LootRequest(b.boss)
}

func (b *Battle) locationID() string {
	if b.location == nil {
		return ""
	}
	return b.location.ID
}

func (b *Battle) say(format string, args ...any) {
	b.messages = append(b.messages, fmt.Sprintf(format, args...))
	if n := len(b.messages); n > maxMessages {
		b.messages = append([]string(nil), b.messages[n-maxMessages:]...)
	}
}
