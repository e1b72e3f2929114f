package battle

import (
	"errors"
	"fmt"
)

// Phase is the battle's position in its turn cycle.
type Phase int

const (
	Setup Phase = iota
	PlayerTurn
	EnemyTurn
	Won
	Lost
)

// String returns a human-readable phase label.
func (p Phase) String() string {
	switch p {
	case Setup:
		return "setup"
	case PlayerTurn:
		return "player_turn"
	case EnemyTurn:
		return "enemy_turn"
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Over reports whether p is terminal.
func (p Phase) Over() bool { return p == Won || p == Lost }

var (
	// ErrNoEnemies is returned by Start when no living enemy or no player is supplied.
	ErrNoEnemies = errors.New("battle: no player or no living enemies")
	// ErrBattleOver is returned for any command after the battle ended.
	ErrBattleOver = errors.New("battle: battle is over")
	// ErrNotPlayerTurn is returned for player commands outside the player's turn.
	ErrNotPlayerTurn = errors.New("battle: not the player's turn")
	// ErrAnimationPending is returned while the previous action is still being presented.
	ErrAnimationPending = errors.New("battle: animation still running")
	// ErrNoTargetSelection is returned by ConfirmTarget and CancelTargetSelection
	// when no targeted item is waiting for a target.
	ErrNoTargetSelection = errors.New("battle: no target selection in progress")
	// ErrInvalidTarget is returned for unknown or defeated targets.
	ErrInvalidTarget = errors.New("battle: invalid target")
	// ErrTargetSelectionActive is returned for actions issued while a target is being chosen.
	ErrTargetSelectionActive = errors.New("battle: target selection in progress")
	// ErrItemFailed is returned when an item had no effect. The turn is not consumed.
	ErrItemFailed = errors.New("battle: item could not be used")
)
