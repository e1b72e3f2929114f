// Package report records the outcome of finished battles.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicate is returned by Store.Save when a report for the same battle
// was already stored.
var ErrDuplicate = errors.New("report: battle already recorded")

// Outcome is how a battle ended.
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
)

// Item is one rewarded material stack.
type Item struct {
	ItemID   string
	Quantity int
	Rarity   string
}

// Report is the persisted summary of one finished battle.
type Report struct {
	ID        string
	BattleID  string
	Player    string
	Location  string
	Boss      bool
	Outcome   Outcome
	Turns     int
	Gold      int
	Items     []Item
	StartedAt time.Time
	EndedAt   time.Time
}

// Validate checks the report before it is stored.
//
// Postcondition: Returns nil iff ID, BattleID and Player are set, Outcome is
// known, counters are not negative, and EndedAt is not before StartedAt.
func (r *Report) Validate() error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if r.BattleID == "" {
		errs = append(errs, errors.New("battle id must not be empty"))
	}
	if r.Player == "" {
		errs = append(errs, errors.New("player must not be empty"))
	}
	if r.Outcome != OutcomeWon && r.Outcome != OutcomeLost {
		errs = append(errs, fmt.Errorf("unknown outcome %q", r.Outcome))
	}
	if r.Turns < 0 || r.Gold < 0 {
		errs = append(errs, errors.New("turns and gold must not be negative"))
	}
	if r.Outcome == OutcomeLost && (r.Gold > 0 || len(r.Items) > 0) {
		errs = append(errs, errors.New("lost battles carry no reward"))
	}
	for i, it := range r.Items {
		if it.ItemID == "" || it.Quantity < 1 {
			errs = append(errs, fmt.Errorf("item %d: id must be set and quantity >= 1", i))
		}
	}
	if r.EndedAt.Before(r.StartedAt) {
		errs = append(errs, errors.New("ended_at must not precede started_at"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("report %q: %w", r.ID, errors.Join(errs...))
	}
	return nil
}

// Store persists battle reports.
type Store interface {
	// Save stores r.
	//
	// Precondition: r.Validate() == nil.
	Save(ctx context.Context, r Report) error
	// ListRecent returns up to limit reports, most recently ended first.
	ListRecent(ctx context.Context, limit int) ([]Report, error)
	// Close releases the store's resources.
	Close() error
}

type nopStore struct{}

// Nop returns a Store that discards every report.
func Nop() Store { return nopStore{} }

func (nopStore) Save(context.Context, Report) error { return nil }
func (nopStore) ListRecent(context.Context, int) ([]Report, error) { return nil, nil }
func (nopStore) Close() error { return nil }
