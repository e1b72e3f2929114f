package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/skirmish/internal/report"
)

// ReportRepository persists battle reports. It implements report.Store.
type ReportRepository struct {
	db    *pgxpool.Pool
	owned *Pool
}

// NewReportRepository creates a ReportRepository backed by the given pool.
// Close does not close db.
//
// Precondition: db must be a valid, open connection pool with the
// battle_reports schema applied.
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

const openHealthTimeout = 5 * time.Second

// OpenReportRepository checks that p reaches a migrated database, then wraps
// it and takes ownership of it: Close closes p.
//
// Postcondition: on error p is left open for the caller to close.
func OpenReportRepository(ctx context.Context, p *Pool) (*ReportRepository, error) {
	if err := p.Health(ctx, openHealthTimeout); err != nil {
		return nil, err
	}
	return &ReportRepository{db: p.DB(), owned: p}, nil
}

// Save inserts r and its items in one transaction.
//
// Precondition: r must pass Validate.
// Postcondition: Returns report.ErrDuplicate when r.ID or r.BattleID is already stored.
func (r *ReportRepository) Save(ctx context.Context, rep report.Report) error {
	if err := rep.Validate(); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO battle_reports
				(id, battle_id, player, location, boss, outcome, turns, gold, started_at, ended_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			rep.ID, rep.BattleID, rep.Player, rep.Location, rep.Boss, string(rep.Outcome),
			rep.Turns, rep.Gold, rep.StartedAt.UTC(), rep.EndedAt.UTC(),
		); err != nil {
			return err
		}
		for i, it := range rep.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO battle_report_items (report_id, position, item_id, quantity, rarity)
				VALUES ($1,$2,$3,$4,$5)`,
				rep.ID, i, it.ItemID, it.Quantity, it.Rarity,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return report.ErrDuplicate
		}
		return fmt.Errorf("inserting battle report: %w", err)
	}
	return nil
}

// ListRecent returns up to limit reports ordered by ended_at, newest first.
//
// Postcondition: Returns an empty slice when limit < 1.
func (r *ReportRepository) ListRecent(ctx context.Context, limit int) ([]report.Report, error) {
	if limit < 1 {
		return []report.Report{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, battle_id, player, location, boss, outcome, turns, gold, started_at, ended_at
		FROM battle_reports ORDER BY ended_at DESC, id ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing battle reports: %w", err)
	}
	defer rows.Close()

	reports := make([]report.Report, 0, limit)
	index := make(map[string]int)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var rep report.Report
		var outcome string
		if err := rows.Scan(
			&rep.ID, &rep.BattleID, &rep.Player, &rep.Location, &rep.Boss, &outcome,
			&rep.Turns, &rep.Gold, &rep.StartedAt, &rep.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning battle report row: %w", err)
		}
		rep.Outcome = report.Outcome(outcome)
		index[rep.ID] = len(reports)
		ids = append(ids, rep.ID)
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing battle reports: %w", err)
	}
	rows.Close()
	if len(ids) == 0 {
		return reports, nil
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT report_id, item_id, quantity, rarity
		FROM battle_report_items WHERE report_id = ANY($1)
		ORDER BY report_id, position`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("listing battle report items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var reportID string
		var it report.Item
		if err := itemRows.Scan(&reportID, &it.ItemID, &it.Quantity, &it.Rarity); err != nil {
			return nil, fmt.Errorf("scanning battle report item row: %w", err)
		}
		i := index[reportID]
		reports[i].Items = append(reports[i].Items, it)
	}
	return reports, itemRows.Err()
}

// Close releases the pool when the repository owns it.
func (r *ReportRepository) Close() error {
	if r.owned != nil {
		r.owned.Close()
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

var _ report.Store = (*ReportRepository)(nil)
