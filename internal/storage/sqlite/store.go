// Package sqlite stores battle reports in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/cory-johannsen/skirmish/internal/report"
)

//go:embed schema.sql
var schema string

// Store persists battle reports in SQLite. It implements report.Store.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the SQLite file at path and applies the schema.
//
// Precondition: path must be non-empty.
// Postcondition: Returns a ready Store or a non-nil error.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save inserts rep and its items in one transaction.
//
// Postcondition: Returns report.ErrDuplicate when rep.ID or rep.BattleID is already stored.
func (s *Store) Save(ctx context.Context, rep report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rep.Validate(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	boss := 0
	if rep.Boss {
		boss = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO battle_reports (
		   id, battle_id, player, location, boss, outcome, turns, gold, started_at, ended_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.BattleID, rep.Player, rep.Location, boss, string(rep.Outcome),
		rep.Turns, rep.Gold, toMillis(rep.StartedAt), toMillis(rep.EndedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return report.ErrDuplicate
		}
		return fmt.Errorf("insert battle report: %w", err)
	}
	for i, it := range rep.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO battle_report_items (report_id, position, item_id, quantity, rarity)
			 VALUES (?, ?, ?, ?, ?)`,
			rep.ID, i, it.ItemID, it.Quantity, it.Rarity,
		); err != nil {
			return fmt.Errorf("insert battle report item %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit battle report: %w", err)
	}
	return nil
}

// ListRecent returns up to limit reports, newest ended_at first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]report.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 1 {
		return []report.Report{}, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, battle_id, player, location, boss, outcome, turns, gold, started_at, ended_at
		 FROM battle_reports ORDER BY ended_at DESC, id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list battle reports: %w", err)
	}
	reports := make([]report.Report, 0, limit)
	for rows.Next() {
		var (
			rep              report.Report
			boss             int
			outcome          string
			started, stopped int64
		)
		if err := rows.Scan(&rep.ID, &rep.BattleID, &rep.Player, &rep.Location, &boss, &outcome,
			&rep.Turns, &rep.Gold, &started, &stopped); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan battle report: %w", err)
		}
		rep.Boss = boss != 0
		rep.Outcome = report.Outcome(outcome)
		rep.StartedAt = fromMillis(started)
		rep.EndedAt = fromMillis(stopped)
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list battle reports: %w", err)
	}
	_ = rows.Close()

	for i := range reports {
		items, err := s.items(ctx, reports[i].ID)
		if err != nil {
			return nil, err
		}
		reports[i].Items = items
	}
	return reports, nil
}

func (s *Store) items(ctx context.Context, reportID string) ([]report.Item, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT item_id, quantity, rarity FROM battle_report_items
		 WHERE report_id = ? ORDER BY position`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items of report %s: %w", reportID, err)
	}
	defer rows.Close()
	var items []report.Item
	for rows.Next() {
		var it report.Item
		if err := rows.Scan(&it.ItemID, &it.Quantity, &it.Rarity); err != nil {
			return nil, fmt.Errorf("scan report item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ report.Store = (*Store)(nil)
