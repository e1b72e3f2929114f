package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/report"
	"github.com/cory-johannsen/skirmish/internal/storage/sqlite"
)

func openStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reports.db")
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func wonReport(id string, ended time.Time) report.Report {
	return report.Report{
		ID:        id,
		BattleID:  "battle-" + id,
		Player:    "Aria",
		Location:  "old_forest",
		Boss:      true,
		Outcome:   report.OutcomeWon,
		Turns:     3,
		Gold:      26,
		Items:     []report.Item{{ItemID: "wood", Quantity: 6, Rarity: "common"}, {ItemID: "amber", Quantity: 1, Rarity: "rare"}},
		StartedAt: ended.Add(-30 * time.Second),
		EndedAt:   ended,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	assert.Error(t, err)
}

func TestSaveAndListRecent(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Save(ctx, wonReport("r1", now.Add(-time.Minute))))
	require.NoError(t, store.Save(ctx, wonReport("r2", now)))

	got, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID)
	assert.Equal(t, "r1", got[1].ID)

	first := got[1]
	assert.True(t, first.Boss)
	assert.Equal(t, report.OutcomeWon, first.Outcome)
	assert.Equal(t, 26, first.Gold)
	assert.Equal(t, []report.Item{{ItemID: "wood", Quantity: 6, Rarity: "common"}, {ItemID: "amber", Quantity: 1, Rarity: "rare"}}, first.Items)
	assert.True(t, now.Add(-time.Minute).Equal(first.EndedAt))
	assert.True(t, now.Add(-time.Minute-30*time.Second).Equal(first.StartedAt))
}

func TestListRecentLimit(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, wonReport(id, now.Add(time.Duration(i)*time.Second))))
	}
	got, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)

	none, err := store.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveDuplicateBattle(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	r := wonReport("r1", time.Now())
	require.NoError(t, store.Save(ctx, r))

	dup := wonReport("r2", time.Now())
	dup.BattleID = r.BattleID
	assert.ErrorIs(t, store.Save(ctx, dup), report.ErrDuplicate)

	got, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveRejectsInvalidReport(t *testing.T) {
	store, _ := openStore(t)
	r := wonReport("r1", time.Now())
	r.Outcome = report.OutcomeLost
	assert.ErrorContains(t, store.Save(context.Background(), r), "no reward")
}

func TestReportsSurviveReopen(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, wonReport("r1", time.Now())))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.ListRecent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Items, 2)
}

func TestCancelledContext(t *testing.T) {
	store, _ := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, wonReport("r1", time.Now())), context.Canceled)
	_, err := store.ListRecent(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProperty_LostReportsHaveNoItems(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	n := 0
	rapid.Check(t, func(rt *rapid.T) {
		n++
		turns := rapid.IntRange(0, 50).Draw(rt, "turns")
		r := report.Report{
			ID:        fmt.Sprintf("lost-%d", n),
			Player:    "Aria",
			Outcome:   report.OutcomeLost,
			Turns:     turns,
			StartedAt: time.Now(),
		}
		r.BattleID = r.ID
		r.EndedAt = r.StartedAt
		if err := store.Save(ctx, r); err != nil {
			rt.Fatalf("save: %v", err)
		}
		got, err := store.ListRecent(ctx, 1000)
		if err != nil {
			rt.Fatalf("list: %v", err)
		}
		for _, g := range got {
			if g.ID == r.ID && (g.Turns != turns || len(g.Items) != 0) {
				rt.Fatalf("round trip mismatch: %+v", g)
			}
		}
	})
}
