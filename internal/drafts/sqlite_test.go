package drafts

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mekod/ledger/internal/common"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MigratesSchema(t *testing.T) {
	s := openTestStore(t)

	var n int
	err := s.DB.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='drafts'`).Scan(&n)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
}

func TestSave_AssignsIDAndTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	d := &Draft{Title: "Morning pages", Content: "some words"}
	require.NoError(t, s.Drafts.Save(ctx, d))
	require.NotEmpty(t, d.ID)
	require.False(t, d.SavedAt.IsZero())

	got, err := s.Drafts.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "Morning pages", got.Title)
	require.Equal(t, "some words", got.Content)
}

func TestSave_UpsertsByID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	d := &Draft{Title: "v1", Content: "a"}
	require.NoError(t, s.Drafts.Save(ctx, d))

	d.Title = "v2"
	d.Content = "ab"
	d.SavedAt = time.Now().UTC().Add(time.Minute)
	require.NoError(t, s.Drafts.Save(ctx, d))

	all, err := s.Drafts.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "v2", all[0].Title)
}

func TestList_MostRecentFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"oldest", "middle", "newest"} {
		d := &Draft{Title: title, SavedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.Drafts.Save(ctx, d))
	}

	all, err := s.Drafts.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "newest", all[0].Title)
	require.Equal(t, "oldest", all[2].Title)
}

func TestGetAndDelete_Missing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Drafts.Get(ctx, "no-such-id")
	require.ErrorIs(t, err, common.ErrNotFound)
	require.ErrorIs(t, s.Drafts.Delete(ctx, "no-such-id"), common.ErrNotFound)
}

func TestDelete_RemovesDraft(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	d := &Draft{Title: "done with this"}
	require.NoError(t, s.Drafts.Save(ctx, d))
	require.NoError(t, s.Drafts.Delete(ctx, d.ID))

	all, err := s.Drafts.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}
