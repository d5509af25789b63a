package queue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := dbx.OpenSQLite(ctx, dbx.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(ctx, db))
	return db
}

func entry(id string, created time.Time) *models.QueueEntry {
	return &models.QueueEntry{
		ID:         id,
		Kind:       models.QueueKindPDF,
		TargetID:   "att-" + id,
		LocalPath:  "/cache/" + id + ".pdf",
		Status:     models.QueueStatusPending,
		MaxRetries: models.DefaultMaxRetries,
		CreatedAt:  created,
	}
}

func TestInsertGetUpdate(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	e := entry("e1", t0)
	require.NoError(t, r.Insert(ctx, e))

	got, err := r.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	e.Status = models.QueueStatusFailed
	e.RetryCount = 5
	e.LastError = "remote unavailable"
	e.NextRetryAt = t0.Add(32 * time.Second)
	require.NoError(t, r.Update(ctx, e))

	got, err = r.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = r.Get(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, r.Update(ctx, entry("ghost", t0)), common.ErrNotFound)
}

func TestListDue_OrderAndBackoff(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	late := entry("late", t0.Add(2*time.Second))
	early := entry("early", t0)
	waiting := entry("waiting", t0.Add(time.Second))
	waiting.NextRetryAt = t0.Add(time.Minute)
	done := entry("done", t0)
	done.Status = models.QueueStatusCompleted
	for _, e := range []*models.QueueEntry{late, early, waiting, done} {
		require.NoError(t, r.Insert(ctx, e))
	}

	due, err := r.ListDue(ctx, t0.Add(10*time.Second))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].ID)
	assert.Equal(t, "late", due[1].ID)

	due, err = r.ListDue(ctx, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, due, 3)
}

func TestResetInFlightAndCounts(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a := entry("a", t0)
	a.Status = models.QueueStatusUploading
	b := entry("b", t0)
	c := entry("c", t0)
	c.Status = models.QueueStatusFailed
	for _, e := range []*models.QueueEntry{a, b, c} {
		require.NoError(t, r.Insert(ctx, e))
	}

	n, err := r.ResetInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	counts, err := r.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.QueueCounts{models.QueueStatusPending: 2, models.QueueStatusFailed: 1}, counts)

	failed, err := r.ListByStatus(ctx, models.QueueStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "c", failed[0].ID)
}

func TestFindActive(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	e := entry("e1", t0)
	require.NoError(t, r.Insert(ctx, e))

	got, err := r.FindActive(ctx, models.QueueKindPDF, "att-e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)

	e.Status = models.QueueStatusCompleted
	require.NoError(t, r.Update(ctx, e))
	_, err = r.FindActive(ctx, models.QueueKindPDF, "att-e1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
