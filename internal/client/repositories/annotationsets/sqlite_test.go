package annotationsets

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/dbx"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := dbx.OpenSQLite(ctx, dbx.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(ctx, db))

	_, err = db.Exec(`INSERT INTO items (id, library_id, item_type, created_by, created_at, updated_at) VALUES ('i1', 'lib', 'book', 'u1', 1, 1)`)
	require.NoError(t, err)
	for _, id := range []string{"a1", "a2"} {
		_, err = db.Exec(`INSERT INTO attachments (id, item_id, library_id, filename, mime_type, size, checksum, created_at)
			VALUES (?, 'i1', 'lib', 'x.pdf', 'application/pdf', 1, ?, 1)`, id, "sum-"+id)
		require.NoError(t, err)
	}
	return db
}

func newSet(id, attachmentID string) *models.AnnotationSet {
	return &models.AnnotationSet{
		ID:           id,
		AttachmentID: attachmentID,
		Annotations:  models.Annotations{},
		CreatedBy:    "u1",
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
}

func TestInsertGet_RoundTripsAnnotations(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	s := newSet("s1", "a1")
	s.Annotations = models.Annotations{
		&models.Highlight{
			AnnotationBase: models.AnnotationBase{ID: "h1", Page: 1, CreatedAt: ts, ModifiedAt: ts},
			Rects:          []models.Rect{{X1: 1, Y1: 2, X2: 3, Y2: 4}},
		},
	}
	s.LocalVersion = 1
	require.NoError(t, r.Insert(ctx, s))

	got, err := r.GetByAttachment(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(s, got))
	assert.True(t, got.Dirty())
}

func TestGet_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSave_DerivesDirtyFlag(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	s1 := newSet("s1", "a1")
	s1.LocalVersion = 2
	s1.RemoteVersion = 1
	s2 := newSet("s2", "a2")
	require.NoError(t, r.Insert(ctx, s1))
	require.NoError(t, r.Insert(ctx, s2))

	dirty, err := r.ListDirty(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "s1", dirty[0].ID)

	s1.RemoteVersion = 2
	s1.RemoteFileID = "libraries/lib/annotations/a1.json"
	s1.RemoteRevision = "etag"
	require.NoError(t, r.Save(ctx, s1))

	dirty, err = r.ListDirty(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	synced, err := r.ListSynced(ctx)
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Equal(t, "etag", synced[0].RemoteRevision)
}

func TestSave_Missing(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	assert.ErrorIs(t, r.Save(context.Background(), newSet("ghost", "a1")), common.ErrNotFound)
}

func TestInsert_OneSetPerAttachment(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, newSet("s1", "a1")))
	assert.Error(t, r.Insert(ctx, newSet("s2", "a1")))
}
