package dbx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_MemoryEnforcesForeignKeys(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE parent (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE child (id TEXT PRIMARY KEY, parent_id TEXT NOT NULL REFERENCES parent(id))`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO child (id, parent_id) VALUES ('c1', 'missing')`)
	require.Error(t, err, "foreign keys must be enforced")
}

func TestOpenSQLite_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/local.db"

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestNanos_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)

	assert.Equal(t, ts, FromNanos(Nanos(ts)))
	assert.Equal(t, int64(0), Nanos(time.Time{}))
	assert.True(t, FromNanos(0).IsZero())
}

func TestNullString(t *testing.T) {
	assert.False(t, NullString("").Valid)
	assert.Equal(t, "x", NullString("x").String)
	assert.True(t, NullString("x").Valid)
}
