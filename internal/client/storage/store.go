// Package storage opens the local SQLite store and groups its repositories
// into a unit of work, so a multi-table change commits or rolls back as one.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/refkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/refkeeper/internal/client/repositories/annotationsets"
	"github.com/dmitrijs2005/refkeeper/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/refkeeper/internal/client/repositories/conflicts"
	"github.com/dmitrijs2005/refkeeper/internal/client/repositories/items"
	"github.com/dmitrijs2005/refkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/refkeeper/internal/client/repositories/queue"
	"github.com/dmitrijs2005/refkeeper/internal/dbx"
)

// Repositories bundles every repository bound to one handle, either the
// database itself or an open transaction.
type Repositories struct {
	Items          items.Repository
	Attachments    attachments.Repository
	AnnotationSets annotationsets.Repository
	Queue          queue.Repository
	Conflicts      conflicts.Repository
	State          *metadata.SyncState
}

func NewRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Items:          items.NewSQLiteRepository(db),
		Attachments:    attachments.NewSQLiteRepository(db),
		AnnotationSets: annotationsets.NewSQLiteRepository(db),
		Queue:          queue.NewSQLiteRepository(db),
		Conflicts:      conflicts.NewSQLiteRepository(db),
		State:          metadata.NewSyncState(metadata.NewSQLiteRepository(db)),
	}
}

// Store is the local database. Its embedded repositories run outside any
// transaction; use Tx for changes spanning several records.
//
// The pool holds one connection, so repositories of the Store must not be
// used from inside a Tx callback: use the ones passed to it.
type Store struct {
	*Repositories
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
// Pass dbx.MemoryDSN for a throwaway in-memory store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := dbx.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	return NewStore(db), nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{Repositories: NewRepositories(db), db: db}
}

// Tx runs fn inside one transaction.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewRepositories(tx))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
