package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/refkeeper/internal/dbx"
	"github.com/dmitrijs2005/refkeeper/internal/server/repositories/items"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Items(db dbx.DBTX) items.Repository
}
