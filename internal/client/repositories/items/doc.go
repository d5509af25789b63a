// Package items provides the client-side persistence layer for bibliographic
// items.
//
// The Repository interface is implemented by SQLiteRepository over a
// dbx.DBTX, so the same code runs against *sql.DB or inside a transaction.
// Deleted items are tombstones: they stay in the table with deleted=1 and
// keep syncing like any other change.
//
// Typical Usage
//
//	repo := items.NewSQLiteRepository(tx)
//	_ = repo.Insert(ctx, item)
//	it, _ := repo.Get(ctx, id)
//	changed, _ := repo.ModifiedSince(ctx, lastSync)
package items
