package conflicts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record keeps an earlier remote snapshot when the new conflict carries none.
func (r *SQLiteRepository) Record(ctx context.Context, c *models.Conflict) error {
	var snapshot sql.NullString
	if c.Remote != nil {
		raw, err := json.Marshal(c.Remote)
		if err != nil {
			return fmt.Errorf("failed to encode remote snapshot: %w", err)
		}
		snapshot = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_conflicts (item_id, local_version, remote_version, remote_snapshot, source, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			local_version = excluded.local_version,
			remote_version = MAX(sync_conflicts.remote_version, excluded.remote_version),
			remote_snapshot = COALESCE(excluded.remote_snapshot, sync_conflicts.remote_snapshot),
			source = excluded.source,
			detected_at = excluded.detected_at`,
		c.ItemID, c.LocalVersion, c.RemoteVersion, snapshot, c.Source, dbx.Nanos(c.DetectedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record conflict: %w", err)
	}
	return nil
}

const conflictColumns = `item_id, local_version, remote_version, remote_snapshot, source, detected_at`

func scanConflict(s interface{ Scan(...any) error }) (*models.Conflict, error) {
	var (
		c        models.Conflict
		snapshot sql.NullString
		detected int64
	)
	if err := s.Scan(&c.ItemID, &c.LocalVersion, &c.RemoteVersion, &snapshot, &c.Source, &detected); err != nil {
		return nil, err
	}
	if snapshot.Valid {
		var remote models.Item
		if err := json.Unmarshal([]byte(snapshot.String), &remote); err != nil {
			return nil, fmt.Errorf("failed to decode remote snapshot: %w", err)
		}
		c.Remote = &remote
	}
	c.DetectedAt = dbx.FromNanos(detected)
	return &c, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, itemID string) (*models.Conflict, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts WHERE item_id = ?`, itemID)
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Conflict, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts ORDER BY detected_at, item_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select conflicts: %w", err)
	}
	defer rows.Close()

	var result []models.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conflicts: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, itemID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_conflicts WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("failed to delete conflict: %w", err)
	}
	return nil
}
