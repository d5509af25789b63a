// Package items provides the PostgreSQL-backed store of canonical items.
package items

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/dbx"
	"github.com/dmitrijs2005/refkeeper/internal/server/models"
)

// PostgresRepository implements item storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `user_id, id, library_id, item_type, title, year, venue, authors, tags, extra,
	version, deleted, created_by, created_at, updated_at, stored_at`

func (r *PostgresRepository) Upsert(ctx context.Context, item *models.Item) error {
	authors, tags, extra, err := encodeLists(item)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO items (user_id, id, library_id, item_type, title, year, venue, authors, tags, extra,
			version, deleted, created_by, created_at, updated_at, stored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, clock_timestamp())
		ON CONFLICT (user_id, id)
		DO UPDATE SET
			library_id = EXCLUDED.library_id,
			item_type = EXCLUDED.item_type,
			title = EXCLUDED.title,
			year = EXCLUDED.year,
			venue = EXCLUDED.venue,
			authors = EXCLUDED.authors,
			tags = EXCLUDED.tags,
			extra = EXCLUDED.extra,
			version = EXCLUDED.version,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at,
			stored_at = EXCLUDED.stored_at
			WHERE items.version < EXCLUDED.version;
	`
	res, err := r.db.ExecContext(ctx, query,
		item.UserID, item.ID, item.LibraryID, item.Type, item.Title, item.Year, item.Venue,
		authors, tags, extra, item.Version, item.Deleted, item.CreatedBy, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE user_id=$1 AND id=$2`

	it, err := scanItem(r.db.QueryRowContext(ctx, query, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

func (r *PostgresRepository) ChangedSince(ctx context.Context, userID string, since time.Time) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE user_id=$1 AND stored_at>$2 ORDER BY stored_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*models.Item, error) {
	var (
		it                   models.Item
		authors, tags, extra []byte
	)
	if err := s.Scan(
		&it.UserID, &it.ID, &it.LibraryID, &it.Type, &it.Title, &it.Year, &it.Venue,
		&authors, &tags, &extra,
		&it.Version, &it.Deleted, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt, &it.StoredAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(authors, &it.Authors); err != nil {
		return nil, fmt.Errorf("failed to decode authors of %s: %w", it.ID, err)
	}
	if err := json.Unmarshal(tags, &it.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of %s: %w", it.ID, err)
	}
	if err := json.Unmarshal(extra, &it.Extra); err != nil {
		return nil, fmt.Errorf("failed to decode extra of %s: %w", it.ID, err)
	}
	return &it, nil
}

func encodeLists(item *models.Item) (authors, tags, extra string, err error) {
	a := item.Authors
	if a == nil {
		a = []models.Author{}
	}
	t := item.Tags
	if t == nil {
		t = []string{}
	}
	e := item.Extra
	if e == nil {
		e = map[string]string{}
	}

	ab, err := json.Marshal(a)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode authors: %w", err)
	}
	tb, err := json.Marshal(t)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode tags: %w", err)
	}
	eb, err := json.Marshal(e)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode extra: %w", err)
	}
	return string(ab), string(tb), string(eb), nil
}
