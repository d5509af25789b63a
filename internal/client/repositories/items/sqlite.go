package items

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

const itemColumns = `id, library_id, item_type, title, year, venue, authors, tags, extra,
	version, deleted, created_by, created_at, updated_at, local_modified_at`

type itemRow struct {
	authors, tags, extra []byte
}

func encodeItem(it *models.Item) (itemRow, error) {
	var r itemRow
	var err error

	authors := it.Authors
	if authors == nil {
		authors = []models.Author{}
	}
	if r.authors, err = json.Marshal(authors); err != nil {
		return r, fmt.Errorf("failed to encode authors: %w", err)
	}

	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	if r.tags, err = json.Marshal(tags); err != nil {
		return r, fmt.Errorf("failed to encode tags: %w", err)
	}

	extra := it.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	if r.extra, err = json.Marshal(extra); err != nil {
		return r, fmt.Errorf("failed to encode extra: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, it *models.Item) error {
	row, err := encodeItem(it)
	if err != nil {
		return err
	}

	query := `INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		it.ID, it.LibraryID, it.Type, it.Title, it.Year, it.Venue,
		string(row.authors), string(row.tags), string(row.extra),
		it.Version, it.Deleted, it.CreatedBy,
		dbx.Nanos(it.CreatedAt), dbx.Nanos(it.UpdatedAt), dbx.Nanos(it.LocalModifiedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, it *models.Item) error {
	row, err := encodeItem(it)
	if err != nil {
		return err
	}

	query := `UPDATE items SET
		item_type = ?, title = ?, year = ?, venue = ?, authors = ?, tags = ?, extra = ?,
		version = ?, deleted = ?, updated_at = ?, local_modified_at = ?
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		it.Type, it.Title, it.Year, it.Venue,
		string(row.authors), string(row.tags), string(row.extra),
		it.Version, it.Deleted, dbx.Nanos(it.UpdatedAt), dbx.Nanos(it.LocalModifiedAt),
		it.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, it *models.Item) error {
	row, err := encodeItem(it)
	if err != nil {
		return err
	}

	query := `INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			library_id = excluded.library_id,
			item_type = excluded.item_type,
			title = excluded.title,
			year = excluded.year,
			venue = excluded.venue,
			authors = excluded.authors,
			tags = excluded.tags,
			extra = excluded.extra,
			version = excluded.version,
			deleted = excluded.deleted,
			created_by = excluded.created_by,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			local_modified_at = excluded.local_modified_at`

	_, err = r.db.ExecContext(ctx, query,
		it.ID, it.LibraryID, it.Type, it.Title, it.Year, it.Venue,
		string(row.authors), string(row.tags), string(row.extra),
		it.Version, it.Deleted, it.CreatedBy,
		dbx.Nanos(it.CreatedAt), dbx.Nanos(it.UpdatedAt), dbx.Nanos(it.LocalModifiedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*models.Item, error) {
	var (
		it                         models.Item
		title, venue               sql.NullString
		year                       sql.NullInt64
		authors, tags, extra       string
		created, updated, localMod int64
	)

	if err := s.Scan(&it.ID, &it.LibraryID, &it.Type, &title, &year, &venue,
		&authors, &tags, &extra, &it.Version, &it.Deleted, &it.CreatedBy,
		&created, &updated, &localMod); err != nil {
		return nil, err
	}

	if title.Valid {
		it.Title = &title.String
	}
	if venue.Valid {
		it.Venue = &venue.String
	}
	if year.Valid {
		y := int(year.Int64)
		it.Year = &y
	}
	if err := json.Unmarshal([]byte(authors), &it.Authors); err != nil {
		return nil, fmt.Errorf("failed to decode authors: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(extra), &it.Extra); err != nil {
		return nil, fmt.Errorf("failed to decode extra: %w", err)
	}
	if len(it.Extra) == 0 {
		it.Extra = nil
	}

	it.CreatedAt = dbx.FromNanos(created)
	it.UpdatedAt = dbx.FromNanos(updated)
	it.LocalModifiedAt = dbx.FromNanos(localMod)
	return &it, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

func (r *SQLiteRepository) List(ctx context.Context, libraryID string, includeDeleted bool) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE library_id = ?`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}
	query += ` ORDER BY created_at, id`

	return r.query(ctx, query, libraryID)
}

func (r *SQLiteRepository) ModifiedSince(ctx context.Context, since time.Time) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE local_modified_at > ?
		  AND id NOT IN (SELECT item_id FROM sync_conflicts)
		ORDER BY local_modified_at, id`

	return r.query(ctx, query, dbx.Nanos(since))
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		result = append(result, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return result, nil
}
