package queue

import (
	"context"
	"database/sql"
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

const entryColumns = `id, kind, target_id, local_path, status, retry_count, max_retries,
	last_error, created_at, next_retry_at`

func (r *SQLiteRepository) Insert(ctx context.Context, e *models.QueueEntry) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO upload_queue (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.TargetID, dbx.NullString(e.LocalPath), e.Status, e.RetryCount, e.MaxRetries,
		dbx.NullString(e.LastError), dbx.Nanos(e.CreatedAt), dbx.Nanos(e.NextRetryAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e *models.QueueEntry) error {
	res, err := r.db.ExecContext(ctx, `UPDATE upload_queue SET
		local_path = ?, status = ?, retry_count = ?, max_retries = ?, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		dbx.NullString(e.LocalPath), e.Status, e.RetryCount, e.MaxRetries,
		dbx.NullString(e.LastError), dbx.Nanos(e.NextRetryAt), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update queue entry: %w", err)
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

func scanEntry(s interface{ Scan(...any) error }) (*models.QueueEntry, error) {
	var (
		e                  models.QueueEntry
		localPath, lastErr sql.NullString
		created, next      int64
	)

	if err := s.Scan(&e.ID, &e.Kind, &e.TargetID, &localPath, &e.Status, &e.RetryCount, &e.MaxRetries,
		&lastErr, &created, &next); err != nil {
		return nil, err
	}
	e.LocalPath = localPath.String
	e.LastError = lastErr.String
	e.CreatedAt = dbx.FromNanos(created)
	e.NextRetryAt = dbx.FromNanos(next)
	return &e, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, where string, args ...any) (*models.QueueEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM upload_queue WHERE `+where, args...)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.QueueEntry, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) FindActive(ctx context.Context, kind models.QueueKind, targetID string) (*models.QueueEntry, error) {
	return r.getOne(ctx, `kind = ? AND target_id = ? AND status IN ('pending', 'uploading') ORDER BY created_at LIMIT 1`, kind, targetID)
}

func (r *SQLiteRepository) ListDue(ctx context.Context, now time.Time) ([]models.QueueEntry, error) {
	return r.list(ctx, `status = 'pending' AND next_retry_at <= ?`, dbx.Nanos(now))
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, status models.QueueStatus) ([]models.QueueEntry, error) {
	return r.list(ctx, `status = ?`, status)
}

func (r *SQLiteRepository) list(ctx context.Context, where string, args ...any) ([]models.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM upload_queue WHERE `+where+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select queue entries: %w", err)
	}
	defer rows.Close()

	var result []models.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue entries: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ResetInFlight(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE upload_queue SET status = 'pending' WHERE status = 'uploading'`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset in-flight entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Counts(ctx context.Context) (models.QueueCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM upload_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue entries: %w", err)
	}
	defer rows.Close()

	counts := models.QueueCounts{}
	for rows.Next() {
		var status models.QueueStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan queue count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue counts: %w", err)
	}
	return counts, nil
}
