package annotationsets

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

const setColumns = `id, attachment_id, annotations, remote_file_id, remote_revision,
	local_version, remote_version, created_by, created_at, updated_at`

func encodeAnnotations(s *models.AnnotationSet) (string, error) {
	raw, err := json.Marshal(s.Annotations)
	if err != nil {
		return "", fmt.Errorf("failed to encode annotations: %w", err)
	}
	return string(raw), nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, s *models.AnnotationSet) error {
	anns, err := encodeAnnotations(s)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO annotation_sets (`+setColumns+`, is_dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.AttachmentID, anns, dbx.NullString(s.RemoteFileID), dbx.NullString(s.RemoteRevision),
		s.LocalVersion, s.RemoteVersion, s.CreatedBy, dbx.Nanos(s.CreatedAt), dbx.Nanos(s.UpdatedAt),
		s.Dirty(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert annotation set: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s *models.AnnotationSet) error {
	anns, err := encodeAnnotations(s)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE annotation_sets SET
		annotations = ?, remote_file_id = ?, remote_revision = ?,
		local_version = ?, remote_version = ?, is_dirty = ?, updated_at = ?
		WHERE id = ?`,
		anns, dbx.NullString(s.RemoteFileID), dbx.NullString(s.RemoteRevision),
		s.LocalVersion, s.RemoteVersion, s.Dirty(), dbx.Nanos(s.UpdatedAt),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save annotation set: %w", err)
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

func scanSet(sc interface{ Scan(...any) error }) (*models.AnnotationSet, error) {
	var (
		s                    models.AnnotationSet
		anns                 string
		fileID, revision     sql.NullString
		createdAt, updatedAt int64
	)

	if err := sc.Scan(&s.ID, &s.AttachmentID, &anns, &fileID, &revision,
		&s.LocalVersion, &s.RemoteVersion, &s.CreatedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(anns), &s.Annotations); err != nil {
		return nil, fmt.Errorf("failed to decode annotations of set %s: %w", s.ID, err)
	}
	s.RemoteFileID = fileID.String
	s.RemoteRevision = revision.String
	s.CreatedAt = dbx.FromNanos(createdAt)
	s.UpdatedAt = dbx.FromNanos(updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, where string, arg any) (*models.AnnotationSet, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+setColumns+` FROM annotation_sets WHERE `+where, arg)
	s, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation set: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.AnnotationSet, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) GetByAttachment(ctx context.Context, attachmentID string) (*models.AnnotationSet, error) {
	return r.getOne(ctx, `attachment_id = ?`, attachmentID)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.AnnotationSet, error) {
	return r.list(ctx, `is_dirty = 1`)
}

// ListSynced returns clean sets that have a remote sidecar.
func (r *SQLiteRepository) ListSynced(ctx context.Context) ([]models.AnnotationSet, error) {
	return r.list(ctx, `is_dirty = 0 AND remote_file_id IS NOT NULL`)
}

func (r *SQLiteRepository) list(ctx context.Context, where string) ([]models.AnnotationSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+setColumns+` FROM annotation_sets WHERE `+where+` ORDER BY updated_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select annotation sets: %w", err)
	}
	defer rows.Close()

	var result []models.AnnotationSet
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation set: %w", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate annotation sets: %w", err)
	}
	return result, nil
}
