package attachments

import (
	"context"
	"database/sql"
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

const attachmentColumns = `id, item_id, library_id, filename, mime_type, size, checksum, page_count,
	remote_file_id, remote_parent_id, web_link, revision_tag, created_at`

func (r *SQLiteRepository) Insert(ctx context.Context, a *models.Attachment) error {
	var remote models.RemoteFile
	if a.Remote != nil {
		remote = *a.Remote
	}

	query := `INSERT INTO attachments (` + attachmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.ItemID, a.LibraryID, a.Filename, a.MimeType, a.Size, a.Checksum, a.PageCount,
		dbx.NullString(remote.FileID), dbx.NullString(remote.ParentID),
		dbx.NullString(remote.WebLink), dbx.NullString(remote.Revision),
		dbx.Nanos(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

func scanAttachment(s interface{ Scan(...any) error }) (*models.Attachment, error) {
	var (
		a                                 models.Attachment
		fileID, parentID, webLink, revTag sql.NullString
		created                           int64
	)

	if err := s.Scan(&a.ID, &a.ItemID, &a.LibraryID, &a.Filename, &a.MimeType, &a.Size, &a.Checksum,
		&a.PageCount, &fileID, &parentID, &webLink, &revTag, &created); err != nil {
		return nil, err
	}

	if fileID.Valid {
		a.Remote = &models.RemoteFile{
			FileID:   fileID.String,
			ParentID: parentID.String,
			WebLink:  webLink.String,
			Revision: revTag.String,
		}
	}
	a.CreatedAt = dbx.FromNanos(created)
	return &a, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, where string, args ...any) (*models.Attachment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE `+where, args...)
	a, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Attachment, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) FindByChecksum(ctx context.Context, libraryID, checksum string) (*models.Attachment, error) {
	return r.getOne(ctx, `library_id = ? AND checksum = ?`, libraryID, checksum)
}

func (r *SQLiteRepository) ListByItem(ctx context.Context, itemID string) ([]models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE item_id = ? ORDER BY created_at, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachments: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) SetRemote(ctx context.Context, id string, remote models.RemoteFile) error {
	res, err := r.db.ExecContext(ctx, `UPDATE attachments
		SET remote_file_id = ?, remote_parent_id = ?, web_link = ?, revision_tag = ?
		WHERE id = ?`,
		dbx.NullString(remote.FileID), dbx.NullString(remote.ParentID),
		dbx.NullString(remote.WebLink), dbx.NullString(remote.Revision), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set attachment remote: %w", err)
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
