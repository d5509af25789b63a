// Package attachments persists PDF attachment records.
package attachments

import (
	"context"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
)

// Repository describes storage operations for Attachment records.
// The checksum of an attachment is written once, by Insert.
type Repository interface {
	Insert(ctx context.Context, a *models.Attachment) error
	Get(ctx context.Context, id string) (*models.Attachment, error)
	FindByChecksum(ctx context.Context, libraryID, checksum string) (*models.Attachment, error)
	ListByItem(ctx context.Context, itemID string) ([]models.Attachment, error)
	SetRemote(ctx context.Context, id string, remote models.RemoteFile) error
}
