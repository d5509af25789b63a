// Package queue persists upload queue entries.
package queue

import (
	"context"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
)

// Repository describes storage operations for QueueEntry records.
type Repository interface {
	Insert(ctx context.Context, e *models.QueueEntry) error
	Update(ctx context.Context, e *models.QueueEntry) error
	Get(ctx context.Context, id string) (*models.QueueEntry, error)

	// ListDue returns pending entries whose retry time has passed, oldest first.
	ListDue(ctx context.Context, now time.Time) ([]models.QueueEntry, error)

	// ListByStatus returns entries in status, oldest first.
	ListByStatus(ctx context.Context, status models.QueueStatus) ([]models.QueueEntry, error)

	// FindActive returns the pending or uploading entry for kind and target.
	FindActive(ctx context.Context, kind models.QueueKind, targetID string) (*models.QueueEntry, error)

	// ResetInFlight moves entries left in uploading back to pending.
	ResetInFlight(ctx context.Context) (int64, error)

	Counts(ctx context.Context) (models.QueueCounts, error)
}
