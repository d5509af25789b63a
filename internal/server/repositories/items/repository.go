package items

import (
	"context"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/server/models"
)

type Repository interface {
	// Upsert stores item when it is new or strictly newer than the stored
	// copy; otherwise it returns common.ErrVersionConflict.
	Upsert(ctx context.Context, item *models.Item) error
	Get(ctx context.Context, userID, id string) (*models.Item, error)
	// ChangedSince returns the user's items stored after since, oldest first.
	ChangedSince(ctx context.Context, userID string, since time.Time) ([]*models.Item, error)
}
