// Package conflicts persists the sync conflict registry: items whose local
// and remote copies both changed and that wait for a user decision.
package conflicts

import (
	"context"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
)

type Repository interface {
	// Record inserts or refreshes the conflict of an item.
	Record(ctx context.Context, c *models.Conflict) error
	Get(ctx context.Context, itemID string) (*models.Conflict, error)
	List(ctx context.Context) ([]models.Conflict, error)
	Delete(ctx context.Context, itemID string) error
}
