package items

import (
	"context"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
)

// Repository describes storage operations for Item records.
type Repository interface {
	// Insert stores a new item.
	Insert(ctx context.Context, item *models.Item) error

	// Update overwrites every mutable field of an existing item.
	// It returns common.ErrNotFound when the id is unknown.
	Update(ctx context.Context, item *models.Item) error

	// Upsert inserts or fully replaces an item; used for records pulled from
	// the authority.
	Upsert(ctx context.Context, item *models.Item) error

	// Get returns one item, tombstones included, or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Item, error)

	// List returns the items of a library ordered by creation time.
	List(ctx context.Context, libraryID string, includeDeleted bool) ([]models.Item, error)

	// ModifiedSince returns items changed locally after since, leaving out
	// items with an unresolved sync conflict.
	ModifiedSince(ctx context.Context, since time.Time) ([]models.Item, error)
}
