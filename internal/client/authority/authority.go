// Package authority is the client of the remote authority: the backend that
// owns canonical item metadata across users.
package authority

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/common"
)

// Authority is the capability set consumed by the sync engine.
type Authority interface {
	// GetChanges returns items the authority stored after since, together
	// with the authority's clock at the time of the read. That time, not the
	// local clock, is the since of the next call.
	GetChanges(ctx context.Context, since time.Time) ([]models.Item, time.Time, error)
	// PushItem stores item. It fails with *VersionConflictError when the
	// authority already holds the same or a newer version.
	PushItem(ctx context.Context, item *models.Item) error
	IsOnline(ctx context.Context) bool
}

// VersionConflictError is a rejected push. Current is the authority's copy
// when it sent one.
type VersionConflictError struct {
	ItemID  string
	Current *models.Item
}

func (e *VersionConflictError) Error() string {
	if e.Current != nil {
		return fmt.Sprintf("item %s: remote is at version %d", e.ItemID, e.Current.Version)
	}
	return fmt.Sprintf("item %s: remote version advanced", e.ItemID)
}

func (e *VersionConflictError) Unwrap() error { return common.ErrVersionConflict }
