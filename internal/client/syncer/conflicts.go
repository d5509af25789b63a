package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/storage"
	"github.com/dmitrijs2005/refkeeper/internal/common"
)

// ListConflicts returns the items waiting for a decision.
func (e *Engine) ListConflicts(ctx context.Context) ([]models.Conflict, error) {
	return e.store.Conflicts.List(ctx)
}

// ResolveConflict settles a conflict. Keeping the local copy lifts its
// version above the remote one so the next push wins; keeping the remote
// copy overwrites local fields with the recorded snapshot.
func (e *Engine) ResolveConflict(ctx context.Context, itemID string, resolution models.Resolution) (*models.Item, error) {
	var out *models.Item
	err := e.store.Tx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		c, err := r.Conflicts.Get(ctx, itemID)
		if err != nil {
			return err
		}

		switch resolution {
		case models.ResolutionKeepLocal:
			it, err := r.Items.Get(ctx, itemID)
			if err != nil {
				return err
			}
			now := e.now()
			it.Version = max(it.Version, c.RemoteVersion) + 1
			it.UpdatedAt = now
			it.LocalModifiedAt = now
			if err := r.Items.Update(ctx, it); err != nil {
				return err
			}
			out = it

		case models.ResolutionKeepRemote:
			if c.Remote == nil {
				return fmt.Errorf("no remote copy recorded for item %s, sync again: %w", itemID, common.ErrValidation)
			}
			it := *c.Remote
			it.LocalModifiedAt = time.Time{}
			if err := r.Items.Upsert(ctx, &it); err != nil {
				return err
			}
			out = &it

		default:
			return fmt.Errorf("unknown resolution %q: %w", resolution, common.ErrValidation)
		}

		return r.Conflicts.Delete(ctx, itemID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conflict: %w", err)
	}

	e.logger.Info(ctx, "conflict resolved", "item", itemID, "resolution", resolution, "version", out.Version)
	return out, nil
}
