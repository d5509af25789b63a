// Package services holds the authority's business logic on top of the
// repositories.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/dbx"
	"github.com/dmitrijs2005/refkeeper/internal/server/models"
	"github.com/dmitrijs2005/refkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/refkeeper/internal/validation"
)

// PushResult reports whether a pushed item was stored. A rejected push
// carries the stored copy.
type PushResult struct {
	Accepted bool
	Current  *models.Item
}

type ItemService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	validator   *validation.Validator
	now         func() time.Time
}

func NewItemService(db *sql.DB, repomanager repomanager.RepositoryManager) *ItemService {
	return &ItemService{
		db:          db,
		repomanager: repomanager,
		validator:   validation.New(),
		now:         time.Now,
	}
}

// Push stores item for userID when its version is newer than the stored one.
// The write and the lookup of the winning copy share one transaction.
func (s *ItemService) Push(ctx context.Context, userID string, item *models.Item) (*PushResult, error) {
	item.UserID = userID
	if err := s.validator.Struct(item); err != nil {
		return nil, err
	}

	result := &PushResult{}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)

		err := repo.Upsert(ctx, item)
		if err == nil {
			result.Accepted = true
			return nil
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return err
		}

		current, err := repo.Get(ctx, userID, item.ID)
		if err != nil {
			return fmt.Errorf("failed to load winning copy: %w", err)
		}
		result.Current = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to push item %s: %w", item.ID, err)
	}
	return result, nil
}

// Changes returns the user's items stored after since together with the
// server time taken before the read.
func (s *ItemService) Changes(ctx context.Context, userID string, since time.Time) ([]*models.Item, time.Time, error) {
	serverTime := s.now().UTC()

	list, err := s.repomanager.Items(s.db).ChangedSince(ctx, userID, since)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to list changes: %w", err)
	}
	return list, serverTime, nil
}
