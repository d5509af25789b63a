package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/storage"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/google/uuid"
)

// CreateItem stores a new item at version 1.
func (s *LibraryService) CreateItem(ctx context.Context, draft models.ItemDraft) (*models.Item, error) {
	if err := s.validator.Struct(draft); err != nil {
		return nil, err
	}
	user, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}

	it := newItem(draft, user, s.now())
	if err := s.store.Items.Insert(ctx, it); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.logger.Debug(ctx, "item created", "item", it.ID, "library", it.LibraryID)
	return it, nil
}

func newItem(draft models.ItemDraft, user string, now time.Time) *models.Item {
	tags := draft.Tags
	if tags == nil {
		tags = []string{}
	}
	authors := draft.Authors
	if authors == nil {
		authors = []models.Author{}
	}
	return &models.Item{
		ID:              uuid.NewString(),
		LibraryID:       draft.LibraryID,
		Type:            draft.Type,
		Title:           draft.Title,
		Year:            draft.Year,
		Venue:           draft.Venue,
		Authors:         authors,
		Tags:            tags,
		Extra:           draft.Extra,
		Version:         1,
		CreatedBy:       user,
		CreatedAt:       now,
		UpdatedAt:       now,
		LocalModifiedAt: now,
	}
}

// UpdateItem applies patch and bumps the version once, however many fields
// changed. Deleted items cannot be updated.
func (s *LibraryService) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (*models.Item, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, err
	}

	var out *models.Item
	err := s.store.Tx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		it, err := r.Items.Get(ctx, id)
		if err != nil {
			return err
		}
		if it.Deleted {
			return fmt.Errorf("item %s is deleted: %w", id, common.ErrNotFound)
		}

		patch.Apply(it)
		s.touch(it)
		if err := r.Items.Update(ctx, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return out, nil
}

// DeleteItem soft-deletes an item. The tombstone keeps syncing, so the
// deletion is a versioned mutation like any other. Deleting a tombstone is a
// no-op.
func (s *LibraryService) DeleteItem(ctx context.Context, id string) (*models.Item, error) {
	var out *models.Item
	err := s.store.Tx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		it, err := r.Items.Get(ctx, id)
		if err != nil {
			return err
		}
		out = it
		if it.Deleted {
			return nil
		}

		it.Deleted = true
		s.touch(it)
		return r.Items.Update(ctx, it)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete item: %w", err)
	}
	return out, nil
}

func (s *LibraryService) touch(it *models.Item) {
	now := s.now()
	it.Version++
	it.UpdatedAt = now
	it.LocalModifiedAt = now
}

func (s *LibraryService) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return s.store.Items.Get(ctx, id)
}

// ListItems returns the live items of a library.
func (s *LibraryService) ListItems(ctx context.Context, libraryID string) ([]models.Item, error) {
	return s.store.Items.List(ctx, libraryID, false)
}

// ListAttachments returns the PDFs bound to an item.
func (s *LibraryService) ListAttachments(ctx context.Context, itemID string) ([]models.Attachment, error) {
	return s.store.Attachments.ListByItem(ctx, itemID)
}
