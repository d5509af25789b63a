// Package annotationsets persists the per-attachment annotation sets.
package annotationsets

import (
	"context"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
)

// Repository describes storage operations for AnnotationSet records.
// The dirty column is derived from the versions on every write.
type Repository interface {
	Insert(ctx context.Context, s *models.AnnotationSet) error
	Save(ctx context.Context, s *models.AnnotationSet) error
	Get(ctx context.Context, id string) (*models.AnnotationSet, error)
	GetByAttachment(ctx context.Context, attachmentID string) (*models.AnnotationSet, error)
	ListDirty(ctx context.Context) ([]models.AnnotationSet, error)
	ListSynced(ctx context.Context) ([]models.AnnotationSet, error)
}
