// Package services implements the library operations of the client: item
// editing, adding and opening PDFs, and saving annotations. Every operation
// commits locally first and reaches the remote side opportunistically,
// falling back to the upload queue.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/cache"
	"github.com/dmitrijs2005/refkeeper/internal/client/filestore"
	"github.com/dmitrijs2005/refkeeper/internal/client/identity"
	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/pdfinfo"
	"github.com/dmitrijs2005/refkeeper/internal/client/queue"
	"github.com/dmitrijs2005/refkeeper/internal/client/retry"
	"github.com/dmitrijs2005/refkeeper/internal/client/storage"
	"github.com/dmitrijs2005/refkeeper/internal/logging"
	"github.com/dmitrijs2005/refkeeper/internal/validation"
)

// Options configure a LibraryService.
type Options struct {
	// RemoteRoot is the file store folder holding one folder per library.
	RemoteRoot string
	Retry      retry.Policy
}

// LibraryService is the entry point for user-facing library operations.
type LibraryService struct {
	store      *storage.Store
	cache      *cache.Cache
	files      filestore.FileStore
	queue      *queue.Processor
	identity   identity.Provider
	pages      pdfinfo.PageCounter
	validator  *validation.Validator
	logger     logging.Logger
	retry      retry.Policy
	remoteRoot string
	now        func() time.Time
}

func NewLibraryService(
	store *storage.Store,
	c *cache.Cache,
	files filestore.FileStore,
	q *queue.Processor,
	id identity.Provider,
	pages pdfinfo.PageCounter,
	logger logging.Logger,
	opts Options,
) *LibraryService {
	if opts.Retry.MaxAttempts == 0 && opts.Retry.BaseDelay == 0 {
		opts.Retry = retry.DefaultPolicy
	}
	return &LibraryService{
		store:      store,
		cache:      c,
		files:      files,
		queue:      q,
		identity:   id,
		pages:      pages,
		validator:  validation.New(),
		logger:     logger.With("module", "library"),
		retry:      opts.Retry,
		remoteRoot: opts.RemoteRoot,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// remote runs one file store call under the transport retry policy.
func (s *LibraryService) remote(ctx context.Context, op func(ctx context.Context) error) error {
	return retry.Do(ctx, s.retry, op)
}

func (s *LibraryService) userID(ctx context.Context) (string, error) {
	id, err := s.identity.UserID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}
	return id, nil
}

// CacheStats reports what the local PDF cache holds.
func (s *LibraryService) CacheStats() (cache.Stats, error) {
	return s.cache.Stats()
}

// RegisterHandlers installs the pdf and annotation handlers on p.
func (s *LibraryService) RegisterHandlers(p *queue.Processor) {
	p.Register(models.QueueKindPDF, queue.HandlerFunc(s.handlePDFEntry))
	p.Register(models.QueueKindAnnotation, queue.HandlerFunc(s.handleAnnotationEntry))
}
