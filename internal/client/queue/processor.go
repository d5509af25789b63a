// Package queue drives the durable upload queue: deferred PDF uploads,
// sidecar uploads and item pushes that could not reach the remote side when
// they were first attempted.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	queuerepo "github.com/dmitrijs2005/refkeeper/internal/client/repositories/queue"
	"github.com/dmitrijs2005/refkeeper/internal/client/retry"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Handler performs the remote side of one entry.
type Handler interface {
	Handle(ctx context.Context, e *models.QueueEntry) error
}

type HandlerFunc func(ctx context.Context, e *models.QueueEntry) error

func (f HandlerFunc) Handle(ctx context.Context, e *models.QueueEntry) error { return f(ctx, e) }

// Options tune a Processor. Zero values pick the defaults.
type Options struct {
	MaxRetries int
	// RatePerSecond caps how many entries are dispatched per second.
	RatePerSecond float64
	Burst         int
}

// DrainResult counts what one Drain did.
type DrainResult struct {
	Completed int
	Retried   int
	Failed    int
	// Errors counts entries whose state could not be persisted.
	Errors int
}

type Processor struct {
	repo       queuerepo.Repository
	logger     logging.Logger
	limiter    *rate.Limiter
	maxRetries int

	mu       sync.RWMutex
	handlers map[models.QueueKind]Handler

	drainMu sync.Mutex
	now     func() time.Time
}

func NewProcessor(repo queuerepo.Repository, logger logging.Logger, opts Options) *Processor {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = models.DefaultMaxRetries
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	return &Processor{
		repo:       repo,
		logger:     logger.With("module", "queue"),
		limiter:    rate.NewLimiter(limit, opts.Burst),
		maxRetries: opts.MaxRetries,
		handlers:   make(map[models.QueueKind]Handler),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register sets the handler of kind, replacing any previous one.
func (p *Processor) Register(kind models.QueueKind, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
}

func (p *Processor) handler(kind models.QueueKind) Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handlers[kind]
}

// Enqueue records deferred work for target. An entry that is already pending
// or uploading for the same kind and target is returned instead of a new one.
func (p *Processor) Enqueue(ctx context.Context, kind models.QueueKind, targetID, localPath string) (*models.QueueEntry, error) {
	return p.EnqueueAfter(ctx, kind, targetID, localPath, 0)
}

// EnqueueAfter is Enqueue for work that must not run before delay has
// passed, such as a remote call that has just failed.
func (p *Processor) EnqueueAfter(ctx context.Context, kind models.QueueKind, targetID, localPath string, delay time.Duration) (*models.QueueEntry, error) {
	existing, err := p.repo.FindActive(ctx, kind, targetID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	e := &models.QueueEntry{
		ID:         uuid.NewString(),
		Kind:       kind,
		TargetID:   targetID,
		LocalPath:  localPath,
		Status:     models.QueueStatusPending,
		MaxRetries: p.maxRetries,
		CreatedAt:  p.now(),
	}
	if delay > 0 {
		e.NextRetryAt = e.CreatedAt.Add(delay)
	}
	if err := p.repo.Insert(ctx, e); err != nil {
		return nil, err
	}

	p.logger.Debug(ctx, "queued", "kind", kind, "target", targetID, "entry", e.ID)
	return e, nil
}

// Drain runs every due pending entry, oldest first. Entries fail
// independently; Drain returns an error only when it could not list the
// queue or ctx ended, in which case the interrupted entry stays pending.
func (p *Processor) Drain(ctx context.Context) (DrainResult, error) {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	var res DrainResult

	if n, err := p.repo.ResetInFlight(ctx); err != nil {
		return res, fmt.Errorf("failed to reset in-flight entries: %w", err)
	} else if n > 0 {
		p.logger.Warn(ctx, "recovered interrupted entries", "count", n)
	}

	due, err := p.repo.ListDue(ctx, p.now())
	if err != nil {
		return res, fmt.Errorf("failed to list due entries: %w", err)
	}

	for i := range due {
		if err := p.limiter.Wait(ctx); err != nil {
			return res, ctx.Err()
		}
		if err := p.process(ctx, &due[i], &res); err != nil {
			return res, err
		}
	}

	if len(due) > 0 {
		p.logger.Info(ctx, "queue drained", "due", len(due), "completed", res.Completed,
			"retried", res.Retried, "failed", res.Failed)
	}
	return res, nil
}

// process runs one entry. It returns an error only on cancellation.
func (p *Processor) process(ctx context.Context, e *models.QueueEntry, res *DrainResult) error {
	// state changes must land even when ctx is cancelled mid-entry
	persistCtx := context.WithoutCancel(ctx)

	e.Status = models.QueueStatusUploading
	if err := p.repo.Update(persistCtx, e); err != nil {
		p.logger.Error(ctx, "failed to mark entry uploading", "entry", e.ID, "error", err)
		res.Errors++
		return nil
	}

	herr := p.run(ctx, e)

	switch {
	case herr == nil:
		e.Status = models.QueueStatusCompleted
		e.LastError = ""
		res.Completed++
	case ctx.Err() != nil:
		e.Status = models.QueueStatusPending
		if err := p.repo.Update(persistCtx, e); err != nil {
			p.logger.Error(ctx, "failed to return entry to pending", "entry", e.ID, "error", err)
		}
		return ctx.Err()
	default:
		e.RetryCount++
		e.LastError = herr.Error()
		if e.RetryCount >= e.MaxRetries || permanent(herr) {
			e.Status = models.QueueStatusFailed
			res.Failed++
			p.logger.Error(ctx, "entry failed permanently", "entry", e.ID, "kind", e.Kind,
				"target", e.TargetID, "retries", e.RetryCount, "error", herr)
		} else {
			e.Status = models.QueueStatusPending
			e.NextRetryAt = p.now().Add(retry.Schedule(e.RetryCount))
			res.Retried++
			p.logger.Warn(ctx, "entry will be retried", "entry", e.ID, "kind", e.Kind,
				"retry", e.RetryCount, "at", e.NextRetryAt, "error", herr)
		}
	}

	if err := p.repo.Update(persistCtx, e); err != nil {
		p.logger.Error(ctx, "failed to persist entry", "entry", e.ID, "error", err)
		res.Errors++
	}
	return nil
}

// permanent reports handler errors that no later drain can fix. Expired
// credentials and handler timeouts are left to the retry budget.
func permanent(err error) bool {
	if errors.Is(err, common.ErrUnauthorized) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return retry.IsPermanent(err)
}

func (p *Processor) run(ctx context.Context, e *models.QueueEntry) (err error) {
	h := p.handler(e.Kind)
	if h == nil {
		return fmt.Errorf("no handler for %s entries", e.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, e)
}

// Retry puts a failed entry back in line with a fresh retry budget.
func (p *Processor) Retry(ctx context.Context, id string) (*models.QueueEntry, error) {
	e, err := p.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != models.QueueStatusFailed {
		return nil, fmt.Errorf("entry %s is %s, not failed: %w", id, e.Status, common.ErrValidation)
	}

	e.Status = models.QueueStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = time.Time{}
	if err := p.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *Processor) ListFailed(ctx context.Context) ([]models.QueueEntry, error) {
	return p.repo.ListByStatus(ctx, models.QueueStatusFailed)
}

func (p *Processor) ListPending(ctx context.Context) ([]models.QueueEntry, error) {
	return p.repo.ListByStatus(ctx, models.QueueStatusPending)
}

func (p *Processor) Counts(ctx context.Context) (models.QueueCounts, error) {
	return p.repo.Counts(ctx)
}
