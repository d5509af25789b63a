// Package syncer runs sync passes against the remote authority: pull item
// changes, push local edits, drain the upload queue, then commit the cursor.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/authority"
	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/queue"
	"github.com/dmitrijs2005/refkeeper/internal/client/retry"
	"github.com/dmitrijs2005/refkeeper/internal/client/storage"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/logging"
)

// State is the phase a pass is in.
type State string

const (
	StateIdle       State = "idle"
	StatePulling    State = "pulling"
	StatePushing    State = "pushing"
	StateDraining   State = "draining-queue"
	StateCommitting State = "committing-cursor"
)

// ErrInProgress is returned by Run while another pass is running.
var ErrInProgress = errors.New("sync pass already in progress")

// AnnotationPuller refreshes annotation sets whose remote sidecar changed.
type AnnotationPuller interface {
	PullAnnotations(ctx context.Context) (pulled, failed int, err error)
}

type Options struct {
	Retry retry.Policy
}

type Engine struct {
	store     *storage.Store
	authority authority.Authority
	queue     *queue.Processor
	puller    AnnotationPuller
	logger    logging.Logger
	retry     retry.Policy
	now       func() time.Time

	running sync.Mutex

	stateMu sync.RWMutex
	state   State
}

// NewEngine wires a sync engine and registers the metadata queue handler.
// puller may be nil.
func NewEngine(store *storage.Store, auth authority.Authority, q *queue.Processor, puller AnnotationPuller, logger logging.Logger, opts Options) *Engine {
	if opts.Retry.MaxAttempts == 0 && opts.Retry.BaseDelay == 0 {
		opts.Retry = retry.DefaultPolicy
	}
	e := &Engine{
		store:     store,
		authority: auth,
		queue:     q,
		puller:    puller,
		logger:    logger.With("module", "syncer"),
		retry:     opts.Retry,
		now:       func() time.Time { return time.Now().UTC() },
		state:     StateIdle,
	}
	q.Register(models.QueueKindMetadata, queue.HandlerFunc(e.handleMetadataEntry))
	return e
}

func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// Run performs one pass. Per-item failures are counted in the result and do
// not stop the pass. A failure to read or commit the cursors, or
// cancellation, ends the pass early without moving them, and is returned
// together with the counts gathered so far.
func (e *Engine) Run(ctx context.Context) (models.SyncResult, error) {
	if !e.running.TryLock() {
		return models.SyncResult{}, ErrInProgress
	}
	defer e.running.Unlock()
	defer e.setState(StateIdle)

	var res models.SyncResult
	start := e.now()

	pushSince, err := e.store.State.LastSyncTimestamp(ctx)
	if err != nil {
		res.Errors++
		return res, fmt.Errorf("failed to read sync cursor: %w", err)
	}
	pullSince, err := e.store.State.PullCursor(ctx)
	if err != nil {
		res.Errors++
		return res, fmt.Errorf("failed to read pull cursor: %w", err)
	}

	e.logger.Info(ctx, "sync pass started", "push_since", pushSince, "pull_since", pullSince)

	e.setState(StatePulling)
	pulledTo, err := e.pull(ctx, pullSince, pushSince, &res)
	if err != nil {
		return e.abort(ctx, res, err)
	}

	e.setState(StatePushing)
	if err := e.push(ctx, pushSince, &res); err != nil {
		return e.abort(ctx, res, err)
	}

	e.setState(StateDraining)
	if err := e.drain(ctx, &res); err != nil {
		return e.abort(ctx, res, err)
	}

	e.setState(StateCommitting)
	err = e.store.Tx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		if err := r.State.SetLastSyncTimestamp(ctx, start); err != nil {
			return err
		}
		if pulledTo.IsZero() {
			return nil
		}
		return r.State.SetPullCursor(ctx, pulledTo)
	})
	if err != nil {
		res.Errors++
		return e.abort(ctx, res, fmt.Errorf("failed to commit sync cursor: %w", err))
	}

	e.logger.Info(ctx, "sync pass finished", "pushed", res.Pushed, "pulled", res.Pulled,
		"conflicts", res.Conflicts, "errors", res.Errors, "uploaded", res.Uploaded,
		"annotations_pulled", res.AnnotationsPulled)
	return res, nil
}

func (e *Engine) abort(ctx context.Context, res models.SyncResult, err error) (models.SyncResult, error) {
	e.logger.Error(ctx, "sync pass aborted", "state", e.State(), "error", err)
	return res, err
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeApplied
	outcomeConflict
)

// pull applies remote changes read after since and returns the authority
// time the next pull resumes from. It returns the zero time, keeping the
// pull cursor where it is, when the authority was unreachable or an item
// could not be applied and must be read again. Items fail independently.
// localSince is the push cursor that tells concurrent local edits apart.
func (e *Engine) pull(ctx context.Context, since, localSince time.Time, res *models.SyncResult) (time.Time, error) {
	var (
		remote []models.Item
		at     time.Time
	)
	err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
		var err error
		remote, at, err = e.authority.GetChanges(ctx, since)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return time.Time{}, ctx.Err()
		}
		res.Errors++
		e.logger.Warn(ctx, "pull skipped", "error", err)
		return time.Time{}, nil
	}

	failed := 0
	for i := range remote {
		o, err := e.applyRemote(ctx, localSince, &remote[i])
		if err != nil {
			if ctx.Err() != nil {
				return time.Time{}, ctx.Err()
			}
			failed++
			res.Errors++
			e.logger.Error(ctx, "failed to apply remote item", "item", remote[i].ID, "error", err)
			continue
		}
		switch o {
		case outcomeApplied:
			res.Pulled++
		case outcomeConflict:
			res.Conflicts++
		}
	}

	if failed > 0 {
		e.logger.Warn(ctx, "pull cursor kept for failed items", "failed", failed, "since", since)
		return time.Time{}, nil
	}
	return at, nil
}

func (e *Engine) applyRemote(ctx context.Context, localSince time.Time, rem *models.Item) (outcome, error) {
	o := outcomeSkipped
	err := e.store.Tx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		local, err := r.Items.Get(ctx, rem.ID)
		if errors.Is(err, common.ErrNotFound) {
			rem.LocalModifiedAt = time.Time{}
			if err := r.Items.Upsert(ctx, rem); err != nil {
				return err
			}
			o = outcomeApplied
			return nil
		}
		if err != nil {
			return err
		}
		if rem.Version <= local.Version {
			return nil
		}

		existing, cerr := r.Conflicts.Get(ctx, rem.ID)
		open := cerr == nil
		if cerr != nil && !errors.Is(cerr, common.ErrNotFound) {
			return cerr
		}
		if open && existing.RemoteVersion == rem.Version {
			// already flagged for this remote version
			return nil
		}

		if open || local.LocalModifiedAt.After(localSince) {
			e.logger.Warn(ctx, "item conflict", "item", rem.ID, "local_version", local.Version, "remote_version", rem.Version)
			if err := r.Conflicts.Record(ctx, &models.Conflict{
				ItemID:        rem.ID,
				LocalVersion:  local.Version,
				RemoteVersion: rem.Version,
				Remote:        rem,
				Source:        models.ConflictSourcePull,
				DetectedAt:    e.now(),
			}); err != nil {
				return err
			}
			o = outcomeConflict
			return nil
		}

		rem.LocalModifiedAt = time.Time{}
		if err := r.Items.Upsert(ctx, rem); err != nil {
			return err
		}
		o = outcomeApplied
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}
	return o, nil
}

// push sends every item edited locally since the cursor. A rejected push is
// a conflict; any other failure is an error and the item is queued so it is
// not forgotten once the cursor moves past it. The queued push waits out the
// first backoff step, so the drain of the same pass does not repeat it.
func (e *Engine) push(ctx context.Context, since time.Time, res *models.SyncResult) error {
	items, err := e.store.Items.ModifiedSince(ctx, since)
	if err != nil {
		res.Errors++
		return fmt.Errorf("failed to select modified items: %w", err)
	}

	for i := range items {
		it := &items[i]
		err := e.pushItem(ctx, it)

		var vc *authority.VersionConflictError
		switch {
		case err == nil:
			res.Pushed++
		case errors.As(err, &vc):
			res.Conflicts++
			if rerr := e.recordPushConflict(ctx, it, vc); rerr != nil {
				res.Errors++
				return rerr
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			res.Errors++
			e.logger.Warn(ctx, "push failed", "item", it.ID, "error", err)
			if _, qerr := e.queue.EnqueueAfter(ctx, models.QueueKindMetadata, it.ID, "", retry.Schedule(0)); qerr != nil {
				return fmt.Errorf("failed to queue item push: %w", qerr)
			}
		}
	}
	return nil
}

func (e *Engine) pushItem(ctx context.Context, it *models.Item) error {
	return retry.Do(ctx, e.retry, func(ctx context.Context) error {
		return e.authority.PushItem(ctx, it)
	})
}

func (e *Engine) recordPushConflict(ctx context.Context, it *models.Item, vc *authority.VersionConflictError) error {
	c := &models.Conflict{
		ItemID:        it.ID,
		LocalVersion:  it.Version,
		RemoteVersion: it.Version,
		Remote:        vc.Current,
		Source:        models.ConflictSourcePush,
		DetectedAt:    e.now(),
	}
	if vc.Current != nil {
		c.RemoteVersion = vc.Current.Version
	}
	e.logger.Warn(ctx, "push rejected", "item", it.ID, "local_version", it.Version, "remote_version", c.RemoteVersion)
	if err := e.store.Conflicts.Record(ctx, c); err != nil {
		return fmt.Errorf("failed to record conflict: %w", err)
	}
	return nil
}

func (e *Engine) drain(ctx context.Context, res *models.SyncResult) error {
	dr, err := e.queue.Drain(ctx)
	res.Uploaded += dr.Completed
	res.Retried += dr.Retried
	res.Failed += dr.Failed
	res.Errors += dr.Retried + dr.Failed + dr.Errors
	if err != nil {
		if ctx.Err() == nil {
			res.Errors++
		}
		return err
	}

	if e.puller == nil {
		return nil
	}
	pulled, failed, err := e.puller.PullAnnotations(ctx)
	res.AnnotationsPulled += pulled
	res.Errors += failed
	if err != nil {
		if ctx.Err() == nil {
			res.Errors++
		}
		return err
	}
	return nil
}

// handleMetadataEntry pushes an item whose push failed during a pass.
func (e *Engine) handleMetadataEntry(ctx context.Context, q *models.QueueEntry) error {
	it, err := e.store.Items.Get(ctx, q.TargetID)
	if err != nil {
		return err
	}
	if _, err := e.store.Conflicts.Get(ctx, it.ID); err == nil {
		// resolution decides what gets pushed
		return nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	err = e.authority.PushItem(ctx, it)
	var vc *authority.VersionConflictError
	if errors.As(err, &vc) {
		return e.recordPushConflict(ctx, it, vc)
	}
	return err
}
