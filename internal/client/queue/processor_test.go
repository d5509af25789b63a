package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/storage"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/dbx"
	"github.com/dmitrijs2005/refkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProcessor(t *testing.T, opts Options) (*Processor, *storage.Store, *clock) {
	t.Helper()
	store, err := storage.Open(context.Background(), dbx.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := &clock{t: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
	p := NewProcessor(store.Queue, logging.NewNop(), opts)
	p.now = c.now
	return p, store, c
}

func countingHandler(failures int) (HandlerFunc, *int) {
	calls := 0
	return func(ctx context.Context, e *models.QueueEntry) error {
		calls++
		if calls <= failures {
			return errors.New("remote unavailable")
		}
		return nil
	}, &calls
}

func TestDrain_FailOnceThenSucceed(t *testing.T) {
	p, store, c := newTestProcessor(t, Options{})
	ctx := context.Background()

	h, calls := countingHandler(1)
	p.Register(models.QueueKindPDF, h)

	e, err := p.Enqueue(ctx, models.QueueKindPDF, "att-1", "/tmp/a.pdf")
	require.NoError(t, err)

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Retried: 1}, res)

	got, err := store.Queue.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "remote unavailable", got.LastError)
	assert.Equal(t, c.now().Add(2*time.Second), got.NextRetryAt)

	// not due yet
	res, err = p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, res)
	assert.Equal(t, 1, *calls)

	c.advance(2 * time.Second)
	res, err = p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Completed: 1}, res)

	got, err = store.Queue.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusCompleted, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Empty(t, got.LastError)
}

func TestDrain_AlwaysFailingReachesFailed(t *testing.T) {
	p, store, c := newTestProcessor(t, Options{MaxRetries: 3})
	ctx := context.Background()

	h, calls := countingHandler(1000)
	p.Register(models.QueueKindAnnotation, h)

	e, err := p.Enqueue(ctx, models.QueueKindAnnotation, "set-1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, e.MaxRetries)

	for i := 0; i < 6; i++ {
		_, err := p.Drain(ctx)
		require.NoError(t, err)
		c.advance(time.Hour)
	}

	got, err := store.Queue.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, 3, *calls, "a failed entry never runs again on its own")

	failed, err := p.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	counts, err := p.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.QueueStatusFailed])
}

func TestDrain_OldestFirstAndIsolated(t *testing.T) {
	p, store, c := newTestProcessor(t, Options{})
	ctx := context.Background()

	var order []string
	p.Register(models.QueueKindPDF, HandlerFunc(func(ctx context.Context, e *models.QueueEntry) error {
		order = append(order, e.TargetID)
		switch e.TargetID {
		case "b":
			panic("corrupt entry")
		case "c":
			return errors.New("boom")
		}
		return nil
	}))

	for _, target := range []string{"a", "b", "c", "d"} {
		_, err := p.Enqueue(ctx, models.QueueKindPDF, target, "")
		require.NoError(t, err)
		c.advance(time.Millisecond)
	}

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.Equal(t, DrainResult{Completed: 2, Retried: 2}, res)

	pending, err := p.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].TargetID)
	assert.Contains(t, pending[0].LastError, "handler panic")

	counts, err := store.Queue.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.QueueStatusCompleted])
}

func TestDrain_CancellationLeavesEntryPending(t *testing.T) {
	p, store, _ := newTestProcessor(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	p.Register(models.QueueKindPDF, HandlerFunc(func(hctx context.Context, e *models.QueueEntry) error {
		seen = append(seen, e.TargetID)
		cancel()
		return hctx.Err()
	}))

	first, err := p.Enqueue(context.Background(), models.QueueKindPDF, "a", "")
	require.NoError(t, err)
	_, err = p.Enqueue(context.Background(), models.QueueKindPDF, "b", "")
	require.NoError(t, err)

	_, err = p.Drain(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, seen)

	got, err := store.Queue.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}

func TestDrain_MissingHandlerCountsAsFailure(t *testing.T) {
	p, _, _ := newTestProcessor(t, Options{})
	ctx := context.Background()

	_, err := p.Enqueue(ctx, models.QueueKindMetadata, "item-1", "")
	require.NoError(t, err)

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)
}

func TestDrain_RecoversInterruptedUploads(t *testing.T) {
	p, store, c := newTestProcessor(t, Options{})
	ctx := context.Background()

	require.NoError(t, store.Queue.Insert(ctx, &models.QueueEntry{
		ID: "stuck", Kind: models.QueueKindPDF, TargetID: "att", Status: models.QueueStatusUploading,
		MaxRetries: 5, CreatedAt: c.now(),
	}))

	h, calls := countingHandler(0)
	p.Register(models.QueueKindPDF, h)

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, *calls)
}

func TestEnqueue_ReusesActiveEntry(t *testing.T) {
	p, _, _ := newTestProcessor(t, Options{})
	ctx := context.Background()

	a, err := p.Enqueue(ctx, models.QueueKindAnnotation, "set-1", "")
	require.NoError(t, err)
	b, err := p.Enqueue(ctx, models.QueueKindAnnotation, "set-1", "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	other, err := p.Enqueue(ctx, models.QueueKindPDF, "set-1", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, other.ID)
}

func TestRetry(t *testing.T) {
	p, _, c := newTestProcessor(t, Options{MaxRetries: 1})
	ctx := context.Background()

	h, calls := countingHandler(1)
	p.Register(models.QueueKindPDF, h)

	e, err := p.Enqueue(ctx, models.QueueKindPDF, "att", "")
	require.NoError(t, err)

	_, err = p.Retry(ctx, e.ID)
	assert.ErrorIs(t, err, common.ErrValidation)

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	reset, err := p.Retry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, reset.Status)
	assert.Equal(t, 0, reset.RetryCount)

	c.advance(time.Second)
	res, err = p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 2, *calls)

	_, err = p.Retry(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDrain_PermanentErrorFailsAtOnce(t *testing.T) {
	p, store, _ := newTestProcessor(t, Options{MaxRetries: 5})
	ctx := context.Background()

	calls := 0
	p.Register(models.QueueKindPDF, HandlerFunc(func(ctx context.Context, e *models.QueueEntry) error {
		calls++
		return fmt.Errorf("upload: %w", &common.IntegrityError{Expected: "abc", Actual: "missing"})
	}))

	e, err := p.Enqueue(ctx, models.QueueKindPDF, "att-1", "/tmp/gone.pdf")
	require.NoError(t, err)

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Failed: 1}, res)

	got, err := store.Queue.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, 1, calls)
}

func TestDrain_TransientClassesKeepRetrying(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unavailable", common.ErrUnavailable},
		{"unauthorized", common.ErrUnauthorized},
		{"handler timeout", context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestProcessor(t, Options{MaxRetries: 5})
			ctx := context.Background()
			p.Register(models.QueueKindMetadata, HandlerFunc(func(ctx context.Context, e *models.QueueEntry) error {
				return fmt.Errorf("push: %w", tt.err)
			}))

			_, err := p.Enqueue(ctx, models.QueueKindMetadata, "item-1", "")
			require.NoError(t, err)

			res, err := p.Drain(ctx)
			require.NoError(t, err)
			assert.Equal(t, DrainResult{Retried: 1}, res)
		})
	}
}

func TestEnqueueAfter_WaitsOutDelay(t *testing.T) {
	p, _, c := newTestProcessor(t, Options{})
	ctx := context.Background()

	h, calls := countingHandler(0)
	p.Register(models.QueueKindMetadata, h)

	e, err := p.EnqueueAfter(ctx, models.QueueKindMetadata, "item-1", "", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, c.now().Add(2*time.Second), e.NextRetryAt)

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, res)
	assert.Equal(t, 0, *calls)

	c.advance(2 * time.Second)
	res, err = p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Completed: 1}, res)
}
