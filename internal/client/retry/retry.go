// Package retry holds the two backoff primitives of the client: Do, the
// in-process exponential retry around a single remote call, and Schedule,
// the delay before a failed upload queue entry is tried again.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/common"
	goretry "github.com/sethvargo/go-retry"
)

// Policy bounds Do. MaxAttempts counts retries after the first try, so an
// operation runs at most MaxAttempts+1 times, waiting BaseDelay·2^i before
// retry i.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy is used for remote calls that do not get their own policy.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// Do runs op until it succeeds, the attempts are used up, ctx is done, or op
// fails with a permanent error. The error returned is op's last error,
// unwrapped, or ctx's error when the wait was cut short.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	maxRetries := p.MaxAttempts
	if maxRetries < 0 {
		maxRetries = 0
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Nanosecond
	}

	b := goretry.WithMaxRetries(uint64(maxRetries), goretry.NewExponential(base))

	return goretry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil || IsPermanent(err) {
			return err
		}
		return goretry.RetryableError(err)
	})
}

// IsPermanent reports errors that another attempt cannot fix.
func IsPermanent(err error) bool {
	for _, target := range []error{
		common.ErrVersionConflict,
		common.ErrUnauthorized,
		common.ErrNotFound,
		common.ErrValidation,
		common.ErrIntegrity,
		common.ErrSchemaVersion,
		common.ErrMalformedEnvelope,
		common.ErrDuplicate,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// maxShift caps Schedule so the delay cannot overflow.
const maxShift = 20

// Schedule is the wait before the next attempt of a queue entry that has
// failed retryCount times: 2^retryCount seconds.
func Schedule(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > maxShift {
		retryCount = maxShift
	}
	return time.Duration(1<<uint(retryCount)) * time.Second
}
