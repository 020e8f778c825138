package sync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultSyncTimeout bounds how long a caller waits on a remote sync.
const DefaultSyncTimeout = 60 * time.Second

// ErrSyncTimeout is returned when an operation does not settle before its deadline.
var ErrSyncTimeout = errors.New("sync: deadline exceeded")

type raceResult struct {
	ok  bool
	err error
}

// RaceWithTimeout returns the result of op or ErrSyncTimeout, whichever comes
// first. op is not cancelled when the deadline wins: it keeps running in the
// background and its result is dropped. A non-positive deadline falls back to
// DefaultSyncTimeout.
func RaceWithTimeout(ctx context.Context, op func(context.Context) (bool, error), deadline time.Duration) (bool, error) {
	if deadline <= 0 {
		deadline = DefaultSyncTimeout
	}

	// buffered so an abandoned op can still deliver and exit
	resCh := make(chan raceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- raceResult{err: fmt.Errorf("sync: operation panicked: %v", r)}
			}
		}()
		ok, err := op(ctx)
		resCh <- raceResult{ok: ok, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-resCh:
		return res.ok, res.err
	case <-timer.C:
		return false, ErrSyncTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
