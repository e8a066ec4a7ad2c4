package partialcache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Invalidator is a registry of fragment invalidation triggers.
type Invalidator struct {
	sync.Mutex

	// SkipInterval defines minimal duration between two invalidations (flood protection), default 15s.
	SkipInterval time.Duration

	// Callbacks contains a list of functions to call on invalidate.
	Callbacks []func(ctx context.Context) error

	lastRun time.Time
}

// Invalidate calls all callbacks, first failure is returned after all callbacks are called.
func (i *Invalidator) Invalidate(ctx context.Context) error {
	i.Lock()
	defer i.Unlock()

	if len(i.Callbacks) == 0 {
		return ErrNothingToInvalidate
	}

	if i.SkipInterval == 0 {
		i.SkipInterval = 15 * time.Second
	}

	if time.Since(i.lastRun) < i.SkipInterval {
		return fmt.Errorf("%w at %s, %s did not pass",
			ErrAlreadyInvalidated, i.lastRun.String(), i.SkipInterval.String())
	}

	i.lastRun = time.Now()

	var firstErr error

	for _, cb := range i.Callbacks {
		if err := cb(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
