package viewer

import (
	"context"
	"time"
)

const (
	DefaultUpdateInterval = 200 * time.Millisecond
)

type Updatable interface {
	// UpdateInterval returns the interval of Update() calls.
	// If negative, Update() is called only once.
	// If zero, DefaultUpdateInterval is used.
	UpdateInterval() time.Duration
	// Update refreshes the cache. It may block for a while.
	// ctx must be non-nil.
	Update(ctx context.Context)
}

type Updater struct{}

// Run calls target.Update() periodically until ctx is canceled.
func (u Updater) Run(ctx context.Context, target Updatable) {
	d := target.UpdateInterval()
	if d == 0 {
		d = DefaultUpdateInterval
	}

	target.Update(ctx)
	if d < 0 {
		return
	}

	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			target.Update(ctx)
		case <-ctx.Done():
			return
		}
	}
}
