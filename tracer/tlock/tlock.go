// Package tlock provides a mutex whose acquisition can give up after a timeout.
package tlock

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultTimeout      = 1 * time.Second
	DefaultWarnInterval = 250 * time.Millisecond
)

// ErrTimeout is returned by Mutex.Obtain when the lock could not be acquired in time.
var ErrTimeout = errors.New("lock timeout")

// Mutex is a mutual exclusion lock with timed acquisition.
// The zero value is an unlocked mutex which uses default timeouts.
type Mutex struct {
	// Name is used in log messages.
	Name string
	// Timeout is the maximum wait of Obtain(). If zero, DefaultTimeout is used.
	Timeout time.Duration
	// WarnInterval is the interval of the warning messages while waiting.
	// If zero, DefaultWarnInterval is used.
	WarnInterval time.Duration
	// Logger receives the warning messages. If nil, messages are written to stderr.
	Logger *log.Logger

	once sync.Once
	sem  *semaphore.Weighted
}

func (m *Mutex) init() {
	m.once.Do(func() {
		m.sem = semaphore.NewWeighted(1)
	})
}

// Lock blocks until the lock is acquired.
func (m *Mutex) Lock() {
	m.init()
	// Acquire never fails with the background context.
	m.sem.Acquire(context.Background(), 1) // nolint: errcheck
}

// Unlock releases the lock.
// It panics if the mutex is not locked.
func (m *Mutex) Unlock() {
	m.init()
	m.sem.Release(1)
}

// Obtain acquires the lock, waiting at most m.Timeout.
// A warning is logged every m.WarnInterval while waiting.
// If the lock is not acquired in time, it returns an error caused by ErrTimeout.
func (m *Mutex) Obtain() error {
	m.init()
	if m.sem.TryAcquire(1) {
		return nil
	}

	deadline := time.Now().Add(m.timeout())
	start := time.Now()
	for {
		wait := time.Until(deadline)
		if wait <= 0 {
			break
		}
		if w := m.warnInterval(); w < wait {
			wait = w
		}

		ctx, cancel := context.WithTimeout(context.Background(), wait)
		err := m.sem.Acquire(ctx, 1)
		cancel()
		if err == nil {
			return nil
		}
		m.logger().Printf("waited %s for mutex %q", time.Since(start).Round(time.Millisecond), m.Name)
	}
	return errors.Wrapf(ErrTimeout, "mutex %q: gave up after %s", m.Name, m.timeout())
}

func (m *Mutex) timeout() time.Duration {
	if m.Timeout > 0 {
		return m.Timeout
	}
	return DefaultTimeout
}

func (m *Mutex) warnInterval() time.Duration {
	if m.WarnInterval > 0 {
		return m.WarnInterval
	}
	return DefaultWarnInterval
}

func (m *Mutex) logger() *log.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.New(os.Stderr, "WARNING: ", log.LstdFlags)
}
