// Package simulator replays a recorded trace as if the tracer thread was appending it.
package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/yuuki0xff/tracevis/tracer/fixture"
	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

const (
	DefaultBatchSize = 64
)

// TracerSimulator appends the events of a trace to the process gradually.
// It is the only writer of the process and the thread graphs.
type TracerSimulator struct {
	Trace   *fixture.Trace
	Process *graph.Process
	// BatchSize is the number of events applied between the pauses.
	// If zero, DefaultBatchSize is used.
	BatchSize int
	// Interval is the pause between the batches.
	Interval time.Duration

	lock    sync.RWMutex
	applied int
}

// New creates a simulator with an empty process built from t.
func New(t *fixture.Trace, opts ...graph.Option) (*TracerSimulator, error) {
	p, err := t.NewProcess(opts...)
	if err != nil {
		return nil, err
	}
	return &TracerSimulator{
		Trace:   t,
		Process: p,
	}, nil
}

// Run applies all events. Events of the threads are interleaved one by one.
// It returns when all events are applied or ctx is canceled.
func (s *TracerSimulator) Run(ctx context.Context) error {
	batch := s.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	type cursor struct {
		th  fixture.Thread
		g   *graph.ThreadGraph
		pos int
	}
	cursors := make([]*cursor, 0, len(s.Trace.Threads))
	for _, th := range s.Trace.Threads {
		g, ok := s.Process.Thread(th.TID)
		if !ok {
			return errors.Errorf("thread graph not found: tid=%s", th.TID)
		}
		cursors = append(cursors, &cursor{th: th, g: g})
	}

	var inBatch int
	for remains := true; remains; {
		remains = false
		for _, c := range cursors {
			if c.pos >= len(c.th.Events) {
				continue
			}
			remains = true

			if err := c.th.Events[c.pos].Apply(s.Process, c.g); err != nil {
				return errors.Wrapf(err, "tid=%s events[%d]", c.th.TID, c.pos)
			}
			c.pos++
			s.lock.Lock()
			s.applied++
			s.lock.Unlock()

			inBatch++
			if inBatch < batch {
				continue
			}
			inBatch = 0
			if err := s.pause(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *TracerSimulator) pause(ctx context.Context) error {
	if s.Interval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.Interval)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Applied returns the number of applied events.
func (s *TracerSimulator) Applied() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.applied
}

// Total returns the number of all events.
func (s *TracerSimulator) Total() int {
	var n int
	for _, th := range s.Trace.Threads {
		n += len(th.Events)
	}
	return n
}

// FirstThread returns the thread graph with the smallest thread ID.
func (s *TracerSimulator) FirstThread() (*graph.ThreadGraph, bool) {
	threads := s.Process.Threads()
	if len(threads) == 0 {
		return nil, false
	}
	return threads[0], true
}

// Thread returns the thread graph of tid.
func (s *TracerSimulator) Thread(tid types.ThreadID) (*graph.ThreadGraph, bool) {
	return s.Process.Thread(tid)
}
