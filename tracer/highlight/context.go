package highlight

import (
	"log"
	"os"

	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

// Context is the process and the thread graph to query.
type Context struct {
	Process *graph.Process
	Graph   *graph.ThreadGraph
	// Logger receives warnings. If nil, warnings are written to stderr.
	Logger *log.Logger
	// OnLockTimeout is called when the extern list could not be locked in time.
	OnLockTimeout func(err error)
}

func (c Context) check() error {
	if c.Process == nil {
		return types.ErrNoActiveProcess
	}
	if c.Graph == nil {
		return types.ErrNoActiveGraph
	}
	return nil
}

// externSnapshot returns a copy of the extern list.
// On lock timeout, it logs a warning and returns the best-effort snapshot.
func (c Context) externSnapshot() []types.NodeIndex {
	snapshot, err := c.Graph.ExternListSnapshot()
	if err != nil {
		c.logger().Printf("%s: continue with %d extern nodes", err, len(snapshot))
		if c.OnLockTimeout != nil {
			c.OnLockTimeout(err)
		}
	}
	return snapshot
}

func (c Context) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.New(os.Stderr, "WARNING: ", log.LstdFlags)
}
