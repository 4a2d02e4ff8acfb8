// Package viewer keeps the data shown by the highlight selection dialog up to date.
package viewer

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yuuki0xff/tracevis/tracer/highlight"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

// HighlightState is the data shown by the dialog.
type HighlightState struct {
	// AddressHint is the initial text of the address input.
	AddressHint string
	Symbols     []string
	Modules     []highlight.ModuleLabel
	Criterion   highlight.Criterion
	Highlighted []*types.Node
	// Instructions is the disassembly of Highlighted. Extern nodes have an empty string.
	Instructions []string
	// Err is the error of the last update. Other fields keep the values of the last successful update.
	Err     error
	Updated time.Time
}

// HighlightVM refreshes the catalog and the highlighted nodes of a session.
type HighlightVM struct {
	Session  *highlight.Session
	Interval time.Duration
	// ErrLog receives update errors. If nil, errors are written to stderr.
	ErrLog *log.Logger

	m     sync.Mutex
	state HighlightState
}

func (vm *HighlightVM) UpdateInterval() time.Duration {
	return vm.Interval
}

// Update refreshes the catalog and the highlighted nodes concurrently.
// When one of them fails, the previous values are kept.
func (vm *HighlightVM) Update(ctx context.Context) {
	var cat highlight.Catalog
	var nodes []*types.Node
	var catErr, matchErr error

	var eg errgroup.Group
	eg.Go(func() error {
		cat, catErr = vm.Session.RefreshCatalog()
		return catErr
	})
	eg.Go(func() error {
		nodes, matchErr = vm.Session.Match()
		return matchErr
	})
	err := eg.Wait()
	if ctx.Err() != nil {
		// the viewer was closed while updating.
		return
	}

	vm.m.Lock()
	defer vm.m.Unlock()
	vm.state.AddressHint = vm.Session.AddressHint()
	vm.state.Criterion = vm.Session.Criterion()
	if catErr == nil {
		vm.state.Symbols = cat.Symbols
		vm.state.Modules = vm.Session.ModuleLabels()
	}
	if matchErr == nil {
		vm.state.Highlighted = nodes
		vm.state.Instructions = vm.Session.Instructions(nodes)
	}
	vm.state.Err = err
	vm.state.Updated = time.Now()
	if err != nil && !types.IsPrecondition(err) {
		// the dialog is empty until a process and a thread are selected. it is not worth logging.
		vm.errLog().Println(err)
	}
}

// State returns the snapshot of the current state.
func (vm *HighlightVM) State() HighlightState {
	vm.m.Lock()
	defer vm.m.Unlock()
	return vm.state
}

func (vm *HighlightVM) errLog() *log.Logger {
	if vm.ErrLog != nil {
		return vm.ErrLog
	}
	return log.New(os.Stderr, "ERROR: ", log.LstdFlags)
}
