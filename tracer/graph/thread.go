package graph

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/yuuki0xff/tracevis/tracer/tlock"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

// ThreadGraph is the execution graph of a thread.
//
// Nodes and the extern list are append-only. Only the tracer thread appends to them.
// Readers take a copy of the extern list with ExternListSnapshot() and work on it without locks.
type ThreadGraph struct {
	tid types.ThreadID

	nodeLock sync.RWMutex
	nodes    []*types.Node

	// externLock guards externList. Readers must not hold it longer than copying the list.
	externLock  tlock.Mutex
	externList  []types.NodeIndex
	externCount int64

	snapLock     sync.Mutex
	lastSnapshot []types.NodeIndex
}

type Option func(g *ThreadGraph)

// WithLockTimeout sets the maximum wait of ExternListSnapshot().
func WithLockTimeout(d time.Duration) Option {
	return func(g *ThreadGraph) {
		g.externLock.Timeout = d
	}
}

// WithWarnInterval sets the interval of warnings while waiting for the extern list lock.
func WithWarnInterval(d time.Duration) Option {
	return func(g *ThreadGraph) {
		g.externLock.WarnInterval = d
	}
}

// WithLogger sets the logger for lock warnings.
func WithLogger(logger *log.Logger) Option {
	return func(g *ThreadGraph) {
		g.externLock.Logger = logger
	}
}

func NewThreadGraph(tid types.ThreadID, opts ...Option) *ThreadGraph {
	g := &ThreadGraph{
		tid: tid,
	}
	g.externLock.Name = "externList:" + tid.String()
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *ThreadGraph) TID() types.ThreadID {
	return g.tid
}

// AddNode appends a new node and returns its index.
func (g *ThreadGraph) AddNode(addr types.Address, mod types.ModuleID) types.NodeIndex {
	return g.addNode(addr, mod, false)
}

// AddExternNode appends a new node and places it on the extern list.
func (g *ThreadGraph) AddExternNode(addr types.Address, mod types.ModuleID) types.NodeIndex {
	var idx types.NodeIndex
	g.WriteExterns(func(add func(addr types.Address, mod types.ModuleID) types.NodeIndex) {
		idx = add(addr, mod)
	})
	return idx
}

// WriteExterns calls fn while holding the extern list lock.
// The add function passed to fn appends a new extern node.
// Readers calling ExternListSnapshot() wait until fn returns, or give up by timeout.
func (g *ThreadGraph) WriteExterns(fn func(add func(addr types.Address, mod types.ModuleID) types.NodeIndex)) {
	g.externLock.Lock()
	defer g.externLock.Unlock()
	fn(func(addr types.Address, mod types.ModuleID) types.NodeIndex {
		idx := g.addNode(addr, mod, true)
		g.externList = append(g.externList, idx)
		atomic.StoreInt64(&g.externCount, int64(len(g.externList)))
		return idx
	})
}

func (g *ThreadGraph) addNode(addr types.Address, mod types.ModuleID, external bool) types.NodeIndex {
	g.nodeLock.Lock()
	defer g.nodeLock.Unlock()
	idx := types.NodeIndex(len(g.nodes))
	g.nodes = append(g.nodes, &types.Node{
		Index:    idx,
		Address:  addr,
		Module:   mod,
		External: external,
	})
	return idx
}

// NodeCount returns the current number of nodes. It never decreases.
func (g *ThreadGraph) NodeCount() int {
	g.nodeLock.RLock()
	defer g.nodeLock.RUnlock()
	return len(g.nodes)
}

// NodeAt returns the node at idx.
// It returns an error caused by types.ErrOutOfRange if idx is not less than NodeCount().
func (g *ThreadGraph) NodeAt(idx types.NodeIndex) (*types.Node, error) {
	g.nodeLock.RLock()
	defer g.nodeLock.RUnlock()
	if idx < 0 || int(idx) >= len(g.nodes) {
		return nil, errors.Wrapf(types.ErrOutOfRange, "thread %s: index=%d count=%d", g.tid, idx, len(g.nodes))
	}
	return g.nodes[idx], nil
}

// ExternCount returns the length of the extern list without locking.
// The value may be larger than the length of a snapshot taken before.
func (g *ThreadGraph) ExternCount() int {
	return int(atomic.LoadInt64(&g.externCount))
}

// ExternListSnapshot returns a copy of the extern list.
//
// If the lock could not be acquired in time, it returns the last successful snapshot
// and an error caused by tlock.ErrTimeout. The returned list is still a valid prefix
// of the current extern list, so callers may continue with it.
// The returned slice must not be modified.
func (g *ThreadGraph) ExternListSnapshot() ([]types.NodeIndex, error) {
	if err := g.externLock.Obtain(); err != nil {
		return g.staleSnapshot(), err
	}
	snapshot := make([]types.NodeIndex, len(g.externList))
	copy(snapshot, g.externList)
	g.externLock.Unlock()

	g.snapLock.Lock()
	if len(snapshot) >= len(g.lastSnapshot) {
		g.lastSnapshot = snapshot
	}
	g.snapLock.Unlock()
	return snapshot, nil
}

func (g *ThreadGraph) staleSnapshot() []types.NodeIndex {
	g.snapLock.Lock()
	defer g.snapLock.Unlock()
	snapshot := make([]types.NodeIndex, len(g.lastSnapshot))
	copy(snapshot, g.lastSnapshot)
	return snapshot
}

// SymbolOf resolves the symbol name of node idx.
// It returns types.UnresolvedSymbol if the symbol is not known. It never fails.
func (g *ThreadGraph) SymbolOf(idx types.NodeIndex, p *Process) string {
	n, err := g.NodeAt(idx)
	if err != nil || p == nil {
		return types.UnresolvedSymbol
	}
	return p.Symbol(n.Module, n.Address)
}

// InstructionOf returns the disassembly executed as node idx.
// It returns an empty string for nodes without a recorded instruction, such as extern calls.
func (g *ThreadGraph) InstructionOf(idx types.NodeIndex, p *Process) string {
	n, err := g.NodeAt(idx)
	if err != nil || p == nil {
		return ""
	}
	text, _ := p.InstructionText(n.Address, g.tid, idx)
	return text
}
