package highlight

import (
	"log"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

func newTestSession() (*Session, *graph.State, *graph.Process, *graph.ThreadGraph) {
	p, g := newTestGraph()
	state := &graph.State{}
	state.SetActive(p, g)
	return NewSession(state, WithSessionLogger(discardLogger())), state, p, g
}

func TestSession_RefreshCatalog(t *testing.T) {
	a := assert.New(t)
	s, _, _, _ := newTestSession()

	cat, err := s.RefreshCatalog()
	a.NoError(err)
	a.Equal([]string{"malloc", "printf"}, cat.Symbols)
	a.Equal(map[types.ModuleID]int{moduleA: 2, moduleB: 1}, cat.ModuleUsage)
	a.Equal(1.0, testutil.ToFloat64(s.metrics.catalogBuilds))
}

func TestSession_RefreshCatalog_idempotent(t *testing.T) {
	a := assert.New(t)
	s, _, _, _ := newTestSession()

	cat1, err := s.RefreshCatalog()
	a.NoError(err)
	cat2, err := s.RefreshCatalog()
	a.NoError(err)

	a.Equal(cat1, cat2)
	// 2回目の呼び出しでは再構築しない。
	a.Equal(1.0, testutil.ToFloat64(s.metrics.catalogBuilds))
	a.Equal(1.0, testutil.ToFloat64(s.metrics.catalogSkips))
}

func TestSession_RefreshCatalog_rebuildOnGrowth(t *testing.T) {
	a := assert.New(t)
	s, _, p, g := newTestSession()

	_, err := s.RefreshCatalog()
	a.NoError(err)

	p.AddSymbol(moduleB, 0x6100, "free")
	g.AddExternNode(0x6100, moduleB)
	cat, err := s.RefreshCatalog()
	a.NoError(err)
	a.Equal([]string{"free", "malloc", "printf"}, cat.Symbols)
	a.Equal(2, cat.ModuleUsage[moduleB])
	a.Equal(2.0, testutil.ToFloat64(s.metrics.catalogBuilds))

	// a new module also makes the catalog dirty.
	p.AddModule(4, "/usr/lib/libm.so")
	_, err = s.RefreshCatalog()
	a.NoError(err)
	a.Equal(3.0, testutil.ToFloat64(s.metrics.catalogBuilds))
	a.Len(s.ModuleLabels(), 5)
}

func TestSession_Invalidate(t *testing.T) {
	a := assert.New(t)
	s, _, _, _ := newTestSession()

	_, err := s.RefreshCatalog()
	a.NoError(err)
	s.Invalidate()
	cat, err := s.RefreshCatalog()
	a.NoError(err)
	a.Equal([]string{"malloc", "printf"}, cat.Symbols)
	a.Equal(2.0, testutil.ToFloat64(s.metrics.catalogBuilds))
}

func TestSession_RefreshCatalog_switchGraph(t *testing.T) {
	a := assert.New(t)
	s, state, p, _ := newTestSession()

	_, err := s.RefreshCatalog()
	a.NoError(err)

	// same sizes, but different graph.
	other := graph.NewThreadGraph(3)
	other.AddExternNode(printfAddr, moduleA)
	other.AddExternNode(printfAddr, moduleA)
	other.AddExternNode(printfAddr, moduleA)
	state.SetActive(p, other)

	cat, err := s.RefreshCatalog()
	a.NoError(err)
	a.Equal([]string{"printf"}, cat.Symbols)
	a.Equal(map[types.ModuleID]int{moduleA: 3}, cat.ModuleUsage)
}

func TestSession_RefreshCatalog_failureKeepsCatalog(t *testing.T) {
	a := assert.New(t)
	s, state, p, g := newTestSession()

	_, err := s.RefreshCatalog()
	a.NoError(err)

	state.SetActive(p, nil)
	_, err = s.RefreshCatalog()
	a.Equal(types.ErrNoActiveGraph, errors.Cause(err))
	state.SetActive(nil, g)
	_, err = s.RefreshCatalog()
	a.Equal(types.ErrNoActiveProcess, errors.Cause(err))

	state.SetActive(p, g)
	cat, err := s.RefreshCatalog()
	a.NoError(err)
	a.Equal([]string{"malloc", "printf"}, cat.Symbols)
	a.Equal(1.0, testutil.ToFloat64(s.metrics.catalogBuilds))
}

func TestSession_RefreshCatalog_returnsCopy(t *testing.T) {
	a := assert.New(t)
	s, _, _, _ := newTestSession()
	cat, err := s.RefreshCatalog()
	a.NoError(err)
	cat.Symbols[0] = "broken"

	cat, err = s.RefreshCatalog()
	a.NoError(err)
	a.Equal("malloc", cat.Symbols[0])
}

func TestSession_RefreshCatalog_lockTimeout(t *testing.T) {
	a := assert.New(t)
	p := graph.NewProcess(1)
	p.AddModule(0, "/bin/app")
	p.AddSymbol(0, 0x1000, "main")
	g := graph.NewThreadGraph(1,
		graph.WithLockTimeout(10*time.Millisecond),
		graph.WithLogger(discardLogger()),
	)
	state := &graph.State{}
	state.SetActive(p, g)
	s := NewSession(state, WithSessionLogger(discardLogger()))

	g.AddExternNode(0x1000, 0)
	_, err := s.RefreshCatalog()
	a.NoError(err)

	// writer holds the lock for a long time.
	block := make(chan struct{})
	locked := make(chan struct{})
	go g.WriteExterns(func(add func(types.Address, types.ModuleID) types.NodeIndex) {
		add(0x1000, 0)
		close(locked)
		<-block
	})
	<-locked

	cat, err := s.RefreshCatalog()
	close(block)
	a.NoError(err)
	// stale, but valid.
	a.Equal([]string{"main"}, cat.Symbols)
	a.Equal(map[types.ModuleID]int{0: 1}, cat.ModuleUsage)
	a.Equal(1.0, testutil.ToFloat64(s.metrics.lockTimeouts))
	a.Equal(2.0, testutil.ToFloat64(s.metrics.catalogBuilds))
}

// signalWriter closes ch on the first write.
type signalWriter struct {
	once sync.Once
	ch   chan struct{}
}

func (w *signalWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.ch) })
	return len(p), nil
}

func TestSession_RefreshCatalog_switchKeepsCatalogUntilBuilt(t *testing.T) {
	a := assert.New(t)
	s, state, p, _ := newTestSession()
	_, err := s.RefreshCatalog()
	a.NoError(err)
	before := s.ModuleLabels()

	waiting := make(chan struct{})
	other := graph.NewThreadGraph(3,
		graph.WithLockTimeout(time.Second),
		graph.WithWarnInterval(10*time.Millisecond),
		graph.WithLogger(log.New(&signalWriter{ch: waiting}, "", 0)),
	)
	block := make(chan struct{})
	locked := make(chan struct{})
	go other.WriteExterns(func(add func(types.Address, types.ModuleID) types.NodeIndex) {
		add(mallocAddr, moduleB)
		close(locked)
		<-block
	})
	<-locked
	state.SetActive(p, other)

	var cat Catalog
	var refreshErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		cat, refreshErr = s.RefreshCatalog()
	}()

	// the new catalog is being built.
	<-waiting
	a.Equal(before, s.ModuleLabels())

	close(block)
	<-done
	a.NoError(refreshErr)
	a.Equal([]string{"malloc"}, cat.Symbols)
	a.Equal(map[types.ModuleID]int{moduleB: 1}, cat.ModuleUsage)
	a.NotEqual(before, s.ModuleLabels())
	a.Equal(2.0, testutil.ToFloat64(s.metrics.catalogBuilds))
}

func TestSession_Match_lockTimeout(t *testing.T) {
	a := assert.New(t)
	p := graph.NewProcess(1)
	p.AddModule(0, "/bin/app")
	p.AddSymbol(0, 0x1000, "main")
	g := graph.NewThreadGraph(1,
		graph.WithLockTimeout(10*time.Millisecond),
		graph.WithLogger(discardLogger()),
	)
	state := &graph.State{}
	state.SetActive(p, g)
	s := NewSession(state, WithSessionLogger(discardLogger()))

	g.AddExternNode(0x1000, 0)
	s.SetCriterion(SymbolCriterion{Symbol: "main"})
	nodes, err := s.Match()
	a.NoError(err)
	a.Equal([]types.NodeIndex{0}, nodeIndexes(nodes))

	// writer holds the lock for a long time.
	block := make(chan struct{})
	locked := make(chan struct{})
	go g.WriteExterns(func(add func(types.Address, types.ModuleID) types.NodeIndex) {
		add(0x1000, 0)
		close(locked)
		<-block
	})
	<-locked

	// the node appended by the writer is not visible.
	nodes, err = s.Match()
	a.NoError(err)
	a.Equal([]types.NodeIndex{0}, nodeIndexes(nodes))
	s.SetCriterion(ModuleCriterion{Module: 0})
	nodes, err = s.Match()
	a.NoError(err)
	a.Equal([]types.NodeIndex{0}, nodeIndexes(nodes))
	a.Equal(2.0, testutil.ToFloat64(s.metrics.lockTimeouts))

	close(block)
	nodes, err = s.Match()
	a.NoError(err)
	a.Equal([]types.NodeIndex{0, 1}, nodeIndexes(nodes))
	a.Equal(2.0, testutil.ToFloat64(s.metrics.lockTimeouts))
}

func TestSession_Match(t *testing.T) {
	a := assert.New(t)
	s, _, _, _ := newTestSession()

	// no criterion
	nodes, err := s.Match()
	a.NoError(err)
	a.Empty(nodes)

	s.SetCriterion(SymbolCriterion{Symbol: "malloc"})
	a.Equal(SymbolCriterion{Symbol: "malloc"}, s.Criterion())
	nodes, err = s.Match()
	a.NoError(err)
	a.Equal([]types.NodeIndex{12}, nodeIndexes(nodes))

	s.SetCriterion(AddressCriterion{Address: loopAddr})
	nodes, err = s.Match()
	a.NoError(err)
	a.Len(nodes, 3)
	a.Equal([]string{"nop", "nop", "nop"}, s.Instructions(nodes))

	s.SetCriterion(ModuleCriterion{Module: moduleC})
	nodes, err = s.Match()
	a.NoError(err)
	a.Empty(nodes)

	a.Equal(1.0, testutil.ToFloat64(s.metrics.matches.WithLabelValues(KindSymbol)))
	a.Equal(1.0, testutil.ToFloat64(s.metrics.matches.WithLabelValues(KindNone)))
}

func TestSession_Match_failureKeepsLastMatch(t *testing.T) {
	a := assert.New(t)
	s, state, p, _ := newTestSession()

	s.SetCriterion(SymbolCriterion{Symbol: "printf"})
	nodes, err := s.Match()
	a.NoError(err)
	a.Len(nodes, 2)

	state.SetActive(p, nil)
	_, err = s.Match()
	a.Equal(types.ErrNoActiveGraph, errors.Cause(err))
	a.Equal([]types.NodeIndex{7, 9}, nodeIndexes(s.LastMatch()))
	a.Equal(1.0, testutil.ToFloat64(s.metrics.matchErrors.WithLabelValues(KindSymbol)))
}

func TestSession_AddressHint(t *testing.T) {
	a := assert.New(t)
	s, state, _, _ := newTestSession()
	a.Equal("0x4100", s.AddressHint())
	state.SetActive(nil, nil)
	a.Equal("", s.AddressHint())
	a.Nil(s.ModuleLabels())
}

func TestSession_Collectors(t *testing.T) {
	a := assert.New(t)
	s, _, _, _ := newTestSession()
	reg := prometheus.NewRegistry()
	for _, c := range s.Collectors() {
		a.NoError(reg.Register(c))
	}
}

func TestSession_concurrentWriter(t *testing.T) {
	a := assert.New(t)
	s, _, p, g := newTestSession()

	const n = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			g.AddExternNode(mallocAddr, moduleB)
		}
		p.AddModule(10, "/usr/lib/libz.so")
	}()

	s.SetCriterion(ModuleCriterion{Module: moduleB})
	prevLen := 0
	for i := 0; i < 100; i++ {
		cat, err := s.RefreshCatalog()
		a.NoError(err)
		a.Equal([]string{"malloc", "printf"}, cat.Symbols)
		nodes, err := s.Match()
		a.NoError(err)
		a.True(len(nodes) >= prevLen)
		prevLen = len(nodes)
	}
	wg.Wait()

	cat, err := s.RefreshCatalog()
	a.NoError(err)
	a.Equal(n+1, cat.ModuleUsage[moduleB])
	nodes, err := s.Match()
	a.NoError(err)
	a.Len(nodes, n+1)
}
