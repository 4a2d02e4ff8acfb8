package highlight

import (
	"log"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

// ActiveSource provides the process and the thread graph which the user is looking at.
// graph.State implements it.
type ActiveSource interface {
	Active() (*graph.Process, *graph.ThreadGraph)
}

// Session holds the highlight criterion and the catalog for the caller.
// It is safe for concurrent use.
type Session struct {
	src     ActiveSource
	logger  *log.Logger
	metrics *sessionMetrics

	refreshGroup singleflight.Group

	lock      sync.Mutex
	criterion Criterion
	matched   []*types.Node

	catalog     Catalog
	built       bool
	process     *graph.Process
	graph       *graph.ThreadGraph
	externCount int
	moduleCount int
}

type SessionOption func(s *Session)

// WithSessionLogger sets the logger for warnings.
func WithSessionLogger(logger *log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

func NewSession(src ActiveSource, opts ...SessionOption) *Session {
	s := &Session{
		src:     src,
		metrics: newSessionMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(os.Stderr, "WARNING: ", log.LstdFlags)
	}
	return s
}

// Collectors returns the prometheus collectors of this session.
func (s *Session) Collectors() []prometheus.Collector {
	return s.metrics.collectors()
}

// SetCriterion changes the criterion. A nil c disables highlighting.
func (s *Session) SetCriterion(c Criterion) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.criterion = c
}

func (s *Session) Criterion() Criterion {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.criterion
}

// Match returns the nodes which match the current criterion on the active graph.
// On failure, the previous result kept by LastMatch() is not changed.
func (s *Session) Match() ([]*types.Node, error) {
	crit := s.Criterion()
	kind := KindOf(crit)
	s.metrics.matches.WithLabelValues(kind).Inc()

	nodes, err := Match(s.context(), crit)
	if err != nil {
		s.metrics.matchErrors.WithLabelValues(kind).Inc()
		return nil, err
	}

	s.lock.Lock()
	s.matched = nodes
	s.lock.Unlock()
	return nodes, nil
}

// LastMatch returns the result of the last successful Match().
func (s *Session) LastMatch() []*types.Node {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.matched
}

// RefreshCatalog returns the catalog of the active graph.
//
// The catalog is rebuilt only if the extern list or the module table has grown since the last build.
// Otherwise the previous catalog is returned. Both tables are append-only, so a shrunk or reset
// table is not detected; call Invalidate() after such changes.
// Concurrent calls share one build.
func (s *Session) RefreshCatalog() (Catalog, error) {
	v, err, _ := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		return s.refresh()
	})
	if err != nil {
		return Catalog{}, err
	}
	return v.(Catalog).Clone(), nil
}

// Invalidate discards the catalog. The next RefreshCatalog() rebuilds it.
func (s *Session) Invalidate() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.catalog = Catalog{}
	s.built = false
	s.externCount = 0
	s.moduleCount = 0
}

// AddressHint returns the address of the first node of the active graph.
func (s *Session) AddressHint() string {
	_, g := s.src.Active()
	return AddressHint(g)
}

// ModuleLabels returns labels of all modules of the active process with the current catalog.
func (s *Session) ModuleLabels() []ModuleLabel {
	p, _ := s.src.Active()
	if p == nil {
		return nil
	}
	s.lock.Lock()
	cat := s.catalog
	s.lock.Unlock()
	return ModuleLabels(cat, p.ModulePaths())
}

// Instructions returns the disassembly of nodes on the active graph, in the same order.
func (s *Session) Instructions(nodes []*types.Node) []string {
	p, g := s.src.Active()
	texts := make([]string, len(nodes))
	if g == nil {
		return texts
	}
	for i, n := range nodes {
		texts[i] = g.InstructionOf(n.Index, p)
	}
	return texts
}

func (s *Session) refresh() (Catalog, error) {
	c := s.context()
	if err := c.check(); err != nil {
		return Catalog{}, err
	}

	s.lock.Lock()
	// the user may have selected another process or thread.
	switched := c.Process != s.process || c.Graph != s.graph
	moduleCount := c.Process.ModuleCount()
	if !switched && s.built && c.Graph.ExternCount() == s.externCount && moduleCount == s.moduleCount {
		cat := s.catalog
		s.lock.Unlock()
		s.metrics.catalogSkips.Inc()
		return cat, nil
	}
	s.lock.Unlock()

	// the previous catalog is kept until the new one is built.
	snapshot := c.externSnapshot()
	cat, err := BuildCatalog(c, snapshot)
	if err != nil {
		return Catalog{}, err
	}
	s.metrics.catalogBuilds.Inc()

	s.lock.Lock()
	defer s.lock.Unlock()
	if p, g := s.src.Active(); p != c.Process || g != c.Graph {
		// the active graph was switched while building. discard it.
		return cat, nil
	}
	if !switched && len(snapshot) < s.externCount {
		return cat, nil
	}
	s.process = c.Process
	s.graph = c.Graph
	s.catalog = cat
	s.built = true
	s.externCount = len(snapshot)
	s.moduleCount = moduleCount
	return cat, nil
}

func (s *Session) context() Context {
	p, g := s.src.Active()
	return Context{
		Process: p,
		Graph:   g,
		Logger:  s.logger,
		OnLockTimeout: func(error) {
			s.metrics.lockTimeouts.Inc()
		},
	}
}
