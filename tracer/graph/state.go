package graph

import "sync"

// State holds the process and the thread graph which the user is looking at.
// Both may be nil.
type State struct {
	lock    sync.RWMutex
	process *Process
	graph   *ThreadGraph
}

// SetActive changes the active process and thread graph at once.
func (s *State) SetActive(p *Process, g *ThreadGraph) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.process = p
	s.graph = g
}

func (s *State) ActiveProcess() *Process {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.process
}

func (s *State) ActiveGraph() *ThreadGraph {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.graph
}

// Active returns the active process and thread graph which were set at the same time.
func (s *State) Active() (*Process, *ThreadGraph) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.process, s.graph
}
