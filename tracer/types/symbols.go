package types

import (
	"sync"
)

// Symbols is a symbol table of the traced process.
// Symbols are keyed by the module and the address in it.
// It is safe for concurrent use.
type Symbols struct {
	lock sync.RWMutex
	data map[ModuleID]map[Address]string
}

// Add registers a symbol name. Existing symbol at the same location is replaced.
func (s *Symbols) Add(mod ModuleID, addr Address, name string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.data == nil {
		s.data = make(map[ModuleID]map[Address]string)
	}
	m, ok := s.data[mod]
	if !ok {
		m = make(map[Address]string)
		s.data[mod] = m
	}
	m[addr] = name
}

// Lookup returns symbol name at addr in the module.
func (s *Symbols) Lookup(mod ModuleID, addr Address) (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	name, ok := s.data[mod][addr]
	return name, ok
}

// Name returns symbol name, or UnresolvedSymbol if not found.
func (s *Symbols) Name(mod ModuleID, addr Address) string {
	if name, ok := s.Lookup(mod, addr); ok {
		return name
	}
	return UnresolvedSymbol
}

// Len returns the number of registered symbols.
func (s *Symbols) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var n int
	for _, m := range s.data {
		n += len(m)
	}
	return n
}
