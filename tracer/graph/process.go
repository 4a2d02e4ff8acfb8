package graph

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/yuuki0xff/tracevis/tracer/disasm"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

// Process is the record of a traced process.
// It holds module paths, symbols, disassembly and the thread graphs.
// The tracer thread writes to it while UI threads read from it.
type Process struct {
	pid types.PID
	// Mode is used to decode the recorded instructions.
	Mode disasm.Mode

	symbols types.Symbols

	modLock  sync.RWMutex
	modPaths map[types.ModuleID]string

	disasmLock  sync.RWMutex
	disassembly map[types.Address]types.InsList

	threadLock sync.RWMutex
	threads    map[types.ThreadID]*ThreadGraph
}

func NewProcess(pid types.PID) *Process {
	return &Process{
		pid:         pid,
		Mode:        disasm.Mode64,
		modPaths:    make(map[types.ModuleID]string),
		disassembly: make(map[types.Address]types.InsList),
		threads:     make(map[types.ThreadID]*ThreadGraph),
	}
}

func (p *Process) PID() types.PID {
	return p.pid
}

// AddModule registers the path of module id.
// Use types.UnknownModulePath if the path could not be resolved.
func (p *Process) AddModule(id types.ModuleID, path string) {
	p.modLock.Lock()
	defer p.modLock.Unlock()
	p.modPaths[id] = path
}

// ModulePaths returns a copy of the module path table.
func (p *Process) ModulePaths() map[types.ModuleID]string {
	p.modLock.RLock()
	defer p.modLock.RUnlock()
	paths := make(map[types.ModuleID]string, len(p.modPaths))
	for id, path := range p.modPaths {
		paths[id] = path
	}
	return paths
}

// ModulePath returns the path of module id.
func (p *Process) ModulePath(id types.ModuleID) (string, bool) {
	p.modLock.RLock()
	defer p.modLock.RUnlock()
	path, ok := p.modPaths[id]
	return path, ok
}

func (p *Process) ModuleCount() int {
	p.modLock.RLock()
	defer p.modLock.RUnlock()
	return len(p.modPaths)
}

func (p *Process) AddSymbol(mod types.ModuleID, addr types.Address, name string) {
	p.symbols.Add(mod, addr, name)
}

// Symbol returns the symbol name at addr, or types.UnresolvedSymbol.
func (p *Process) Symbol(mod types.ModuleID, addr types.Address) string {
	return p.symbols.Name(mod, addr)
}

// SymbolCount returns the number of known symbols in all modules.
func (p *Process) SymbolCount() int {
	return p.symbols.Len()
}

// RecordInstruction decodes raw and appends a new occurrence of the instruction at addr.
// If raw is empty, the instruction is recorded without decoding.
func (p *Process) RecordInstruction(addr types.Address, raw []byte) (*types.Instruction, error) {
	ins := &types.Instruction{
		Address:     addr,
		ThreadVerts: make(map[types.ThreadID]types.NodeIndex),
	}
	if len(raw) > 0 {
		decoded, err := disasm.Decode(addr, raw, p.Mode, p.lookupSymbol)
		if err != nil {
			return nil, err
		}
		*ins = decoded
	}

	p.disasmLock.Lock()
	defer p.disasmLock.Unlock()
	p.disassembly[addr] = append(p.disassembly[addr], ins)
	return ins, nil
}

// AddOccurrence records that ins was executed as node idx on thread tid.
func (p *Process) AddOccurrence(ins *types.Instruction, tid types.ThreadID, idx types.NodeIndex) {
	p.disasmLock.Lock()
	defer p.disasmLock.Unlock()
	ins.ThreadVerts[tid] = idx
}

// Instructions returns copies of all occurrences recorded at addr, in recorded order.
// It returns an empty list if there is no occurrence.
func (p *Process) Instructions(addr types.Address) types.InsList {
	p.disasmLock.RLock()
	defer p.disasmLock.RUnlock()

	list := p.disassembly[addr]
	copied := make(types.InsList, len(list))
	for i, ins := range list {
		c := *ins
		c.ThreadVerts = make(map[types.ThreadID]types.NodeIndex, len(ins.ThreadVerts))
		for tid, idx := range ins.ThreadVerts {
			c.ThreadVerts[tid] = idx
		}
		copied[i] = &c
	}
	return copied
}

// InstructionText returns the disassembly of the occurrence at addr which was executed as node idx on thread tid.
func (p *Process) InstructionText(addr types.Address, tid types.ThreadID, idx types.NodeIndex) (string, bool) {
	p.disasmLock.RLock()
	defer p.disasmLock.RUnlock()
	for _, ins := range p.disassembly[addr] {
		if v, ok := ins.ThreadVerts[tid]; ok && v == idx {
			return ins.Text, true
		}
	}
	return "", false
}

// AddThread registers a thread graph. It fails if the thread is already registered.
func (p *Process) AddThread(g *ThreadGraph) error {
	p.threadLock.Lock()
	defer p.threadLock.Unlock()
	if _, ok := p.threads[g.TID()]; ok {
		return errors.Errorf("thread %s is already exists", g.TID())
	}
	p.threads[g.TID()] = g
	return nil
}

func (p *Process) Thread(tid types.ThreadID) (*ThreadGraph, bool) {
	p.threadLock.RLock()
	defer p.threadLock.RUnlock()
	g, ok := p.threads[tid]
	return g, ok
}

// Threads returns all thread graphs sorted by thread ID.
func (p *Process) Threads() []*ThreadGraph {
	p.threadLock.RLock()
	defer p.threadLock.RUnlock()
	graphs := make([]*ThreadGraph, 0, len(p.threads))
	for _, g := range p.threads {
		graphs = append(graphs, g)
	}
	sort.Slice(graphs, func(i, j int) bool {
		return graphs[i].TID() < graphs[j].TID()
	})
	return graphs
}

// lookupSymbol resolves a branch target from any module.
func (p *Process) lookupSymbol(addr types.Address) (string, bool) {
	p.modLock.RLock()
	ids := make([]types.ModuleID, 0, len(p.modPaths))
	for id := range p.modPaths {
		ids = append(ids, id)
	}
	p.modLock.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if name, ok := p.symbols.Lookup(id, addr); ok {
			return name, true
		}
	}
	return "", false
}
