// Package fixture loads recorded traces written in YAML.
//
// Example:
//
//	pid: 1234
//	modules:
//	  - {id: 0, path: /bin/app}
//	  - {id: 1, path: /usr/lib/libc.so.6}
//	  - {id: 2}                 # unknown path
//	symbols:
//	  - {module: 1, address: 0x5000, name: printf}
//	threads:
//	  - tid: 2
//	    events:
//	      - {address: 0x4010, bytes: "90"}       # an executed instruction
//	      - {kind: call, address: 0x5000, module: 1}
//	      - {kind: load, module: 3, path: /usr/lib/libz.so}
package fixture

import (
	"encoding/hex"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/yuuki0xff/tracevis/tracer/disasm"
	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

type EventKind string

const (
	// ExecEvent is an execution of an instruction.
	ExecEvent EventKind = "exec"
	// CallEvent is a call to an external function. It creates an extern node.
	CallEvent EventKind = "call"
	// LoadEvent is a module load.
	LoadEvent EventKind = "load"
)

type Trace struct {
	PID     types.PID `yaml:"pid"`
	Mode    int       `yaml:"mode"`
	Modules []Module  `yaml:"modules"`
	Symbols []Symbol  `yaml:"symbols"`
	Threads []Thread  `yaml:"threads"`
}

type Module struct {
	ID   types.ModuleID `yaml:"id"`
	Path string         `yaml:"path"`
}

type Symbol struct {
	Module  types.ModuleID `yaml:"module"`
	Address Address        `yaml:"address"`
	Name    string         `yaml:"name"`
}

type Thread struct {
	TID    types.ThreadID `yaml:"tid"`
	Events []Event        `yaml:"events"`
}

type Event struct {
	Kind    EventKind      `yaml:"kind"`
	Address Address        `yaml:"address"`
	Module  types.ModuleID `yaml:"module"`
	// Bytes is hex encoded instruction bytes. (exec)
	Bytes string `yaml:"bytes"`
	// Symbol registers a symbol name at Address. (call)
	Symbol string `yaml:"symbol"`
	// Path of the loaded module. (load)
	Path string `yaml:"path"`
}

// Address accepts both decimal and "0x" prefixed hexadecimal numbers.
type Address types.Address

func (addr *Address) UnmarshalYAML(value *yaml.Node) error {
	v, err := strconv.ParseUint(value.Value, 0, 64)
	if err != nil {
		return errors.Wrapf(err, "line %d: invalid address %q", value.Line, value.Value)
	}
	*addr = Address(v)
	return nil
}

// Load reads a trace from r.
func Load(r io.Reader) (*Trace, error) {
	var t Trace
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		if err == io.EOF {
			return &t, nil
		}
		return nil, errors.Wrap(err, "failed to decode a trace")
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadFile reads a trace from the file.
func LoadFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open a trace")
	}
	defer f.Close() // nolint: errcheck
	t, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return t, nil
}

func (t *Trace) validate() error {
	switch t.Mode {
	case 0, int(disasm.Mode32), int(disasm.Mode64):
	default:
		return errors.Errorf("unsupported mode: %d", t.Mode)
	}
	seen := map[types.ThreadID]bool{}
	for _, th := range t.Threads {
		if seen[th.TID] {
			return errors.Errorf("duplicated thread: tid=%s", th.TID)
		}
		seen[th.TID] = true
		for i, ev := range th.Events {
			switch ev.Kind {
			case "", ExecEvent, CallEvent, LoadEvent:
			default:
				return errors.Errorf("tid=%s events[%d]: unknown kind %q", th.TID, i, ev.Kind)
			}
			if _, err := hex.DecodeString(ev.Bytes); err != nil {
				return errors.Wrapf(err, "tid=%s events[%d]: invalid bytes", th.TID, i)
			}
		}
	}
	return nil
}

// NewProcess creates a process with the modules and symbols, and empty thread graphs.
func (t *Trace) NewProcess(opts ...graph.Option) (*graph.Process, error) {
	p := graph.NewProcess(t.PID)
	if t.Mode != 0 {
		p.Mode = disasm.Mode(t.Mode)
	}
	for _, m := range t.Modules {
		path := m.Path
		if path == "" {
			path = types.UnknownModulePath
		}
		p.AddModule(m.ID, path)
	}
	for _, s := range t.Symbols {
		p.AddSymbol(s.Module, types.Address(s.Address), s.Name)
	}
	for _, th := range t.Threads {
		if err := p.AddThread(graph.NewThreadGraph(th.TID, opts...)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Build creates a process and applies all events.
func (t *Trace) Build(opts ...graph.Option) (*graph.Process, error) {
	p, err := t.NewProcess(opts...)
	if err != nil {
		return nil, err
	}
	for _, th := range t.Threads {
		g, _ := p.Thread(th.TID)
		for i, ev := range th.Events {
			if err := ev.Apply(p, g); err != nil {
				return nil, errors.Wrapf(err, "tid=%s events[%d]", th.TID, i)
			}
		}
	}
	return p, nil
}

// Apply appends the event to the process and the thread graph.
func (ev Event) Apply(p *graph.Process, g *graph.ThreadGraph) error {
	addr := types.Address(ev.Address)
	switch ev.Kind {
	case LoadEvent:
		path := ev.Path
		if path == "" {
			path = types.UnknownModulePath
		}
		p.AddModule(ev.Module, path)
	case CallEvent:
		if ev.Symbol != "" {
			p.AddSymbol(ev.Module, addr, ev.Symbol)
		}
		g.AddExternNode(addr, ev.Module)
	case ExecEvent, "":
		raw, err := hex.DecodeString(ev.Bytes)
		if err != nil {
			return errors.Wrap(err, "invalid bytes")
		}
		ins, err := p.RecordInstruction(addr, raw)
		if err != nil {
			return err
		}
		idx := g.AddNode(addr, ev.Module)
		p.AddOccurrence(ins, g.TID(), idx)
	default:
		return errors.Errorf("unknown kind %q", ev.Kind)
	}
	return nil
}
