package types

import (
	"strconv"
)

const (
	// UnknownModulePath is a path of the module that the tracer could not resolve.
	UnknownModulePath = "NULL"
	// UnresolvedSymbol is returned instead of the symbol name when the symbol is not known.
	UnresolvedSymbol = "?"
)

// Address is an instruction pointer in the traced process.
type Address uint64

// ModuleID is index of the module path table.
type ModuleID int

// NodeIndex is index of the nodes in a thread graph.
type NodeIndex int

// ThreadID is an OS thread ID of the traced process.
type ThreadID uint32

// PID is a process ID of the traced process.
type PID int

// Hex returns address as "0x" prefixed hexadecimal string.
// example: "0x401000"
func (addr Address) Hex() string {
	return "0x" + strconv.FormatUint(uint64(addr), 16)
}
func (addr Address) String() string {
	return addr.Hex()
}

// ParseAddress parses decimal or "0x" prefixed hexadecimal string.
func ParseAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	return Address(v), nil
}

func (id ModuleID) String() string {
	return strconv.Itoa(int(id))
}

func (tid ThreadID) String() string {
	return strconv.FormatUint(uint64(tid), 10)
}

// Node is a vertex in the execution graph of a thread.
// Node objects are owned by graph.ThreadGraph. Do not copy it if you want to refer the node.
type Node struct {
	Index   NodeIndex
	Address Address
	Module  ModuleID
	// External is true if this node is a call/import target placed on the extern list.
	External bool
}

// Instruction is a disassembled instruction at the Address.
// ThreadVerts maps a thread to the node that represents the execution of this instruction on the thread.
type Instruction struct {
	Address  Address
	Length   int
	Mnemonic string
	// Text is the full disassembly in intel syntax.
	Text        string
	ThreadVerts map[ThreadID]NodeIndex
}

// Vertex returns the node index of tid.
func (ins *Instruction) Vertex(tid ThreadID) (NodeIndex, bool) {
	idx, ok := ins.ThreadVerts[tid]
	return idx, ok
}

// InsList is a ordered list of the instruction occurrences which share the same address.
type InsList []*Instruction
