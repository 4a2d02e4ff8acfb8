// Package disasm decodes instruction bytes captured by the tracer.
package disasm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"github.com/yuuki0xff/tracevis/tracer/types"
)

// Mode is the x86 processor mode (16, 32 or 64).
type Mode int

const (
	Mode32 Mode = 32
	Mode64 Mode = 64
)

// SymbolLookup resolves a branch target to a symbol name. Returns ("", false) if unknown.
type SymbolLookup func(addr types.Address) (name string, ok bool)

// Decode decodes the first instruction in raw as located at addr.
// When raw is not a valid instruction, it returns an error and a ".byte" pseudo instruction.
func Decode(addr types.Address, raw []byte, mode Mode, symbols SymbolLookup) (types.Instruction, error) {
	ins := types.Instruction{
		Address:     addr,
		ThreadVerts: make(map[types.ThreadID]types.NodeIndex),
	}
	if len(raw) == 0 {
		return ins, errors.Errorf("empty instruction at %s", addr)
	}

	inst, err := x86asm.Decode(raw, int(mode))
	if err != nil {
		ins.Length = 1
		ins.Mnemonic = ".byte"
		ins.Text = fmt.Sprintf(".byte 0x%02x", raw[0])
		return ins, errors.Wrapf(err, "decode instruction at %s", addr)
	}

	var lookup x86asm.SymLookup
	if symbols != nil {
		lookup = func(target uint64) (string, uint64) {
			if name, ok := symbols(types.Address(target)); ok {
				return name, target
			}
			return "", 0
		}
	}
	ins.Length = inst.Len
	ins.Text = x86asm.IntelSyntax(inst, uint64(addr), lookup)
	ins.Mnemonic = strings.SplitN(ins.Text, " ", 2)[0]
	return ins, nil
}
