package highlight

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/yuuki0xff/tracevis/tracer/types"
)

// Criterion is the basis of highlighting.
// It is one of AddressCriterion, SymbolCriterion and ModuleCriterion.
// A nil Criterion disables highlighting.
type Criterion interface {
	// Kind returns "address", "symbol" or "module".
	Kind() string
	String() string
	isCriterion()
}

// AddressCriterion matches every execution of the instruction at Address on the current thread.
type AddressCriterion struct {
	Address types.Address
}

// SymbolCriterion matches the extern nodes whose symbol name equals to Symbol.
type SymbolCriterion struct {
	Symbol string
}

// ModuleCriterion matches the extern nodes which belong to Module.
type ModuleCriterion struct {
	Module types.ModuleID
}

const (
	KindNone    = "none"
	KindAddress = "address"
	KindSymbol  = "symbol"
	KindModule  = "module"
)

func (AddressCriterion) Kind() string { return KindAddress }
func (SymbolCriterion) Kind() string  { return KindSymbol }
func (ModuleCriterion) Kind() string  { return KindModule }

func (c AddressCriterion) String() string { return KindAddress + ":" + c.Address.Hex() }
func (c SymbolCriterion) String() string  { return KindSymbol + ":" + c.Symbol }
func (c ModuleCriterion) String() string  { return KindModule + ":" + c.Module.String() }

func (AddressCriterion) isCriterion() {}
func (SymbolCriterion) isCriterion()  {}
func (ModuleCriterion) isCriterion()  {}

// KindOf returns the kind of c. It returns KindNone if c is nil.
func KindOf(c Criterion) string {
	if c == nil {
		return KindNone
	}
	return c.Kind()
}

// ParseCriterion converts user inputs to Criterion.
// kind is one of "address", "symbol", "module" and "none".
func ParseCriterion(kind, value string) (Criterion, error) {
	switch strings.ToLower(kind) {
	case KindNone, "":
		return nil, nil
	case KindAddress:
		addr, err := types.ParseAddress(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid address %q", value)
		}
		return AddressCriterion{Address: addr}, nil
	case KindSymbol:
		return SymbolCriterion{Symbol: value}, nil
	case KindModule:
		id, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid module id %q", value)
		}
		return ModuleCriterion{Module: types.ModuleID(id)}, nil
	default:
		return nil, errors.Wrapf(types.ErrUnknownCriterion, "kind=%q", kind)
	}
}
