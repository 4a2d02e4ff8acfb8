package highlight

import (
	"sort"

	"github.com/deckarep/golang-set"

	"github.com/yuuki0xff/tracevis/tracer/types"
)

// Catalog is the list of symbols and modules which are used by the extern nodes.
type Catalog struct {
	// Symbols is sorted in ascending order and does not contain duplicates.
	Symbols []string
	// ModuleUsage is the number of extern nodes per module.
	ModuleUsage map[types.ModuleID]int
}

// Clone returns a deep copy.
func (cat Catalog) Clone() Catalog {
	c := Catalog{
		Symbols:     make([]string, len(cat.Symbols)),
		ModuleUsage: make(map[types.ModuleID]int, len(cat.ModuleUsage)),
	}
	copy(c.Symbols, cat.Symbols)
	for id, n := range cat.ModuleUsage {
		c.ModuleUsage[id] = n
	}
	return c
}

// BuildCatalog builds a Catalog from the extern list snapshot.
// snapshot must be taken from c.Graph.
func BuildCatalog(c Context, snapshot []types.NodeIndex) (Catalog, error) {
	if err := c.check(); err != nil {
		return Catalog{}, err
	}

	symbols := mapset.NewThreadUnsafeSet()
	usage := make(map[types.ModuleID]int)
	for _, idx := range snapshot {
		n, err := c.Graph.NodeAt(idx)
		if err != nil {
			return Catalog{}, err
		}
		symbols.Add(c.Graph.SymbolOf(idx, c.Process))
		usage[n.Module]++
	}

	cat := Catalog{
		Symbols:     make([]string, 0, symbols.Cardinality()),
		ModuleUsage: usage,
	}
	for _, s := range symbols.ToSlice() {
		cat.Symbols = append(cat.Symbols, s.(string))
	}
	sort.Strings(cat.Symbols)
	return cat, nil
}
