package highlight

import (
	"sort"
	"strconv"

	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

const UnknownModuleLabel = "[UNKNOWN]"

// ModuleLabel is a label of the module list.
type ModuleLabel struct {
	Module types.ModuleID
	Label  string
}

// ModuleLabels returns labels of all modules in paths, sorted by module ID.
// Label format is "<path> (<count>)". The count is omitted if no extern node uses the module.
func ModuleLabels(cat Catalog, paths map[types.ModuleID]string) []ModuleLabel {
	ids := make([]types.ModuleID, 0, len(paths))
	for id := range paths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	labels := make([]ModuleLabel, 0, len(ids))
	for _, id := range ids {
		label := paths[id]
		if label == types.UnknownModulePath {
			label = UnknownModuleLabel
		}
		if n := cat.ModuleUsage[id]; n > 0 {
			label += " (" + strconv.Itoa(n) + ")"
		}
		labels = append(labels, ModuleLabel{
			Module: id,
			Label:  label,
		})
	}
	return labels
}

// AddressHint returns the address of the first node, for filling the address input.
// It returns an empty string if g has no nodes.
func AddressHint(g *graph.ThreadGraph) string {
	if g == nil {
		return ""
	}
	n, err := g.NodeAt(0)
	if err != nil {
		return ""
	}
	return n.Address.Hex()
}
