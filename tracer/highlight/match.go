package highlight

import (
	"github.com/pkg/errors"

	"github.com/yuuki0xff/tracevis/tracer/types"
)

// Match returns the nodes on c.Graph which are denoted by crit.
//
// The returned nodes are owned by the graph. An empty result means "no matches".
// A nil crit returns an empty result without touching the graph.
func Match(c Context, crit Criterion) ([]*types.Node, error) {
	if crit == nil {
		return []*types.Node{}, nil
	}
	if err := c.check(); err != nil {
		return nil, err
	}

	switch crit := crit.(type) {
	case AddressCriterion:
		return matchAddress(c, crit.Address)
	case SymbolCriterion:
		return matchExtern(c, func(idx types.NodeIndex, n *types.Node) bool {
			return c.Graph.SymbolOf(idx, c.Process) == crit.Symbol
		})
	case ModuleCriterion:
		return matchExtern(c, func(idx types.NodeIndex, n *types.Node) bool {
			return n.Module == crit.Module
		})
	default:
		return nil, errors.Wrapf(types.ErrUnknownCriterion, "%T", crit)
	}
}

// matchAddress returns a node per occurrence of addr on the current thread.
// Occurrences which were not executed on the current thread are skipped.
func matchAddress(c Context, addr types.Address) ([]*types.Node, error) {
	tid := c.Graph.TID()
	list := c.Process.Instructions(addr)

	nodes := make([]*types.Node, 0, len(list))
	for _, ins := range list {
		idx, ok := ins.Vertex(tid)
		if !ok {
			continue
		}
		n, err := c.Graph.NodeAt(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %s", addr)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// matchExtern returns the extern nodes which satisfy fn, in extern list order.
func matchExtern(c Context, fn func(idx types.NodeIndex, n *types.Node) bool) ([]*types.Node, error) {
	snapshot := c.externSnapshot()

	nodes := make([]*types.Node, 0)
	for _, idx := range snapshot {
		n, err := c.Graph.NodeAt(idx)
		if err != nil {
			return nil, err
		}
		if fn(idx, n) {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}
