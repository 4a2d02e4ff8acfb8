package highlight

import (
	"bytes"
	"log"

	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

const (
	moduleA types.ModuleID = 1
	moduleB types.ModuleID = 2
	moduleC types.ModuleID = 3

	printfAddr types.Address = 0x5000
	mallocAddr types.Address = 0x6000
	loopAddr   types.Address = 0x4010
)

// newTestGraph builds the following graph on thread 2.
//
//	extern list: [node7@printf/moduleA, node9@printf/moduleA, node12@malloc/moduleB]
//	node3 is not an extern node, but its symbol is "malloc".
//	0x4010 is executed 3 times on thread 2 (node1, node4, node5) and once on thread 3.
func newTestGraph() (*graph.Process, *graph.ThreadGraph) {
	p := graph.NewProcess(1234)
	p.AddModule(0, "/bin/app")
	p.AddModule(moduleA, "/usr/lib/libc.so.6")
	p.AddModule(moduleB, "/usr/lib/libmalloc.so")
	p.AddModule(moduleC, types.UnknownModulePath)
	p.AddSymbol(moduleA, printfAddr, "printf")
	p.AddSymbol(moduleB, mallocAddr, "malloc")

	g := graph.NewThreadGraph(2, graph.WithLogger(discardLogger()))
	for i := 0; i < 13; i++ {
		switch i {
		case 3:
			g.AddNode(mallocAddr, moduleB)
		case 7, 9:
			g.AddExternNode(printfAddr, moduleA)
		case 12:
			g.AddExternNode(mallocAddr, moduleB)
		case 1, 4, 5:
			g.AddNode(loopAddr, 0)
		default:
			g.AddNode(0x4100+types.Address(i), 0)
		}
	}

	for _, idx := range []types.NodeIndex{1, 4, 5} {
		ins, err := p.RecordInstruction(loopAddr, []byte{0x90})
		if err != nil {
			panic(err)
		}
		p.AddOccurrence(ins, 2, idx)
	}
	ins, err := p.RecordInstruction(loopAddr, []byte{0x90})
	if err != nil {
		panic(err)
	}
	p.AddOccurrence(ins, 3, 0)

	if err := p.AddThread(g); err != nil {
		panic(err)
	}
	return p, g
}

func discardLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func nodeIndexes(nodes []*types.Node) []types.NodeIndex {
	indexes := make([]types.NodeIndex, len(nodes))
	for i, n := range nodes {
		indexes[i] = n.Index
	}
	return indexes
}
