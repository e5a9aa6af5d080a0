package callgraph

import (
	"github.com/zboralski/lattice"

	"jsbridge/internal/slicer"
	"jsbridge/internal/smali"
)

// BuildCallGraph constructs a lattice.Graph from the methods of a program.
// Each method accepted by keep becomes a node named "Lc;->name(args)ret".
// Each invoke inside it becomes an edge, including calls into classes
// that are not part of the program (framework and library methods).
// A nil keep accepts every method.
func BuildCallGraph(p *smali.Program, keep func(smali.MethodID) bool) *lattice.Graph {
	g := &lattice.Graph{}
	for mi := range p.Methods {
		m := smali.MethodID(mi)
		if keep != nil && !keep(m) {
			continue
		}
		name := p.Descriptor(m)
		g.Nodes = append(g.Nodes, name)
		meth := p.Method(m)
		for _, line := range meth.Invokes {
			in := p.Insn(smali.Pos{Class: meth.Class, Line: line})
			callee := in.Ref()
			if callee == "" {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: name,
				Callee: callee,
			})
		}
	}
	g.Dedup()
	return g
}

// SliceMethods returns the methods that own at least one line of the slice,
// in program order.
func SliceMethods(p *smali.Program, sl *slicer.Slice) []smali.MethodID {
	seen := make(map[smali.MethodID]bool)
	for _, e := range sl.Entries() {
		if m, ok := p.MethodAt(smali.Pos{Class: e.ID, Line: e.Line}); ok {
			seen[m] = true
		}
	}
	var out []smali.MethodID
	for mi := range p.Methods {
		if seen[smali.MethodID(mi)] {
			out = append(out, smali.MethodID(mi))
		}
	}
	return out
}

// BuildSliceGraph is the call graph restricted to the methods a slice
// touches. Only invokes that are themselves part of the slice become edges.
func BuildSliceGraph(p *smali.Program, sl *slicer.Slice) *lattice.Graph {
	g := &lattice.Graph{}
	for _, m := range SliceMethods(p, sl) {
		name := p.Descriptor(m)
		g.Nodes = append(g.Nodes, name)
		meth := p.Method(m)
		for _, line := range meth.Invokes {
			if !sl.Contains(meth.Class, line) {
				continue
			}
			if callee := p.Insn(smali.Pos{Class: meth.Class, Line: line}).Ref(); callee != "" {
				g.Edges = append(g.Edges, lattice.Edge{Caller: name, Callee: callee})
			}
		}
	}
	g.Dedup()
	return g
}
