package render

import (
	"fmt"
	"sort"
	"strings"

	"jsbridge/internal/smali"
)

// Provenance categories, one per invoke opcode family.
const (
	ProvVirtual   = "virtual"
	ProvInterface = "interface"
	ProvStatic    = "static"
	ProvDirect    = "direct"
	ProvSuper     = "super"
)

// ClassifyEdgeProv returns the provenance category of an invoke.
// "/range" forms share the category of their fixed form.
func ClassifyEdgeProv(in smali.Insn) string {
	op := strings.TrimSuffix(strings.TrimPrefix(in.Op, "invoke-"), "/range")
	switch op {
	case ProvInterface, ProvStatic, ProvDirect, ProvSuper:
		return op
	default:
		return ProvVirtual
	}
}

// edgeColor returns the DOT color for an edge provenance category.
func edgeColor(prov string, t Theme) string {
	switch prov {
	case ProvInterface:
		return t.EdgeInterface
	case ProvStatic:
		return t.EdgeStatic
	case ProvDirect:
		return t.EdgeDirect
	case ProvSuper:
		return t.EdgeSuper
	default:
		return t.EdgeVirtual
	}
}

// edgeStyle returns dot style attributes for provenance.
func edgeStyle(prov string) string {
	switch prov {
	case ProvInterface:
		return "dotted"
	case ProvSuper:
		return "dashed"
	default:
		return "solid"
	}
}

// CallEdge is one invoke from a program method.
type CallEdge struct {
	From string // caller descriptor
	To   string // callee reference
	Prov string
}

// CallEdges lists the invokes of every method accepted by keep (nil keeps
// all), in program order.
func CallEdges(p *smali.Program, keep func(smali.MethodID) bool) []CallEdge {
	var out []CallEdge
	for mi := range p.Methods {
		m := smali.MethodID(mi)
		if keep != nil && !keep(m) {
			continue
		}
		meth := p.Method(m)
		from := p.Descriptor(m)
		for _, line := range meth.Invokes {
			in := p.Insn(smali.Pos{Class: meth.Class, Line: line})
			if ref := in.Ref(); ref != "" {
				out = append(out, CallEdge{From: from, To: ref, Prov: ClassifyEdgeProv(in)})
			}
		}
	}
	return out
}

// CallgraphDOT renders the call graph of the methods accepted by keep.
// Program methods are clustered by class; callees outside the program are
// plaintext nodes. maxNodes limits the number of method nodes rendered
// (0 = all).
func CallgraphDOT(p *smali.Program, keep func(smali.MethodID) bool, title string, t Theme, maxNodes int) string {
	edges := CallEdges(p, keep)

	type edgeKey struct {
		from, to, prov string
	}
	dedupEdges := make(map[edgeKey]int)
	var order []edgeKey
	for _, e := range edges {
		k := edgeKey{e.From, e.To, e.Prov}
		if dedupEdges[k] == 0 {
			order = append(order, k)
		}
		dedupEdges[k]++
	}

	refNodes := make(map[string]bool)
	for _, k := range order {
		refNodes[k.from] = true
		refNodes[k.to] = true
	}

	// Program methods that participate in edges.
	var renderFuncs []string
	for mi := range p.Methods {
		m := smali.MethodID(mi)
		if keep != nil && !keep(m) {
			continue
		}
		if d := p.Descriptor(m); refNodes[d] {
			renderFuncs = append(renderFuncs, d)
		}
	}
	if maxNodes > 0 && len(renderFuncs) > maxNodes {
		renderFuncs = renderFuncs[:maxNodes]
	}
	funcSet := make(map[string]bool, len(renderFuncs))
	for _, f := range renderFuncs {
		funcSet[f] = true
	}

	var externalNodes []string
	seenExternal := make(map[string]bool)
	for _, k := range order {
		if funcSet[k.from] && !funcSet[k.to] && !seenExternal[k.to] {
			seenExternal[k.to] = true
			externalNodes = append(externalNodes, k.to)
		}
	}

	ownerFuncs := make(map[string][]string)
	var owners []string
	for _, f := range renderFuncs {
		o := ownerOf(f)
		if _, ok := ownerFuncs[o]; !ok {
			owners = append(owners, o)
		}
		ownerFuncs[o] = append(ownerFuncs[o], f)
	}

	var b strings.Builder
	writePreamble(&b, preamble{
		name:     "callgraph",
		rankdir:  "LR",
		extra:    []string{"compound=true", "splines=true", "nodesep=0.4", "ranksep=0.6"},
		font:     fontSans,
		fontSize: 9,
		edgePen:  0.5,
	}, title, t)

	var singles []string
	for _, owner := range owners {
		fs := ownerFuncs[owner]
		if len(fs) < 2 {
			singles = append(singles, fs...)
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", "cluster_"+dotID(owner))
		fmt.Fprintf(&b, "    label=<%s>;\n", fontLabel(className(owner), t.ClusterLabel, 8))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, f := range fs {
			label := truncLabel(stripMethodName(f, owner), 50)
			fmt.Fprintf(&b, "    %s [label=%q];\n", dotID(f), label)
		}
		fmt.Fprintf(&b, "  }\n")
	}
	for _, f := range singles {
		fmt.Fprintf(&b, "  %s [label=%q];\n", dotID(f), truncLabel(f, 60))
	}
	b.WriteByte('\n')

	for _, name := range externalNodes {
		fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
			dotID(name), truncLabel(name, 50), t.ExternalText)
	}
	b.WriteByte('\n')

	for _, k := range order {
		if !funcSet[k.from] {
			continue
		}
		color := edgeColor(k.prov, t)
		attrs := fmt.Sprintf("color=%q, style=%q", color, edgeStyle(k.prov))
		if n := dedupEdges[k]; n > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(n)*0.1)
			if n > 2 {
				attrs += fmt.Sprintf(", label=<%s>", fontLabel(fmt.Sprintf("%dx", n), color, 7))
			}
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

// CallgraphStats summarizes a program's call edges.
type CallgraphStats struct {
	TotalMethods int            `json:"total_methods"`
	TotalEdges   int            `json:"total_edges"`
	UniqueOwners int            `json:"unique_owners"`
	ProvCounts   map[string]int `json:"prov_counts"`
	TopCallers   []NameCount    `json:"top_callers"` // sorted desc
	TopCallees   []NameCount    `json:"top_callees"` // sorted desc
	TopOwners    []NameCount    `json:"top_owners"`  // sorted desc by method count
}

// NameCount pairs a name with a count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ComputeStats computes call graph statistics for a program.
func ComputeStats(p *smali.Program) CallgraphStats {
	edges := CallEdges(p, nil)
	stats := CallgraphStats{
		TotalMethods: len(p.Methods),
		TotalEdges:   len(edges),
		ProvCounts:   make(map[string]int),
	}

	callerCount := make(map[string]int)
	calleeCount := make(map[string]int)
	for _, e := range edges {
		stats.ProvCounts[e.Prov]++
		callerCount[e.From]++
		calleeCount[e.To]++
	}

	ownerCount := make(map[string]int)
	for mi := range p.Methods {
		ownerCount[p.Class(p.Method(smali.MethodID(mi)).Class).Name]++
	}
	stats.UniqueOwners = len(ownerCount)

	stats.TopCallers = topNMap(callerCount, 20)
	stats.TopCallees = topNMap(calleeCount, 20)
	stats.TopOwners = topNMap(ownerCount, 30)
	return stats
}

// topNMap returns the top N entries from a map, sorted descending by count
// then by name.
func topNMap(m map[string]int, n int) []NameCount {
	entries := make([]NameCount, 0, len(m))
	for name, count := range m {
		entries = append(entries, NameCount{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
