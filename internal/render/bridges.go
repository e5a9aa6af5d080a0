package render

import (
	"fmt"
	"strings"

	"jsbridge/internal/sink"
)

// BridgeDOT renders findings as a left-to-right graph: each initiating
// class points at the bridge class it exposes (edge labeled with the
// JavaScript interface name) and the bridge class at its exposed methods.
// Content findings point from the initiating class to the loaded value.
// Bridge and value nodes are outlined in the color of their grade.
func BridgeDOT(findings []sink.Finding, title string, t Theme) string {
	var b strings.Builder
	writePreamble(&b, preamble{
		name:     "bridges",
		rankdir:  "LR",
		extra:    []string{"nodesep=0.3", "ranksep=0.8"},
		font:     fontSans,
		fontSize: 9,
		edgePen:  0.6,
	}, title, t)

	nodes := make(map[string]bool)
	node := func(id, attrs string) {
		if nodes[id] {
			return
		}
		nodes[id] = true
		fmt.Fprintf(&b, "  %s [%s];\n", id, attrs)
	}
	edges := make(map[string]bool)
	edge := func(from, to, attrs string) {
		k := from + "\x00" + to + "\x00" + attrs
		if edges[k] {
			return
		}
		edges[k] = true
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", from, to, attrs)
	}

	for _, f := range findings {
		from := dotID(f.Class)
		node(from, fmt.Sprintf("label=%q", truncLabel(className(f.Class), 60)))
		color := confidenceColor(f.Confidence, t)

		if f.Kind == sink.KindBridge {
			to := dotID(f.BridgeClass)
			node(to, fmt.Sprintf("label=%q, color=%q, penwidth=1.5", truncLabel(className(f.BridgeClass), 60), color))
			edge(from, to, fmt.Sprintf("color=%q, label=<%s>", color, fontLabel(f.Interface, color, 8)))
			for _, m := range f.Methods {
				_, key, ok := strings.Cut(m, "] ")
				if !ok {
					key = m
				}
				mid := dotID(f.BridgeClass + "->" + key)
				node(mid, fmt.Sprintf("label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8",
					truncLabel(key, 50), t.ExternalText))
				edge(to, mid, fmt.Sprintf("color=%q, style=\"dotted\"", t.ClusterBorder))
			}
			continue
		}

		to := dotID(f.Sink + "\x00" + f.Value)
		node(to, fmt.Sprintf("label=%q, shape=note, color=%q, penwidth=1.2", truncLabel(f.Value, 60), color))
		edge(from, to, fmt.Sprintf("color=%q, style=\"dashed\", label=<%s>", color, fontLabel(f.Sink, color, 7)))
	}

	b.WriteString("}\n")
	return b.String()
}
