// Package render produces Graphviz DOT output for smali programs and
// bridge findings.
package render

import (
	"fmt"
	"strings"

	"jsbridge/internal/smali"
)

// dotEscape escapes a string for use in DOT HTML labels.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// dotID creates a safe DOT identifier from a descriptor.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// stripMethodName removes the owner prefix from a method descriptor.
// "Lc;->run()V" → "run()V". Returns the original if no match.
func stripMethodName(desc, owner string) string {
	prefix := owner + "->"
	if strings.HasPrefix(desc, prefix) {
		return desc[len(prefix):]
	}
	return desc
}

// ownerOf returns the class part of "Lc;->name(args)ret".
func ownerOf(desc string) string {
	if i := strings.Index(desc, "->"); i > 0 {
		return desc[:i]
	}
	return ""
}

// className renders a class descriptor in dotted form.
func className(desc string) string { return smali.Dotted(desc) }

// truncLabel shortens a label to maxLen, appending "..." if truncated.
func truncLabel(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// preamble describes the graph-level attributes of one kind of graph.
type preamble struct {
	name     string // digraph name
	rankdir  string
	extra    []string // additional "key=value" graph attributes
	font     string
	fontSize int
	edgePen  float64
}

// Node fonts used by the renderers.
const (
	fontSans = "Helvetica Neue,Helvetica,Arial"
	fontMono = "Courier,monospace"
)

// writePreamble opens the digraph and writes its defaults and title.
func writePreamble(b *strings.Builder, pa preamble, title string, t Theme) {
	fmt.Fprintf(b, "digraph %s {\n", pa.name)
	fmt.Fprintf(b, "  rankdir=%s;\n", pa.rankdir)
	for _, a := range pa.extra {
		fmt.Fprintf(b, "  %s;\n", a)
	}
	fmt.Fprintf(b, "  bgcolor=%q;\n", t.Background)
	margin := "0.12,0.06"
	if pa.font == fontMono {
		margin = "0.08,0.04"
	}
	fmt.Fprintf(b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=%q, fontsize=%d, fontcolor=%q, margin=%q];\n",
		t.NodeFill, t.NodeBorder, pa.font, pa.fontSize, t.TextColor, margin)
	fmt.Fprintf(b, "  edge [penwidth=%.1f, arrowsize=0.5, arrowhead=vee];\n", pa.edgePen)
	if title != "" {
		b.WriteString("  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')
}

// fontLabel wraps escaped text in an HTML font tag.
func fontLabel(text, color string, size int) string {
	return fmt.Sprintf("<font point-size=\"%d\" color=\"%s\">%s</font>", size, color, dotEscape(text))
}
