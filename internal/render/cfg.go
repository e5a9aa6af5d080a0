package render

import (
	"fmt"
	"strings"

	"jsbridge/internal/smali"
)

// Blocks longer than this are elided in the middle.
const maxBlockLines = 12

// CFGDOT renders the basic-block CFG of method m. Each block is headed by
// its ID and line range; invokes are tinted by call kind and WebView calls
// are drawn in the static-confirmed color. Branch-taken and fallthrough
// edges are labeled T and F.
func CFGDOT(p *smali.Program, m smali.MethodID, t Theme) string {
	cfg := p.BuildCFG(m)
	if len(cfg.Blocks) == 0 {
		return ""
	}
	class := p.Method(m).Class

	var b strings.Builder
	writePreamble(&b, preamble{
		name:     "cfg",
		rankdir:  "TB",
		extra:    []string{"nodesep=0.3", "ranksep=0.4"},
		font:     fontMono,
		fontSize: 8,
		edgePen:  0.7,
	}, cfg.Name, t)

	for _, blk := range cfg.Blocks {
		end := min(blk.End, len(cfg.Lines))
		if blk.Start >= end {
			continue
		}
		rows := []string{fontLabel(fmt.Sprintf("B%d  lines %d-%d", blk.ID, cfg.Lines[blk.Start], cfg.Lines[end-1]), t.ClusterLabel, 7)}
		var body []string
		for i := blk.Start; i < end; i++ {
			body = append(body, blockRow(p, smali.Pos{Class: class, Line: cfg.Lines[i]}, t))
		}
		if len(body) > maxBlockLines {
			head := append(body[:5:5], fmt.Sprintf("... (%d more)", len(body)-10))
			body = append(head, body[len(body)-5:]...)
		}
		rows = append(rows, body...)
		label := strings.Join(rows, `<br align="left"/>`) + `<br align="left"/>`

		var attrs []string
		if blk.IsEntry {
			attrs = append(attrs, "penwidth=1.5", fmt.Sprintf("color=%q", t.EntryBorder))
		}
		if blk.IsTerm {
			attrs = append(attrs, fmt.Sprintf("fillcolor=%q", t.TermFill))
		}
		fmt.Fprintf(&b, "  bb%d [label=<%s>", blk.ID, label)
		for _, a := range attrs {
			b.WriteString(", " + a)
		}
		b.WriteString("];\n")
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		for _, s := range blk.Succs {
			switch s.Cond {
			case "T", "F":
				color := t.EdgeStatic
				if s.Cond == "F" {
					color = t.ConfStatic
				}
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q, label=<%s>];\n", blk.ID, s.BlockID, color, fontLabel(s.Cond, color, 7))
			default:
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q];\n", blk.ID, s.BlockID, t.EdgeVirtual)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// blockRow renders one instruction as "line: text", tinted when it is an
// invoke.
func blockRow(p *smali.Program, pos smali.Pos, t Theme) string {
	text := truncLabel(fmt.Sprintf("%d: %s", pos.Line, strings.TrimSpace(p.Line(pos))), 90)
	in := p.Insn(pos)
	if in.Kind != smali.KindInvoke {
		return dotEscape(text)
	}
	color := edgeColor(ClassifyEdgeProv(in), t)
	if isWebViewCall(in) {
		color = t.ConfStatic
	}
	return fmt.Sprintf(`<font color="%s">%s</font>`, color, dotEscape(text))
}

// webViewCalls are the WebView members highlighted in CFGs.
var webViewCalls = map[string]bool{
	smali.AddJSInterface:        true,
	"loadUrl":                   true,
	"loadData":                  true,
	"loadDataWithBaseURL":       true,
	"evaluateJavascript":        true,
	"removeJavascriptInterface": true,
}

func isWebViewCall(in smali.Insn) bool {
	return webViewCalls[in.Member]
}
