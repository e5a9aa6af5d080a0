// Package sink extracts JavaScript-bridge and WebView content findings
// from a smali program and grades each by how much of its value is known.
package sink

import (
	"fmt"

	"jsbridge/internal/slicer"
	"jsbridge/internal/smali"
)

// Finding is one sink call site with its recovered value.
type Finding struct {
	App    string   `json:"app"`
	Sink   string   `json:"sink"`
	Kind   RuleKind `json:"kind"`
	Class  string   `json:"class"`
	Method string   `json:"method"`
	Line   int      `json:"line"`
	// Value is the bridge class for bridge findings and the loaded content
	// or its placeholder for content findings.
	Value       string     `json:"value"`
	BridgeClass string     `json:"bridge_class,omitempty"`
	Interface   string     `json:"interface,omitempty"`
	Methods     []string   `json:"methods,omitempty"`
	Confidence  Confidence `json:"confidence"`
	Dynamic     []string   `json:"dynamic,omitempty"`
	Hints       []string   `json:"hints,omitempty"`
	SourceHint  string     `json:"source_hint,omitempty"`
	Categories  []string   `json:"categories,omitempty"`

	Slice []slicer.Entry `json:"-"`
}

// Where renders "Lc;:line".
func (f Finding) Where() string { return fmt.Sprintf("%s:%d", f.Class, f.Line) }

// FormatMethods numbers method keys as "[METHOD n] name(args)ret",
// dropping duplicates.
func FormatMethods(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, fmt.Sprintf("[METHOD %d] %s", len(out)+1, k))
	}
	return out
}

// BridgeMethods returns the formatted JavascriptInterface methods of class.
func BridgeMethods(p *smali.Program, class string) []string {
	cid, ok := p.ClassByName(class)
	if !ok {
		return nil
	}
	var keys []string
	for _, m := range p.Annotated {
		if meth := p.Method(m); meth.Class == cid {
			keys = append(keys, smali.StripModifiers(meth.Header))
		}
	}
	return FormatMethods(keys)
}
