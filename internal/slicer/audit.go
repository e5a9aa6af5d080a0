package slicer

import (
	"jsbridge/internal/smali"
)

// WebViewReport is the audit of one slicing seed.
type WebViewReport struct {
	Class       string   `json:"class"`
	Method      string   `json:"method"`
	Line        int      `json:"line"`
	Register    string   `json:"register"`
	UsesWebView bool     `json:"uses_webview"`
	JSEnabled   bool     `json:"js_enabled"`
	Injects     bool     `json:"injects"`
	Bridge      string   `json:"bridge,omitempty"`
	Interface   string   `json:"interface,omitempty"`
	MethodNames []string `json:"method_names,omitempty"`
	Annotated   int      `json:"annotated"`
	Invoked     int      `json:"invoked"`
	Leaks       []string `json:"leaks,omitempty"`
	SliceLen    int      `json:"slice_len"`

	Artifact *Artifact `json:"-"`
}

// Audit slices every seed at its last use. A seed whose last use falls on
// the same line as the previous seed's is skipped, since it would yield
// the same slice. Artifacts and leaks are only computed when the bridge
// class is part of the program.
func (s *Slicer) Audit(sources []string) []WebViewReport {
	p := s.prog
	var (
		out  []WebViewReport
		prev smali.Pos
		have bool
	)
	for _, seed := range p.Seeds {
		u, ok := p.LastUse(seed)
		if !ok {
			continue
		}
		v := p.Vars[seed]
		meth := p.Method(v.Method)
		pos := smali.Pos{Class: meth.Class, Line: p.Uses[u].Line}
		if have && pos == prev {
			continue
		}
		prev, have = pos, true

		sl := s.sliceFrom(u)
		ins := s.Inspect(sl)
		rep := WebViewReport{
			Class:       p.Class(meth.Class).Name,
			Method:      meth.Key,
			Line:        pos.Line,
			Register:    v.Name,
			UsesWebView: ins.UsesWebView,
			JSEnabled:   ins.JSEnabled,
			Injects:     ins.Injects,
			Bridge:      ins.Bridge,
			Interface:   ins.Interface,
			SliceLen:    sl.Len(),
		}
		if ins.Bridge != "" && ins.Known {
			art := s.Artifact(sl, ins.Bridge)
			rep.Artifact = &art
			rep.MethodNames = art.MethodNames
			rep.Annotated = art.Annotated
			rep.Invoked = art.Expanded
			rep.Leaks = Leaks(sl, art.Extra(), sources)
		}
		out = append(out, rep)
	}
	return out
}
