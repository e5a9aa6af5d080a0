package slicer

import (
	"strings"

	"jsbridge/internal/smali"
)

const (
	setJSEnabled = "Landroid/webkit/WebSettings;->setJavaScriptEnabled"
	addJSProto   = "(Ljava/lang/Object;Ljava/lang/String;)V"
)

// Inspection is what a WebView slice says about the WebView it was cut from.
type Inspection struct {
	UsesWebView bool   `json:"uses_webview"`
	JSEnabled   bool   `json:"js_enabled"`
	Injects     bool   `json:"injects"`
	Interface   string `json:"interface,omitempty"`
	// Bridge is the class descriptor of the injected object, "" when the
	// slice does not reveal it.
	Bridge string `json:"bridge,omitempty"`
	// Known is set when Bridge is a class of the program.
	Known bool  `json:"known"`
	Site  Entry `json:"site"`
}

// IsAddJSInterface reports whether in is a WebView.addJavascriptInterface call.
func IsAddJSInterface(in smali.Insn) bool {
	return in.Kind == smali.KindInvoke && in.Member == smali.AddJSInterface && in.Proto == addJSProto
}

// Inspect walks the slice from its last line backward. An
// addJavascriptInterface line starts a search for the object register: moves
// into it redirect the search to their source, and the first check-cast to a
// known class, allocation, field read, or invoke feeding a move-result into
// it names the bridge class. The const-string loaded into the name register
// before the type is found gives the interface name.
func (s *Slicer) Inspect(sl *Slice) Inspection { return s.inspect(sl, nil) }

// InspectSite is Inspect anchored at one addJavascriptInterface call:
// lines ordered after site are ignored and later calls do not restart
// the search.
func (s *Slicer) InspectSite(sl *Slice, site smali.Pos) Inspection { return s.inspect(sl, &site) }

func (s *Slicer) inspect(sl *Slice, site *smali.Pos) Inspection {
	var ins Inspection
	entries := sl.Entries()
	for _, e := range entries {
		if strings.Contains(e.Text, setJSEnabled) {
			ins.JSEnabled = true
		}
		if strings.Contains(e.Text, smali.WebViewType) {
			ins.UsesWebView = true
		}
	}

	search, nameReg := "", ""
	afterResult := false
	found := func(class string) Inspection {
		ins.Bridge = class
		_, ins.Known = s.prog.ClassByName(class)
		return ins
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		pos := smali.Pos{Class: e.ID, Line: e.Line}
		if site != nil && search == "" && pos != *site {
			continue
		}
		in := s.prog.Insn(pos)
		if IsAddJSInterface(in) && (site == nil || search == "") {
			search, nameReg = in.Arg(1), in.Arg(2)
			ins.Injects = true
			ins.Site = e
			continue
		}
		if search == "" {
			continue
		}
		switch {
		case nameReg != "" && in.Kind == smali.KindConstString && in.Dst == nameReg:
			ins.Interface = in.Lit
			nameReg = ""
		case afterResult && in.Kind == smali.KindInvoke:
			return found(in.ReturnType())
		case in.Dst != search:
		case in.Kind == smali.KindMove:
			search = in.Src
		case in.Kind == smali.KindCheckCast:
			if _, ok := s.prog.ClassByName(in.Owner); ok {
				return found(in.Owner)
			}
		case in.Kind == smali.KindNewInstance:
			return found(in.Owner)
		case in.Kind == smali.KindFieldGet:
			return found(in.Proto)
		case in.Kind == smali.KindMoveResult:
			afterResult = true
		}
	}
	return ins
}
