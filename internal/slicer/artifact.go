package slicer

import (
	"fmt"
	"strings"

	"jsbridge/internal/diag"
	"jsbridge/internal/smali"
)

// Artifact is the text saved for one bridge-bearing slice: the slice itself,
// the bridge class's annotated methods, and the closure of methods they
// invoke.
type Artifact struct {
	Slice       []string
	Interface   [][]string // body of each exposed method
	Invoked     []string
	MethodNames []string // headers of exposed methods
	Annotated   int
	Expanded    int
}

// ExposedMethods returns the JavascriptInterface methods declared by class.
func (s *Slicer) ExposedMethods(class string) []smali.MethodID {
	cid, ok := s.prog.ClassByName(class)
	if !ok {
		return nil
	}
	var out []smali.MethodID
	for _, m := range s.prog.Annotated {
		if s.prog.Method(m).Class == cid {
			out = append(out, m)
		}
	}
	return out
}

// invokedMethods returns the program methods called from m, in call order.
func (s *Slicer) invokedMethods(m smali.MethodID) []smali.MethodID {
	meth := s.prog.Method(m)
	var out []smali.MethodID
	for _, l := range meth.Invokes {
		in := s.prog.Insn(smali.Pos{Class: meth.Class, Line: l})
		if callee, ok := s.prog.Lookup(in.Owner, in.Key()); ok {
			out = append(out, callee)
		}
	}
	return out
}

// InvokedClosure expands the methods reachable from roots breadth first,
// stopping after MaxExpansions methods. Each method appears once; its
// lines are emitted without repeats.
func (s *Slicer) InvokedClosure(roots []smali.MethodID) ([]string, int) {
	limit := s.opts.EffectiveMaxExpansions()
	seen := make(map[smali.MethodID]bool)
	var queue []smali.MethodID
	for _, r := range roots {
		queue = append(queue, s.invokedMethods(r)...)
	}

	var lines []string
	n := 0
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		if seen[m] {
			continue
		}
		seen[m] = true
		n++
		if n > limit {
			s.diags.Addf(s.prog.Descriptor(m), diag.KindCapReached, "invoked-method expansion stopped at %d", limit)
			n = limit
			break
		}
		queue = append(queue, s.invokedMethods(m)...)
		dup := make(map[string]bool)
		for _, l := range s.prog.Body(m) {
			if dup[l] {
				continue
			}
			dup[l] = true
			lines = append(lines, l)
		}
	}
	return lines, n
}

// Artifact assembles the saved text for a slice whose bridge class is bridge.
func (s *Slicer) Artifact(sl *Slice, bridge string) Artifact {
	a := Artifact{Slice: sl.Lines()}
	exposed := s.ExposedMethods(bridge)
	for _, m := range exposed {
		a.Interface = append(a.Interface, s.prog.Body(m))
		a.MethodNames = append(a.MethodNames, s.prog.Method(m).Header)
	}
	a.Annotated = len(exposed)
	a.Invoked, a.Expanded = s.InvokedClosure(exposed)
	return a
}

// Extra returns every line the artifact adds beyond the slice.
func (a Artifact) Extra() []string {
	var out []string
	for _, body := range a.Interface {
		out = append(out, body...)
	}
	return append(out, a.Invoked...)
}

// Text renders the artifact file.
func (a Artifact) Text() string {
	var b strings.Builder
	for _, l := range a.Slice {
		fmt.Fprintln(&b, l)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Interface Methods:")
	for _, body := range a.Interface {
		for _, l := range body {
			fmt.Fprintln(&b, l)
		}
		fmt.Fprintln(&b)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Invoked Methods:")
	for _, l := range a.Invoked {
		fmt.Fprintln(&b, l)
	}
	return b.String()
}
