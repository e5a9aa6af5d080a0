package slicer

import (
	"fmt"

	"jsbridge/internal/diag"
	"jsbridge/internal/smali"
)

// Slicer builds slices against one program.
type Slicer struct {
	prog  *smali.Program
	opts  diag.Options
	diags *diag.Diags
}

// New returns a slicer. diags may be nil.
func New(prog *smali.Program, opts diag.Options, diags *diag.Diags) *Slicer {
	return &Slicer{prog: prog, opts: opts, diags: diags}
}

// SliceAt slices backward from the use of reg on line of the method with
// key in class.
func (s *Slicer) SliceAt(class, key string, line int, reg string) (*Slice, error) {
	if _, ok := s.prog.ClassByName(class); !ok {
		return nil, fmt.Errorf("slicer: unknown class %s", class)
	}
	m, ok := s.prog.Lookup(class, key)
	if !ok {
		return nil, fmt.Errorf("slicer: unknown method %s->%s", class, key)
	}
	v, ok := s.prog.Var(m, reg)
	if !ok {
		return nil, fmt.Errorf("slicer: %s->%s has no register %s", class, key, reg)
	}
	u, ok := s.prog.UseAt(v, line)
	if !ok {
		s.diags.Addf(fmt.Sprintf("%s:%d", class, line), diag.KindMissingUse, "%s not used on this line", reg)
		return nil, fmt.Errorf("slicer: %s is not used at %s:%d", reg, class, line)
	}
	return s.sliceFrom(u), nil
}

// SliceSite slices backward from register reg at an invoke site.
func (s *Slicer) SliceSite(pos smali.Pos, reg string) (*Slice, error) {
	m, ok := s.prog.MethodAt(pos)
	if !ok {
		return nil, fmt.Errorf("slicer: line %d of %s is outside any method", pos.Line, s.prog.Class(pos.Class).Name)
	}
	return s.SliceAt(s.prog.Class(pos.Class).Name, s.prog.Method(m).Key, pos.Line, reg)
}

// pending is a use to walk backward from, down to but excluding line stop.
type pending struct {
	use  smali.UseID
	stop int
}

// sliceFrom runs the worklist. Each dequeued use contributes its line, the
// control flow of its method, and the method and class headers. Walking
// to earlier uses of the same variable, every register on a visited or
// control-flow line is enqueued at that line unless it was already walked
// from that line or a later one, and invokes of known methods enqueue the
// registers of the callee's return statements. Invokes attached to the
// control flow are expanded the same way. At most MaxExpansions callees
// are expanded.
func (s *Slicer) sliceFrom(start smali.UseID) *Slice {
	p := s.prog
	sl := newSlice(p)
	walked := map[smali.VarID]int{p.Uses[start].Var: p.Uses[start].Line}
	queue := []pending{{use: start}}

	enqueue := func(m smali.MethodID, reg string, line int) {
		v, ok := p.Var(m, reg)
		if !ok {
			return
		}
		from, seen := walked[v]
		if seen && line <= from {
			return
		}
		if u, ok := p.UseAt(v, line); ok {
			walked[v] = line
			queue = append(queue, pending{use: u, stop: from})
		}
	}

	limit := s.opts.EffectiveMaxExpansions()
	expanded := map[smali.MethodID]bool{}
	capped := false
	expand := func(mid smali.MethodID, in smali.Insn) {
		if in.Kind != smali.KindInvoke {
			return
		}
		callee, ok := p.Lookup(in.Owner, in.Key())
		if !ok || expanded[callee] {
			return
		}
		if len(expanded) >= limit {
			if !capped {
				capped = true
				s.diags.Addf(p.Descriptor(mid), diag.KindCapReached, "callee expansion stopped at %d", limit)
			}
			return
		}
		expanded[callee] = true
		cm := p.Method(callee)
		for _, rl := range cm.Returns {
			if ret := p.Insn(smali.Pos{Class: cm.Class, Line: rl}); ret.Src != "" {
				enqueue(callee, ret.Src, rl)
			}
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		mid := p.Vars[p.Uses[cur.use].Var].Method
		meth := p.Method(mid)
		class := meth.Class

		for _, cf := range meth.ControlFlow {
			sl.add(class, cf)
			in := p.Insn(smali.Pos{Class: class, Line: cf})
			for _, reg := range in.Regs {
				enqueue(mid, reg, cf)
			}
			expand(mid, in)
		}
		sl.add(class, meth.Start)
		sl.add(class, p.Class(class).Decl)

		for u, ok := cur.use, true; ok && p.Uses[u].Line > cur.stop; u, ok = p.PrevUse(u) {
			line := p.Uses[u].Line
			sl.add(class, line)
			in := p.Insn(smali.Pos{Class: class, Line: line})
			for _, reg := range in.Regs {
				enqueue(mid, reg, line)
			}
			expand(mid, in)
		}
	}
	return sl
}
