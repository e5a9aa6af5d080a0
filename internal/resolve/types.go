package resolve

import (
	"strconv"

	"jsbridge/internal/diag"
	"jsbridge/internal/smali"
)

// ResolveType recovers the class of the object in reg just before pos:
// casts, allocations, constructor calls, field types and call return types,
// then caller sites and finally the declared parameter type.
func (r *Resolver) ResolveType(pos smali.Pos, reg string) Value {
	return r.typeOf(pos, reg, 0, newWalk())
}

func (r *Resolver) typeOf(pos smali.Pos, reg string, depth int, w *walk) Value {
	m, ok := r.prog.MethodAt(pos)
	if !ok {
		return Value{Reg: reg, Line: pos.Line}
	}
	meth := r.prog.Method(m)
	for line := pos.Line - 1; line > meth.Start; line-- {
		at := smali.Pos{Class: pos.Class, Line: line}
		in := r.prog.Insn(at)
		switch {
		case in.Kind == smali.KindCheckCast && in.Dst == reg:
			return typeRef(in.Owner, line)
		case in.Kind == smali.KindInvoke && in.Member == "<init>" && !in.Static && in.Arg(0) == reg:
			return typeRef(in.Owner, line)
		}
		if !in.Defines(reg) {
			continue
		}
		switch in.Kind {
		case smali.KindMove:
			reg = in.Src
			continue
		case smali.KindNewInstance:
			return typeRef(in.Owner, line)
		case smali.KindFieldGet:
			return r.fieldType(in, at, depth, w)
		case smali.KindMoveResult:
			inv, ok := r.prevInvoke(at)
			if !ok {
				break
			}
			call := r.prog.Insn(inv)
			if call.Kind == smali.KindFilledNewArray {
				return typeRef(call.Owner, line)
			}
			if v, ok := r.returnType(call, depth, w); ok {
				return v
			}
			return typeRef(call.ReturnType(), line)
		}
		return Value{Reg: reg, Method: meth.Header, Line: line}
	}
	if !smali.IsParam(reg) {
		return Value{Reg: reg, Method: meth.Header, Line: pos.Line}
	}
	owner := r.prog.Class(meth.Class).Name
	if !meth.Static && reg == "p0" {
		return typeRef(owner, meth.Start)
	}
	if v, ok := r.callerType(m, reg, depth, w); ok {
		return v
	}
	miss := paramValue(r.prog, m, reg)
	if t, ok := smali.ParamType(owner, meth.Static, meth.Key, reg); ok {
		return Value{Kind: DeclaredType, Text: t, Reg: reg, Method: meth.Header, Line: meth.Start, Param: true, Type: miss.Type}
	}
	return miss
}

// fieldType prefers the class stored into the field over its declared type.
func (r *Resolver) fieldType(in smali.Insn, at smali.Pos, depth int, w *walk) Value {
	ref := in.Ref()
	key := "ftype:" + ref
	if !w.visited[key] && depth < r.opts.EffectiveMaxDepth() {
		w.visited[key] = true
		for i, put := range r.prog.FieldPuts(ref) {
			if i >= r.opts.EffectiveMaxCallers() {
				break
			}
			if v := r.typeOf(put, r.prog.Insn(put).Src, depth+1, w); v.Concrete() {
				return v
			}
		}
	}
	return Value{Kind: DeclaredType, Text: in.Proto, Line: at.Line}
}

// returnType traces the object returned by a method defined in the program.
func (r *Resolver) returnType(call smali.Insn, depth int, w *walk) (Value, bool) {
	m, ok := r.prog.Lookup(call.Owner, call.Key())
	if !ok || depth >= r.opts.EffectiveMaxDepth() {
		return Value{}, false
	}
	key := "rtype:" + r.prog.Descriptor(m)
	if w.visited[key] {
		return Value{}, false
	}
	w.visited[key] = true
	meth := r.prog.Method(m)
	for _, line := range meth.Returns {
		at := smali.Pos{Class: meth.Class, Line: line}
		ret := r.prog.Insn(at)
		if ret.Src == "" {
			continue
		}
		if v := r.typeOf(at, ret.Src, depth+1, w); v.Concrete() {
			return v, true
		}
	}
	return Value{}, false
}

func (r *Resolver) callerType(m smali.MethodID, reg string, depth int, w *walk) (Value, bool) {
	meth := r.prog.Method(m)
	desc := r.prog.Descriptor(m)
	where := r.prog.Class(meth.Class).Name
	key := "type:" + desc
	if w.visited[key] || depth >= r.opts.EffectiveMaxDepth() {
		r.diags.Addf(where, diag.KindCycle, "%s revisited tracing type of %s", desc, reg)
		return Value{}, false
	}
	w.visited[key] = true
	n, err := strconv.Atoi(reg[1:])
	if err != nil {
		return Value{}, false
	}
	for i, site := range r.prog.Callers(where, meth.Key) {
		if i >= r.opts.EffectiveMaxCallers() {
			r.diags.Addf(where, diag.KindCapReached, "%s: more than %d callers", desc, i)
			break
		}
		call := r.prog.Insn(site)
		if call.Static != meth.Static || call.Arg(n) == "" {
			continue
		}
		if v := r.typeOf(site, call.Arg(n), depth+1, w); v.Concrete() {
			return v, true
		}
	}
	return Value{}, false
}
