package resolve

import (
	"fmt"
	"strconv"
	"strings"

	"jsbridge/internal/diag"
	"jsbridge/internal/smali"
)

// Resolver answers "what does register r hold at line l" queries against
// one program. It is not safe for concurrent use: diagnostics accumulate
// in the shared Diags.
type Resolver struct {
	prog  *smali.Program
	opts  diag.Options
	diags *diag.Diags

	// Accept decides which string constants count as values.
	// Rejected constants end the walk unresolved.
	Accept func(string) bool
}

// New returns a resolver using ValidLiteral. diags may be nil.
func New(prog *smali.Program, opts diag.Options, diags *diag.Diags) *Resolver {
	return &Resolver{prog: prog, opts: opts, diags: diags, Accept: ValidLiteral}
}

// WithAccept returns a copy of r using accept for string constants.
func (r *Resolver) WithAccept(accept func(string) bool) *Resolver {
	c := *r
	c.Accept = accept
	return &c
}

// Program returns the program r resolves against.
func (r *Resolver) Program() *smali.Program { return r.prog }

// walk carries the cycle guard of one top-level query.
type walk struct {
	visited map[string]bool
}

func newWalk() *walk { return &walk{visited: make(map[string]bool)} }

// Resolve recovers the value of reg just before the instruction at pos.
func (r *Resolver) Resolve(pos smali.Pos, reg string) Value {
	return r.value(pos, reg, 0, newWalk())
}

func (r *Resolver) where(pos smali.Pos) string {
	return fmt.Sprintf("%s:%d", r.prog.Class(pos.Class).Name, pos.Line)
}

// value walks backward from pos to the method start and dispatches on the
// first instruction that defines reg.
func (r *Resolver) value(pos smali.Pos, reg string, depth int, w *walk) Value {
	m, ok := r.prog.MethodAt(pos)
	if !ok {
		return Value{Reg: reg, Line: pos.Line}
	}
	meth := r.prog.Method(m)
	for line := pos.Line - 1; line > meth.Start; line-- {
		at := smali.Pos{Class: pos.Class, Line: line}
		in := r.prog.Insn(at)
		if !in.Defines(reg) {
			continue
		}
		switch in.Kind {
		case smali.KindConstString:
			return r.literal(in, meth, at)
		case smali.KindMove:
			reg = in.Src
			continue
		case smali.KindCheckCast:
			continue
		case smali.KindFieldGet:
			return r.field(in, at, depth, w)
		case smali.KindMoveResult:
			return r.result(at, depth, w)
		case smali.KindArrayGet:
			return r.element(in, at, depth, w)
		case smali.KindNewInstance:
			return r.constructed(in, at, pos.Line, depth, w)
		}
		return Value{Reg: reg, Method: meth.Header, Line: line}
	}
	if smali.IsParam(reg) {
		return r.fromCallers(m, reg, depth, w)
	}
	return Value{Reg: reg, Method: meth.Header, Line: pos.Line}
}

func (r *Resolver) literal(in smali.Insn, meth *smali.Method, at smali.Pos) Value {
	if strings.Contains(in.Lit, LowSDKMarker) {
		return Value{
			Kind: LowSDK,
			Text: "IGNORE_LOW_SDK:addJavascriptInterface method=" + meth.Header,
			Lit:  true,
			Line: at.Line,
		}
	}
	if !in.HasLit || !r.Accept(in.Lit) {
		r.diags.Addf(r.where(at), diag.KindUnresolved, "rejected literal %q", in.Lit)
		return Value{Reg: in.Dst, Method: meth.Header, Line: at.Line}
	}
	return Value{Kind: Literal, Text: in.Lit, Lit: true, Line: at.Line}
}

// field resolves a field read from its declaration initializer, then from
// stores to the same field anywhere in the program.
func (r *Resolver) field(in smali.Insn, at smali.Pos, depth int, w *walk) Value {
	if cid, ok := r.prog.ClassByName(in.Owner); ok {
		if f, ok := r.prog.Class(cid).Field(in.Member); ok && f.HasLit && r.Accept(f.Lit) {
			return Value{Kind: Literal, Text: f.Lit, Lit: true, Line: at.Line}
		}
	}
	ref := in.Ref()
	key := "field:" + ref
	if !w.visited[key] && depth < r.opts.EffectiveMaxDepth() {
		w.visited[key] = true
		for i, put := range r.prog.FieldPuts(ref) {
			if i >= r.opts.EffectiveMaxCallers() {
				r.diags.Addf(r.where(at), diag.KindCapReached, "field %s: more than %d stores", ref, i)
				break
			}
			if v := r.value(put, r.prog.Insn(put).Src, depth+1, w); v.Static() {
				return v
			}
		}
	}
	label := "Field: "
	if in.Static {
		label = "Static field: "
	}
	return Value{Kind: FieldRef, Text: label + in.Member + ":" + in.Proto, Line: at.Line}
}

// prevInvoke finds the invoke or filled-new-array whose result the
// move-result at pos consumes.
func (r *Resolver) prevInvoke(pos smali.Pos) (smali.Pos, bool) {
	m, ok := r.prog.MethodAt(pos)
	if !ok {
		return pos, false
	}
	start := r.prog.Method(m).Start
	for line := pos.Line - 1; line > start; line-- {
		at := smali.Pos{Class: pos.Class, Line: line}
		in := r.prog.Insn(at)
		if in.Op == "" || in.Op[0] == '.' {
			continue
		}
		if in.Kind == smali.KindInvoke || in.Kind == smali.KindFilledNewArray {
			return at, true
		}
		return pos, false
	}
	return pos, false
}

var builderOwners = map[string]bool{
	"Ljava/lang/StringBuilder;": true,
	"Ljava/lang/StringBuffer;":  true,
}

// String operations rendered as a manipulation chain on their receiver.
var stringOps = map[string]bool{
	"trim": true, "strip": true, "toLowerCase": true, "toUpperCase": true,
	"substring": true, "replace": true, "replaceAll": true, "replaceFirst": true,
	"intern": true,
}

// result resolves a move-result from the call that produced it.
func (r *Resolver) result(at smali.Pos, depth int, w *walk) Value {
	meth := r.methodAt(at)
	inv, ok := r.prevInvoke(at)
	if !ok {
		return Value{Reg: r.prog.Insn(at).Dst, Method: meth, Line: at.Line}
	}
	call := r.prog.Insn(inv)
	if call.Kind == smali.KindFilledNewArray {
		return Value{Kind: ArrayValue, Text: "Array: " + call.Owner, Line: inv.Line}
	}
	switch {
	case builderOwners[call.Owner] && call.Member == "toString":
		return r.builder(inv, call.Arg(0), depth, w)
	case call.Owner == StringType && call.Member == "concat":
		return r.concat(inv, call, depth, w)
	case call.Owner == StringType && call.Member == "format":
		return r.format(inv, call, depth, w)
	case call.Owner == StringType && call.Member == "valueOf" && len(call.Regs) == 1:
		if v := r.value(inv, call.Arg(0), depth, w); v.Static() {
			return v
		}
		return Value{Kind: MethodCall, Text: "String.valueOf(...)", Line: inv.Line}
	case (call.Owner == "Ljava/lang/Integer;" || call.Owner == "Ljava/lang/Long;") && call.Member == "toString":
		return Value{Kind: MethodCall, Text: "Number.toString()", Line: inv.Line}
	case call.Owner == "Ljava/lang/Boolean;" && call.Member == "toString":
		return Value{Kind: MethodCall, Text: "Boolean.toString()", Line: inv.Line}
	case call.Owner == StringType && stringOps[call.Member] && !call.Static:
		return r.chain(inv, call, depth, w)
	}
	if v, ok := r.callee(call, depth, w); ok {
		return v
	}
	return Value{
		Kind: MethodCall,
		Text: fmt.Sprintf("Method call: %s->%s() returns %s", call.Owner, call.Member, call.ReturnType()),
		Line: inv.Line,
	}
}

func (r *Resolver) methodAt(pos smali.Pos) string {
	if m, ok := r.prog.MethodAt(pos); ok {
		return r.prog.Method(m).Header
	}
	return ""
}

func (r *Resolver) concat(inv smali.Pos, call smali.Insn, depth int, w *walk) Value {
	lenient := r.WithAccept(AnyLiteral)
	a := lenient.value(inv, call.Arg(0), depth, w)
	b := lenient.value(inv, call.Arg(1), depth, w)
	return Value{
		Kind: Concat,
		Text: fragment(a) + fragment(b),
		Lit:  a.Static() && b.Static(),
		Line: inv.Line,
	}
}

func (r *Resolver) format(inv smali.Pos, call smali.Insn, depth int, w *walk) Value {
	fmtReg := call.Arg(0)
	if params := smali.ParseParamTypes(call.Proto); len(params) > 0 && params[0] == "Ljava/util/Locale;" {
		fmtReg = call.Arg(1)
	}
	text := "String.format(...)"
	if f := r.WithAccept(NonEmpty).value(inv, fmtReg, depth, w); f.Static() {
		text = "String.format(" + strconv.Quote(f.Text) + ", ...)"
	}
	return Value{Kind: MethodCall, Text: text, Line: inv.Line}
}

func (r *Resolver) chain(inv smali.Pos, call smali.Insn, depth int, w *walk) Value {
	base := r.value(inv, call.Arg(0), depth, w)
	op := " → " + call.Member + "()"
	if base.Kind == Chain {
		return Value{Kind: Chain, Text: base.Text + op, Line: inv.Line}
	}
	return Value{Kind: Chain, Text: "Base: " + fragment(base) + op, Line: inv.Line}
}

// callee resolves the return value of a method defined in the program.
func (r *Resolver) callee(call smali.Insn, depth int, w *walk) (Value, bool) {
	m, ok := r.prog.Lookup(call.Owner, call.Key())
	if !ok || depth >= r.opts.EffectiveMaxDepth() {
		return Value{}, false
	}
	key := "ret:" + r.prog.Descriptor(m)
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
		if v := r.value(at, ret.Src, depth+1, w); v.Static() {
			return v, true
		}
	}
	return Value{}, false
}

// element resolves aget from the slot of its filled-new-array or from the
// latest aput at the same constant index. An index that is not a constant
// yields a non-static element of the array type.
func (r *Resolver) element(in smali.Insn, at smali.Pos, depth int, w *walk) Value {
	m, _ := r.prog.MethodAt(at)
	meth := r.prog.Method(m)
	idx, known := r.index(at, in.Arg(2))
	arr := in.Src
	for line := at.Line - 1; line > meth.Start; line-- {
		def := smali.Pos{Class: at.Class, Line: line}
		d := r.prog.Insn(def)
		if !d.Defines(arr) {
			continue
		}
		switch d.Kind {
		case smali.KindMove:
			arr = d.Src
			continue
		case smali.KindMoveResult:
			fill, ok := r.prevInvoke(def)
			if !ok || r.prog.Insn(fill).Kind != smali.KindFilledNewArray {
				break
			}
			f := r.prog.Insn(fill)
			if !known {
				return someElement(f.Owner, at)
			}
			if idx < 0 || idx >= len(f.Regs) {
				break
			}
			return asElement(r.value(fill, f.Regs[idx], depth, w), at)
		default:
			typ := arrayType(d)
			if !known {
				return someElement(typ, at)
			}
			for l := at.Line - 1; l > line; l-- {
				put := smali.Pos{Class: at.Class, Line: l}
				p := r.prog.Insn(put)
				if p.Kind != smali.KindArrayPut || p.Arg(1) != arr {
					continue
				}
				i, ok := r.index(put, p.Arg(2))
				if !ok {
					return someElement(typ, at)
				}
				if i == idx {
					return asElement(r.value(put, p.Src, depth, w), at)
				}
			}
		}
		break
	}
	return Value{Reg: in.Dst, Method: meth.Header, Line: at.Line}
}

// index resolves an array index register to its constant.
func (r *Resolver) index(pos smali.Pos, reg string) (int, bool) {
	if reg == "" {
		return 0, false
	}
	v := r.scalar(pos, reg, "I")
	if !v.Static() {
		return 0, false
	}
	n, err := strconv.Atoi(v.Text)
	return n, err == nil
}

// arrayType is the type operand of new-array, or "".
func arrayType(d smali.Insn) string {
	if d.Owner != "" {
		return d.Owner
	}
	if strings.HasPrefix(d.Op, "new-array") {
		if f := strings.Fields(d.Text); len(f) > 0 && strings.HasPrefix(f[len(f)-1], "[") {
			return f[len(f)-1]
		}
	}
	return ""
}

func someElement(typ string, at smali.Pos) Value {
	text := "Array element"
	if strings.HasPrefix(typ, "[") {
		text += " of " + smali.ReadableType(typ[1:])
	}
	return Value{Kind: ArrayValue, Text: text, Line: at.Line}
}

func asElement(v Value, at smali.Pos) Value {
	if !v.Resolved() {
		return v
	}
	return Value{Kind: ArrayValue, Text: v.Text, Lit: v.Static(), Line: at.Line}
}

// constructed describes a new-instance from the <init> call that follows it.
func (r *Resolver) constructed(in smali.Insn, at smali.Pos, limit, depth int, w *walk) Value {
	for line := at.Line + 1; line < limit; line++ {
		pos := smali.Pos{Class: at.Class, Line: line}
		call := r.prog.Insn(pos)
		if call.Kind != smali.KindInvoke || call.Member != "<init>" || call.Arg(0) != in.Dst {
			continue
		}
		var frags []string
		slot := 1
		for _, t := range smali.ParseParamTypes(call.Proto) {
			arg := call.Arg(slot)
			slot++
			if smali.IsWide(t) {
				slot++
			}
			if t != StringType {
				frags = append(frags, smali.ReadableType(t))
				continue
			}
			v := r.value(pos, arg, depth, w)
			if in.Owner == StringType && v.Static() {
				return v
			}
			frags = append(frags, fragment(v))
		}
		return Value{
			Kind: Constructed,
			Text: "Constructor: " + in.Owner + "(" + strings.Join(frags, ", ") + ")",
			Line: at.Line,
		}
	}
	return Value{Kind: Constructed, Text: "Constructor: " + in.Owner + "()", Line: at.Line}
}
