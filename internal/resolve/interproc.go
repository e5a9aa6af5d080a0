package resolve

import (
	"strconv"

	"jsbridge/internal/diag"
	"jsbridge/internal/smali"
)

// fromCallers resolves parameter reg of method m at its call sites. The
// register pN sits at position N of the caller's invoke list because the
// receiver and wide pairs occupy slots in both. The first caller yielding
// a literal wins; otherwise the first descriptive value is returned.
func (r *Resolver) fromCallers(m smali.MethodID, reg string, depth int, w *walk) Value {
	meth := r.prog.Method(m)
	miss := paramValue(r.prog, m, reg)
	desc := r.prog.Descriptor(m)
	where := r.prog.Class(meth.Class).Name

	if w.visited[desc] {
		r.diags.Addf(where, diag.KindCycle, "%s revisited resolving %s", desc, reg)
		return miss
	}
	if depth >= r.opts.EffectiveMaxDepth() {
		r.diags.Addf(where, diag.KindCapReached, "%s: depth %d resolving %s", desc, depth, reg)
		return miss
	}
	w.visited[desc] = true

	n, err := strconv.Atoi(reg[1:])
	if err != nil {
		return miss
	}
	var fallback Value
	for i, site := range r.prog.Callers(where, meth.Key) {
		if i >= r.opts.EffectiveMaxCallers() {
			r.diags.Addf(where, diag.KindCapReached, "%s: more than %d callers", desc, i)
			break
		}
		call := r.prog.Insn(site)
		if call.Static != meth.Static {
			continue
		}
		arg := call.Arg(n)
		if arg == "" {
			r.diags.Addf(r.where(site), diag.KindBadInvoke, "%s has no argument %d", call.Text, n)
			continue
		}
		v := r.value(site, arg, depth+1, w)
		if v.Static() {
			return v
		}
		if v.Resolved() && !fallback.Resolved() {
			fallback = v
		}
	}
	if fallback.Resolved() {
		return fallback
	}
	return miss
}
