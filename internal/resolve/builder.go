package resolve

import (
	"strconv"
	"strings"

	"jsbridge/internal/smali"
)

// Builder reconstructs the string produced by a StringBuilder.toString
// call at pos whose receiver is reg. Appended pieces are collected walking
// backward to the builder's new-instance and read left to right.
func (r *Resolver) Builder(pos smali.Pos, reg string) Value {
	return r.builder(pos, reg, 0, newWalk())
}

func (r *Resolver) builder(pos smali.Pos, reg string, depth int, w *walk) Value {
	m, ok := r.prog.MethodAt(pos)
	if !ok {
		return Value{Reg: reg, Line: pos.Line}
	}
	meth := r.prog.Method(m)
	lenient := r.WithAccept(AnyLiteral)
	var parts []Value

walk:
	for line := pos.Line - 1; line > meth.Start; line-- {
		at := smali.Pos{Class: pos.Class, Line: line}
		in := r.prog.Insn(at)
		switch in.Kind {
		case smali.KindNewInstance:
			if in.Dst == reg {
				break walk
			}
		case smali.KindMove:
			if in.Dst == reg {
				reg = in.Src
			}
		case smali.KindMoveResult:
			if in.Dst != reg {
				continue
			}
			// A chained append hands the builder back through move-result.
			inv, ok := r.prevInvoke(at)
			if !ok {
				break walk
			}
			call := r.prog.Insn(inv)
			if !builderOwners[call.Owner] || call.Member != "append" {
				break walk
			}
			reg = call.Arg(0)
		case smali.KindInvoke:
			if !builderOwners[in.Owner] || in.Arg(0) != reg {
				continue
			}
			switch in.Member {
			case "append":
				parts = append([]Value{lenient.appendArg(at, in, depth, w)}, parts...)
			case "<init>":
				if params := smali.ParseParamTypes(in.Proto); len(params) == 1 && isCharSequence(params[0]) {
					parts = append([]Value{lenient.value(at, in.Arg(1), depth, w)}, parts...)
				}
				break walk
			}
		}
	}

	if len(parts) == 0 {
		return Value{Kind: Builder, Text: "Empty StringBuilder", Line: pos.Line}
	}
	var b strings.Builder
	lit := true
	for _, p := range parts {
		b.WriteString(fragment(p))
		lit = lit && p.Static()
	}
	return Value{Kind: Builder, Text: b.String(), Lit: lit, Line: pos.Line}
}

func isCharSequence(t string) bool {
	return t == StringType || t == "Ljava/lang/CharSequence;"
}

// appendArg resolves the argument of one append call.
func (r *Resolver) appendArg(at smali.Pos, in smali.Insn, depth int, w *walk) Value {
	params := smali.ParseParamTypes(in.Proto)
	arg := in.Arg(1)
	if len(params) != 1 || arg == "" {
		return Value{Reg: arg, Method: r.methodAt(at), Line: at.Line}
	}
	switch params[0] {
	case "C", "I", "J", "S", "B", "Z":
		return r.scalar(at, arg, params[0])
	}
	return r.value(at, arg, depth, w)
}

// scalar resolves a primitive append argument from its const definition.
func (r *Resolver) scalar(pos smali.Pos, reg, typ string) Value {
	m, _ := r.prog.MethodAt(pos)
	meth := r.prog.Method(m)
	for line := pos.Line - 1; line > meth.Start; line-- {
		in := r.prog.Insn(smali.Pos{Class: pos.Class, Line: line})
		if !in.Defines(reg) {
			continue
		}
		if in.Kind == smali.KindMove {
			reg = in.Src
			continue
		}
		if in.Kind != smali.KindConst {
			break
		}
		n, err := strconv.ParseInt(strings.TrimRight(in.Lit, "Lts"), 0, 64)
		if err != nil {
			break
		}
		var text string
		switch typ {
		case "C":
			text = string(rune(n))
		case "Z":
			text = strconv.FormatBool(n != 0)
		default:
			text = strconv.FormatInt(n, 10)
		}
		return Value{Kind: Literal, Text: text, Lit: true, Line: line}
	}
	return Value{Reg: reg, Method: meth.Header, Line: pos.Line, Param: smali.IsParam(reg)}
}
