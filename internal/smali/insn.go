// Package smali decodes smali text into instructions and builds an arena
// model of classes, methods, registers and register uses.
package smali

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a decoded smali line.
type Kind int

const (
	KindOther Kind = iota
	KindConstString
	KindConst
	KindMove
	KindMoveResult
	KindFieldGet
	KindFieldPut
	KindInvoke
	KindNewInstance
	KindCheckCast
	KindArrayGet
	KindArrayPut
	KindFilledNewArray
	KindControlFlow
	KindReturn
	KindClass
	KindMethod
	KindEndMethod
	KindField
	KindAnnotation
)

var kindNames = [...]string{
	KindOther:          "other",
	KindConstString:    "const-string",
	KindConst:          "const",
	KindMove:           "move",
	KindMoveResult:     "move-result",
	KindFieldGet:       "field-get",
	KindFieldPut:       "field-put",
	KindInvoke:         "invoke",
	KindNewInstance:    "new-instance",
	KindCheckCast:      "check-cast",
	KindArrayGet:       "array-get",
	KindArrayPut:       "array-put",
	KindFilledNewArray: "filled-new-array",
	KindControlFlow:    "control-flow",
	KindReturn:         "return",
	KindClass:          "class",
	KindMethod:         "method",
	KindEndMethod:      "end-method",
	KindField:          "field",
	KindAnnotation:     "annotation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Insn is one decoded smali line. Which fields are set depends on Kind:
//
//	ConstString   Dst, Lit
//	Const         Dst, Lit (raw numeric or type literal)
//	Move          Dst, Src
//	MoveResult    Dst
//	FieldGet      Dst, Src (object, empty for sget), Owner, Member, Proto (field type)
//	FieldPut      Src (value), Owner, Member, Proto
//	Invoke        Regs, Owner, Member, Proto, Static
//	NewInstance   Dst, Owner (type)
//	CheckCast     Dst, Owner (type)
//	ArrayGet      Dst, Src (array)
//	ArrayPut      Src (value)
//	FilledNewArray Regs, Owner (array type)
//	ControlFlow   Label (branch target or label name)
//	Class         Owner
//	Method        Member, Proto, Static
//	Field         Member, Proto, Static, Lit when initialized with a string
//	Annotation    Owner
type Insn struct {
	Kind   Kind
	Op     string
	Dst    string
	Src    string
	Regs   []string // register operands in textual order, ranges expanded
	Lit    string
	HasLit bool
	Owner  string
	Member string
	Proto  string
	Label  string
	Static bool
	Text   string
}

var reReg = regexp.MustCompile(`^[vp]\d+$`)

// IsReg reports whether s is a register name such as v3 or p0.
func IsReg(s string) bool { return reReg.MatchString(s) }

// IsParam reports whether reg names a parameter register.
func IsParam(reg string) bool { return len(reg) > 1 && reg[0] == 'p' && IsReg(reg) }

// Ref returns the member reference "Lc;->name(args)ret" for invokes and
// "Lc;->name:Type" for field accesses.
func (in Insn) Ref() string {
	switch in.Kind {
	case KindInvoke:
		return in.Owner + "->" + in.Member + in.Proto
	case KindFieldGet, KindFieldPut:
		return in.Owner + "->" + in.Member + ":" + in.Proto
	}
	return ""
}

// Key returns the method key "name(args)ret" for invokes and method headers.
func (in Insn) Key() string {
	if in.Kind != KindInvoke && in.Kind != KindMethod {
		return ""
	}
	return in.Member + in.Proto
}

// ReturnType returns the return type descriptor of an invoke or method header.
func (in Insn) ReturnType() string { return ReturnOf(in.Proto) }

// Defines reports whether the instruction writes reg.
func (in Insn) Defines(reg string) bool { return in.Dst != "" && in.Dst == reg }

// UsesReg reports whether reg appears among the operands.
func (in Insn) UsesReg(reg string) bool {
	for _, r := range in.Regs {
		if r == reg {
			return true
		}
	}
	return false
}

// Arg returns the register at invoke position i, or "".
func (in Insn) Arg(i int) string {
	if i < 0 || i >= len(in.Regs) {
		return ""
	}
	return in.Regs[i]
}

// Opcodes that read their first register operand instead of writing it.
var nonDefining = []string{
	"invoke", "if-", "goto", "return", "throw", "monitor-",
	"iput", "sput", "aput", "fill-array-data", "packed-switch",
	"sparse-switch", "filled-new-array", "check-cast", "nop",
}

// Decode classifies one line of smali. It never fails: unknown lines are
// KindOther with Text set.
func Decode(line string) Insn {
	text := strings.TrimSpace(line)
	in := Insn{Text: text}
	if text == "" || text[0] == '#' {
		return in
	}
	if text[0] == ':' {
		in.Kind = KindControlFlow
		in.Op = "label"
		in.Label = text
		return in
	}
	if text[0] == '.' {
		decodeDirective(&in)
		return in
	}

	op, rest, _ := strings.Cut(text, " ")
	in.Op = op
	rest = strings.TrimSpace(rest)

	switch {
	case strings.HasPrefix(op, "const-string"):
		in.Kind = KindConstString
		reg, lit, _ := strings.Cut(rest, ",")
		in.Dst = strings.TrimSpace(reg)
		in.Regs = []string{in.Dst}
		if s, ok := unquote(strings.TrimSpace(lit)); ok {
			in.Lit, in.HasLit = s, true
		}
		return in
	case strings.HasPrefix(op, "invoke-"):
		in.Kind = KindInvoke
		in.Static = strings.Contains(op, "static")
		regs, ref := splitBraces(rest)
		in.Regs = regs
		in.Owner, in.Member, in.Proto = splitMethodRef(ref)
		return in
	case strings.HasPrefix(op, "filled-new-array"):
		in.Kind = KindFilledNewArray
		regs, typ := splitBraces(rest)
		in.Regs = regs
		in.Owner = typ
		return in
	}

	ops := splitOperands(rest)
	for _, o := range ops {
		if IsReg(o) {
			in.Regs = append(in.Regs, o)
		}
	}
	last := ""
	if len(ops) > 0 {
		last = ops[len(ops)-1]
	}
	first := in.Arg(0)

	switch {
	case strings.HasPrefix(op, "move-result"):
		in.Kind = KindMoveResult
		in.Dst = first
	case op == "move-exception":
		in.Dst = first
	case strings.HasPrefix(op, "move"):
		in.Kind = KindMove
		in.Dst = first
		in.Src = in.Arg(1)
	case strings.HasPrefix(op, "const"):
		in.Kind = KindConst
		in.Dst = first
		in.Lit = last
	case strings.HasPrefix(op, "iget") || strings.HasPrefix(op, "sget"):
		in.Kind = KindFieldGet
		in.Static = op[0] == 's'
		in.Dst = first
		if !in.Static {
			in.Src = in.Arg(1)
		}
		in.Owner, in.Member, in.Proto = splitFieldRef(last)
	case strings.HasPrefix(op, "iput") || strings.HasPrefix(op, "sput"):
		in.Kind = KindFieldPut
		in.Static = op[0] == 's'
		in.Src = first
		in.Owner, in.Member, in.Proto = splitFieldRef(last)
	case op == "new-instance":
		in.Kind = KindNewInstance
		in.Dst = first
		in.Owner = last
	case op == "check-cast":
		in.Kind = KindCheckCast
		in.Dst = first
		in.Owner = last
	case strings.HasPrefix(op, "aget"):
		in.Kind = KindArrayGet
		in.Dst = first
		in.Src = in.Arg(1)
	case strings.HasPrefix(op, "aput"):
		in.Kind = KindArrayPut
		in.Src = first
	case strings.HasPrefix(op, "if-") || strings.HasPrefix(op, "goto") ||
		strings.HasSuffix(op, "-switch"):
		in.Kind = KindControlFlow
		if strings.HasPrefix(last, ":") {
			in.Label = last
		}
	case strings.HasPrefix(op, "return") || op == "throw":
		in.Kind = KindReturn
		in.Src = first
	default:
		if first != "" && definesFirst(op) {
			in.Dst = first
		}
	}
	return in
}

func definesFirst(op string) bool {
	for _, p := range nonDefining {
		if strings.HasPrefix(op, p) {
			return false
		}
	}
	return true
}

func decodeDirective(in *Insn) {
	fields := strings.Fields(in.Text)
	in.Op = fields[0]
	last := fields[len(fields)-1]
	switch in.Op {
	case ".class":
		in.Kind = KindClass
		in.Owner = last
	case ".method":
		in.Kind = KindMethod
		in.Static = hasModifier(fields, "static")
		in.Member, in.Proto = splitNameProto(last)
	case ".end":
		if len(fields) > 1 && fields[1] == "method" {
			in.Kind = KindEndMethod
		}
	case ".field":
		in.Kind = KindField
		decl, init, hasInit := strings.Cut(in.Text, " = ")
		df := strings.Fields(decl)
		in.Static = hasModifier(df, "static")
		name, typ, _ := strings.Cut(df[len(df)-1], ":")
		in.Member, in.Proto = name, typ
		if hasInit {
			if s, ok := unquote(strings.TrimSpace(init)); ok {
				in.Lit, in.HasLit = s, true
			}
		}
	case ".catch", ".catchall":
		in.Kind = KindControlFlow
		in.Label = last
	case ".annotation":
		in.Kind = KindAnnotation
		in.Owner = last
	case ".packed-switch", ".sparse-switch":
		in.Kind = KindControlFlow
	}
}

func hasModifier(fields []string, mod string) bool {
	for _, f := range fields[1:] {
		if f == mod {
			return true
		}
	}
	return false
}

// splitBraces parses "{v0, v1}, Lc;->m()V" or "{v0 .. v3}, Lc;->m()V".
func splitBraces(rest string) ([]string, string) {
	open := strings.IndexByte(rest, '{')
	closing := strings.IndexByte(rest, '}')
	if open < 0 || closing < open {
		return nil, strings.TrimSpace(rest)
	}
	inner := strings.TrimSpace(rest[open+1 : closing])
	ref := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest[closing+1:]), ","))
	if inner == "" {
		return nil, ref
	}
	if lo, hi, ok := strings.Cut(inner, ".."); ok {
		return expandRange(strings.TrimSpace(lo), strings.TrimSpace(hi)), ref
	}
	var regs []string
	for _, r := range strings.Split(inner, ",") {
		if r = strings.TrimSpace(r); IsReg(r) {
			regs = append(regs, r)
		}
	}
	return regs, ref
}

func expandRange(lo, hi string) []string {
	if !IsReg(lo) || !IsReg(hi) || lo[0] != hi[0] {
		return nil
	}
	a, _ := strconv.Atoi(lo[1:])
	b, _ := strconv.Atoi(hi[1:])
	if b < a || b-a > 255 {
		return nil
	}
	regs := make([]string, 0, b-a+1)
	for i := a; i <= b; i++ {
		regs = append(regs, lo[:1]+strconv.Itoa(i))
	}
	return regs
}

func splitOperands(rest string) []string {
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitMethodRef splits "Lc;->name(args)ret".
func splitMethodRef(ref string) (owner, name, proto string) {
	owner, member, ok := strings.Cut(ref, "->")
	if !ok {
		return "", "", ""
	}
	name, proto = splitNameProto(member)
	return owner, name, proto
}

func splitNameProto(s string) (string, string) {
	i := strings.IndexByte(s, '(')
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// splitFieldRef splits "Lc;->name:Type".
func splitFieldRef(ref string) (owner, name, typ string) {
	owner, member, ok := strings.Cut(ref, "->")
	if !ok {
		return "", "", ""
	}
	name, typ, _ = strings.Cut(member, ":")
	return owner, name, typ
}

func unquote(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", false
	}
	return Unescape(s[1 : len(s)-1]), true
}

// Unescape decodes the escape sequences smali emits inside string literals.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '0':
			b.WriteByte(0)
		case 'u':
			if i+4 < len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteString(`\u`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
