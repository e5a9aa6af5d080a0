package sink

import (
	"fmt"
	"runtime/debug"

	"jsbridge/internal/diag"
	"jsbridge/internal/resolve"
	"jsbridge/internal/slicer"
	"jsbridge/internal/smali"
)

// Context is everything the extractors need for one application.
type Context struct {
	App       string
	Prog      *smali.Program
	Rules     []Rule
	Opts      diag.Options
	Diags     *diag.Diags
	AssetsDir string
}

func (c *Context) rules(k RuleKind) []Rule {
	if len(c.Rules) == 0 {
		return Select(BuiltinRules(), k)
	}
	return Select(c.Rules, k)
}

func (c *Context) base(rule *Rule, pos smali.Pos) Finding {
	f := Finding{
		App:   c.App,
		Sink:  rule.Name,
		Kind:  rule.Kind,
		Class: c.Prog.Class(pos.Class).Name,
		Line:  pos.Line,
	}
	if m, ok := c.Prog.MethodAt(pos); ok {
		f.Method = c.Prog.Method(m).Header
	}
	return f
}

// guard runs fn for one site. A panic becomes an UNKNOWN finding tagged
// internal_error and an internal diagnostic.
func (c *Context) guard(rule *Rule, pos smali.Pos, fn func() (Finding, bool)) (f Finding, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			f = c.base(rule, pos)
			f.Confidence = Unknown
			f.Hints = []string{HintInternal}
			c.Diags.Addf(f.Where(), diag.KindInternal, "%s: panic: %v\n%s", rule.Name, r, debug.Stack())
			ok = true
		}
	}()
	return fn()
}

// ExtractBridges reports every addJavascriptInterface-like call site.
func ExtractBridges(c *Context) []Finding {
	r := resolve.New(c.Prog, c.Opts, c.Diags).WithAccept(resolve.NonEmpty)
	sl := slicer.New(c.Prog, c.Opts, c.Diags)
	var out []Finding
	for _, rule := range c.rules(KindBridge) {
		for _, pos := range c.Prog.Sites(rule.Matches) {
			f, ok := c.guard(&rule, pos, func() (Finding, bool) { return c.bridge(r, sl, &rule, pos) })
			if ok {
				out = append(out, f)
			}
		}
	}
	return out
}

func (c *Context) bridge(r *resolve.Resolver, sl *slicer.Slicer, rule *Rule, pos smali.Pos) (Finding, bool) {
	f := c.base(rule, pos)
	in := c.Prog.Insn(pos)
	objReg, nameReg := in.Arg(rule.ObjectArg), in.Arg(rule.NameArg)
	if objReg == "" || nameReg == "" {
		c.Diags.Addf(f.Where(), diag.KindBadInvoke, "%s: %d registers", rule.Name, len(in.Regs))
		return f, false
	}

	name := r.Resolve(pos, nameReg)
	typ := r.ResolveType(pos, objReg)

	class := ""
	if typ.Concrete() {
		class = typ.Text
	}
	var ins slicer.Inspection
	if class == "" || !name.Resolved() {
		if s, err := sl.SliceSite(pos, objReg); err == nil {
			ins = sl.InspectSite(s, pos)
			f.Slice = s.Entries()
			if class == "" && ins.Bridge != "" && ins.Bridge != resolve.ObjectType {
				class = ins.Bridge
				f.Hints = append(f.Hints, HintSlice)
			}
		}
	}

	nameKnown, window := true, false
	switch {
	case name.Resolved():
		f.Interface = name.Text
		nameKnown = name.Static()
		if name.Kind == resolve.LowSDK {
			f.Hints = append(f.Hints, HintLowSDK)
		}
	case ins.Interface != "":
		f.Interface = ins.Interface
		f.Hints = append(f.Hints, HintSlice)
	default:
		if lit, ok := c.windowLiteral(pos); ok {
			f.Interface = lit
			window = true
			f.Hints = append(f.Hints, HintWindow)
		} else {
			nameKnown = false
			t := name.Type
			if t == "" {
				t = "String"
			}
			f.Interface = "param:" + t
		}
	}

	concrete := class != ""
	switch {
	case concrete:
	case typ.Resolved():
		class = typ.Text
	default:
		class = resolve.ObjectType
	}
	f.BridgeClass = class
	f.Value = class
	f.Methods = BridgeMethods(c.Prog, class)

	switch {
	case nameKnown && concrete:
		f.Confidence = StaticConfirmed
	case nameKnown || concrete:
		f.Confidence = PartialInfo
	default:
		f.Confidence = Unknown
	}
	if window {
		f.Confidence = f.Confidence.Cap(PartialInfo)
	}
	f.Hints = dedup(f.Hints)
	return f, true
}

// windowLiteral finds an identifier-shaped const-string within
// ±BridgeWindow lines of pos and inside its method, nearest first and
// preferring earlier lines.
func (c *Context) windowLiteral(pos smali.Pos) (string, bool) {
	m, ok := c.Prog.MethodAt(pos)
	if !ok {
		return "", false
	}
	meth := c.Prog.Method(m)
	w := c.Opts.EffectiveBridgeWindow()
	for d := 1; d <= w; d++ {
		for _, l := range []int{pos.Line - d, pos.Line + d} {
			if l <= meth.Start || l >= meth.End {
				continue
			}
			in := c.Prog.Insn(smali.Pos{Class: pos.Class, Line: l})
			if in.Kind == smali.KindConstString && in.HasLit && resolve.IsIdentifier(in.Lit) {
				return in.Lit, true
			}
		}
	}
	return "", false
}

// ExtractContent reports every content sink call in classes that also
// call addJavascriptInterface.
func ExtractContent(c *Context) []Finding {
	r := resolve.New(c.Prog, c.Opts, c.Diags)
	bridged := make(map[smali.ClassID]bool)
	for ci := range c.Prog.Classes {
		id := smali.ClassID(ci)
		bridged[id] = c.Prog.Contains(id, smali.AddJSInterface)
	}
	var out []Finding
	for _, rule := range c.rules(KindContent) {
		for _, pos := range c.Prog.Sites(rule.Matches) {
			if !bridged[pos.Class] {
				continue
			}
			f, ok := c.guard(&rule, pos, func() (Finding, bool) { return c.content(r, &rule, pos) })
			if ok {
				out = append(out, f)
			}
		}
	}
	return out
}

func (c *Context) content(r *resolve.Resolver, rule *Rule, pos smali.Pos) (Finding, bool) {
	f := c.base(rule, pos)
	reg := c.Prog.Insn(pos).Arg(rule.ValueArg)
	if reg == "" {
		c.Diags.Addf(f.Where(), diag.KindBadInvoke, "%s: no register at position %d", rule.Name, rule.ValueArg)
		return f, false
	}
	v := r.Resolve(pos, reg)
	f.Value = v.Placeholder(rule.Tag())
	f.Dynamic = DynamicTags(c.Prog, pos, c.Opts.EffectiveDynamicWindow())

	switch {
	case len(f.Dynamic) > 0:
		f.Confidence = MarkedDynamic
	case v.Static():
		f.Confidence = StaticConfirmed
	case v.Resolved():
		f.Confidence = PartialInfo
	default:
		f.Confidence = Unknown
	}
	if f.Confidence != StaticConfirmed {
		f.Hints, f.SourceHint = PartialHints(c.Prog, pos)
	}
	if !v.Resolved() {
		c.Diags.Add(f.Where(), diag.KindUnresolved, fmt.Sprintf("%s: %s", rule.Name, f.Value))
		if inferred := InferAssets(c.AssetsDir); inferred != "" {
			f.Value = "INFERRED_ASSET: " + inferred
			f.Confidence = InferredFromAssets
		}
	}
	f.Categories = Classify(f.Value)
	return f, true
}

func dedup(xs []string) []string {
	var out []string
	for _, x := range xs {
		if !containsCat(out, x) {
			out = append(out, x)
		}
	}
	return out
}
