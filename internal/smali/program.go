package smali

import (
	"sort"
	"strings"
)

// Markers that flag a register as a WebView slicing seed.
const (
	WebViewType      = "Landroid/webkit/WebView;"
	GetSettingsRef   = ";->getSettings()Landroid/webkit/WebSettings;"
	AddJSInterface   = "addJavascriptInterface"
	JSInterfaceAnnot = "Landroid/webkit/JavascriptInterface;"
)

type (
	ClassID  int32
	MethodID int32
	VarID    int32
	UseID    int32
)

// Pos addresses one line of a class. Lines are 1-based and blank lines count.
type Pos struct {
	Class ClassID
	Line  int
}

// Class is one smali file.
type Class struct {
	Name    string
	Decl    int
	Lines   []string
	Insns   []Insn
	Methods []MethodID // in source order
	byKey   map[string]MethodID
	fields  map[string]Insn
}

// Field returns the .field declaration with the given name.
func (c *Class) Field(name string) (Insn, bool) {
	f, ok := c.fields[name]
	return f, ok
}

// Method is the span between ".method" and ".end method".
type Method struct {
	Class       ClassID
	Key         string // name(args)ret
	Header      string // trimmed ".method" line
	Start, End  int
	Static      bool
	JSInterface bool
	Vars        map[string]VarID
	ControlFlow []int
	Returns     []int
	Invokes     []int
}

// Variable is one register within one method.
type Variable struct {
	Method MethodID
	Name   string
	Uses   []UseID // ascending by line
}

// Use is one line that mentions a variable.
type Use struct {
	Var  VarID
	Line int
}

// Program is the arena that owns every class, method, variable and use of
// one application. Cross references are indices into these slices.
type Program struct {
	Classes   []Class
	Methods   []Method
	Vars      []Variable
	Uses      []Use
	Seeds     []VarID    // first-seen order
	Annotated []MethodID // methods carrying the JavascriptInterface annotation

	classByName map[string]ClassID
	callers     map[string][]Pos // method key → invoke sites
	fieldPuts   map[string][]Pos // field ref → put sites
}

// Build decodes every class and indexes registers, uses, call sites and
// slicing seeds in one forward pass. Inputs without a .class directive are
// ignored; a duplicate class name keeps the first definition.
func Build(classes [][]string) *Program {
	p := &Program{
		classByName: make(map[string]ClassID),
		callers:     make(map[string][]Pos),
		fieldPuts:   make(map[string][]Pos),
	}
	seeded := make(map[VarID]bool)
	for _, lines := range classes {
		p.addClass(lines, seeded)
	}
	for k := range p.callers {
		sites := p.callers[k]
		sort.Slice(sites, func(i, j int) bool { return p.less(sites[i], sites[j]) })
	}
	return p
}

func (p *Program) less(a, b Pos) bool {
	na, nb := p.Classes[a.Class].Name, p.Classes[b.Class].Name
	if na != nb {
		return na < nb
	}
	return a.Line < b.Line
}

func (p *Program) addClass(lines []string, seeded map[VarID]bool) {
	insns := make([]Insn, len(lines))
	decl := -1
	for i, l := range lines {
		insns[i] = Decode(l)
		if decl < 0 && insns[i].Kind == KindClass {
			decl = i
		}
	}
	if decl < 0 {
		return
	}
	name := insns[decl].Owner
	if _, dup := p.classByName[name]; dup {
		return
	}
	cid := ClassID(len(p.Classes))
	p.classByName[name] = cid
	p.Classes = append(p.Classes, Class{
		Name:   name,
		Decl:   decl + 1,
		Lines:  lines,
		Insns:  insns,
		byKey:  make(map[string]MethodID),
		fields: make(map[string]Insn),
	})
	c := &p.Classes[cid]

	cur := MethodID(-1)
	lastInvoke := 0
	closeMethod := func(end int) {
		if cur >= 0 {
			p.Methods[cur].End = end
		}
		cur = -1
	}
	for i := range insns {
		in := insns[i]
		line := i + 1
		switch in.Kind {
		case KindField:
			if _, ok := c.fields[in.Member]; !ok {
				c.fields[in.Member] = in
			}
			continue
		case KindMethod:
			closeMethod(line - 1)
			cur = MethodID(len(p.Methods))
			p.Methods = append(p.Methods, Method{
				Class:  cid,
				Key:    in.Key(),
				Header: in.Text,
				Start:  line,
				End:    len(insns),
				Static: in.Static,
				Vars:   make(map[string]VarID),
			})
			c.Methods = append(c.Methods, cur)
			if _, ok := c.byKey[in.Key()]; !ok {
				c.byKey[in.Key()] = cur
			}
			lastInvoke = 0
			continue
		case KindEndMethod:
			closeMethod(line)
			continue
		}
		if cur < 0 {
			continue
		}
		m := &p.Methods[cur]
		producer := lastInvoke
		if in.Op != "" && in.Op[0] != '.' {
			lastInvoke = 0
		}
		switch in.Kind {
		case KindAnnotation:
			if in.Owner == JSInterfaceAnnot && !m.JSInterface {
				m.JSInterface = true
				p.Annotated = append(p.Annotated, cur)
			}
		case KindControlFlow:
			m.ControlFlow = append(m.ControlFlow, line)
		case KindReturn:
			if strings.HasPrefix(in.Op, "return") {
				m.Returns = append(m.Returns, line)
			}
		case KindInvoke:
			m.Invokes = append(m.Invokes, line)
			lastInvoke = line
			key := in.Key()
			p.callers[key] = append(p.callers[key], Pos{cid, line})
		case KindFilledNewArray:
			lastInvoke = line
		case KindMoveResult:
			if producer > 0 {
				m.ControlFlow = append(m.ControlFlow, producer)
			}
		case KindFieldPut:
			ref := in.Ref()
			p.fieldPuts[ref] = append(p.fieldPuts[ref], Pos{cid, line})
		}

		seed := isSeedLine(in.Text)
		for n, reg := range in.Regs {
			v := p.variable(cur, reg)
			p.addUse(v, line)
			if seed && n == 0 && !seeded[v] {
				seeded[v] = true
				p.Seeds = append(p.Seeds, v)
			}
		}
	}
}

func isSeedLine(text string) bool {
	return strings.Contains(text, WebViewType) ||
		strings.Contains(text, GetSettingsRef) ||
		strings.Contains(text, AddJSInterface)
}

func (p *Program) variable(m MethodID, reg string) VarID {
	meth := &p.Methods[m]
	if v, ok := meth.Vars[reg]; ok {
		return v
	}
	v := VarID(len(p.Vars))
	p.Vars = append(p.Vars, Variable{Method: m, Name: reg})
	meth.Vars[reg] = v
	return v
}

func (p *Program) addUse(v VarID, line int) {
	uses := p.Vars[v].Uses
	if n := len(uses); n > 0 && p.Uses[uses[n-1]].Line == line {
		return
	}
	u := UseID(len(p.Uses))
	p.Uses = append(p.Uses, Use{Var: v, Line: line})
	p.Vars[v].Uses = append(uses, u)
}

// ClassByName returns the class with descriptor name.
func (p *Program) ClassByName(name string) (ClassID, bool) {
	id, ok := p.classByName[name]
	return id, ok
}

// Class returns the class for id.
func (p *Program) Class(id ClassID) *Class { return &p.Classes[id] }

// Method returns the method for id.
func (p *Program) Method(id MethodID) *Method { return &p.Methods[id] }

// Lookup finds a method of class by its "name(args)ret" key.
func (p *Program) Lookup(class, key string) (MethodID, bool) {
	cid, ok := p.classByName[class]
	if !ok {
		return -1, false
	}
	m, ok := p.Classes[cid].byKey[key]
	return m, ok
}

// MethodAt returns the method whose span contains pos.
func (p *Program) MethodAt(pos Pos) (MethodID, bool) {
	if pos.Class < 0 || int(pos.Class) >= len(p.Classes) {
		return -1, false
	}
	ms := p.Classes[pos.Class].Methods
	i := sort.Search(len(ms), func(i int) bool { return p.Methods[ms[i]].Start > pos.Line })
	if i == 0 {
		return -1, false
	}
	m := ms[i-1]
	if pos.Line > p.Methods[m].End {
		return -1, false
	}
	return m, true
}

// Line returns the raw text at pos, or "".
func (p *Program) Line(pos Pos) string {
	c := &p.Classes[pos.Class]
	if pos.Line < 1 || pos.Line > len(c.Lines) {
		return ""
	}
	return c.Lines[pos.Line-1]
}

// Insn returns the decoded instruction at pos.
func (p *Program) Insn(pos Pos) Insn {
	c := &p.Classes[pos.Class]
	if pos.Line < 1 || pos.Line > len(c.Insns) {
		return Insn{}
	}
	return c.Insns[pos.Line-1]
}

// Descriptor returns "Lc;->name(args)ret" for a method.
func (p *Program) Descriptor(m MethodID) string {
	meth := &p.Methods[m]
	return p.Classes[meth.Class].Name + "->" + meth.Key
}

// Callers returns every invoke site whose target key matches, sorted by
// class and line. Sites naming owner come first.
func (p *Program) Callers(owner, key string) []Pos {
	sites := p.callers[key]
	out := make([]Pos, 0, len(sites))
	for _, s := range sites {
		if p.Insn(s).Owner == owner {
			out = append(out, s)
		}
	}
	for _, s := range sites {
		if p.Insn(s).Owner != owner {
			out = append(out, s)
		}
	}
	return out
}

// FieldPuts returns every iput/sput site writing the field ref "Lc;->name:T".
func (p *Program) FieldPuts(ref string) []Pos { return p.fieldPuts[ref] }

// Sites returns every invoke site for which match returns true, in class
// order then line order.
func (p *Program) Sites(match func(Insn) bool) []Pos {
	var out []Pos
	for ci := range p.Classes {
		for li, in := range p.Classes[ci].Insns {
			if in.Kind == KindInvoke && match(in) {
				out = append(out, Pos{ClassID(ci), li + 1})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return p.less(out[i], out[j]) })
	return out
}

// Contains reports whether any line of class contains s.
func (p *Program) Contains(class ClassID, s string) bool {
	for _, l := range p.Classes[class].Lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

// Var returns the variable for reg in method m.
func (p *Program) Var(m MethodID, reg string) (VarID, bool) {
	v, ok := p.Methods[m].Vars[reg]
	return v, ok
}

// UseAt returns the use of v on line.
func (p *Program) UseAt(v VarID, line int) (UseID, bool) {
	uses := p.Vars[v].Uses
	i := sort.Search(len(uses), func(i int) bool { return p.Uses[uses[i]].Line >= line })
	if i < len(uses) && p.Uses[uses[i]].Line == line {
		return uses[i], true
	}
	return -1, false
}

// PrevUse returns the use of the same variable on the closest earlier line.
func (p *Program) PrevUse(u UseID) (UseID, bool) {
	use := p.Uses[u]
	uses := p.Vars[use.Var].Uses
	i := sort.Search(len(uses), func(i int) bool { return p.Uses[uses[i]].Line >= use.Line })
	if i == 0 {
		return -1, false
	}
	return uses[i-1], true
}

// LastUse returns the last use of v.
func (p *Program) LastUse(v VarID) (UseID, bool) {
	uses := p.Vars[v].Uses
	if len(uses) == 0 {
		return -1, false
	}
	return uses[len(uses)-1], true
}

// Body returns the lines of m, header and end included.
func (p *Program) Body(m MethodID) []string {
	meth := &p.Methods[m]
	lines := p.Classes[meth.Class].Lines
	end := meth.End
	if end > len(lines) {
		end = len(lines)
	}
	return lines[meth.Start-1 : end]
}
