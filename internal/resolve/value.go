// Package resolve recovers the value a register holds at a given line of a
// smali program by walking backward through definitions, string builders
// and caller sites.
package resolve

import (
	"fmt"
	"strings"
	"unicode"

	"jsbridge/internal/smali"
)

// Kind classifies how a value was recovered.
type Kind int

const (
	Unresolved   Kind = iota
	Literal           // string constant
	LowSDK            // low-SDK ignore marker, normalized
	Builder           // StringBuilder reconstruction
	Concat            // String.concat
	FieldRef          // field read without a resolvable store
	MethodCall        // return value of a call
	Constructed       // new-instance with constructor arguments
	ArrayValue        // element of a filled array
	Chain             // string manipulation chain
	TypeRef           // concrete class traced from an allocation or cast
	DeclaredType      // type taken from a declaration only
)

var kindNames = [...]string{
	Unresolved:   "unresolved",
	Literal:      "literal",
	LowSDK:       "low_sdk",
	Builder:      "builder",
	Concat:       "concat",
	FieldRef:     "field",
	MethodCall:   "method_call",
	Constructed:  "constructed",
	ArrayValue:   "array",
	Chain:        "chain",
	TypeRef:      "type",
	DeclaredType: "declared_type",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is the outcome of a resolution. Unresolved values are ordinary
// values that remember where the walk stopped.
type Value struct {
	Kind   Kind
	Text   string
	Lit    bool   // Text consists only of literal data
	Reg    string // register where resolution stopped
	Method string // ".method" header where resolution stopped
	Line   int
	Param  bool   // stopped at a method parameter
	Type   string // declared type of that parameter
}

// Resolved reports whether any value or description was recovered.
func (v Value) Resolved() bool { return v.Kind != Unresolved }

// Static reports whether the value is fully determined by literals.
func (v Value) Static() bool { return v.Kind != Unresolved && v.Lit }

// Concrete reports whether a type value names a class other than Object.
func (v Value) Concrete() bool { return v.Kind == TypeRef && v.Text != ObjectType }

// Placeholder renders the value, using tag for an unresolved non-parameter
// register: "<tag>: register=v1 method=<header> line=12".
func (v Value) Placeholder(tag string) string {
	if v.Resolved() {
		return v.Text
	}
	if v.Param {
		typ := v.Type
		if typ == "" {
			typ = "String"
		}
		return fmt.Sprintf("UNRESOLVED_PARAM: %s type=%s method=%s", v.Reg, typ, v.Method)
	}
	return fmt.Sprintf("%s: register=%s method=%s line=%d", tag, v.Reg, v.Method, v.Line)
}

func (v Value) String() string { return v.Placeholder("UNRESOLVED") }

// fragment renders a value as one piece of a reconstructed string.
func fragment(v Value) string {
	switch {
	case v.Static():
		return v.Text
	case v.Param && !v.Resolved():
		return "[Parameter: " + v.Reg + "]"
	case !v.Resolved():
		return "[Unknown: " + v.Reg + "]"
	case v.Kind == MethodCall:
		return "[Method: " + strings.TrimPrefix(v.Text, "Method call: ") + "]"
	}
	return "[" + v.Text + "]"
}

const (
	ObjectType   = "Ljava/lang/Object;"
	StringType   = "Ljava/lang/String;"
	LowSDKMarker = "Ignore addJavascriptInterface due to low Android version"
)

// ValidLiteral rejects strings that cannot be a meaningful URL or value:
// two characters or fewer, prototype fragments, punctuation only, or the
// low-SDK marker.
func ValidLiteral(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) <= 2 {
		return false
	}
	switch s {
	case ");", ")V", "()":
		return false
	}
	if strings.Contains(s, LowSDKMarker) {
		return false
	}
	for _, c := range s {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			return true
		}
	}
	return false
}

// NonEmpty accepts any literal with visible content.
func NonEmpty(s string) bool { return strings.TrimSpace(s) != "" }

// AnyLiteral accepts every literal, including the empty string.
func AnyLiteral(string) bool { return true }

// IsIdentifier reports whether s looks like a JavaScript identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '_' || c == '$' || unicode.IsLetter(c) || (i > 0 && unicode.IsDigit(c)) {
			continue
		}
		return false
	}
	return true
}

func typeRef(desc string, line int) Value {
	return Value{Kind: TypeRef, Text: desc, Line: line}
}

func paramValue(prog *smali.Program, m smali.MethodID, reg string) Value {
	meth := prog.Method(m)
	owner := prog.Class(meth.Class).Name
	v := Value{Reg: reg, Method: meth.Header, Line: meth.Start, Param: true}
	if t, ok := smali.ParamType(owner, meth.Static, meth.Key, reg); ok {
		v.Type = smali.ReadableType(t)
	}
	return v
}
