package smali

import (
	"fmt"
	"strconv"
	"strings"
)

var primitives = map[byte]string{
	'V': "void",
	'Z': "boolean",
	'B': "byte",
	'S': "short",
	'C': "char",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
}

// ReadableType renders a type descriptor as a short Java type name:
// "Ljava/lang/String;" → "String", "[I" → "int[]".
func ReadableType(desc string) string {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	base := desc[dims:]
	var name string
	switch {
	case base == "":
		return desc
	case len(base) == 1:
		p, ok := primitives[base[0]]
		if !ok {
			return desc
		}
		name = p
	case base[0] == 'L':
		name = strings.TrimSuffix(base[1:], ";")
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
	default:
		return desc
	}
	return name + strings.Repeat("[]", dims)
}

// Dotted renders a class descriptor as a dotted Java name:
// "Lcom/x/Y;" → "com.x.Y". Non-class descriptors are returned unchanged.
func Dotted(desc string) string {
	if len(desc) < 3 || desc[0] != 'L' || desc[len(desc)-1] != ';' {
		return desc
	}
	return strings.ReplaceAll(desc[1:len(desc)-1], "/", ".")
}

// ParseParamTypes splits the parameter list of a prototype "(ILjava/lang/String;)V"
// into individual type descriptors.
func ParseParamTypes(proto string) []string {
	open := strings.IndexByte(proto, '(')
	closing := strings.IndexByte(proto, ')')
	if open < 0 || closing < open {
		return nil
	}
	s := proto[open+1 : closing]
	var out []string
	for i := 0; i < len(s); {
		j := i
		for j < len(s) && s[j] == '[' {
			j++
		}
		if j >= len(s) {
			break
		}
		if s[j] == 'L' {
			end := strings.IndexByte(s[j:], ';')
			if end < 0 {
				break
			}
			j += end
		}
		out = append(out, s[i:j+1])
		i = j + 1
	}
	return out
}

// ReturnOf returns the return type of a prototype, or "" if none.
func ReturnOf(proto string) string {
	i := strings.LastIndexByte(proto, ')')
	if i < 0 {
		return ""
	}
	return proto[i+1:]
}

// IsWide reports whether a value of type desc occupies a register pair.
func IsWide(desc string) bool { return desc == "J" || desc == "D" }

// StripModifiers reduces a ".method" header to its "name(args)ret" key.
func StripModifiers(header string) string {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// ReadableMethod renders a method key as a Java-like signature:
// "notify(Ljava/lang/String;I)V" → "void notify(String, int)".
func ReadableMethod(key string) string {
	name, proto := splitNameProto(key)
	params := ParseParamTypes(proto)
	readable := make([]string, len(params))
	for i, p := range params {
		readable[i] = ReadableType(p)
	}
	ret := ReadableType(ReturnOf(proto))
	if ret == "" {
		ret = "void"
	}
	return fmt.Sprintf("%s %s(%s)", ret, name, strings.Join(readable, ", "))
}

// ParamType maps a parameter register to the type it holds on method entry.
// Instance methods receive the owning class in p0. Wide parameters span two
// registers; the upper half reports ok=false.
func ParamType(owner string, static bool, proto, reg string) (string, bool) {
	if !IsParam(reg) {
		return "", false
	}
	n, err := strconv.Atoi(reg[1:])
	if err != nil {
		return "", false
	}
	slot := 0
	if !static {
		if n == 0 {
			return owner, true
		}
		slot = 1
	}
	for _, t := range ParseParamTypes(proto) {
		if slot == n {
			return t, true
		}
		slot++
		if IsWide(t) {
			if slot == n {
				return "", false
			}
			slot++
		}
	}
	return "", false
}
