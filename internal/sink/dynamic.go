package sink

import (
	"strings"

	"jsbridge/internal/smali"
)

// Dynamic pattern tags.
const (
	TagConcat  = "STRING_CONCAT"
	TagFormat  = "STRING_FORMAT"
	TagReturn  = "METHOD_RETURN"
	TagBuilder = "STRING_BUILDER"
)

// Partial hints.
const (
	HintMethod   = "method_found"
	HintClass    = "class_found"
	HintNetwork  = "network_hint"
	HintFile     = "file_hint"
	HintConst    = "const_hint"
	HintString   = "type_string"
	HintWindow   = "window_literal"
	HintSlice    = "slice_context"
	HintLowSDK   = "low_sdk"
	HintInternal = "internal_error"
)

// Source hints.
const (
	SourceNetwork = "NETWORK"
	SourceFile    = "FILE"
	SourceConst   = "CONST"
)

// DynamicTags scans the window lines before pos, within its method, for
// operations that build strings at run time. Tags are returned once each,
// in first-seen order.
func DynamicTags(p *smali.Program, pos smali.Pos, window int) []string {
	from := pos.Line - window
	if m, ok := p.MethodAt(pos); ok && from < p.Method(m).Start {
		from = p.Method(m).Start
	}
	if from < 1 {
		from = 1
	}
	var tags []string
	add := func(t string) {
		for _, x := range tags {
			if x == t {
				return
			}
		}
		tags = append(tags, t)
	}
	for l := from; l < pos.Line; l++ {
		line := p.Line(smali.Pos{Class: pos.Class, Line: l})
		if line == "" {
			continue
		}
		if strings.Contains(line, "String;->concat") {
			add(TagConcat)
		}
		if strings.Contains(line, "String;->format") || strings.Contains(line, "String;->replace") {
			add(TagFormat)
		}
		if (strings.Contains(line, "invoke-virtual") || strings.Contains(line, "invoke-static")) &&
			strings.Contains(line, ")Ljava/lang/String;") {
			add(TagReturn)
		}
		if strings.Contains(line, "StringBuilder") || strings.Contains(line, "StringBuffer") {
			add(TagBuilder)
		}
	}
	return tags
}

// PartialHints collects what is known about a sink site whose value is
// not fully resolved: the enclosing method and class, a source guess from
// the class name, and whether the method takes a single String.
func PartialHints(p *smali.Program, pos smali.Pos) (hints []string, source string) {
	m, ok := p.MethodAt(pos)
	if ok {
		hints = append(hints, HintMethod)
	}
	class := p.Class(pos.Class).Name
	if class != "" {
		hints = append(hints, HintClass)
	}
	lower := strings.ToLower(class)
	switch {
	case containsKeyword(lower, []string{"network", "http", "request"}):
		source = SourceNetwork
		hints = append(hints, HintNetwork)
	case containsKeyword(lower, []string{"file", "asset", "storage"}):
		source = SourceFile
		hints = append(hints, HintFile)
	case containsKeyword(lower, []string{"config", "constant"}):
		source = SourceConst
		hints = append(hints, HintConst)
	}
	if ok && strings.Contains(p.Method(m).Key, "(Ljava/lang/String;)") {
		hints = append(hints, HintString)
	}
	return hints, source
}
