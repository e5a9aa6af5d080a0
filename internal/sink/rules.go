package sink

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"jsbridge/internal/smali"
)

// RuleKind selects the extractor a rule feeds.
type RuleKind string

const (
	KindBridge  RuleKind = "bridge"
	KindContent RuleKind = "content"
)

// Rule describes one WebView sink method and which invoke positions carry
// the interesting registers. Position 0 is the receiver.
type Rule struct {
	Name       string   `yaml:"name" json:"name" jsonschema:"required"`
	Kind       RuleKind `yaml:"kind" json:"kind" jsonschema:"required,enum=bridge,enum=content"`
	Descriptor string   `yaml:"descriptor" json:"descriptor" jsonschema:"required,description=Lclass;->name(args)ret of the sink"`
	ObjectArg  int      `yaml:"object_arg,omitempty" json:"object_arg,omitempty"`
	NameArg    int      `yaml:"name_arg,omitempty" json:"name_arg,omitempty"`
	ValueArg   int      `yaml:"value_arg,omitempty" json:"value_arg,omitempty"`

	member string
}

// Compile derives the member suffix used for matching.
func (r *Rule) Compile() error {
	_, m, ok := strings.Cut(r.Descriptor, "->")
	if !ok || !strings.Contains(m, "(") {
		return fmt.Errorf("sink: rule %q: bad descriptor %q", r.Name, r.Descriptor)
	}
	switch r.Kind {
	case KindBridge:
		if r.ObjectArg <= 0 || r.NameArg <= 0 {
			return fmt.Errorf("sink: rule %q: bridge rules need object_arg and name_arg", r.Name)
		}
	case KindContent:
		if r.ValueArg <= 0 {
			return fmt.Errorf("sink: rule %q: content rules need value_arg", r.Name)
		}
	default:
		return fmt.Errorf("sink: rule %q: unknown kind %q", r.Name, r.Kind)
	}
	r.member = m
	return nil
}

// Matches reports whether in invokes the rule's method. The owner is not
// compared so WebView subclasses match too.
func (r *Rule) Matches(in smali.Insn) bool {
	if r.member == "" {
		if err := r.Compile(); err != nil {
			return false
		}
	}
	return in.Kind == smali.KindInvoke && in.Member+in.Proto == r.member
}

// Tag names the placeholder of unresolved values, e.g. UNRESOLVED_LOADURL.
func (r *Rule) Tag() string {
	name, _, _ := strings.Cut(r.Name, "(")
	return "UNRESOLVED_" + strings.ToUpper(name)
}

// BuiltinRules returns the WebView sinks analyzed when no rules file is given.
func BuiltinRules() []Rule {
	const wv = "Landroid/webkit/WebView;->"
	rules := []Rule{
		{Name: "addJavascriptInterface", Kind: KindBridge,
			Descriptor: wv + "addJavascriptInterface(Ljava/lang/Object;Ljava/lang/String;)V", ObjectArg: 1, NameArg: 2},
		{Name: "loadUrl", Kind: KindContent,
			Descriptor: wv + "loadUrl(Ljava/lang/String;)V", ValueArg: 1},
		{Name: "loadUrl", Kind: KindContent,
			Descriptor: wv + "loadUrl(Ljava/lang/String;Ljava/util/Map;)V", ValueArg: 1},
		{Name: "evaluateJavascript", Kind: KindContent,
			Descriptor: wv + "evaluateJavascript(Ljava/lang/String;Landroid/webkit/ValueCallback;)V", ValueArg: 1},
		{Name: "loadData", Kind: KindContent,
			Descriptor: wv + "loadData(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;)V", ValueArg: 1},
		{Name: "loadDataWithBaseURL", Kind: KindContent,
			Descriptor: wv + "loadDataWithBaseURL(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;)V", ValueArg: 2},
	}
	for i := range rules {
		_ = rules[i].Compile()
	}
	return rules
}

// ParseRules decodes a YAML rule list.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("sink: parse rules: %w", err)
	}
	for i := range rules {
		if err := rules[i].Compile(); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// LoadRulesFromFile reads a YAML rules file.
func LoadRulesFromFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sink: read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// Select returns the rules of kind k.
func Select(rules []Rule, k RuleKind) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}
