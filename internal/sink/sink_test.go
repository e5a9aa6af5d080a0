package sink

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"jsbridge/internal/smali"
)

func TestConfidenceOrdering(t *testing.T) {
	order := []Confidence{Unknown, MarkedDynamic, PartialInfo, InferredFromAssets, StaticConfirmed}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] || order[i-1].Score() >= order[i].Score() {
			t.Errorf("%v should rank below %v", order[i-1], order[i])
		}
	}
	if got := StaticConfirmed.Cap(PartialInfo); got != PartialInfo {
		t.Errorf("cap = %v", got)
	}
	if got := Unknown.Cap(PartialInfo); got != Unknown {
		t.Errorf("cap must not raise: %v", got)
	}
	if InferredFromAssets.Type() != "INFERRED_ASSETS" || MarkedDynamic.Score() != 0.3 {
		t.Errorf("type/score mismatch")
	}
}

func TestConfidenceText(t *testing.T) {
	b, err := json.Marshal(struct{ C Confidence }{PartialInfo})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"C":"PARTIAL_INFO"}` {
		t.Errorf("json = %s", b)
	}
	var v struct {
		C Confidence `yaml:"c"`
	}
	if err := yaml.Unmarshal([]byte("c: STATIC\n"), &v); err != nil {
		t.Fatal(err)
	}
	if v.C != StaticConfirmed {
		t.Errorf("yaml = %v", v.C)
	}
	if _, err := ParseConfidence("SURE"); err == nil {
		t.Error("unknown grade should fail")
	}
}

func TestParseRules(t *testing.T) {
	data := []byte(`
- name: addJavascriptInterface
  kind: bridge
  descriptor: "Landroid/webkit/WebView;->addJavascriptInterface(Ljava/lang/Object;Ljava/lang/String;)V"
  object_arg: 1
  name_arg: 2
- name: loadUrl
  kind: content
  descriptor: "Landroid/webkit/WebView;->loadUrl(Ljava/lang/String;)V"
  value_arg: 1
`)
	rules, err := ParseRules(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 || len(Select(rules, KindContent)) != 1 {
		t.Fatalf("rules = %+v", rules)
	}
	in := smali.Decode("invoke-virtual {v3, v0}, Lcom/x/MyWebView;->loadUrl(Ljava/lang/String;)V")
	if !rules[1].Matches(in) {
		t.Error("subclass receiver should match")
	}
	if rules[0].Matches(in) {
		t.Error("bridge rule should not match loadUrl")
	}
	if rules[1].Tag() != "UNRESOLVED_LOADURL" {
		t.Errorf("tag = %q", rules[1].Tag())
	}
}

func TestParseRulesRejectsBadRules(t *testing.T) {
	for _, src := range []string{
		"- {name: a, kind: content, descriptor: nope, value_arg: 1}",
		"- {name: b, kind: bridge, descriptor: \"La;->b(Ljava/lang/Object;)V\"}",
		"- {name: c, kind: sideways, descriptor: \"La;->c()V\"}",
		"not: [a list",
	} {
		if _, err := ParseRules([]byte(src)); err == nil {
			t.Errorf("%q should fail", src)
		}
	}
}

func TestBuiltinRulesCompile(t *testing.T) {
	rules := BuiltinRules()
	if len(Select(rules, KindBridge)) != 1 || len(Select(rules, KindContent)) != 5 {
		t.Fatalf("builtin rules = %+v", rules)
	}
	for _, r := range rules {
		if r.member == "" {
			t.Errorf("rule %s not compiled", r.Name)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"https://cdn.example/app.js", []string{CatRemote}},
		{"http://example.com/?access_token=1", []string{CatRemote, CatInsecure, CatAuth}},
		{"file:///android_asset/index.html", []string{CatAsset}},
		{"file:///sdcard/page.html", []string{CatFile}},
		{"javascript:window.init()", []string{CatJavaScript}},
		{"data:text/html,<html></html>", []string{CatData}},
		{"content://com.x.provider/page", []string{CatContent}},
		{"intent://scan/#Intent;scheme=zxing;end", []string{CatIntent}},
		{"myapp://open", []string{CatIntent}},
		{"UNRESOLVED_LOADURL: register=v0 method=x line=3", nil},
	}
	for _, tt := range tests {
		got := Classify(tt.in)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("Classify(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMaxSeverity(t *testing.T) {
	if got := MaxSeverity([]string{CatAsset, CatRemote}); got != SeverityMedium {
		t.Errorf("got %q", got)
	}
	if got := MaxSeverity([]string{CatRemote, CatInsecure}); got != SeverityHigh {
		t.Errorf("got %q", got)
	}
	if got := MaxSeverity(nil); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestFormatMethods(t *testing.T) {
	got := FormatMethods([]string{"a()V", "b(I)V", "a()V", ""})
	want := []string{"[METHOD 1] a()V", "[METHOD 2] b(I)V"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("got %q", got)
	}
}

func TestPartialHintsTypeString(t *testing.T) {
	p := build(`.class public Lcom/x/ConfigLoader;
.super Ljava/lang/Object;

.method public show(Ljava/lang/String;)V
    .locals 0
    return-void
.end method`)
	hints, src := PartialHints(p, smali.Pos{Class: 0, Line: 6})
	want := []string{HintMethod, HintClass, HintConst, HintString}
	if strings.Join(hints, "|") != strings.Join(want, "|") || src != SourceConst {
		t.Errorf("hints = %q source = %q", hints, src)
	}
}
