package slicer

import (
	"strings"
	"testing"

	"jsbridge/internal/diag"
	"jsbridge/internal/smali"
)

func build(srcs ...string) *smali.Program {
	var classes [][]string
	for _, s := range srcs {
		classes = append(classes, strings.Split(s, "\n"))
	}
	return smali.Build(classes)
}

const mainClass = `.class public Lcom/x/Main;
.super Landroid/app/Activity;

.method public onCreate(Landroid/os/Bundle;)V
    .locals 3
    new-instance v0, Landroid/webkit/WebView;
    invoke-direct {v0, p0}, Landroid/webkit/WebView;-><init>(Landroid/content/Context;)V
    invoke-virtual {v0}, Landroid/webkit/WebView;->getSettings()Landroid/webkit/WebSettings;
    move-result-object v1
    const/4 v2, 0x1
    invoke-virtual {v1, v2}, Landroid/webkit/WebSettings;->setJavaScriptEnabled(Z)V
    invoke-virtual {p0}, Lcom/x/Main;->makeBridge()Lcom/x/Bridge;
    move-result-object v1
    const-string v2, "Android"
    invoke-virtual {v0, v1, v2}, Landroid/webkit/WebView;->addJavascriptInterface(Ljava/lang/Object;Ljava/lang/String;)V
    return-void
.end method

.method public makeBridge()Lcom/x/Bridge;
    .locals 1
    new-instance v0, Lcom/x/Bridge;
    invoke-direct {v0}, Lcom/x/Bridge;-><init>()V
    return-object v0
.end method`

const bridgeClass = `.class public Lcom/x/Bridge;
.super Ljava/lang/Object;

.method public getToken()Ljava/lang/String;
    .locals 1
    .annotation runtime Landroid/webkit/JavascriptInterface;
    .end annotation
    invoke-static {}, Lcom/x/Store;->token()Ljava/lang/String;
    move-result-object v0
    return-object v0
.end method

.method public hidden()V
    .locals 0
    return-void
.end method`

const storeClass = `.class public Lcom/x/Store;
.super Ljava/lang/Object;

.method public static token()Ljava/lang/String;
    .locals 1
    invoke-static {}, Landroid/telephony/TelephonyManager;->getDeviceId()Ljava/lang/String;
    move-result-object v0
    return-object v0
.end method`

func sliceLines(sl *Slice) []int {
	var out []int
	for _, e := range sl.Entries() {
		out = append(out, e.Line)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSliceAtCompleteness(t *testing.T) {
	s := New(build(mainClass), diag.Options{}, nil)
	sl, err := s.SliceAt("Lcom/x/Main;", "onCreate(Landroid/os/Bundle;)V", 15, "v0")
	if err != nil {
		t.Fatal(err)
	}
	// The makeBridge call producing v1 pulls in the callee up to its return.
	want := []int{1, 4, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 19, 21, 22, 23}
	if got := sliceLines(sl); !equalInts(got, want) {
		t.Errorf("slice lines = %v, want %v", got, want)
	}
	for _, e := range sl.Entries() {
		if e.Class != "Lcom/x/Main;" {
			t.Errorf("entry %+v outside Main", e)
		}
	}
}

func TestSliceFollowsCalleeReturns(t *testing.T) {
	s := New(build(mainClass), diag.Options{}, nil)
	sl, err := s.SliceAt("Lcom/x/Main;", "onCreate(Landroid/os/Bundle;)V", 12, "p0")
	if err != nil {
		t.Fatal(err)
	}
	got := sliceLines(sl)
	for _, l := range []int{19, 21, 22, 23} {
		if !contains(got, l) {
			t.Errorf("slice %v misses callee line %d", got, l)
		}
	}
	if contains(got, 16) {
		t.Errorf("slice %v should not include return-void of the caller", got)
	}
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func TestSliceAtErrors(t *testing.T) {
	var d diag.Diags
	s := New(build(mainClass), diag.Options{}, &d)
	if _, err := s.SliceAt("Lcom/x/Nope;", "a()V", 1, "v0"); err == nil {
		t.Error("unknown class should fail")
	}
	if _, err := s.SliceAt("Lcom/x/Main;", "nope()V", 1, "v0"); err == nil {
		t.Error("unknown method should fail")
	}
	if _, err := s.SliceAt("Lcom/x/Main;", "onCreate(Landroid/os/Bundle;)V", 6, "v9"); err == nil {
		t.Error("unknown register should fail")
	}
	if _, err := s.SliceAt("Lcom/x/Main;", "onCreate(Landroid/os/Bundle;)V", 10, "v0"); err == nil {
		t.Error("missing use should fail")
	}
	if d.Count()[diag.KindMissingUse] != 1 {
		t.Errorf("diags = %v", d.Items())
	}
}

func TestInspectBridgeThroughReturn(t *testing.T) {
	p := build(mainClass, bridgeClass)
	s := New(p, diag.Options{}, nil)
	sl, err := s.SliceAt("Lcom/x/Main;", "onCreate(Landroid/os/Bundle;)V", 15, "v0")
	if err != nil {
		t.Fatal(err)
	}
	ins := s.Inspect(sl)
	if !ins.Injects || !ins.JSEnabled || !ins.UsesWebView {
		t.Errorf("flags = %+v", ins)
	}
	if ins.Bridge != "Lcom/x/Bridge;" || !ins.Known {
		t.Errorf("bridge = %q known=%v", ins.Bridge, ins.Known)
	}
	if ins.Interface != "Android" {
		t.Errorf("interface = %q", ins.Interface)
	}
	if ins.Site.Line != 15 {
		t.Errorf("site = %+v", ins.Site)
	}
}

const allocSite = `.class public Lcom/x/Setup;
.super Ljava/lang/Object;

.method public setup(Landroid/webkit/WebView;)V
    .locals 3
    new-instance v0, Lcom/x/Missing;
    invoke-direct {v0}, Lcom/x/Missing;-><init>()V
    move-object v2, v0
    const-string v1, "JSBridge"
    invoke-virtual {p1, v2, v1}, Landroid/webkit/WebView;->addJavascriptInterface(Ljava/lang/Object;Ljava/lang/String;)V
    return-void
.end method`

func TestInspectAllocationUnknownClass(t *testing.T) {
	s := New(build(allocSite), diag.Options{}, nil)
	sl, err := s.SliceAt("Lcom/x/Setup;", "setup(Landroid/webkit/WebView;)V", 10, "p1")
	if err != nil {
		t.Fatal(err)
	}
	ins := s.Inspect(sl)
	if ins.Bridge != "Lcom/x/Missing;" || ins.Known {
		t.Errorf("bridge = %q known=%v", ins.Bridge, ins.Known)
	}
	if ins.Interface != "JSBridge" {
		t.Errorf("interface = %q", ins.Interface)
	}
	if ins.JSEnabled {
		t.Error("no setJavaScriptEnabled in slice")
	}
}

func TestAuditReports(t *testing.T) {
	p := build(mainClass, bridgeClass, storeClass)
	s := New(p, diag.Options{}, nil)
	sources := []string{
		"Landroid/telephony/TelephonyManager;->getDeviceId()",
		"Landroid/webkit/WebView;->getSettings()",
		"Landroid/location/Location;->getLatitude()",
	}
	reps := s.Audit(sources)
	if len(reps) != 1 {
		t.Fatalf("reports = %d, want 1", len(reps))
	}
	r := reps[0]
	if r.Class != "Lcom/x/Main;" || r.Line != 15 || r.Register != "v0" {
		t.Errorf("report site = %+v", r)
	}
	if r.Bridge != "Lcom/x/Bridge;" || r.Interface != "Android" {
		t.Errorf("bridge = %q / %q", r.Bridge, r.Interface)
	}
	if r.Annotated != 1 || r.Invoked != 1 {
		t.Errorf("annotated=%d invoked=%d", r.Annotated, r.Invoked)
	}
	if len(r.MethodNames) != 1 || r.MethodNames[0] != ".method public getToken()Ljava/lang/String;" {
		t.Errorf("method names = %q", r.MethodNames)
	}
	if len(r.Leaks) != 1 || r.Leaks[0] != sources[0] {
		t.Errorf("leaks = %q", r.Leaks)
	}
	if r.Artifact == nil {
		t.Fatal("missing artifact")
	}
	text := r.Artifact.Text()
	for _, want := range []string{"Interface Methods:", "Invoked Methods:", "getDeviceId", ".method public getToken()"} {
		if !strings.Contains(text, want) {
			t.Errorf("artifact misses %q", want)
		}
	}
	if strings.Contains(text, "hidden()V") {
		t.Error("artifact should only carry annotated methods")
	}
	if i, j := strings.Index(text, "Interface Methods:"), strings.Index(text, "Invoked Methods:"); i > j {
		t.Error("sections out of order")
	}
}

func TestAuditWithoutBridgeClass(t *testing.T) {
	s := New(build(mainClass), diag.Options{}, nil)
	reps := s.Audit(nil)
	if len(reps) != 1 {
		t.Fatalf("reports = %d", len(reps))
	}
	if reps[0].Artifact != nil || reps[0].Bridge != "Lcom/x/Bridge;" {
		t.Errorf("report = %+v", reps[0])
	}
}

const chain = `.class public Lcom/x/Chain;
.super Ljava/lang/Object;

.method public static a()V
    .locals 0
    invoke-static {}, Lcom/x/Chain;->b()V
    return-void
.end method

.method public static b()V
    .locals 0
    invoke-static {}, Lcom/x/Chain;->c()V
    return-void
.end method

.method public static c()V
    .locals 0
    invoke-static {}, Lcom/x/Chain;->a()V
    return-void
.end method`

func TestInvokedClosureCap(t *testing.T) {
	p := build(chain)
	a, _ := p.Lookup("Lcom/x/Chain;", "a()V")

	_, n := New(p, diag.Options{}, nil).InvokedClosure([]smali.MethodID{a})
	if n != 3 {
		t.Errorf("expanded = %d, want 3", n)
	}

	var d diag.Diags
	lines, n := New(p, diag.Options{MaxExpansions: 2}, &d).InvokedClosure([]smali.MethodID{a})
	if n != 2 {
		t.Errorf("capped expanded = %d, want 2", n)
	}
	if d.Count()[diag.KindCapReached] != 1 {
		t.Errorf("diags = %v", d.Items())
	}
	for _, l := range lines {
		if strings.Contains(l, ".method public static a()V") {
			t.Error("capped closure should stop before a()")
		}
	}
}

func TestLeaksDedupAndOrder(t *testing.T) {
	s := New(build(storeClass), diag.Options{}, nil)
	sl, err := s.SliceAt("Lcom/x/Store;", "token()Ljava/lang/String;", 8, "v0")
	if err != nil {
		t.Fatal(err)
	}
	got := Leaks(sl, []string{"    invoke-virtual {v0}, Landroid/location/Location;->getLatitude()D"}, []string{
		"Landroid/location/Location;->getLatitude()",
		"  ",
		"Landroid/telephony/TelephonyManager;->getDeviceId()",
	})
	if len(got) != 2 || got[0] != "Landroid/location/Location;->getLatitude()" {
		t.Errorf("leaks = %q", got)
	}
}

const staleClass = `.class public Lcom/x/Stale;
.super Ljava/lang/Object;

.method public load(Lcom/x/Web;)V
    .locals 4
    const/4 v0, 0x1
    const-string v2, "old"
    move-object v1, v2
    const-string v2, "https://evil.example"
    move-object v3, v2
    if-eqz v0, :cond_0
    invoke-virtual {p1, v1, v3}, Lcom/x/Web;->load(Ljava/lang/String;Ljava/lang/String;)V
    :cond_0
    return-void
.end method`

// checkDefsIncluded fails when a register read on a slice line has its
// nearest earlier definition in the method outside the slice.
func checkDefsIncluded(t *testing.T, p *smali.Program, sl *Slice) {
	t.Helper()
	for _, e := range sl.Entries() {
		pos := smali.Pos{Class: e.ID, Line: e.Line}
		m, ok := p.MethodAt(pos)
		if !ok {
			continue
		}
		start := p.Method(m).Start
		for _, reg := range p.Insn(pos).Regs {
			for l := e.Line - 1; l > start; l-- {
				if !p.Insn(smali.Pos{Class: e.ID, Line: l}).Defines(reg) {
					continue
				}
				if !sl.Contains(e.ID, l) {
					t.Errorf("%s:%d reads %s defined on line %d outside the slice", e.Class, e.Line, reg, l)
				}
				break
			}
		}
	}
}

func TestSliceReachesNearestDefinition(t *testing.T) {
	s := New(build(staleClass), diag.Options{}, nil)
	sl, err := s.SliceAt("Lcom/x/Stale;", "load(Lcom/x/Web;)V", 12, "v1")
	if err != nil {
		t.Fatal(err)
	}
	got := sliceLines(sl)
	// v3 reads the second v2 after v1's walk already reached v2 on line 8.
	for _, l := range []int{6, 7, 8, 9, 10, 11} {
		if !contains(got, l) {
			t.Errorf("slice %v misses line %d", got, l)
		}
	}
}

func TestSliceDefinitionsIncluded(t *testing.T) {
	tests := []struct {
		src, class, key string
		line            int
		reg             string
	}{
		{mainClass, "Lcom/x/Main;", "onCreate(Landroid/os/Bundle;)V", 15, "v0"},
		{mainClass, "Lcom/x/Main;", "onCreate(Landroid/os/Bundle;)V", 11, "v1"},
		{staleClass, "Lcom/x/Stale;", "load(Lcom/x/Web;)V", 12, "v1"},
		{staleClass, "Lcom/x/Stale;", "load(Lcom/x/Web;)V", 12, "v3"},
		{allocSite, "Lcom/x/Setup;", "setup(Landroid/webkit/WebView;)V", 10, "p1"},
	}
	for _, tt := range tests {
		p := build(tt.src)
		sl, err := New(p, diag.Options{}, nil).SliceAt(tt.class, tt.key, tt.line, tt.reg)
		if err != nil {
			t.Fatalf("%s:%d %s: %v", tt.class, tt.line, tt.reg, err)
		}
		checkDefsIncluded(t, p, sl)
	}
}

const calls = `.class public Lcom/x/Calls;
.super Ljava/lang/Object;

.method public static a()Ljava/lang/String;
    .locals 1
    invoke-static {}, Lcom/x/Calls;->b()Ljava/lang/String;
    move-result-object v0
    return-object v0
.end method

.method public static b()Ljava/lang/String;
    .locals 1
    invoke-static {}, Lcom/x/Calls;->c()Ljava/lang/String;
    move-result-object v0
    return-object v0
.end method

.method public static c()Ljava/lang/String;
    .locals 1
    invoke-static {}, Lcom/x/Calls;->d()Ljava/lang/String;
    move-result-object v0
    return-object v0
.end method

.method public static d()Ljava/lang/String;
    .locals 1
    const-string v0, "https://d.example"
    return-object v0
.end method`

func TestSliceCalleeExpansionCap(t *testing.T) {
	p := build(calls)
	sl, err := New(p, diag.Options{}, nil).SliceAt("Lcom/x/Calls;", "a()Ljava/lang/String;", 8, "v0")
	if err != nil {
		t.Fatal(err)
	}
	if got := sliceLines(sl); !contains(got, 27) {
		t.Errorf("slice %v should reach d()", got)
	}

	var d diag.Diags
	sl, err = New(p, diag.Options{MaxExpansions: 2}, &d).SliceAt("Lcom/x/Calls;", "a()Ljava/lang/String;", 8, "v0")
	if err != nil {
		t.Fatal(err)
	}
	got := sliceLines(sl)
	if !contains(got, 15) || !contains(got, 22) {
		t.Errorf("slice %v should expand b() and c()", got)
	}
	if contains(got, 27) {
		t.Errorf("slice %v expanded past the cap", got)
	}
	if d.Count()[diag.KindCapReached] != 1 {
		t.Errorf("diags = %v", d.Items())
	}
}
