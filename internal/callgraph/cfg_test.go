package callgraph

import (
	"strings"
	"testing"

	"github.com/zboralski/lattice/render"

	"jsbridge/internal/diag"
	"jsbridge/internal/slicer"
	"jsbridge/internal/smali"
)

const loader = `.class public Lcom/x/Loader;
.super Ljava/lang/Object;

.method public load(Landroid/webkit/WebView;Z)V
    .locals 2
    if-eqz p2, :cond_0
    const-string v0, "https://a.example"
    invoke-static {v0}, Landroid/util/Log;->d(Ljava/lang/String;)I
    goto :goto_0
    :cond_0
    invoke-static {}, Lcom/x/Pages;->local()Ljava/lang/String;
    move-result-object v0
    :goto_0
    invoke-virtual {p1, v0}, Landroid/webkit/WebView;->loadUrl(Ljava/lang/String;)V
    return-void
.end method`

const pages = `.class public Lcom/x/Pages;
.super Ljava/lang/Object;

.method public static local()Ljava/lang/String;
    .locals 1
    const-string v0, "file:///android_asset/index.html"
    return-object v0
.end method`

func program() *smali.Program {
	return smali.Build([][]string{strings.Split(loader, "\n"), strings.Split(pages, "\n")})
}

func TestBuildCFG_DOTOutput(t *testing.T) {
	p := program()
	m, ok := p.Lookup("Lcom/x/Loader;", "load(Landroid/webkit/WebView;Z)V")
	if !ok {
		t.Fatal("load not indexed")
	}
	cfg := BuildCFG(p, []smali.MethodID{m})

	if len(cfg.Funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(cfg.Funcs))
	}
	f := cfg.Funcs[0]
	if f.Name != "Lcom/x/Loader;->load(Landroid/webkit/WebView;Z)V" {
		t.Errorf("func name = %q", f.Name)
	}
	// entry, true path, false path, join
	if len(f.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(f.Blocks))
	}

	b0 := f.Blocks[0]
	if len(b0.Succs) != 2 || len(b0.Calls) != 0 {
		t.Errorf("B0 = %+v", b0)
	}

	// B1: const-string then Log.d.
	b1 := f.Blocks[1]
	if len(b1.Calls) != 2 || b1.Calls[0].Callee != `"https://a.example"` ||
		b1.Calls[1].Callee != "Landroid/util/Log;->d(Ljava/lang/String;)I" {
		t.Errorf("B1 calls = %+v", b1.Calls)
	}

	b2 := f.Blocks[2]
	if len(b2.Calls) != 1 || b2.Calls[0].Callee != "Lcom/x/Pages;->local()Ljava/lang/String;" {
		t.Errorf("B2 calls = %+v", b2.Calls)
	}

	b3 := f.Blocks[3]
	if !b3.Term || len(b3.Calls) != 1 {
		t.Errorf("B3 = %+v", b3)
	}

	dot := render.DOTCFG(cfg, "jsbridge CFG example")
	if dot == "" {
		t.Error("expected non-empty DOT output")
	}
}

func TestBuildSummaryFuncCFG(t *testing.T) {
	p := program()
	m, _ := p.Lookup("Lcom/x/Loader;", "load(Landroid/webkit/WebView;Z)V")
	f, n := BuildSummaryFuncCFG(p, m)
	if n != 4 {
		t.Errorf("blocks = %d", n)
	}
	if len(f.Blocks) != 1 {
		t.Fatalf("summary blocks = %d", len(f.Blocks))
	}
	var got []string
	for _, c := range f.Blocks[0].Calls {
		got = append(got, c.Callee)
	}
	want := []string{
		`"https://a.example"`,
		"Lcom/x/Pages;->local()Ljava/lang/String;",
		"Landroid/webkit/WebView;->loadUrl(Ljava/lang/String;)V",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("summary = %q", got)
	}
}

func TestBuildCallGraph_DOTOutput(t *testing.T) {
	p := program()
	cg := BuildCallGraph(p, nil)

	if len(cg.Nodes) != 2 {
		t.Errorf("expected 2 nodes, got %d", len(cg.Nodes))
	}
	if len(cg.Edges) != 3 {
		t.Errorf("expected 3 edges, got %+v", cg.Edges)
	}

	dot := render.DOT(cg, "jsbridge call graph example")
	if dot == "" {
		t.Error("expected non-empty DOT output")
	}
}

func TestBuildCallGraph_Keep(t *testing.T) {
	p := program()
	cg := BuildCallGraph(p, func(m smali.MethodID) bool { return p.Method(m).Static })
	if len(cg.Nodes) != 1 || len(cg.Edges) != 0 {
		t.Errorf("graph = %+v", cg)
	}
}

const wrapper = `.class public Lcom/x/Wrapper;
.super Ljava/lang/Object;

.method public show(Landroid/webkit/WebView;)V
    .locals 1
    invoke-static {}, Lcom/x/Wrapper;->ping()V
    const-string v0, "index.html"
    invoke-static {v0}, Lcom/x/Wrapper;->wrap(Ljava/lang/String;)Ljava/lang/String;
    move-result-object v0
    invoke-virtual {p1, v0}, Landroid/webkit/WebView;->loadUrl(Ljava/lang/String;)V
    return-void
.end method

.method public static wrap(Ljava/lang/String;)Ljava/lang/String;
    .locals 0
    return-object p0
.end method

.method public static ping()V
    .locals 0
    return-void
.end method`

func TestBuildSliceGraph(t *testing.T) {
	p := smali.Build([][]string{strings.Split(wrapper, "\n")})
	s := slicer.New(p, diag.Options{}, &diag.Diags{})
	sl, err := s.SliceAt("Lcom/x/Wrapper;", "show(Landroid/webkit/WebView;)V", 10, "v0")
	if err != nil {
		t.Fatal(err)
	}
	// show, plus wrap through its return line; ping is never touched.
	ms := SliceMethods(p, sl)
	if len(ms) != 2 {
		t.Fatalf("slice methods = %v", ms)
	}
	g := BuildSliceGraph(p, sl)
	want := map[string]bool{
		"Lcom/x/Wrapper;->wrap(Ljava/lang/String;)Ljava/lang/String;": true,
		"Landroid/webkit/WebView;->loadUrl(Ljava/lang/String;)V":     true,
	}
	if len(g.Edges) != len(want) {
		t.Fatalf("edges = %+v", g.Edges)
	}
	for _, e := range g.Edges {
		if !want[e.Callee] || e.Caller != "Lcom/x/Wrapper;->show(Landroid/webkit/WebView;)V" {
			t.Errorf("unexpected edge %+v", e)
		}
	}
}
