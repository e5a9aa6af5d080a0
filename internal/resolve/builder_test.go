package resolve

import (
	"testing"

	"jsbridge/internal/diag"
)

const builderClass = `.class public Lcom/x/Builder;
.super Ljava/lang/Object;

.method public build(Landroid/webkit/WebView;Ljava/lang/String;)V
    .locals 3
    new-instance v0, Ljava/lang/StringBuilder;
    invoke-direct {v0}, Ljava/lang/StringBuilder;-><init>()V
    const-string v1, "https://api.example/"
    invoke-virtual {v0, v1}, Ljava/lang/StringBuilder;->append(Ljava/lang/String;)Ljava/lang/StringBuilder;
    move-result-object v0
    invoke-virtual {v0, p2}, Ljava/lang/StringBuilder;->append(Ljava/lang/String;)Ljava/lang/StringBuilder;
    move-result-object v2
    const/16 v1, 0x3f
    invoke-virtual {v2, v1}, Ljava/lang/StringBuilder;->append(C)Ljava/lang/StringBuilder;
    invoke-virtual {v2}, Ljava/lang/StringBuilder;->toString()Ljava/lang/String;
    move-result-object v0
    invoke-virtual {p1, v0}, Landroid/webkit/WebView;->loadUrl(Ljava/lang/String;)V
    return-void
.end method`

const builderCaller = `.class public Lcom/x/Start;
.super Ljava/lang/Object;

.method public go(Lcom/x/Builder;Landroid/webkit/WebView;)V
    .locals 1
    const-string v0, "token"
    invoke-virtual {p1, p2, v0}, Lcom/x/Builder;->build(Landroid/webkit/WebView;Ljava/lang/String;)V
    return-void
.end method`

func TestBuilderParameterPlaceholder(t *testing.T) {
	r := New(build(builderClass), diag.Options{}, nil)
	v := resolveArg(t, r, "loadUrl", 0, 1)
	if v.Kind != Builder {
		t.Fatalf("kind = %v, want builder", v.Kind)
	}
	if want := "https://api.example/[Parameter: p2]?"; v.Text != want {
		t.Errorf("text = %q, want %q", v.Text, want)
	}
	if v.Static() {
		t.Error("builder with a parameter piece is not static")
	}
}

func TestBuilderResolvedThroughCaller(t *testing.T) {
	r := New(build(builderClass, builderCaller), diag.Options{}, nil)
	v := resolveArg(t, r, "loadUrl", 0, 1)
	if want := "https://api.example/token?"; v.Text != want || !v.Static() {
		t.Errorf("builder = %+v, want static %q", v, want)
	}
}

const builderInit = `.class public Lcom/x/Script;
.super Ljava/lang/Object;

.method public run(Landroid/webkit/WebView;)V
    .locals 3
    new-instance v0, Ljava/lang/StringBuilder;
    const-string v1, "javascript:"
    invoke-direct {v0, v1}, Ljava/lang/StringBuilder;-><init>(Ljava/lang/String;)V
    const-string v1, "init()"
    invoke-virtual {v0, v1}, Ljava/lang/StringBuilder;->append(Ljava/lang/String;)Ljava/lang/StringBuilder;
    move-result-object v0
    invoke-virtual {v0}, Ljava/lang/StringBuilder;->toString()Ljava/lang/String;
    move-result-object v0
    const/4 v2, 0x0
    invoke-virtual {p1, v0, v2}, Landroid/webkit/WebView;->evaluateJavascript(Ljava/lang/String;Landroid/webkit/ValueCallback;)V
    return-void
.end method

.method public empty(Landroid/webkit/WebView;)V
    .locals 2
    new-instance v0, Ljava/lang/StringBuilder;
    invoke-direct {v0}, Ljava/lang/StringBuilder;-><init>()V
    invoke-virtual {v0}, Ljava/lang/StringBuilder;->toString()Ljava/lang/String;
    move-result-object v0
    const/4 v1, 0x0
    invoke-virtual {p1, v0, v1}, Landroid/webkit/WebView;->evaluateJavascript(Ljava/lang/String;Landroid/webkit/ValueCallback;)V
    return-void
.end method`

func TestBuilderInitSeed(t *testing.T) {
	r := New(build(builderInit), diag.Options{}, nil)
	v := resolveArg(t, r, "evaluateJavascript", 0, 1)
	if v.Text != "javascript:init()" || !v.Static() {
		t.Errorf("builder = %+v", v)
	}
}

func TestBuilderEmpty(t *testing.T) {
	r := New(build(builderInit), diag.Options{}, nil)
	v := resolveArg(t, r, "evaluateJavascript", 1, 1)
	if v.Kind != Builder || v.Text != "Empty StringBuilder" || v.Static() {
		t.Errorf("empty builder = %+v", v)
	}
}

const concat = `.class public Lcom/x/Concat;
.super Ljava/lang/Object;

.method public join(Landroid/webkit/WebView;)V
    .locals 2
    const-string v0, "https://cdn.example"
    const-string v1, "/app.js"
    invoke-virtual {v0, v1}, Ljava/lang/String;->concat(Ljava/lang/String;)Ljava/lang/String;
    move-result-object v0
    invoke-virtual {v0}, Ljava/lang/String;->trim()Ljava/lang/String;
    move-result-object v1
    invoke-virtual {p1, v0}, Landroid/webkit/WebView;->loadUrl(Ljava/lang/String;)V
    invoke-virtual {p1, v1}, Landroid/webkit/WebView;->loadUrl(Ljava/lang/String;)V
    return-void
.end method`

func TestConcatAndChain(t *testing.T) {
	r := New(build(concat), diag.Options{}, nil)
	v := resolveArg(t, r, "loadUrl", 0, 1)
	if v.Kind != Concat || v.Text != "https://cdn.example/app.js" || !v.Static() {
		t.Errorf("concat = %+v", v)
	}
	v = resolveArg(t, r, "loadUrl", 1, 1)
	if v.Kind != Chain || v.Text != "Base: https://cdn.example/app.js → trim()" {
		t.Errorf("chain = %+v", v)
	}
}
