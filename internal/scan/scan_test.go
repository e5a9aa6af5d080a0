package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jsbridge/internal/config"
	"jsbridge/internal/output"
	"jsbridge/internal/sink"
)

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
    const-string v2, "https://a.example/app"
    invoke-virtual {v0, v2}, Landroid/webkit/WebView;->loadUrl(Ljava/lang/String;)V
    return-void
.end method

.method public makeBridge()Lcom/x/Bridge;
    .locals 1
    new-instance v0, Lcom/x/Bridge;
    invoke-direct {v0}, Lcom/x/Bridge;-><init>()V
    return-object v0
.end method
`

const bridgeClass = `.class public Lcom/x/Bridge;
.super Ljava/lang/Object;

.method public getToken()Ljava/lang/String;
    .locals 1
    .annotation runtime Landroid/webkit/JavascriptInterface;
    .end annotation
    invoke-static {}, Landroid/telephony/TelephonyManager;->getDeviceId()Ljava/lang/String;
    move-result-object v0
    return-object v0
.end method
`

const plainClass = `.class public Lcom/x/Plain;
.super Ljava/lang/Object;

.method public run()V
    .locals 0
    return-void
.end method
`

func writeApp(t *testing.T, root, name string, classes map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	for rel, body := range classes {
		path := filepath.Join(dir, "smali", rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func goodApp(t *testing.T, root string) string {
	return writeApp(t, root, "good.apk", map[string]string{
		"com/x/Main.smali":   mainClass,
		"com/x/Bridge.smali": bridgeClass,
	})
}

func brokenApp(t *testing.T, root string) string {
	dir := writeApp(t, root, "broken", map[string]string{"com/x/Plain.smali": plainClass})
	dangling := filepath.Join(dir, "smali", "com", "x", "Gone.smali")
	if err := os.Symlink(filepath.Join(dir, "nowhere"), dangling); err != nil {
		t.Skipf("symlink: %v", err)
	}
	return dir
}

func TestAnalyze(t *testing.T) {
	c, err := Analyze(context.Background(), goodApp(t, t.TempDir()), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c.App.ID != "good" {
		t.Errorf("app id = %q", c.App.ID)
	}
	if len(c.Bridges) != 1 {
		t.Fatalf("bridges = %+v", c.Bridges)
	}
	b := c.Bridges[0]
	if b.Interface != "Android" || b.BridgeClass != "Lcom/x/Bridge;" || b.Confidence != sink.StaticConfirmed {
		t.Errorf("bridge = %+v", b)
	}
	if len(c.Content) != 1 || c.Content[0].Value != "https://a.example/app" {
		t.Errorf("content = %+v", c.Content)
	}
	if len(c.WebViews) == 0 || !c.WebViews[0].JSEnabled || !c.WebViews[0].Injects {
		t.Errorf("webviews = %+v", c.WebViews)
	}
}

func TestAnalyzeSkipsAppWithoutBridge(t *testing.T) {
	dir := writeApp(t, t.TempDir(), "plain", map[string]string{"com/x/Plain.smali": plainClass})
	c, err := Analyze(context.Background(), dir, Options{})
	if err != ErrNoBridge {
		t.Fatalf("err = %v", err)
	}
	if c == nil || len(c.Prog.Classes) != 1 {
		t.Errorf("context = %+v", c)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Analyze(ctx, goodApp(t, t.TempDir()), Options{}); err != context.Canceled {
		t.Errorf("err = %v", err)
	}
}

func TestRunWritesArtifacts(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	w, err := output.NewWriter(out)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Slices, cfg.DOT = true, true
	res := Run(context.Background(), goodApp(t, root), Options{Config: cfg, Writer: w})
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSuccess || res.Bridges != 1 || res.Content != 1 {
		t.Fatalf("result = %+v", res)
	}

	for _, rel := range []string{
		"slices/good/slice1.smali",
		"dot/good/bridges.dot",
		"dot/good/callgraph.dot",
		filepath.Join("dot", "good", "cfg", output.FileName("Lcom/x/Main;->onCreate(Landroid/os/Bundle;)V")+".dot"),
	} {
		if _, err := os.Stat(filepath.Join(out, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}
	slice, _ := os.ReadFile(filepath.Join(out, "slices/good/slice1.smali"))
	if !strings.Contains(string(slice), "Interface Methods:") || !strings.Contains(string(slice), "getDeviceId") {
		t.Errorf("slice artifact:\n%s", slice)
	}

	views, err := output.ReadJSONL[output.WebViewRecord](filepath.Join(out, output.WebViewsFile))
	if err != nil || len(views) == 0 {
		t.Fatalf("webviews = %+v, %v", views, err)
	}
	if views[0].Artifact == "" || len(views[0].Leaks) != 1 {
		t.Errorf("webview record = %+v", views[0])
	}
}

func TestRunBatchCounts(t *testing.T) {
	root := t.TempDir()
	dirs := []string{
		goodApp(t, root),
		writeApp(t, root, "plain", map[string]string{"com/x/Plain.smali": plainClass}),
		brokenApp(t, root),
	}
	w, err := output.NewWriter(filepath.Join(root, "out"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Jobs = 2
	sum := RunBatch(context.Background(), dirs, Options{Config: cfg, Writer: w}, nil)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if sum.Apps != 3 || sum.Success != 1 || sum.Skipped != 1 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Bridges != 1 || sum.Content != 1 {
		t.Errorf("totals = %+v", sum)
	}
	// Results keep input order whatever the completion order.
	if sum.Results[0].App != "good" || sum.Results[2].App != "broken" || sum.Results[2].Error == "" {
		t.Errorf("results = %+v", sum.Results)
	}
	for _, r := range sum.Results {
		if r.Context != nil {
			t.Errorf("%s: context retained after batch", r.App)
		}
	}
	bridges, _ := output.ReadJSONL[output.BridgeRecord](filepath.Join(root, "out", output.BridgesFile))
	if len(bridges) != 1 || bridges[0].App != "good" {
		t.Errorf("bridges = %+v", bridges)
	}
}

func TestRunBatchRecoversPanic(t *testing.T) {
	root := t.TempDir()
	w, err := output.NewWriter(filepath.Join(root, "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	o := Options{Writer: w, Now: func() time.Time { panic("clock stopped") }}
	dirs := []string{
		goodApp(t, root),
		writeApp(t, root, "plain", map[string]string{"com/x/Plain.smali": plainClass}),
	}
	sum := RunBatch(context.Background(), dirs, o, nil)
	if sum.Failed != 1 || sum.Skipped != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if !strings.Contains(sum.Results[0].Error, "clock stopped") {
		t.Errorf("error = %q", sum.Results[0].Error)
	}
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum := RunBatch(ctx, []string{goodApp(t, t.TempDir())}, Options{}, nil)
	if sum.Apps != 0 {
		t.Errorf("cancelled batch ran %d apps", sum.Apps)
	}
}
