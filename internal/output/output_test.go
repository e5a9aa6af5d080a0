package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jsbridge/internal/sink"
	"jsbridge/internal/slicer"
)

var when = time.UnixMilli(1700000000123)

func bridgeFinding() sink.Finding {
	return sink.Finding{
		App:         "demo",
		Sink:        "addJavascriptInterface",
		Kind:        sink.KindBridge,
		Class:       "Lcom/x/Main;",
		Method:      ".method public setup(Landroid/webkit/WebView;)V",
		Line:        9,
		Value:       "Lcom/x/Bridge;",
		BridgeClass: "Lcom/x/Bridge;",
		Interface:   "Android",
		Methods: []string{
			"[METHOD 1] getToken()Ljava/lang/String;",
			"[METHOD 2] notify(Ljava/lang/String;I)V",
		},
		Confidence: sink.StaticConfirmed,
	}
}

func TestNewBridgeRecord(t *testing.T) {
	r := NewBridgeRecord(bridgeFinding(), when)
	if r.ReadableInitiatingClass != "com.x.Main" || r.ReadableBridgeClass != "com.x.Bridge" {
		t.Errorf("readable = %q %q", r.ReadableInitiatingClass, r.ReadableBridgeClass)
	}
	if r.MethodCount != 2 || r.Score != 1.0 || r.ResolutionType != "STATIC" || r.Timestamp != 1700000000123 {
		t.Errorf("record = %+v", r)
	}
	want := "[METHOD 1] getToken()Ljava/lang/String;\n" +
		"  Readable: String getToken()\n" +
		"[METHOD 2] notify(Ljava/lang/String;I)V\n" +
		"  Readable: void notify(String, int)\n"
	if r.BridgeMethods != want {
		t.Errorf("methods =\n%s\nwant\n%s", r.BridgeMethods, want)
	}

	back := r.Finding()
	if back.Interface != "Android" || back.Confidence != sink.StaticConfirmed || len(back.Methods) != 2 {
		t.Errorf("round trip = %+v", back)
	}
}

func TestNewContentRecord(t *testing.T) {
	f := sink.Finding{
		App: "demo", Sink: "loadUrl", Kind: sink.KindContent, Class: "Lcom/x/Page;",
		Value:      "javascript:run()",
		Confidence: sink.MarkedDynamic,
		Dynamic:    []string{"STRING_BUILDER", "METHOD_RETURN"},
		Hints:      []string{"method_found", "class_found"},
		Categories: []string{sink.CatJavaScript},
	}
	r := NewContentRecord(f, when)
	if r.DynamicPatterns != "STRING_BUILDER|METHOD_RETURN" || r.PartialHints != "method_found|class_found" {
		t.Errorf("record = %+v", r)
	}
	if r.Score != 0.3 || r.ResolutionType != "DYNAMIC" || r.Severity == "" {
		t.Errorf("record = %+v", r)
	}
}

func TestWriterJSONL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBridge(NewBridgeRecord(bridgeFinding(), when)); err != nil {
		t.Fatal(err)
	}
	rep := slicer.WebViewReport{Class: "Lcom/x/Main;", Line: 7, JSEnabled: true}
	if err := w.WriteWebView(NewWebViewRecord("demo", rep, "slices/demo/slice1.smali", when)); err != nil {
		t.Fatal(err)
	}
	if got := w.Counts(); got[BridgesFile] != 1 || got[ContentFile] != 0 || got[WebViewsFile] != 1 {
		t.Errorf("counts = %v", got)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBridge(BridgeRecord{}); err == nil {
		t.Error("write after close should fail")
	}

	bridges, err := ReadJSONL[BridgeRecord](filepath.Join(dir, BridgesFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(bridges) != 1 || bridges[0].InterfaceObject != "Android" {
		t.Errorf("bridges = %+v", bridges)
	}
	raw, err := os.ReadFile(filepath.Join(dir, WebViewsFile))
	if err != nil {
		t.Fatal(err)
	}
	line := string(raw)
	if !strings.Contains(line, `"js_enabled":true`) || !strings.Contains(line, `"app":"demo"`) ||
		!strings.Contains(line, `"artifact":"slices/demo/slice1.smali"`) {
		t.Errorf("webview record = %s", line)
	}
	if empty, _ := os.ReadFile(filepath.Join(dir, ContentFile)); len(empty) != 0 {
		t.Errorf("content.jsonl = %q", empty)
	}
}

func TestWriteSliceAndDOT(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSlice(dir, "demo", 2, "line\n")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "slices", "demo", "slice2.smali") {
		t.Errorf("path = %q", path)
	}
	path, err = WriteDOT(dir, filepath.Join("cfg", FileName("Lcom/x/Main;-><init>()V")), "digraph {}\n")
	if err != nil {
		t.Fatal(err)
	}
	if base := filepath.Base(path); !strings.HasPrefix(base, "com.x.Main.init.") || !strings.HasSuffix(base, ".dot") {
		t.Errorf("path = %q", path)
	}
	if err := WriteSummaryJSON(filepath.Join(dir, "nested"), map[string]int{"apps": 1}); err != nil {
		t.Fatal(err)
	}
}

func TestFileNameOverloads(t *testing.T) {
	a := FileName("Lcom/x/Main;->onCreate(Landroid/os/Bundle;)V")
	b := FileName("Lcom/x/Main;->onCreate(Landroid/os/Bundle;Landroid/os/PersistableBundle;)V")
	if a == b {
		t.Errorf("overloads share %q", a)
	}
	if a != FileName("Lcom/x/Main;->onCreate(Landroid/os/Bundle;)V") {
		t.Error("file name is not stable")
	}
	if !strings.HasPrefix(a, "com.x.Main.onCreate.") || strings.ContainsAny(a, "/;()") {
		t.Errorf("file name = %q", a)
	}
	if got := FileName("Lcom/x/Main;"); got != "com.x.Main" {
		t.Errorf("class only = %q", got)
	}
}
