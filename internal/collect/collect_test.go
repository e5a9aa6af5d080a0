package collect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

var opts = Options{
	Exclude:      []string{"android/", "androidx/", "com/google/"},
	ExcludeFiles: []string{"R.smali", "R$*.smali", "BuildConfig.smali"},
}

func TestOpenFilters(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "demo.apk")
	for _, f := range []string{
		"smali/com/x/Main.smali",
		"smali/com/x/R.smali",
		"smali/com/x/R$string.smali",
		"smali/com/x/BuildConfig.smali",
		"smali/android/support/Foo.smali",
		"smali_classes2/androidx/webkit/Bar.smali",
		"smali_classes2/com/google/ads/Ad.smali",
		"smali_classes2/com/x/Bridge.smali",
		"smali_classes2/com/x/notes.txt",
		"original/smali/com/x/Old.smali",
	} {
		writeFile(t, filepath.Join(app, f), ".class public Lcom/x/A;\n")
	}
	writeFile(t, filepath.Join(app, "assets", "index.html"), "<html></html>")

	a, err := Open(app, opts)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != "demo" {
		t.Errorf("id = %q", a.ID)
	}
	if a.AssetsDir != filepath.Join(app, "assets") {
		t.Errorf("assets = %q", a.AssetsDir)
	}
	var rel []string
	for _, f := range a.Files {
		r, _ := filepath.Rel(app, f)
		rel = append(rel, filepath.ToSlash(r))
	}
	want := "smali/com/x/Main.smali,smali_classes2/com/x/Bridge.smali"
	if strings.Join(rel, ",") != want {
		t.Errorf("files = %q, want %q", rel, want)
	}
}

func TestLoad(t *testing.T) {
	app := t.TempDir()
	writeFile(t, filepath.Join(app, "smali", "com", "x", "Main.smali"),
		".class public Lcom/x/Main;\r\n.super Ljava/lang/Object;\r\n")
	a, err := Open(app, Options{})
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Classes) != 1 || p.Classes[0].Name != "Lcom/x/Main;" || len(p.Classes[0].Lines) != 2 {
		t.Errorf("classes = %+v", p.Classes)
	}
	if a.AssetsDir != "" {
		t.Errorf("assets = %q", a.AssetsDir)
	}
}

func TestApps(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "smali", "B.smali"), "")
	writeFile(t, filepath.Join(root, "a", "smali_classes2", "A.smali"), "")
	writeFile(t, filepath.Join(root, "empty", "res", "x.xml"), "")
	writeFile(t, filepath.Join(root, "file.txt"), "")
	apps, err := Apps(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 2 || filepath.Base(apps[0]) != "a" || filepath.Base(apps[1]) != "b" {
		t.Errorf("apps = %q", apps)
	}
	if _, err := Apps(filepath.Join(root, "missing")); err == nil {
		t.Error("missing root should fail")
	}
}
