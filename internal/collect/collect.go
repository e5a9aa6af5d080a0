// Package collect finds and reads the smali sources of decompiled
// applications.
package collect

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jsbridge/internal/smali"
)

// Options filters the classes of an application.
type Options struct {
	Exclude      []string // namespace prefixes inside a smali tree, e.g. "androidx/"
	ExcludeFiles []string // base name globs, e.g. "R$*.smali"
}

// App is one decompiled application directory.
type App struct {
	ID        string
	Dir       string
	AssetsDir string   // "" when the application ships no assets
	Files     []string // smali files in load order
}

// AppID derives the application id from its directory: the base name with
// any ".apk" suffix removed.
func AppID(dir string) string {
	return strings.TrimSuffix(filepath.Base(filepath.Clean(dir)), ".apk")
}

// Open lists the smali files of the application in dir. Every top-level
// directory whose name starts with "smali" is a smali tree.
func Open(dir string, opts Options) (*App, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("collect: read %s: %w", dir, err)
	}
	app := &App{ID: AppID(dir), Dir: dir}
	if fi, err := os.Stat(filepath.Join(dir, "assets")); err == nil && fi.IsDir() {
		app.AssetsDir = filepath.Join(dir, "assets")
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "smali") {
			continue
		}
		root := filepath.Join(dir, e.Name())
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if rel != "." && excluded(rel+"/", opts.Exclude) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ".smali") || excluded(rel, opts.Exclude) || matchesAny(d.Name(), opts.ExcludeFiles) {
				return nil
			}
			app.Files = append(app.Files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("collect: walk %s: %w", root, err)
		}
	}
	return app, nil
}

func excluded(rel string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(rel, p) {
			return true
		}
	}
	return false
}

func matchesAny(name string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

// ReadClasses reads every file as a list of lines.
func (a *App) ReadClasses() ([][]string, error) {
	out := make([][]string, 0, len(a.Files))
	for _, path := range a.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("collect: read %s: %w", path, err)
		}
		text := strings.ReplaceAll(string(data), "\r\n", "\n")
		out = append(out, strings.Split(strings.TrimSuffix(text, "\n"), "\n"))
	}
	return out, nil
}

// Load reads and indexes the application.
func (a *App) Load() (*smali.Program, error) {
	classes, err := a.ReadClasses()
	if err != nil {
		return nil, err
	}
	return smali.Build(classes), nil
}

// Apps lists the application directories under root, sorted by name. A
// directory counts when it holds at least one smali tree.
func Apps(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("collect: read %s: %w", root, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if hasSmaliTree(dir) {
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out, nil
}

func hasSmaliTree(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "smali") {
			return true
		}
	}
	return false
}
