// Package output writes jsbridge analysis results to files.
package output

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
)

// Record file names inside an output directory.
const (
	BridgesFile  = "bridges.jsonl"
	ContentFile  = "content.jsonl"
	WebViewsFile = "webviews.jsonl"
	SummaryFile  = "summary.json"
)

// WriteSummaryJSON writes batch counts to summary.json.
func WriteSummaryJSON(dir string, summary any) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", dir, err)
	}
	return writeJSON(filepath.Join(dir, SummaryFile), summary)
}

// WriteSlice writes one slice artifact to slices/<app>/slice<n>.smali.
func WriteSlice(dir, app string, n int, text string) (string, error) {
	path := filepath.Join(dir, "slices", app, fmt.Sprintf("slice%d.smali", n))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir slices: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}

// WriteDOT writes a Graphviz document to <dir>/<name>.dot.
// name may contain path separators (e.g., "cfg/Lcom_x_Main_onCreate") for
// directory grouping.
func WriteDOT(dir, name, dot string) (string, error) {
	path := filepath.Join(dir, name+".dot")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}

// FileName flattens a method descriptor into a file name. The prototype is
// kept as a short hash so overloads do not collide:
// "Lcom/x/Main;->onCreate(Landroid/os/Bundle;)V" → "com.x.Main.onCreate.<hash>".
func FileName(desc string) string {
	class, member, _ := strings.Cut(desc, "->")
	class = strings.TrimSuffix(strings.TrimPrefix(class, "L"), ";")
	proto := ""
	if i := strings.IndexByte(member, '('); i >= 0 {
		member, proto = member[:i], member[i:]
	}
	name := strings.ReplaceAll(class, "/", ".")
	if member != "" {
		name += "." + strings.NewReplacer("<", "", ">", "").Replace(member)
	}
	if proto != "" {
		h := fnv.New32a()
		h.Write([]byte(proto))
		name += fmt.Sprintf(".%08x", h.Sum32())
	}
	return name
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
