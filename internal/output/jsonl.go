package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends records to the JSONL files of an output directory. It is
// safe for concurrent use by batch workers.
type Writer struct {
	dir   string
	mu    sync.Mutex
	files map[string]*jsonlFile
}

type jsonlFile struct {
	f   *os.File
	buf *bufio.Writer
	enc *json.Encoder
	n   int
}

// NewWriter creates dir and truncates its record files.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("output: mkdir %s: %w", dir, err)
	}
	w := &Writer{dir: dir, files: make(map[string]*jsonlFile)}
	for _, name := range []string{BridgesFile, ContentFile, WebViewsFile} {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("output: create %s: %w", path, err)
		}
		buf := bufio.NewWriter(f)
		w.files[name] = &jsonlFile{f: f, buf: buf, enc: json.NewEncoder(buf)}
	}
	return w, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

func (w *Writer) write(name string, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	jf, ok := w.files[name]
	if !ok {
		return fmt.Errorf("output: %s is closed", name)
	}
	if err := jf.enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", name, err)
	}
	jf.n++
	return nil
}

func (w *Writer) WriteBridge(r BridgeRecord) error   { return w.write(BridgesFile, r) }
func (w *Writer) WriteContent(r ContentRecord) error { return w.write(ContentFile, r) }
func (w *Writer) WriteWebView(r WebViewRecord) error { return w.write(WebViewsFile, r) }

// Counts returns the number of records written per file.
func (w *Writer) Counts() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.files))
	for name, jf := range w.files {
		out[name] = jf.n
	}
	return out
}

// Close flushes and closes every record file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for name, jf := range w.files {
		if err := jf.buf.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("output: flush %s: %w", name, err))
		}
		if err := jf.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("output: close %s: %w", name, err))
		}
		delete(w.files, name)
	}
	return errors.Join(errs...)
}

// ReadJSONL decodes every record of a JSONL file.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("output: open %s: %w", path, err)
	}
	defer f.Close()

	var out []T
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var v T
		if err := dec.Decode(&v); err != nil {
			return out, fmt.Errorf("output: decode %s record %d: %w", path, len(out)+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}
