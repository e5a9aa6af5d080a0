// Package scan runs the analysis of one decompiled application and of
// batches of them.
package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zboralski/lattice/render"

	"jsbridge/internal/callgraph"
	"jsbridge/internal/collect"
	"jsbridge/internal/config"
	"jsbridge/internal/diag"
	"jsbridge/internal/logging"
	"jsbridge/internal/output"
	jsrender "jsbridge/internal/render"
	"jsbridge/internal/sink"
	"jsbridge/internal/slicer"
	"jsbridge/internal/smali"
)

// ErrNoBridge marks an application without any addJavascriptInterface call.
var ErrNoBridge = errors.New("scan: no addJavascriptInterface call")

// Context is the state of one application. It is discarded once the
// application's records are written.
type Context struct {
	App      *collect.App
	Prog     *smali.Program
	Diags    diag.Diags
	Bridges  []sink.Finding
	Content  []sink.Finding
	WebViews []slicer.WebViewReport
}

// Options configures Analyze and RunBatch.
type Options struct {
	Config *config.Config
	Rules  []sink.Rule
	// Writer receives the records; nil keeps results in memory only.
	Writer *output.Writer
	Log    *log.Logger
	Now    func() time.Time
}

func (o *Options) defaults() {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if len(o.Rules) == 0 {
		o.Rules = sink.BuiltinRules()
	}
	if o.Log == nil {
		o.Log = logging.Discard()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Load reads and indexes the application in dir.
func Load(dir string, cfg *config.Config) (*collect.App, *smali.Program, error) {
	app, err := collect.Open(dir, collect.Options{Exclude: cfg.Exclude, ExcludeFiles: cfg.ExcludeFiles})
	if err != nil {
		return nil, nil, err
	}
	prog, err := app.Load()
	if err != nil {
		return nil, nil, err
	}
	return app, prog, nil
}

// HasBridge reports whether any class calls addJavascriptInterface.
func HasBridge(p *smali.Program) bool {
	for ci := range p.Classes {
		if p.Contains(smali.ClassID(ci), smali.AddJSInterface) {
			return true
		}
	}
	return false
}

// Analyze extracts every finding of the application in dir. It returns
// ErrNoBridge, with the loaded context, when nothing is exposed.
func Analyze(ctx context.Context, dir string, o Options) (*Context, error) {
	o.defaults()
	cfg := o.Config
	app, prog, err := Load(dir, cfg)
	if err != nil {
		return nil, err
	}
	c := &Context{App: app, Prog: prog}
	if !HasBridge(prog) {
		return c, ErrNoBridge
	}
	if err := ctx.Err(); err != nil {
		return c, err
	}

	sc := &sink.Context{
		App:       app.ID,
		Prog:      prog,
		Rules:     o.Rules,
		Opts:      cfg.Limits,
		Diags:     &c.Diags,
		AssetsDir: app.AssetsDir,
	}
	c.Bridges = sink.ExtractBridges(sc)
	c.Content = sink.ExtractContent(sc)
	if err := ctx.Err(); err != nil {
		return c, err
	}
	c.WebViews = slicer.New(prog, cfg.Limits, &c.Diags).Audit(cfg.Sources)
	return c, nil
}

// Write stores the records of c, plus slice artifacts and DOT files when
// configured.
func (c *Context) Write(o Options) error {
	o.defaults()
	w := o.Writer
	if w == nil {
		return nil
	}
	now := o.Now()
	for _, f := range c.Bridges {
		if err := w.WriteBridge(output.NewBridgeRecord(f, now)); err != nil {
			return err
		}
		o.Log.Debug("bridge", "app", f.App, "class", f.Class, "line", f.Line, "interface", f.Interface, "confidence", f.Confidence)
	}
	for _, f := range c.Content {
		if err := w.WriteContent(output.NewContentRecord(f, now)); err != nil {
			return err
		}
		o.Log.Debug("content", "app", f.App, "class", f.Class, "line", f.Line, "sink", f.Sink, "confidence", f.Confidence)
	}
	for i, r := range c.WebViews {
		artifact := ""
		if o.Config.Slices && r.Artifact != nil {
			path, err := output.WriteSlice(w.Dir(), c.App.ID, i+1, r.Artifact.Text())
			if err != nil {
				return err
			}
			artifact = path
		}
		if err := w.WriteWebView(output.NewWebViewRecord(c.App.ID, r, artifact, now)); err != nil {
			return err
		}
	}
	if o.Config.DOT {
		return c.writeDOT(w.Dir())
	}
	return nil
}

// writeDOT renders the bridge overview, the call graph of every method
// holding a sink, and one CFG per such method under dot/<app>/.
func (c *Context) writeDOT(out string) error {
	dir := filepath.Join(out, "dot", c.App.ID)
	all := append(append([]sink.Finding(nil), c.Bridges...), c.Content...)
	if _, err := output.WriteDOT(dir, "bridges", jsrender.BridgeDOT(all, c.App.ID, jsrender.NASA)); err != nil {
		return err
	}

	methods := SinkMethods(c.Prog, all)
	keep := make(map[smali.MethodID]bool, len(methods))
	for _, m := range methods {
		keep[m] = true
	}
	g := callgraph.BuildCallGraph(c.Prog, func(m smali.MethodID) bool { return keep[m] })
	if _, err := output.WriteDOT(dir, "callgraph", render.DOT(g, c.App.ID)); err != nil {
		return err
	}
	for _, m := range methods {
		name := filepath.Join("cfg", output.FileName(c.Prog.Descriptor(m)))
		if _, err := output.WriteDOT(dir, name, jsrender.CFGDOT(c.Prog, m, jsrender.NASA)); err != nil {
			return err
		}
	}
	return nil
}

// SinkMethods returns the distinct methods holding a finding, in finding
// order.
func SinkMethods(p *smali.Program, fs []sink.Finding) []smali.MethodID {
	seen := make(map[smali.MethodID]bool)
	var out []smali.MethodID
	for _, f := range fs {
		cid, ok := p.ClassByName(f.Class)
		if !ok {
			continue
		}
		m, ok := p.MethodAt(smali.Pos{Class: cid, Line: f.Line})
		if ok && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Status is the outcome of one application.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result summarizes one application.
type Result struct {
	App      string            `json:"app"`
	Status   Status            `json:"status"`
	Bridges  int               `json:"bridges"`
	Content  int               `json:"content"`
	WebViews int               `json:"webviews"`
	Diags    map[diag.Kind]int `json:"diags,omitempty"`
	Error    string            `json:"error,omitempty"`
	Elapsed  time.Duration     `json:"elapsed_ns"`
	Context  *Context          `json:"-"`
}

// Run analyzes and writes one application. Errors and panics are logged
// and reported as a failed result; they never escape.
func Run(ctx context.Context, dir string, o Options) (res Result) {
	o.defaults()
	start := time.Now()
	res = Result{App: collect.AppID(dir)}
	defer func() { res.Elapsed = time.Since(start) }()
	defer recoverApp(&res, o.Log)

	c, err := Analyze(ctx, dir, o)
	if c != nil {
		res.Context = c
		res.Diags = c.Diags.Count()
	}
	switch {
	case errors.Is(err, ErrNoBridge):
		res.Status = StatusSkipped
		o.Log.Debug("skipped", "app", res.App, "reason", err)
		return res
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
		o.Log.Error("analyze", "app", res.App, "err", err)
		return res
	}
	res.Bridges, res.Content, res.WebViews = len(c.Bridges), len(c.Content), len(c.WebViews)
	if err := c.Write(o); err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		o.Log.Error("write", "app", res.App, "err", err)
		return res
	}
	res.Status = StatusSuccess
	o.Log.Info("analyzed", "app", res.App, "bridges", res.Bridges, "content", res.Content, "webviews", res.WebViews, "diags", c.Diags.Len())
	return res
}

// recoverApp turns a panic in the analysis of one application into a
// failed result. It must be deferred directly.
func recoverApp(res *Result, lg *log.Logger) {
	if r := recover(); r != nil {
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("panic: %v", r)
		lg.Error("panic", "app", res.App, "panic", r, "stack", string(debug.Stack()))
	}
}
