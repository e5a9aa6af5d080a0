package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"jsbridge/internal/diag"
	"jsbridge/internal/scan"
	"jsbridge/internal/sink"
	"jsbridge/internal/smali"
)

var (
	good = color.New(color.FgGreen)
	info = color.New(color.FgCyan)
	warn = color.New(color.FgYellow)
	bad  = color.New(color.FgRed)
	dim  = color.New(color.Faint)
)

func gradeColor(c sink.Confidence) *color.Color {
	switch c {
	case sink.StaticConfirmed:
		return good
	case sink.InferredFromAssets:
		return info
	case sink.PartialInfo:
		return warn
	case sink.MarkedDynamic:
		return color.New(color.FgMagenta)
	}
	return bad
}

// printContext writes the findings of one application.
func printContext(w io.Writer, c *scan.Context, verbose bool) {
	info.Fprintf(w, "[*] %s: %d classes, %d methods\n", c.App.ID, len(c.Prog.Classes), len(c.Prog.Methods))

	if len(c.Bridges) == 0 {
		warn.Fprintln(w, "[*] No bridges found.")
	}
	for _, f := range c.Bridges {
		good.Fprintf(w, "[+] Bridge %q -> %s ", f.Interface, smali.Dotted(f.BridgeClass))
		gradeColor(f.Confidence).Fprintf(w, "[%s]\n", f.Confidence)
		dim.Fprintf(w, "    at %s in %s\n", f.Where(), smali.StripModifiers(f.Method))
		for _, m := range f.Methods {
			fmt.Fprintf(w, "    %s\n", m)
		}
		printTags(w, f)
	}

	for _, f := range c.Content {
		good.Fprintf(w, "[+] %s %s ", f.Sink, f.Value)
		gradeColor(f.Confidence).Fprintf(w, "[%s]\n", f.Confidence)
		dim.Fprintf(w, "    at %s\n", f.Where())
		if len(f.Categories) > 0 {
			sev := sink.MaxSeverity(f.Categories)
			fmt.Fprintf(w, "    categories: %s (%s)\n", strings.Join(f.Categories, ", "), sev)
		}
		printTags(w, f)
	}

	for _, r := range c.WebViews {
		info.Fprintf(w, "[*] WebView %s:%d %s js=%v injects=%v", smali.Dotted(r.Class), r.Line, r.Register, r.JSEnabled, r.Injects)
		if r.Bridge != "" {
			fmt.Fprintf(w, " bridge=%s annotated=%d invoked=%d", smali.Dotted(r.Bridge), r.Annotated, r.Invoked)
		}
		fmt.Fprintln(w)
		for _, l := range r.Leaks {
			bad.Fprintf(w, "[-] leak: %s\n", l)
		}
	}

	if verbose {
		printDiags(w, c.Diags.Items())
	} else if n := c.Diags.Len(); n > 0 {
		dim.Fprintf(w, "[*] %d diagnostics (use --verbose)\n", n)
	}
}

func printTags(w io.Writer, f sink.Finding) {
	if len(f.Dynamic) > 0 {
		fmt.Fprintf(w, "    dynamic: %s\n", strings.Join(f.Dynamic, ", "))
	}
	if len(f.Hints) > 0 {
		fmt.Fprintf(w, "    hints: %s", strings.Join(f.Hints, ", "))
		if f.SourceHint != "" {
			fmt.Fprintf(w, " (source: %s)", f.SourceHint)
		}
		fmt.Fprintln(w)
	}
}

func printDiags(w io.Writer, ds []diag.Diag) {
	for _, d := range ds {
		dim.Fprintf(w, "    %s\n", d)
	}
}

// printSummary writes the batch totals.
func printSummary(w io.Writer, s scan.Summary) {
	info.Fprintf(w, "[*] %d apps in %s: ", s.Apps, s.Elapsed.Round(time.Millisecond))
	good.Fprintf(w, "%d analyzed", s.Success)
	fmt.Fprint(w, ", ")
	warn.Fprintf(w, "%d skipped", s.Skipped)
	fmt.Fprint(w, ", ")
	bad.Fprintf(w, "%d failed\n", s.Failed)
	fmt.Fprintf(w, "    bridges=%d content=%d webviews=%d\n", s.Bridges, s.Content, s.WebViews)
	for _, r := range s.Results {
		if r.Status == scan.StatusFailed {
			bad.Fprintf(w, "[-] %s: %s\n", r.App, r.Error)
		}
	}
}
