package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"jsbridge/internal/callgraph"
	"jsbridge/internal/output"
	jsrender "jsbridge/internal/render"
	"jsbridge/internal/scan"
	"jsbridge/internal/sink"
	"jsbridge/internal/smali"
)

const graphKinds = "callgraph, lattice, cfg, lcfg, summary, bridges"

func (c *cli) newGraphCmd() *cobra.Command {
	var (
		kind     string
		method   string
		prefix   string
		findings string
		maxNodes int
		stats    bool
		out      string
	)
	cmd := &cobra.Command{
		Use:   "graph [app-dir]",
		Short: "Render call graphs, CFGs and bridge maps as Graphviz DOT",
		Long: `graph renders one of:

  callgraph  styled call graph, methods clustered by class
  lattice    plain call graph
  cfg        basic blocks of --method with their instructions
  lcfg       basic blocks of --method with calls and string literals
  summary    one box per sink method listing its calls and literals
  bridges    initiating class -> bridge class -> exposed methods

bridges reads --findings (a bridges.jsonl file) when given; the app
directory is then optional.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if kind == "bridges" && findings != "" {
				return writeGraph(cmd, out, bridgesFromFile(findings))
			}
			if len(args) == 0 {
				return errors.New("missing app directory")
			}

			_, p, err := scan.Load(args[0], cfg)
			if err != nil {
				return err
			}
			if stats {
				b, err := json.MarshalIndent(jsrender.ComputeStats(p), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			var keep func(smali.MethodID) bool
			if prefix != "" {
				keep = func(m smali.MethodID) bool {
					return strings.HasPrefix(p.Class(p.Method(m).Class).Name, prefix)
				}
			}
			title := args[0]

			switch kind {
			case "callgraph":
				return writeGraph(cmd, out, func() (string, error) {
					return jsrender.CallgraphDOT(p, keep, title, jsrender.NASA, maxNodes), nil
				})
			case "lattice":
				return writeGraph(cmd, out, func() (string, error) {
					return render.DOT(callgraph.BuildCallGraph(p, keep), title), nil
				})
			case "cfg", "lcfg":
				m, err := lookupMethod(p, method)
				if err != nil {
					return err
				}
				return writeGraph(cmd, out, func() (string, error) {
					if kind == "cfg" {
						return jsrender.CFGDOT(p, m, jsrender.NASA), nil
					}
					return render.DOTCFG(callgraph.BuildCFG(p, []smali.MethodID{m}), method), nil
				})
			case "summary":
				rules, err := c.loadRules(cfg)
				if err != nil {
					return err
				}
				return writeGraph(cmd, out, func() (string, error) {
					g := &lattice.CFGGraph{}
					for _, m := range sinkMethods(p, rules) {
						if f, _ := callgraph.BuildSummaryFuncCFG(p, m); len(f.Blocks) > 0 {
							g.Funcs = append(g.Funcs, f)
						}
					}
					return render.DOTCFG(g, title), nil
				})
			case "bridges":
				rules, err := c.loadRules(cfg)
				if err != nil {
					return err
				}
				o := scan.Options{Config: cfg, Rules: rules, Log: c.log}
				return writeGraph(cmd, out, func() (string, error) {
					sc, err := scan.Analyze(cmd.Context(), args[0], o)
					if err != nil && !errors.Is(err, scan.ErrNoBridge) {
						return "", err
					}
					all := append(append([]sink.Finding(nil), sc.Bridges...), sc.Content...)
					return jsrender.BridgeDOT(all, sc.App.ID, jsrender.NASA), nil
				})
			}
			return fmt.Errorf("unknown --kind %q (%s)", kind, graphKinds)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&kind, "kind", "k", "callgraph", "Graph kind: "+graphKinds)
	f.StringVarP(&method, "method", "m", "", "Method descriptor for cfg and lcfg")
	f.StringVar(&prefix, "class-prefix", "", "Only methods of classes starting with this descriptor prefix")
	f.StringVar(&findings, "findings", "", "bridges.jsonl to render with --kind bridges")
	f.IntVar(&maxNodes, "max-nodes", 0, "Method nodes rendered by callgraph (0 = all)")
	f.BoolVar(&stats, "stats", false, "Print call graph statistics as JSON instead")
	f.StringVar(&out, "out-file", "", "Write DOT to this file instead of stdout")
	return cmd
}

// writeGraph renders with fn and writes the result to path, or to stdout
// when path is empty.
func writeGraph(cmd *cobra.Command, path string, fn func() (string, error)) error {
	dot, err := fn()
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprint(cmd.OutOrStdout(), dot)
		return nil
	}
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	info.Fprintf(cmd.OutOrStdout(), "[*] DOT written to %s\n", path)
	return nil
}

func bridgesFromFile(path string) func() (string, error) {
	return func() (string, error) {
		recs, err := output.ReadJSONL[output.BridgeRecord](path)
		if err != nil {
			return "", err
		}
		fs := make([]sink.Finding, 0, len(recs))
		for _, r := range recs {
			fs = append(fs, r.Finding())
		}
		return jsrender.BridgeDOT(fs, path, jsrender.NASA), nil
	}
}

// sinkMethods returns the methods holding a call matched by any rule, in
// program order.
func sinkMethods(p *smali.Program, rules []sink.Rule) []smali.MethodID {
	seen := make(map[smali.MethodID]bool)
	for i := range rules {
		for _, pos := range p.Sites(rules[i].Matches) {
			if m, ok := p.MethodAt(pos); ok {
				seen[m] = true
			}
		}
	}
	var out []smali.MethodID
	for mi := range p.Methods {
		if seen[smali.MethodID(mi)] {
			out = append(out, smali.MethodID(mi))
		}
	}
	return out
}
