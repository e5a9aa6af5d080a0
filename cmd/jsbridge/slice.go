package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zboralski/lattice/render"

	"jsbridge/internal/callgraph"
	"jsbridge/internal/diag"
	"jsbridge/internal/scan"
	"jsbridge/internal/slicer"
	"jsbridge/internal/smali"
)

func (c *cli) newSliceCmd() *cobra.Command {
	var (
		method   string
		line     int
		reg      string
		artifact bool
		dot      bool
	)
	cmd := &cobra.Command{
		Use:   "slice <app-dir>",
		Short: "Print the backward slice of a register",
		Long: `slice prints every line that can influence the value of --reg on
--line of --method, across callee returns and caller arguments.
--artifact adds the exposed bridge methods and the methods they invoke,
as written to slice artifacts. --dot prints the call graph restricted
to the slice instead.`,
		Example: `  jsbridge slice app/ --method 'Lcom/x/Main;->onCreate(Landroid/os/Bundle;)V' --line 42 --reg v0`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			_, p, err := scan.Load(args[0], cfg)
			if err != nil {
				return err
			}
			class, key, ok := strings.Cut(method, "->")
			if !ok {
				return fmt.Errorf("bad method descriptor %q (want Lclass;->name(args)ret)", method)
			}
			var diags diag.Diags
			s := slicer.New(p, cfg.Limits, &diags)
			sl, err := s.SliceAt(class, key, line, reg)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if dot {
				fmt.Fprint(w, render.DOT(callgraph.BuildSliceGraph(p, sl), method))
				return nil
			}

			ins := s.Inspect(sl)
			if !artifact || !ins.Known {
				for _, l := range sl.Lines() {
					fmt.Fprintln(w, l)
				}
			}
			info.Fprintf(w, "[*] %d lines in %d methods, webview=%v js=%v injects=%v\n",
				sl.Len(), len(callgraph.SliceMethods(p, sl)), ins.UsesWebView, ins.JSEnabled, ins.Injects)
			if ins.Bridge != "" {
				good.Fprintf(w, "[+] Bridge %q -> %s (known=%v)\n", ins.Interface, smali.Dotted(ins.Bridge), ins.Known)
			}
			if artifact {
				if !ins.Known {
					warn.Fprintln(w, "[*] No bridge class in the slice, no artifact.")
				} else {
					a := s.Artifact(sl, ins.Bridge)
					fmt.Fprint(w, a.Text())
					for _, l := range slicer.Leaks(sl, a.Extra(), cfg.Sources) {
						bad.Fprintf(w, "[-] leak: %s\n", l)
					}
				}
			}
			printDiags(w, diags.Items())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&method, "method", "m", "", "Method descriptor Lclass;->name(args)ret")
	f.IntVarP(&line, "line", "l", 0, "Line number in the class file")
	f.StringVarP(&reg, "reg", "r", "", "Register to slice, e.g. v0 or p1")
	f.BoolVar(&artifact, "artifact", false, "Print the full slice artifact")
	f.BoolVar(&dot, "dot", false, "Print the slice call graph as DOT")
	_ = cmd.MarkFlagRequired("method")
	_ = cmd.MarkFlagRequired("line")
	_ = cmd.MarkFlagRequired("reg")
	return cmd
}
