package main

import (
	"errors"

	"github.com/spf13/cobra"

	"jsbridge/internal/output"
	"jsbridge/internal/scan"
)

func (c *cli) newAnalyzeCmd() *cobra.Command {
	var (
		slices  bool
		dot     bool
		dryRun  bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <app-dir>",
		Short: "Analyze one decompiled application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if slices {
				cfg.Slices = true
			}
			if dot {
				cfg.DOT = true
			}
			rules, err := c.loadRules(cfg)
			if err != nil {
				return err
			}
			o := scan.Options{Config: cfg, Rules: rules, Log: c.log}

			w := cmd.OutOrStdout()
			ctx, err := scan.Analyze(cmd.Context(), args[0], o)
			if errors.Is(err, scan.ErrNoBridge) {
				warn.Fprintf(w, "[*] %s: no addJavascriptInterface call, skipped\n", ctx.App.ID)
				return nil
			}
			if err != nil {
				return err
			}
			printContext(w, ctx, verbose)
			if dryRun {
				return nil
			}

			wr, err := output.NewWriter(cfg.Output)
			if err != nil {
				return err
			}
			o.Writer = wr
			if err := ctx.Write(o); err != nil {
				wr.Close()
				return err
			}
			if err := wr.Close(); err != nil {
				return err
			}
			info.Fprintf(w, "[*] Results written to %s\n", cfg.Output)
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&slices, "slices", false, "Write one slice artifact per audited WebView")
	f.BoolVar(&dot, "dot", false, "Write bridge, call graph and CFG DOT files")
	f.BoolVarP(&dryRun, "dry-run", "n", false, "Print findings without writing records")
	f.BoolVarP(&verbose, "verbose", "v", false, "Print diagnostics")
	return cmd
}
