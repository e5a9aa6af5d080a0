package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"jsbridge/internal/collect"
	"jsbridge/internal/output"
	"jsbridge/internal/scan"
)

func (c *cli) newBatchCmd() *cobra.Command {
	var (
		quiet  bool
		slices bool
		dot    bool
	)
	cmd := &cobra.Command{
		Use:   "batch <root>",
		Short: "Analyze every decompiled application under a directory",
		Long: `batch analyzes each subdirectory of <root> that holds a smali tree.
Applications without an addJavascriptInterface call are skipped. Records
from all applications go to the same JSONL files, and the totals are
written to summary.json.`,
		Args: cobra.ExactArgs(1),
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
			dirs, err := collect.Apps(args[0])
			if err != nil {
				return err
			}
			if len(dirs) == 0 {
				return fmt.Errorf("no smali trees under %s", args[0])
			}
			c.log.Info("batch", "root", args[0], "apps", len(dirs), "jobs", cfg.Jobs)

			wr, err := output.NewWriter(cfg.Output)
			if err != nil {
				return err
			}
			var progress io.Writer = os.Stderr
			if quiet {
				progress = nil
			}
			sum := scan.RunBatch(cmd.Context(), dirs, scan.Options{
				Config: cfg,
				Rules:  rules,
				Writer: wr,
				Log:    c.log,
			}, progress)
			if err := wr.Close(); err != nil {
				return err
			}
			if err := output.WriteSummaryJSON(cfg.Output, sum); err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return cmd.Context().Err()
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	f.BoolVar(&slices, "slices", false, "Write one slice artifact per audited WebView")
	f.BoolVar(&dot, "dot", false, "Write bridge, call graph and CFG DOT files")
	return cmd
}
