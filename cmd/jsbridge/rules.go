package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"jsbridge/internal/sink"
)

func (c *cli) newRulesCmd() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the sink rules in effect",
		Long: `rules lists the sink rules that analyze and batch would use: the
builtin rules, or those of --rules. --yaml prints them in the rule file
format, ready to be edited and passed back with --rules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			rules, err := c.loadRules(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asYAML {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(rules); err != nil {
					return err
				}
				return enc.Close()
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tARGS\tDESCRIPTOR")
			for _, r := range rules {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Kind, ruleArgs(r), r.Descriptor)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print rules as YAML")
	return cmd
}

func ruleArgs(r sink.Rule) string {
	if r.Kind == sink.KindBridge {
		return fmt.Sprintf("object=%d name=%d", r.ObjectArg, r.NameArg)
	}
	return fmt.Sprintf("value=%d", r.ValueArg)
}
