package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"jsbridge/internal/config"
	"jsbridge/internal/sink"
)

func newSchemaCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:    "schema",
		Short:  "Generate JSON schema for configuration",
		Long:   "Generate JSON schema for the jsbridge configuration file, or for one entry of a sink rule file with --kind rule",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reflector := new(jsonschema.Reflector)
			var s *jsonschema.Schema
			switch kind {
			case "config":
				s = reflector.Reflect(&config.Config{})
			case "rule":
				s = reflector.Reflect(&sink.Rule{})
			default:
				return fmt.Errorf("unknown --kind %q (config, rule)", kind)
			}
			bts, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bts))
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "config", "Schema target: config or rule")
	return cmd
}
