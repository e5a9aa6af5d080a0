package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jsbridge/internal/diag"
	"jsbridge/internal/resolve"
	"jsbridge/internal/scan"
)

func (c *cli) newResolveCmd() *cobra.Command {
	var (
		class  string
		line   int
		reg    string
		typ    bool
		accept string
	)
	cmd := &cobra.Command{
		Use:   "resolve <app-dir>",
		Short: "Recover the value a register holds at a line",
		Long: `resolve walks backward from --line of --class to recover the string
held in --reg: constants, StringBuilder chains, concatenations, field
stores, callee returns and caller arguments. --type recovers the class
of the object in the register instead.`,
		Example: `  jsbridge resolve app/ --class 'Lcom/x/Main;' --line 42 --reg v2`,
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
			pos, err := lookupPos(p, class, line)
			if err != nil {
				return err
			}

			var diags diag.Diags
			r := resolve.New(p, cfg.Limits, &diags)
			switch accept {
			case "valid":
			case "nonempty":
				r = r.WithAccept(resolve.NonEmpty)
			case "any":
				r = r.WithAccept(resolve.AnyLiteral)
			default:
				return fmt.Errorf("unknown --accept %q (valid, nonempty, any)", accept)
			}

			var v resolve.Value
			if typ {
				v = r.ResolveType(pos, reg)
			} else {
				v = r.Resolve(pos, reg)
			}

			w := cmd.OutOrStdout()
			switch {
			case v.Static():
				good.Fprintf(w, "[+] %s (%s)\n", v.Text, v.Kind)
			case v.Resolved():
				warn.Fprintf(w, "[*] %s (%s)\n", v.Text, v.Kind)
			default:
				bad.Fprintf(w, "[-] %s\n", v.Placeholder("UNRESOLVED"))
			}
			printDiags(w, diags.Items())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&class, "class", "", "Class descriptor, e.g. Lcom/x/Main;")
	f.IntVarP(&line, "line", "l", 0, "Line number in the class file")
	f.StringVarP(&reg, "reg", "r", "", "Register, e.g. v0 or p1")
	f.BoolVar(&typ, "type", false, "Resolve the object's class instead of a string")
	f.StringVar(&accept, "accept", "valid", "Literals accepted as values: valid, nonempty, any")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("line")
	_ = cmd.MarkFlagRequired("reg")
	return cmd
}
