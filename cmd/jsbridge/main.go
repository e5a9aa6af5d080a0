package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"jsbridge/internal/config"
	"jsbridge/internal/logging"
	"jsbridge/internal/sink"
	"jsbridge/internal/smali"
)

func main() {
	lg := logging.New()
	defer lg.Close()

	if err := fang.Execute(
		context.Background(),
		newRootCmd(lg.Logger),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// cli holds the state shared by every subcommand.
type cli struct {
	log        *log.Logger
	configPath string
	output     string
	jobs       int
	rules      string
}

func newRootCmd(lg *log.Logger) *cobra.Command {
	c := &cli{log: lg}
	root := &cobra.Command{
		Use:   "jsbridge",
		Short: "JavaScript bridge risk analyzer for decompiled Android apps",
		Long: `jsbridge reads smali trees produced by apktool and reports every
WebView JavaScript bridge, the content loaded into WebViews, and the
data reachable from exposed bridge methods.`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVarP(&c.output, "out", "o", "", "Output directory (overrides config)")
	pf.IntVarP(&c.jobs, "jobs", "j", 0, "Applications analyzed in parallel (overrides config)")
	pf.StringVar(&c.rules, "rules", "", "YAML sink rule file (overrides config)")

	root.AddCommand(
		c.newAnalyzeCmd(),
		c.newBatchCmd(),
		c.newSliceCmd(),
		c.newResolveCmd(),
		c.newGraphCmd(),
		c.newRulesCmd(),
		newSchemaCmd(),
	)
	return root
}

// loadConfig reads the configuration file, if any, and applies the
// persistent flag overrides.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}
	if c.output != "" {
		cfg.Output = c.output
	}
	if c.jobs > 0 {
		cfg.Jobs = c.jobs
	}
	if c.rules != "" {
		cfg.Rules = c.rules
	}
	return cfg, nil
}

func (c *cli) loadRules(cfg *config.Config) ([]sink.Rule, error) {
	rules, err := cfg.LoadRules()
	if err != nil {
		return nil, err
	}
	c.log.Debug("rules", "count", len(rules), "file", cfg.Rules)
	return rules, nil
}

// lookupMethod finds "Lc;->name(args)ret" in p.
func lookupMethod(p *smali.Program, desc string) (smali.MethodID, error) {
	class, key, ok := strings.Cut(desc, "->")
	if !ok {
		return 0, fmt.Errorf("bad method descriptor %q (want Lclass;->name(args)ret)", desc)
	}
	m, ok := p.Lookup(class, key)
	if !ok {
		return 0, fmt.Errorf("method %s not found", desc)
	}
	return m, nil
}

// lookupPos finds a class and checks that line falls inside one of its
// methods.
func lookupPos(p *smali.Program, class string, line int) (smali.Pos, error) {
	cid, ok := p.ClassByName(class)
	if !ok {
		return smali.Pos{}, fmt.Errorf("class %s not found", class)
	}
	pos := smali.Pos{Class: cid, Line: line}
	if _, ok := p.MethodAt(pos); !ok {
		return smali.Pos{}, fmt.Errorf("%s:%d is not inside a method", class, line)
	}
	return pos, nil
}
