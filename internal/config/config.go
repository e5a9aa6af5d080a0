// Package config loads the analyzer configuration from YAML.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"jsbridge/internal/diag"
	"jsbridge/internal/sink"
)

// Config drives one analyzer run. Zero fields fall back to Default.
type Config struct {
	// Output is the directory receiving JSONL records and artifacts.
	Output string `yaml:"output" json:"output,omitempty" jsonschema:"description=Output directory for JSONL records and artifacts,default=out"`
	// Jobs is the number of applications analyzed in parallel.
	Jobs int `yaml:"jobs" json:"jobs,omitempty" jsonschema:"minimum=1,default=1"`
	// Rules is an optional YAML sink rule file replacing the builtin rules.
	Rules string `yaml:"rules" json:"rules,omitempty" jsonschema:"description=YAML sink rule file"`
	// SourcesFile lists leak sources, one per line. Its entries are added to Sources.
	SourcesFile string   `yaml:"sources_file" json:"sources_file,omitempty"`
	Sources     []string `yaml:"sources" json:"sources,omitempty" jsonschema:"description=Method references reported as leaks when found in a slice"`
	// Exclude lists class namespace prefixes, as paths inside a smali tree,
	// that are never loaded.
	Exclude []string `yaml:"exclude" json:"exclude,omitempty"`
	// ExcludeFiles lists file name globs that are never loaded.
	ExcludeFiles []string `yaml:"exclude_files" json:"exclude_files,omitempty"`
	// Slices writes one artifact per audited WebView slice.
	Slices bool `yaml:"slices" json:"slices,omitempty"`
	// DOT writes bridges.dot and per-method CFGs for every sink site.
	DOT bool `yaml:"dot" json:"dot,omitempty"`

	Limits diag.Options `yaml:"limits" json:"limits,omitempty"`
}

// DefaultExclude are the platform and library namespaces skipped by the
// collector.
var DefaultExclude = []string{
	"android/",
	"androidx/",
	"com/google/",
	"com/facebook/",
	"com/android/",
}

// DefaultExcludeFiles are generated resource and build classes.
var DefaultExcludeFiles = []string{"R.smali", "R$*.smali", "BuildConfig.smali"}

// DefaultSources are framework calls whose results identify the user or
// the device.
var DefaultSources = []string{
	"Landroid/telephony/TelephonyManager;->getDeviceId()",
	"Landroid/telephony/TelephonyManager;->getSubscriberId()",
	"Landroid/telephony/TelephonyManager;->getLine1Number()",
	"Landroid/telephony/TelephonyManager;->getSimSerialNumber()",
	"Landroid/location/LocationManager;->getLastKnownLocation(",
	"Landroid/location/Location;->getLatitude()",
	"Landroid/location/Location;->getLongitude()",
	"Landroid/accounts/AccountManager;->getAccounts()",
	"Landroid/provider/Settings$Secure;->getString(",
	"Landroid/content/ContentResolver;->query(",
	"Landroid/net/wifi/WifiInfo;->getMacAddress()",
	"Landroid/content/SharedPreferences;->getString(",
	"Landroid/webkit/CookieManager;->getCookie(",
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Output:       "out",
		Jobs:         1,
		Sources:      append([]string(nil), DefaultSources...),
		Exclude:      append([]string(nil), DefaultExclude...),
		ExcludeFiles: append([]string(nil), DefaultExcludeFiles...),
	}
}

// Load reads a YAML file over the defaults. Lists given in the file
// replace the default lists.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.SourcesFile != "" {
		extra, err := LoadSources(cfg.SourcesFile)
		if err != nil {
			return nil, err
		}
		cfg.Sources = append(cfg.Sources, extra...)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if cfg.Jobs < 1 {
		return nil, fmt.Errorf("jobs must be at least 1, got %d", cfg.Jobs)
	}
	return cfg, nil
}

// LoadSources reads a leak source list: one reference per line, blank lines
// and lines starting with '#' ignored.
func LoadSources(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return out, nil
}

// LoadRules returns the sink rules named by the configuration, or the
// builtin rules when none is set.
func (c *Config) LoadRules() ([]sink.Rule, error) {
	if c.Rules == "" {
		return sink.BuiltinRules(), nil
	}
	rules, err := sink.LoadRulesFromFile(c.Rules)
	if err != nil {
		return nil, fmt.Errorf("config: rules: %w", err)
	}
	return rules, nil
}
