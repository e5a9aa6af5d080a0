// Package diag provides diagnostics and analysis limits shared by the
// resolver, slicer and sink extractors.
package diag

import "fmt"

// Kind classifies a diagnostic message.
type Kind string

const (
	KindUnresolved Kind = "unresolved"
	KindCapReached Kind = "cap_reached"
	KindCycle      Kind = "cycle"
	KindBadInvoke  Kind = "bad_invoke"
	KindMissingUse Kind = "missing_use"
	KindInternal   Kind = "internal"
)

// Diag records a non-fatal issue encountered during analysis.
type Diag struct {
	Where string `json:"where"` // class descriptor, optionally with ":line"
	Kind  Kind   `json:"kind"`
	Msg   string `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Where, d.Msg)
}

// Diags accumulates diagnostics. A nil *Diags discards everything.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(where string, kind Kind, msg string) {
	if d == nil {
		return
	}
	d.items = append(d.items, Diag{Where: where, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(where string, kind Kind, format string, args ...any) {
	if d == nil {
		return
	}
	d.items = append(d.items, Diag{Where: where, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag {
	if d == nil {
		return nil
	}
	return d.items
}

func (d *Diags) Len() int {
	if d == nil {
		return 0
	}
	return len(d.items)
}

// Count returns the number of diagnostics per kind.
func (d *Diags) Count() map[Kind]int {
	out := make(map[Kind]int)
	for _, it := range d.Items() {
		out[it.Kind]++
	}
	return out
}

// Options bounds the analysis. Zero fields select the defaults.
type Options struct {
	MaxCallers    int `yaml:"max_callers" json:"max_callers,omitempty"`       // caller sites inspected per parameter
	MaxDepth      int `yaml:"max_depth" json:"max_depth,omitempty"`           // nested caller/callee hops
	MaxExpansions int `yaml:"max_expansions" json:"max_expansions,omitempty"` // callees expanded per slice and per invoked-method closure
	DynamicWindow int `yaml:"dynamic_window" json:"dynamic_window,omitempty"` // lines scanned for dynamic patterns
	BridgeWindow  int `yaml:"bridge_window" json:"bridge_window,omitempty"`   // ± lines scanned for a bridge name literal
}

const (
	DefaultMaxCallers    = 10
	DefaultMaxDepth      = 16
	DefaultMaxExpansions = 500
	DefaultDynamicWindow = 20
	DefaultBridgeWindow  = 8
)

func (o Options) EffectiveMaxCallers() int    { return orDefault(o.MaxCallers, DefaultMaxCallers) }
func (o Options) EffectiveMaxDepth() int      { return orDefault(o.MaxDepth, DefaultMaxDepth) }
func (o Options) EffectiveMaxExpansions() int { return orDefault(o.MaxExpansions, DefaultMaxExpansions) }
func (o Options) EffectiveDynamicWindow() int { return orDefault(o.DynamicWindow, DefaultDynamicWindow) }
func (o Options) EffectiveBridgeWindow() int  { return orDefault(o.BridgeWindow, DefaultBridgeWindow) }

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
