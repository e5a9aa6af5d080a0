package sink

import "fmt"

// Confidence grades how much of a finding's value is known. Grades are
// ordered: a larger value is a stronger claim.
type Confidence int

const (
	Unknown Confidence = iota
	MarkedDynamic
	PartialInfo
	InferredFromAssets
	StaticConfirmed
)

var confidenceInfo = [...]struct {
	name  string
	typ   string
	score float64
}{
	Unknown:            {"UNKNOWN", "UNKNOWN", 0.0},
	MarkedDynamic:      {"MARKED_DYNAMIC", "DYNAMIC", 0.3},
	PartialInfo:        {"PARTIAL_INFO", "PARTIAL", 0.4},
	InferredFromAssets: {"INFERRED_FROM_ASSETS", "INFERRED_ASSETS", 0.8},
	StaticConfirmed:    {"STATIC_CONFIRMED", "STATIC", 1.0},
}

func (c Confidence) valid() bool { return c >= Unknown && c <= StaticConfirmed }

func (c Confidence) String() string {
	if !c.valid() {
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
	return confidenceInfo[c].name
}

// Score is the numeric weight stored with a finding.
func (c Confidence) Score() float64 {
	if !c.valid() {
		return 0
	}
	return confidenceInfo[c].score
}

// Type is the short resolution type: STATIC, INFERRED_ASSETS, PARTIAL, DYNAMIC or UNKNOWN.
func (c Confidence) Type() string {
	if !c.valid() {
		return "UNKNOWN"
	}
	return confidenceInfo[c].typ
}

// Cap returns c lowered to at most max. It never raises a grade.
func (c Confidence) Cap(max Confidence) Confidence {
	if c > max {
		return max
	}
	return c
}

func (c Confidence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Confidence) UnmarshalText(b []byte) error {
	p, err := ParseConfidence(string(b))
	if err != nil {
		return err
	}
	*c = p
	return nil
}

// ParseConfidence accepts a grade name or a resolution type.
func ParseConfidence(s string) (Confidence, error) {
	for i, info := range confidenceInfo {
		if s == info.name || s == info.typ {
			return Confidence(i), nil
		}
	}
	return Unknown, fmt.Errorf("sink: unknown confidence %q", s)
}
