package output

import (
	"strings"
	"time"

	"jsbridge/internal/sink"
	"jsbridge/internal/slicer"
	"jsbridge/internal/smali"
)

// BridgeRecord is one exposed JavaScript interface.
type BridgeRecord struct {
	App                     string   `json:"app"`
	InitiatingClass         string   `json:"initiating_class"`
	ReadableInitiatingClass string   `json:"readable_initiating_class"`
	InitiatingMethod        string   `json:"initiating_method,omitempty"`
	Line                    int      `json:"line"`
	BridgeClass             string   `json:"bridge_class"`
	ReadableBridgeClass     string   `json:"readable_bridge_class"`
	InterfaceObject         string   `json:"interface_object"`
	BridgeMethods           string   `json:"bridge_methods,omitempty"`
	MethodCount             int      `json:"method_count"`
	Confidence              string   `json:"confidence"`
	Score                   float64  `json:"score"`
	ResolutionType          string   `json:"resolution_type"`
	PartialHints            string   `json:"partial_hints,omitempty"`
	Categories              []string `json:"categories,omitempty"`
	Timestamp               int64    `json:"timestamp"`
}

// ContentRecord is one content sink (loadUrl, evaluateJavascript, ...) in
// a class that also exposes a bridge.
type ContentRecord struct {
	App              string   `json:"app"`
	Sink             string   `json:"sink"`
	ActivityName     string   `json:"activity_name"`
	ReadableActivity string   `json:"readable_activity"`
	Method           string   `json:"method,omitempty"`
	Line             int      `json:"line"`
	PassString       string   `json:"pass_string"`
	Confidence       string   `json:"confidence"`
	Score            float64  `json:"score"`
	ResolutionType   string   `json:"resolution_type"`
	DynamicPatterns  string   `json:"dynamic_patterns,omitempty"`
	PartialHints     string   `json:"partial_hints,omitempty"`
	SourceHint       string   `json:"source_hint,omitempty"`
	Categories       []string `json:"categories,omitempty"`
	Severity         string   `json:"severity,omitempty"`
	Timestamp        int64    `json:"timestamp"`
}

// WebViewRecord is one slicer audit row.
type WebViewRecord struct {
	App string `json:"app"`
	slicer.WebViewReport
	Artifact  string `json:"artifact,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewBridgeRecord flattens a bridge finding.
func NewBridgeRecord(f sink.Finding, now time.Time) BridgeRecord {
	return BridgeRecord{
		App:                     f.App,
		InitiatingClass:         f.Class,
		ReadableInitiatingClass: smali.Dotted(f.Class),
		InitiatingMethod:        f.Method,
		Line:                    f.Line,
		BridgeClass:             f.BridgeClass,
		ReadableBridgeClass:     smali.Dotted(f.BridgeClass),
		InterfaceObject:         f.Interface,
		BridgeMethods:           FormatBridgeMethods(f.Methods),
		MethodCount:             len(f.Methods),
		Confidence:              f.Confidence.String(),
		Score:                   f.Confidence.Score(),
		ResolutionType:          f.Confidence.Type(),
		PartialHints:            strings.Join(f.Hints, "|"),
		Categories:              f.Categories,
		Timestamp:               now.UnixMilli(),
	}
}

// NewContentRecord flattens a content finding.
func NewContentRecord(f sink.Finding, now time.Time) ContentRecord {
	return ContentRecord{
		App:              f.App,
		Sink:             f.Sink,
		ActivityName:     f.Class,
		ReadableActivity: smali.Dotted(f.Class),
		Method:           f.Method,
		Line:             f.Line,
		PassString:       f.Value,
		Confidence:       f.Confidence.String(),
		Score:            f.Confidence.Score(),
		ResolutionType:   f.Confidence.Type(),
		DynamicPatterns:  strings.Join(f.Dynamic, "|"),
		PartialHints:     strings.Join(f.Hints, "|"),
		SourceHint:       f.SourceHint,
		Categories:       f.Categories,
		Severity:         sink.MaxSeverity(f.Categories),
		Timestamp:        now.UnixMilli(),
	}
}

// NewWebViewRecord wraps an audit report. artifact is the path of the
// written slice, if any.
func NewWebViewRecord(app string, r slicer.WebViewReport, artifact string, now time.Time) WebViewRecord {
	return WebViewRecord{App: app, WebViewReport: r, Artifact: artifact, Timestamp: now.UnixMilli()}
}

// FormatBridgeMethods renders numbered method lines, each followed by its
// Java-like signature:
//
//	[METHOD 1] notify(Ljava/lang/String;)V
//	  Readable: void notify(String)
func FormatBridgeMethods(methods []string) string {
	var b strings.Builder
	for _, m := range methods {
		b.WriteString(m)
		b.WriteByte('\n')
		if _, key, ok := strings.Cut(m, "] "); ok {
			b.WriteString("  Readable: ")
			b.WriteString(smali.ReadableMethod(key))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Finding rebuilds the bridge finding a record was made from, enough to
// render it again.
func (r BridgeRecord) Finding() sink.Finding {
	f := sink.Finding{
		App:         r.App,
		Sink:        "addJavascriptInterface",
		Kind:        sink.KindBridge,
		Class:       r.InitiatingClass,
		Method:      r.InitiatingMethod,
		Line:        r.Line,
		Value:       r.BridgeClass,
		BridgeClass: r.BridgeClass,
		Interface:   r.InterfaceObject,
		Categories:  r.Categories,
	}
	f.Confidence, _ = sink.ParseConfidence(r.Confidence)
	for _, l := range strings.Split(r.BridgeMethods, "\n") {
		if strings.HasPrefix(l, "[METHOD ") {
			f.Methods = append(f.Methods, l)
		}
	}
	if r.PartialHints != "" {
		f.Hints = strings.Split(r.PartialHints, "|")
	}
	return f
}
