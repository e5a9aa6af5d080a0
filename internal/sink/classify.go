package sink

import (
	"regexp"
	"strings"
)

// Categories for content values.
const (
	CatRemote     = "remote"        // http(s) or ws(s) URL
	CatInsecure   = "insecure_http" // cleartext http:// or ws://
	CatAsset      = "asset"         // file:///android_asset or android_res
	CatFile       = "file"          // other file:// URLs and absolute paths
	CatJavaScript = "javascript"    // javascript: URLs and script text
	CatData       = "data"          // data: URLs and inline HTML
	CatContent    = "content"       // content:// provider URLs
	CatIntent     = "intent"        // intent: URLs and custom schemes
	CatAuth       = "auth"          // credentials in the value
)

var (
	reRemote   = regexp.MustCompile(`(?i)\b(https?|wss?)://`)
	reInsecure = regexp.MustCompile(`(?i)\b(http|ws)://`)
	reScheme   = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*):`)

	// Script text passed to evaluateJavascript rarely carries a scheme.
	scriptKeywords = []string{
		"document.", "window.", "function(", "function (", "=>",
		"console.log", "postmessage", "dispatchevent",
	}

	reHTML = regexp.MustCompile(`(?i)<\s*(html|body|script|div|iframe|head)\b`)

	// Word boundaries keep camelCase names like "showPassword" out.
	reAuthValue = regexp.MustCompile(`(?i)(^|[^a-zA-Z])(token|access_token|apikey|api_key|password|secret|session|auth|bearer)([^a-zA-Z]|$)`)

	knownSchemes = map[string]bool{
		"http": true, "https": true, "ws": true, "wss": true,
		"file": true, "javascript": true, "data": true, "content": true,
		"about": true, "blob": true,
	}
)

// Classify returns the categories matching a content value, in a fixed
// order. Placeholders and empty values carry no category.
func Classify(value string) []string {
	v := strings.TrimSpace(value)
	if len(v) < 2 || strings.HasPrefix(v, "UNRESOLVED") {
		return nil
	}
	lower := strings.ToLower(v)

	var cats []string
	add := func(c string) {
		if !containsCat(cats, c) {
			cats = append(cats, c)
		}
	}

	if reRemote.MatchString(v) {
		add(CatRemote)
	}
	if reInsecure.MatchString(v) {
		add(CatInsecure)
	}
	switch {
	case strings.Contains(lower, "file:///android_asset/"), strings.Contains(lower, "file:///android_res/"),
		strings.HasPrefix(lower, "inferred_asset:"):
		add(CatAsset)
	case strings.Contains(lower, "file://"), strings.HasPrefix(v, "/data/"), strings.HasPrefix(v, "/sdcard/"):
		add(CatFile)
	}
	if strings.HasPrefix(lower, "javascript:") || containsKeyword(lower, scriptKeywords) {
		add(CatJavaScript)
	}
	if strings.HasPrefix(lower, "data:") || reHTML.MatchString(v) {
		add(CatData)
	}
	if strings.HasPrefix(lower, "content://") {
		add(CatContent)
	}
	if m := reScheme.FindStringSubmatch(v); m != nil {
		scheme := strings.ToLower(m[1])
		if scheme == "intent" || (!knownSchemes[scheme] && strings.HasPrefix(v[len(m[0]):], "//")) {
			add(CatIntent)
		}
	}
	if reAuthValue.MatchString(v) {
		add(CatAuth)
	}
	return cats
}

func containsKeyword(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func containsCat(cats []string, c string) bool {
	for _, x := range cats {
		if x == c {
			return true
		}
	}
	return false
}

// Severity levels for categories.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// CategorySeverity returns the severity level for a category.
func CategorySeverity(cat string) string {
	switch cat {
	case CatInsecure, CatJavaScript, CatAuth, CatIntent:
		return SeverityHigh
	case CatRemote, CatFile, CatData, CatContent:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// MaxSeverity returns the highest severity from a list of categories.
func MaxSeverity(categories []string) string {
	best := ""
	for _, c := range categories {
		switch CategorySeverity(c) {
		case SeverityHigh:
			return SeverityHigh
		case SeverityMedium:
			best = SeverityMedium
		case SeverityLow:
			if best == "" {
				best = SeverityLow
			}
		}
	}
	return best
}
