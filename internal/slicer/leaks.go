package slicer

import "strings"

const getSettings = "Landroid/webkit/WebView;->getSettings()"

// Leaks returns the source signatures that appear in the slice or in extra,
// in the order of sources. WebView.getSettings is never a source.
func Leaks(sl *Slice, extra, sources []string) []string {
	lines := append(sl.Lines(), extra...)
	var out []string
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" || strings.Contains(src, getSettings) {
			continue
		}
		for _, l := range lines {
			if strings.Contains(strings.TrimSpace(l), src) {
				out = append(out, src)
				break
			}
		}
	}
	return out
}
