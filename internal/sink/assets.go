package sink

import (
	"os"
	"path/filepath"
	"strings"
)

const assetURL = "file:///android_asset/"

// AssetEntryPoints are the asset files a WebView commonly loads.
var AssetEntryPoints = []string{
	"index.html",
	"www/index.html",
	"app.html",
	"main.html",
	"index.htm",
}

// InferAssets returns "file:///android_asset/<f>" for every entry point
// present under dir, joined with " | ". It returns "" when dir is empty or
// holds none of them.
func InferAssets(dir string) string {
	if dir == "" {
		return ""
	}
	var found []string
	for _, f := range AssetEntryPoints {
		st, err := os.Stat(filepath.Join(dir, filepath.FromSlash(f)))
		if err == nil && !st.IsDir() {
			found = append(found, assetURL+f)
		}
	}
	return strings.Join(found, " | ")
}
