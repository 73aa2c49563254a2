package validation

import (
	"os"
	"path/filepath"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// ImageExtensions are the reference formats looked up in design directories.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// ResolveReference picks the reference image for one viewport.
//
// A file path is used for every viewport. In a directory the lookup order is
// <viewport>.<ext> then <page>-<viewport>.<ext>. An empty result means no
// reference exists, which the comparison reports as REFERENCE_MISSING.
func ResolveReference(designPath, pageName string, vp models.ViewportSpec) string {
	if designPath == "" {
		return ""
	}
	info, err := os.Stat(designPath)
	if err != nil || !info.IsDir() {
		return designPath
	}

	var names []string
	names = append(names, vp.Name)
	if pageName != "" {
		names = append(names, pageName+"-"+vp.Name)
	}
	for _, name := range names {
		for _, ext := range ImageExtensions {
			candidate := filepath.Join(designPath, name+ext)
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				return candidate
			}
		}
	}
	return ""
}
