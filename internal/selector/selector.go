// Package selector applies the file selection policy to a tree listing.
package selector

import (
	"strings"

	"github.com/fyrsmithlabs/repoindexer/internal/hosting"
)

// SelectedFile is a listing entry that passed the policy. It carries no
// content.
type SelectedFile struct {
	Path   string
	SizeKB float64
	SHA    string
}

// Policy is an extension allow-list plus an exclusive size ceiling.
type Policy struct {
	Extensions []string
	MaxSizeKB  float64
	// Exclude holds gitignore-style lines; matching paths are ignored
	// regardless of extension.
	Exclude []string
}

// Result partitions a listing.
type Result struct {
	// Selected passed both checks, in listing order.
	Selected []SelectedFile
	// Oversized have an allowed extension but SizeKB >= MaxSizeKB.
	Oversized []SelectedFile
	// Ignored counts entries whose extension is not allowed or whose path
	// is excluded.
	Ignored int
}

// Select returns the files whose extension is allowed and whose size is
// strictly below maxSizeKB, preserving input order.
func Select(files []hosting.FileEntry, allowList []string, maxSizeKB float64) []SelectedFile {
	return Classify(files, Policy{Extensions: allowList, MaxSizeKB: maxSizeKB}).Selected
}

// Classify partitions files by the policy.
func Classify(files []hosting.FileEntry, p Policy) Result {
	allowed := normalize(p.Extensions)
	excludes := compileExcludes(p.Exclude)

	var res Result
	for _, f := range files {
		if !hasAllowedExtension(f.Path, allowed) || excluded(f.Path, excludes) {
			res.Ignored++
			continue
		}
		sf := SelectedFile{Path: f.Path, SizeKB: sizeKB(f.Size), SHA: f.SHA}
		if sf.SizeKB < p.MaxSizeKB {
			res.Selected = append(res.Selected, sf)
		} else {
			res.Oversized = append(res.Oversized, sf)
		}
	}
	return res
}

// sizeKB converts a listing size to KB. Listings sometimes omit the size;
// such entries count as 0 KB and always pass the ceiling.
func sizeKB(size *int) float64 {
	if size == nil {
		return 0
	}
	return float64(*size) / 1024
}

func normalize(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// hasAllowedExtension matches case-sensitively: "D.PY" is not a ".py" file.
func hasAllowedExtension(path string, allowed []string) bool {
	for _, ext := range allowed {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
