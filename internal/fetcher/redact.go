package fetcher

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Redactor replaces secrets found by the gitleaks default rule set with
// [REDACTED:<rule-id>] markers. It is safe for concurrent use.
type Redactor struct {
	pool sync.Pool
}

// NewRedactor creates a Redactor. Detectors are built lazily, one per
// concurrent caller.
func NewRedactor() *Redactor {
	return &Redactor{}
}

func (r *Redactor) detector() (*detect.Detector, error) {
	if d, ok := r.pool.Get().(*detect.Detector); ok {
		return d, nil
	}
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret detector: %w", err)
	}
	return d, nil
}

// Redact returns content with every detected secret replaced, and the number
// of distinct secrets replaced.
func (r *Redactor) Redact(content string) (out string, count int, err error) {
	d, err := r.detector()
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if p := recover(); p != nil {
			out, count, err = "", 0, fmt.Errorf("secret detection panicked: %v", p)
			return
		}
		r.pool.Put(d)
	}()

	findings := d.DetectString(content)
	if len(findings) == 0 {
		return content, 0, nil
	}

	// Longest secrets first so a secret containing another is replaced whole.
	sort.SliceStable(findings, func(i, j int) bool {
		return len(findings[i].Secret) > len(findings[j].Secret)
	})

	seen := make(map[string]bool, len(findings))
	out = content
	for _, f := range findings {
		if f.Secret == "" || seen[f.Secret] {
			continue
		}
		seen[f.Secret] = true
		out = strings.ReplaceAll(out, f.Secret, "[REDACTED:"+f.RuleID+"]")
		count++
	}
	return out, count, nil
}
