package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// WriteReport renders the per-repository report followed by aggregate
// totals. Repositories appear in enumeration order.
func WriteReport(w io.Writer, s *Summary) error {
	var b strings.Builder
	for _, r := range s.Repositories {
		writeRepository(&b, r, s.Analyze)
		b.WriteString("---\n")
	}

	fmt.Fprintf(&b, "Account: %s\n", s.Account)
	fmt.Fprintf(&b, "Repositories: %d processed, %d failed", s.RepositoriesProcessed, s.RepositoriesFailed)
	if s.RepositoriesCanceled > 0 {
		fmt.Fprintf(&b, ", %d canceled", s.RepositoriesCanceled)
	}
	b.WriteString("\n")
	if s.Analyze {
		selected := 0
		for _, r := range s.Repositories {
			selected += r.FilesSelected
		}
		fmt.Fprintf(&b, "Files: %d selected, %d skipped (size), %d ignored\n", selected, s.SkippedSize, s.FilesIgnored)
	} else {
		fmt.Fprintf(&b, "Files: %d indexed, %d skipped (size %d, content %d, embedding %d), %d failed, %d ignored\n",
			s.FilesIndexed, s.FilesSkipped, s.SkippedSize, s.SkippedContent, s.SkippedEmbedding, s.FilesFailed, s.FilesIgnored)
	}
	if s.SecretsRedacted > 0 {
		fmt.Fprintf(&b, "Secrets redacted: %d\n", s.SecretsRedacted)
	}
	if s.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", s.Duration.Round(time.Millisecond))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeRepository(b *strings.Builder, r RepositoryReport, analyze bool) {
	fmt.Fprintf(b, "Repository: %s\n", r.Repository)
	if r.Status == StatusFailed || r.Status == StatusCanceled {
		fmt.Fprintf(b, "Status: %s", r.Status)
		if r.Error != "" {
			fmt.Fprintf(b, " (%s)", r.Error)
		}
		b.WriteString("\n")
		return
	}

	if d := r.Details; d != nil {
		desc := d.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(b, "Description: %s\n", desc)
		fmt.Fprintf(b, "Stars: %d, Forks: %d, Watchers: %d\n", d.Stars, d.Forks, d.Watchers)
		fmt.Fprintf(b, "Size: %d KB\n", d.SizeKB)
	}
	if e := r.Enrichment; e != nil {
		primary := "Unknown"
		if len(e.Languages) > 0 {
			primary = e.Languages[0].Name
		}
		fmt.Fprintf(b, "Primary Language: %s\n", primary)
		fmt.Fprintf(b, "Contributors: %d, Commits: %d\n", e.Contributors, e.Commits)
	}

	branch := r.Branch
	if r.Truncated {
		branch += " (listing truncated)"
	}
	fmt.Fprintf(b, "Branch: %s\n", branch)
	if analyze {
		fmt.Fprintf(b, "Code Files: %d of %d (%d above size ceiling)\n", r.FilesSelected, r.FilesListed, r.SkippedSize)
		return
	}
	fmt.Fprintf(b, "Code Files: %d indexed, %d skipped, %d failed (%d listed)\n",
		r.FilesIndexed, r.FilesSkipped(), r.FilesFailed, r.FilesListed)
}
