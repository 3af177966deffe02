package pipeline

import (
	"bytes"
	"testing"

	"github.com/fyrsmithlabs/repoindexer/internal/hosting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport(t *testing.T) {
	reports := []RepositoryReport{
		{
			Repository:   "alice/r1",
			Status:       StatusIndexed,
			Details:      &hosting.RepositoryDetails{Description: "first", Stars: 3, Forks: 1, Watchers: 2, SizeKB: 12},
			Enrichment:   &hosting.Enrichment{Languages: []hosting.Language{{Name: "Python", Bytes: 900}}, Contributors: 2, Commits: 40},
			Branch:       "main",
			FilesListed:  2,
			FilesIndexed: 1,
			FilesIgnored: 1,
		},
		{
			Repository:  "alice/r2",
			Status:      StatusIndexed,
			Details:     &hosting.RepositoryDetails{},
			Branch:      "master",
			Truncated:   true,
			FilesListed: 1,
			SkippedSize: 1,
		},
		{Repository: "alice/r3", Status: StatusFailed, Error: "listing: no accessible branch"},
	}
	s := summarize("alice", reports)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, s))
	out := buf.String()

	assert.Contains(t, out, "Repository: alice/r1\nDescription: first\nStars: 3, Forks: 1, Watchers: 2\nSize: 12 KB\n")
	assert.Contains(t, out, "Primary Language: Python\nContributors: 2, Commits: 40\n")
	assert.Contains(t, out, "Description: No description\n")
	assert.Contains(t, out, "Branch: master (listing truncated)\n")
	assert.Contains(t, out, "Code Files: 0 indexed, 1 skipped, 0 failed (1 listed)\n")
	assert.Contains(t, out, "Repository: alice/r3\nStatus: failed (listing: no accessible branch)\n")
	assert.Contains(t, out, "Repositories: 2 processed, 1 failed\n")
	assert.Contains(t, out, "Files: 1 indexed, 1 skipped (size 1, content 0, embedding 0), 0 failed, 1 ignored\n")
	assert.NotContains(t, out, "Secrets redacted")

	// Enumeration order is kept.
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("alice/r1")), bytes.Index(buf.Bytes(), []byte("alice/r2")))
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("alice/r2")), bytes.Index(buf.Bytes(), []byte("alice/r3")))
}

func TestWriteReport_Analyze(t *testing.T) {
	s := summarize("alice", []RepositoryReport{{
		Repository:    "alice/r1",
		Status:        StatusAnalyzed,
		Branch:        "main",
		FilesListed:   3,
		FilesSelected: 1,
		SkippedSize:   1,
		FilesIgnored:  1,
	}})
	s.Analyze = true

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, s))
	assert.Contains(t, buf.String(), "Code Files: 1 of 3 (1 above size ceiling)\n")
	assert.Contains(t, buf.String(), "Files: 1 selected, 1 skipped (size), 1 ignored\n")
}

func TestSummarize(t *testing.T) {
	s := summarize("alice", []RepositoryReport{
		{Status: StatusIndexed, FilesIndexed: 2, SkippedContent: 1, SecretsRedacted: 3},
		{Status: StatusFailed},
		{Status: StatusCanceled},
		{Status: StatusIndexed, SkippedEmbedding: 2, FilesFailed: 1, SkippedSize: 4},
	})
	assert.Equal(t, 2, s.RepositoriesProcessed)
	assert.Equal(t, 1, s.RepositoriesFailed)
	assert.Equal(t, 1, s.RepositoriesCanceled)
	assert.Equal(t, 2, s.FilesIndexed)
	assert.Equal(t, 7, s.FilesSkipped)
	assert.Equal(t, 1, s.FilesFailed)
	assert.Equal(t, 3, s.SecretsRedacted)
}
