package pipeline

import (
	"time"

	"github.com/fyrsmithlabs/repoindexer/internal/hosting"
)

// State is the run state.
type State string

const (
	StateInit        State = "init"
	StateEnumerating State = "enumerating"
	StateProcessing  State = "processing"
	StateDone        State = "done"
)

// RepoStatus is the outcome of one repository.
type RepoStatus string

const (
	// StatusIndexed means every selected file was attempted.
	StatusIndexed RepoStatus = "indexed"
	// StatusAnalyzed means the repository was listed and selected only.
	StatusAnalyzed RepoStatus = "analyzed"
	// StatusFailed means details or listing failed.
	StatusFailed RepoStatus = "failed"
	// StatusCanceled means the run stopped before the repository finished.
	StatusCanceled RepoStatus = "canceled"
)

// RepositoryReport is the outcome of one repository.
type RepositoryReport struct {
	Repository string
	Status     RepoStatus
	Error      string

	Details    *hosting.RepositoryDetails
	Enrichment *hosting.Enrichment
	Branch     string
	Truncated  bool

	FilesListed      int
	FilesSelected    int
	FilesIgnored     int
	FilesIndexed     int
	SkippedSize      int
	SkippedContent   int
	SkippedEmbedding int
	FilesFailed      int
	SecretsRedacted  int
}

// FilesSkipped is the sum of size, content and embedding skips.
func (r RepositoryReport) FilesSkipped() int {
	return r.SkippedSize + r.SkippedContent + r.SkippedEmbedding
}

// Summary aggregates a run. Repositories are in enumeration order.
type Summary struct {
	Account  string
	Analyze  bool
	Duration time.Duration

	RepositoriesProcessed int
	RepositoriesFailed    int
	RepositoriesCanceled  int

	FilesIndexed     int
	FilesSkipped     int
	SkippedSize      int
	SkippedContent   int
	SkippedEmbedding int
	FilesFailed      int
	FilesIgnored     int
	SecretsRedacted  int

	Repositories []RepositoryReport
}

// summarize aggregates reports in the order given.
func summarize(account string, reports []RepositoryReport) *Summary {
	s := &Summary{Account: account, Repositories: reports}
	for _, r := range reports {
		switch r.Status {
		case StatusFailed:
			s.RepositoriesFailed++
		case StatusCanceled:
			s.RepositoriesCanceled++
		default:
			s.RepositoriesProcessed++
		}
		s.FilesIndexed += r.FilesIndexed
		s.SkippedSize += r.SkippedSize
		s.SkippedContent += r.SkippedContent
		s.SkippedEmbedding += r.SkippedEmbedding
		s.FilesFailed += r.FilesFailed
		s.FilesIgnored += r.FilesIgnored
		s.SecretsRedacted += r.SecretsRedacted
	}
	s.FilesSkipped = s.SkippedSize + s.SkippedContent + s.SkippedEmbedding
	return s
}

// Progress reports run state changes and repository completions.
type Progress struct {
	State      State
	Repository string
	Completed  int
	Total      int
}

// ProgressCallback receives progress updates. Calls are serialized.
type ProgressCallback func(Progress)
