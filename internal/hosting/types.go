package hosting

import "time"

// RepositoryRef identifies a repository for the lifetime of a run.
type RepositoryRef struct {
	Owner  string
	Name   string
	APIURL string
}

// FullName returns owner/name, used as cache key and index namespace.
func (r RepositoryRef) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r RepositoryRef) String() string { return r.FullName() }

// RepositoryDetails is the repository metadata reported per run.
type RepositoryDetails struct {
	Name          string
	FullName      string
	Description   string
	Owner         string
	Stars         int
	Forks         int
	Watchers      int
	SizeKB        int
	DefaultBranch string
	Language      string
	Fork          bool
	HTMLURL       string
	PushedAt      time.Time
}

// Language is one entry of a repository's language breakdown.
type Language struct {
	Name  string
	Bytes int
}

// Enrichment is optional repository metadata gathered on a best-effort basis.
type Enrichment struct {
	Languages    []Language
	Contributors int
	Commits      int
}

// FileEntry is one blob of a repository tree. Size is nil when the listing
// omitted it.
type FileEntry struct {
	Path string
	Size *int
	SHA  string
}

// Listing is the uniform result of a tree traversal.
type Listing struct {
	Branch    string
	Files     []FileEntry
	Truncated bool
}
