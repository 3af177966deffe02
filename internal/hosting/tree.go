package hosting

import (
	"context"
	"net/http"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
)

// ListFiles walks the repository tree recursively, trying branches in order.
//
// The first branch whose tree holds at least one blob wins. A branch that is
// not found (404), belongs to an empty repository (409) or has no blobs
// falls through to the next candidate. Any other failure aborts with an
// *UpstreamError. When every branch falls through the error is a
// *NoAccessibleBranchError. Only blob entries are returned.
func (c *Client) ListFiles(ctx context.Context, repo RepositoryRef, branches []string) (*Listing, error) {
	tried := make([]string, 0, len(branches))
	seen := make(map[string]bool, len(branches))

	for _, branch := range branches {
		if branch == "" || seen[branch] {
			continue
		}
		seen[branch] = true
		tried = append(tried, branch)

		var tree *github.Tree
		err := c.call(ctx, "list files", func(ctx context.Context) (*github.Response, error) {
			var (
				resp *github.Response
				err  error
			)
			tree, resp, err = c.gh.Git.GetTree(ctx, repo.Owner, repo.Name, branch, true)
			return resp, err
		})
		if err != nil {
			if status := StatusOf(err); status == http.StatusNotFound || status == http.StatusConflict {
				c.logger.Debug("branch not available, trying next",
					zap.String("repository", repo.FullName()),
					zap.String("branch", branch),
					zap.Int("status_code", status),
				)
				continue
			}
			return nil, err
		}

		files := blobs(tree)
		if len(files) == 0 {
			c.logger.Debug("branch tree empty, trying next",
				zap.String("repository", repo.FullName()),
				zap.String("branch", branch),
			)
			continue
		}
		if tree.GetTruncated() {
			c.logger.Warn("tree listing truncated by upstream",
				zap.String("repository", repo.FullName()),
				zap.String("branch", branch),
				zap.Int("files", len(files)),
			)
		}
		return &Listing{Branch: branch, Files: files, Truncated: tree.GetTruncated()}, nil
	}

	return nil, &NoAccessibleBranchError{Repo: repo.FullName(), Tried: tried}
}

func blobs(tree *github.Tree) []FileEntry {
	if tree == nil {
		return nil
	}
	files := make([]FileEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.GetType() != "blob" {
			continue
		}
		files = append(files, FileEntry{
			Path: e.GetPath(),
			Size: e.Size,
			SHA:  e.GetSHA(),
		})
	}
	return files
}
