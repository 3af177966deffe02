package hosting

import (
	"context"
	"errors"
	"sort"

	"github.com/google/go-github/v57/github"
)

// FetchEnrichment gathers the language breakdown and the contributor and
// commit counts. Each part is best-effort: the returned Enrichment holds
// whatever succeeded and the error joins the failures.
//
// Counts use per_page=1 and read the total from the last-page link.
func (c *Client) FetchEnrichment(ctx context.Context, repo RepositoryRef) (*Enrichment, error) {
	out := &Enrichment{}
	var errs []error

	var langs map[string]int
	if err := c.call(ctx, "list languages", func(ctx context.Context) (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		langs, resp, err = c.gh.Repositories.ListLanguages(ctx, repo.Owner, repo.Name)
		return resp, err
	}); err != nil {
		errs = append(errs, err)
	}
	for name, bytes := range langs {
		out.Languages = append(out.Languages, Language{Name: name, Bytes: bytes})
	}
	sort.Slice(out.Languages, func(i, j int) bool {
		if out.Languages[i].Bytes != out.Languages[j].Bytes {
			return out.Languages[i].Bytes > out.Languages[j].Bytes
		}
		return out.Languages[i].Name < out.Languages[j].Name
	})

	one := github.ListOptions{PerPage: 1}

	if err := c.call(ctx, "count contributors", func(ctx context.Context) (*github.Response, error) {
		users, resp, err := c.gh.Repositories.ListContributors(ctx, repo.Owner, repo.Name,
			&github.ListContributorsOptions{ListOptions: one})
		out.Contributors = countFrom(resp, len(users))
		return resp, err
	}); err != nil {
		errs = append(errs, err)
	}

	if err := c.call(ctx, "count commits", func(ctx context.Context) (*github.Response, error) {
		commits, resp, err := c.gh.Repositories.ListCommits(ctx, repo.Owner, repo.Name,
			&github.CommitsListOptions{ListOptions: one})
		out.Commits = countFrom(resp, len(commits))
		return resp, err
	}); err != nil {
		errs = append(errs, err)
	}

	return out, errors.Join(errs...)
}

// countFrom derives a total from a per_page=1 listing.
func countFrom(resp *github.Response, pageLen int) int {
	if resp != nil && resp.LastPage > 0 {
		return resp.LastPage
	}
	return pageLen
}
