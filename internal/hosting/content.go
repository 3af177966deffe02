package hosting

import (
	"context"
	"errors"

	"github.com/google/go-github/v57/github"
)

// FetchContent returns the decoded text of the file at path on ref.
//
// The contents API omits the body for files over 1 MB (encoding "none"); in
// that case the blob is read raw by sha. Every failure is a
// *ContentUnavailableError.
func (c *Client) FetchContent(ctx context.Context, repo RepositoryRef, ref, path, sha string) (string, error) {
	var file *github.RepositoryContent
	err := c.call(ctx, "fetch content", func(ctx context.Context) (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		file, _, resp, err = c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
			&github.RepositoryContentGetOptions{Ref: ref})
		return resp, err
	})
	if err != nil {
		return "", &ContentUnavailableError{Path: path, Err: err}
	}
	if file == nil {
		return "", &ContentUnavailableError{Path: path, Err: errors.New("path is a directory")}
	}

	if file.GetEncoding() == "none" || (file.Content == nil && file.GetSize() > 0) {
		if sha == "" {
			sha = file.GetSHA()
		}
		return c.fetchBlob(ctx, repo, path, sha)
	}

	text, err := file.GetContent()
	if err != nil {
		return "", &ContentUnavailableError{Path: path, Err: err}
	}
	return text, nil
}

func (c *Client) fetchBlob(ctx context.Context, repo RepositoryRef, path, sha string) (string, error) {
	if sha == "" {
		return "", &ContentUnavailableError{Path: path, Err: errors.New("no blob sha for large file")}
	}
	var raw []byte
	err := c.call(ctx, "fetch blob", func(ctx context.Context) (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		raw, resp, err = c.gh.Git.GetBlobRaw(ctx, repo.Owner, repo.Name, sha)
		return resp, err
	})
	if err != nil {
		return "", &ContentUnavailableError{Path: path, Err: err}
	}
	return string(raw), nil
}
