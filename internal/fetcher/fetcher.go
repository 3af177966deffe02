// Package fetcher retrieves the text of selected files.
//
// Fetch never aborts the caller: every failure is reported as an error
// matching hosting.ErrContentUnavailable so the file can be skipped.
// Content above the configured ceiling is passed through unmodified;
// truncation belongs to the embedding generator.
package fetcher

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/fyrsmithlabs/repoindexer/internal/hosting"
	"github.com/fyrsmithlabs/repoindexer/internal/selector"
	"go.uber.org/zap"
)

// ContentSource retrieves decoded file content. *hosting.Client implements it.
type ContentSource interface {
	FetchContent(ctx context.Context, repo hosting.RepositoryRef, ref, path, sha string) (string, error)
}

// Config holds fetcher configuration.
type Config struct {
	// MaxContentKB is the ceiling above which content is logged as oversized.
	MaxContentKB float64

	// Redact replaces detected secrets before the text leaves the fetcher.
	Redact bool
}

// Result is fetched file content.
type Result struct {
	Text       string
	SizeKB     float64
	Oversized  bool
	Redactions int
}

// Fetcher wraps a ContentSource with decoding checks and secret redaction.
type Fetcher struct {
	source   ContentSource
	config   Config
	redactor *Redactor
	logger   *zap.Logger
}

// New creates a Fetcher.
func New(source ContentSource, cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{source: source, config: cfg, logger: logger}
	if cfg.Redact {
		f.redactor = NewRedactor()
	}
	return f
}

var errNotText = errors.New("content is not valid UTF-8 text")

// Fetch retrieves file at ref. Failures match hosting.ErrContentUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, repo hosting.RepositoryRef, ref string, file selector.SelectedFile) (*Result, error) {
	text, err := f.source.FetchContent(ctx, repo, ref, file.Path, file.SHA)
	if err != nil {
		if !errors.Is(err, hosting.ErrContentUnavailable) {
			err = &hosting.ContentUnavailableError{Path: file.Path, Err: err}
		}
		return nil, err
	}
	if !utf8.ValidString(text) {
		return nil, &hosting.ContentUnavailableError{Path: file.Path, Err: errNotText}
	}

	res := &Result{Text: text, SizeKB: float64(len(text)) / 1024}
	if f.config.MaxContentKB > 0 && res.SizeKB >= f.config.MaxContentKB {
		res.Oversized = true
		f.logger.Debug("content above ceiling passed through",
			zap.String("repository", repo.FullName()),
			zap.String("path", file.Path),
			zap.Float64("size_kb", res.SizeKB),
		)
	}

	if f.redactor != nil {
		redacted, n, err := f.redactor.Redact(text)
		if err != nil {
			return nil, &hosting.ContentUnavailableError{Path: file.Path, Err: err}
		}
		if n > 0 {
			f.logger.Info("secrets redacted from file",
				zap.String("repository", repo.FullName()),
				zap.String("path", file.Path),
				zap.Int("count", n),
			)
		}
		res.Text = redacted
		res.Redactions = n
	}
	return res, nil
}
