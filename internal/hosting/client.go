// Package hosting is the remote directory client for the GitHub REST API.
//
// It enumerates an account's repositories, walks repository trees with an
// ordered branch fallback, and retrieves file content and repository
// metadata. Every call is bounded by a per-call timeout, optionally paced by
// a client-side rate limiter, and retried only for 429, 5xx and network
// failures. Failures surface as the typed errors in errors.go.
package hosting

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/repoindexer/internal/config"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the REST API root. Empty uses https://api.github.com/.
	BaseURL string

	// Token is sent as a bearer token when set.
	Token config.Secret

	// PerPage is the repository enumeration page size. Default: 100.
	PerPage int

	// Timeout bounds each individual API call. Default: 30s.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialBackoff and MaxBackoff shape the exponential retry delay.
	// Defaults: 500ms and 10s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RequestsPerSecond paces outgoing calls. Zero disables pacing.
	RequestsPerSecond float64

	// HTTPClient is the transport base. Nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// ConfigFrom maps the application hosting section onto a client Config.
func ConfigFrom(c config.HostingConfig) Config {
	return Config{
		BaseURL:           c.BaseURL,
		Token:             c.Token,
		PerPage:           c.PerPage,
		Timeout:           c.Timeout,
		MaxRetries:        c.MaxRetries,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

func (c *Config) applyDefaults() {
	if c.PerPage <= 0 || c.PerPage > 100 {
		c.PerPage = 100
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
}

// Client talks to the hosting API. It is safe for concurrent use.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	config  Config
	logger  *zap.Logger
}

// NewClient creates a hosting client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if cfg.Token.IsSet() {
		ctx := context.Background()
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token.Value()})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	gh := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid hosting base url %q: %w", cfg.BaseURL, err)
		}
		gh.BaseURL = u
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	logger.Debug("hosting client configured",
		zap.String("base_url", gh.BaseURL.String()),
		zap.Bool("authenticated", cfg.Token.IsSet()),
		zap.Int("per_page", cfg.PerPage),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	return &Client{
		gh:      gh,
		limiter: limiter,
		config:  cfg,
		logger:  logger,
	}, nil
}

func refFromRepository(r *github.Repository) RepositoryRef {
	return RepositoryRef{
		Owner:  r.GetOwner().GetLogin(),
		Name:   r.GetName(),
		APIURL: r.GetURL(),
	}
}

// ListRepositories returns every repository of account, following pagination
// until the last page. Order is preserved across pages.
func (c *Client) ListRepositories(ctx context.Context, account Account) ([]RepositoryRef, error) {
	opts := &github.RepositoryListByUserOptions{
		ListOptions: github.ListOptions{PerPage: c.config.PerPage},
	}

	var refs []RepositoryRef
	for {
		var (
			repos []*github.Repository
			resp  *github.Response
		)
		err := c.call(ctx, "list repositories", func(ctx context.Context) (*github.Response, error) {
			var err error
			repos, resp, err = c.gh.Repositories.ListByUser(ctx, account.Login, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, r := range repos {
			refs = append(refs, refFromRepository(r))
		}
		c.logger.Debug("repository page fetched",
			zap.String("account", account.Login),
			zap.Int("page", opts.Page),
			zap.Int("count", len(repos)),
		)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return refs, nil
}

// FetchDetails retrieves repository metadata.
func (c *Client) FetchDetails(ctx context.Context, repo RepositoryRef) (*RepositoryDetails, error) {
	var r *github.Repository
	err := c.call(ctx, "fetch details", func(ctx context.Context) (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		r, resp, err = c.gh.Repositories.Get(ctx, repo.Owner, repo.Name)
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	return &RepositoryDetails{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		Owner:         r.GetOwner().GetLogin(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		Watchers:      r.GetSubscribersCount(),
		SizeKB:        r.GetSize(),
		DefaultBranch: r.GetDefaultBranch(),
		Language:      r.GetLanguage(),
		Fork:          r.GetFork(),
		HTMLURL:       r.GetHTMLURL(),
		PushedAt:      r.GetPushedAt().Time,
	}, nil
}
