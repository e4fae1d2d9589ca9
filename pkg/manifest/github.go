package manifest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/platinummonkey/depgraph/pkg/workspace"
)

const (
	// DefaultGitHubRateLimit is the authenticated GitHub API budget (requests per hour)
	DefaultGitHubRateLimit = 5000

	defaultGitHubBurst = 10
)

// GitHubConfig configures a GitHubSource
type GitHubConfig struct {
	// Token is a personal access or app token. Anonymous access is used when empty.
	Token string

	// BaseURL of a GitHub Enterprise API, e.g. https://ghe.example.com/api/v3/.
	// Empty means github.com.
	BaseURL string

	// RateLimit in requests per hour (default: 5000)
	RateLimit int

	// Burst is the number of requests allowed ahead of the rate (default: 10)
	Burst int
}

// GitHubSource reads manifests through the GitHub contents API
type GitHubSource struct {
	client  *github.Client
	limiter *rate.Limiter
	files   []string
}

// NewGitHubSource creates a GitHub-backed Source
func NewGitHubSource(cfg GitHubConfig) (*GitHubSource, error) {
	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
	}

	return newGitHubSourceWithClient(client, cfg), nil
}

func newGitHubSourceWithClient(client *github.Client, cfg GitHubConfig) *GitHubSource {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultGitHubRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultGitHubBurst
	}

	return &GitHubSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimit)/3600.0), cfg.Burst),
		files:   ManifestFiles,
	}
}

// Fetch returns the first supported manifest found at the repository root
func (s *GitHubSource) Fetch(ctx context.Context, repo workspace.Repository) (*Manifest, error) {
	if repo.Owner == "" {
		return nil, fmt.Errorf("repository %s has no owner", repo.Name)
	}

	opts := &github.RepositoryContentGetOptions{Ref: repo.DefaultBranch}
	for _, file := range s.files {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		content, _, resp, err := s.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, file, opts)
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			continue
		}
		if err != nil {
			var rateErr *github.RateLimitError
			if errors.As(err, &rateErr) {
				return nil, fmt.Errorf("github rate limit exceeded until %s: %w", rateErr.Rate.Reset.Time, err)
			}
			return nil, fmt.Errorf("failed to fetch %s from %s: %w", file, repo.FullName(), err)
		}
		if content == nil {
			// A directory with the manifest's name.
			continue
		}

		text, err := content.GetContent()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s from %s: %w", file, repo.FullName(), err)
		}
		return Parse(file, []byte(text))
	}

	return nil, fmt.Errorf("%w: %s (tried %s)", ErrManifestNotFound, repo.FullName(), strings.Join(s.files, ", "))
}
