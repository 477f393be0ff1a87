// Package gateway provides the repository-listing and release-classification
// collaborators, backed by the typed GitHub client.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/hoffmannjan/adabot/internal/domain"
)

// releaseWindow is the trailing period a release must fall into for a
// library to count as new or updated in the weekly report.
const releaseWindow = 7 * 24 * time.Hour

// Fetcher defines the behavior of a gateway for listing an organization's
// library repositories and classifying their recent release activity.
type Fetcher interface {
	ListRepos(ctx context.Context) ([]domain.Repository, error)
	Classify(ctx context.Context, repo domain.Repository) (domain.ReleaseStatus, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	client *github.Client
	org    string
	prefix string
	logger *log.Logger
	now    func() time.Time
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// Repositories whose names do not carry prefix are filtered out of listings;
// an empty prefix keeps everything.
func NewGitHubGateway(token, org, prefix string, logger *log.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		client: github.NewClient(httpClient),
		org:    org,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}, nil
}

// ListRepos pages through the organization's repositories and returns the
// library descriptors the aggregation loop iterates over.
func (g *GitHubGateway) ListRepos(ctx context.Context) ([]domain.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		Type:        "public",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var repos []domain.Repository
	for {
		page, resp, err := g.client.Repositories.ListByOrg(ctx, g.org, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s repositories: %w", g.org, err)
		}
		for _, repo := range page {
			name := repo.GetName()
			if g.prefix != "" && !strings.HasPrefix(name, g.prefix) {
				continue
			}
			repos = append(repos, domain.Repository{
				Name:    name,
				HTMLURL: repo.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Debug("fetching next page of repositories", "page", resp.NextPage)
	}
	g.logger.Info("listed organization repositories", "org", g.org, "count", len(repos))
	return repos, nil
}

// Classify reports whether the repository released inside the trailing
// window: its first-ever release makes it "new", any further release makes
// it "updated", anything else is not-new.
func (g *GitHubGateway) Classify(ctx context.Context, repo domain.Repository) (domain.ReleaseStatus, error) {
	releases, _, err := g.client.Repositories.ListReleases(ctx, g.org, repo.Name, &github.ListOptions{PerPage: 100})
	if err != nil {
		return domain.ReleaseNone, fmt.Errorf("failed to list releases for %s: %w", repo.Name, err)
	}
	if len(releases) == 0 {
		return domain.ReleaseNone, nil
	}

	latest := releases[0].GetPublishedAt().Time
	if latest.Before(g.now().Add(-releaseWindow)) {
		return domain.ReleaseNone, nil
	}
	if len(releases) == 1 {
		return domain.ReleaseNew, nil
	}
	return domain.ReleaseUpdated, nil
}
