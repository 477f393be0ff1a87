// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hoffmannjan/adabot/internal/domain"
	"github.com/hoffmannjan/adabot/internal/gateway"
	"github.com/hoffmannjan/adabot/internal/ghapi"
	"github.com/hoffmannjan/adabot/internal/validator"
)

// activityWindow is the trailing period merged pull requests are counted in.
const activityWindow = 7 * 24 * time.Hour

// Result accumulates everything one run collects. Mappings are unsorted
// here; ordering is the serializer's job.
type Result struct {
	NewLibraries     map[string]string
	UpdatedLibraries map[string]string
	OpenIssues       map[string][]domain.Entry
	OpenPullRequests map[string][]domain.Entry
	Contributors     []string
	Reviewers        []string
	MergedPRCount    int
	ErrorLedger      map[string][]string
}

func newResult() *Result {
	return &Result{
		NewLibraries:     make(map[string]string),
		UpdatedLibraries: make(map[string]string),
		OpenIssues:       make(map[string][]domain.Entry),
		OpenPullRequests: make(map[string][]domain.Entry),
		ErrorLedger:      make(map[string][]string),
	}
}

// Aggregator is the use case for building the weekly activity report.
// It walks the repository list sequentially; no single repository's failure
// aborts the run, and every API miss degrades to empty partial data.
type Aggregator struct {
	client    *ghapi.Client
	fetcher   gateway.Fetcher
	validator *validator.LibraryValidator
	org       string
	umbrella  string
	exclude   map[string]struct{}
	logger    *log.Logger
	now       func() time.Time
}

// NewAggregator creates a new Aggregator instance. umbrella is the top-level
// project repository, which never appears in the report; exclude lists
// further repository names to skip.
func NewAggregator(client *ghapi.Client, fetcher gateway.Fetcher, v *validator.LibraryValidator, org, umbrella string, exclude []string, logger *log.Logger) *Aggregator {
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	return &Aggregator{
		client:    client,
		fetcher:   fetcher,
		validator: v,
		org:       org,
		umbrella:  umbrella,
		exclude:   skip,
		logger:    logger,
		now:       time.Now,
	}
}

// Aggregate runs the three per-repository queries plus validation over every
// repository and merges the partial results into a single Result.
func (a *Aggregator) Aggregate(ctx context.Context, repos []domain.Repository) *Result {
	result := newResult()

	for _, repo := range repos {
		if _, skip := a.exclude[repo.Name]; skip || repo.Name == a.umbrella {
			continue
		}
		a.logger.Debug("aggregating repository activity", "repo", repo.Name)

		switch a.classify(ctx, repo) {
		case domain.ReleaseNew:
			result.NewLibraries[repo.Name] = repo.HTMLURL
		case domain.ReleaseUpdated:
			result.UpdatedLibraries[repo.Name] = repo.HTMLURL
		}

		issues, prs := a.OpenIssuesAndPRs(ctx, repo)
		if len(issues) > 0 {
			result.OpenIssues[repo.Name] = issues
		}
		if len(prs) > 0 {
			result.OpenPullRequests[repo.Name] = prs
		}

		contributors, reviewers, merged := a.Contributors(ctx, repo)
		result.Contributors = append(result.Contributors, contributors...)
		result.Reviewers = append(result.Reviewers, reviewers...)
		result.MergedPRCount += merged

		a.mergeValidation(ctx, repo, result)
	}

	return result
}

// classify soft-fails to not-new: a repository we cannot classify still gets
// its issues, contributors and validation reported.
func (a *Aggregator) classify(ctx context.Context, repo domain.Repository) domain.ReleaseStatus {
	status, err := a.fetcher.Classify(ctx, repo)
	if err != nil {
		a.logger.Debug("release classification failed", "repo", repo.Name, "err", err)
		return domain.ReleaseNone
	}
	return status
}

// OpenIssuesAndPRs retrieves the repository's open issues, partitioned into
// pure issues and pull requests on the presence of the pull_request marker.
// A failed request returns two empty sequences, never an error.
func (a *Aggregator) OpenIssuesAndPRs(ctx context.Context, repo domain.Repository) (issues, prs []domain.Entry) {
	resp, err := a.client.Get(ctx, "/repos/"+a.org+"/"+repo.Name+"/issues", &ghapi.RequestOptions{
		Params: url.Values{"state": []string{"open"}},
	})
	if err != nil || !resp.OK() {
		return nil, nil
	}

	var items []struct {
		HTMLURL     string          `json:"html_url"`
		Title       string          `json:"title"`
		PullRequest json.RawMessage `json:"pull_request"`
	}
	if err := resp.JSON(&items); err != nil {
		return nil, nil
	}

	for _, item := range items {
		entry := domain.Entry{URL: item.HTMLURL, Title: item.Title}
		if len(item.PullRequest) == 0 {
			issues = append(issues, entry)
		} else {
			prs = append(prs, entry)
		}
	}
	return issues, prs
}

// Contributors collects the logins behind the trailing window's merged pull
// requests: PR authors as contributors, the merging user plus every approved
// reviewer as reviewers, and the in-window merged count. Sub-request
// failures omit their partial data.
func (a *Aggregator) Contributors(ctx context.Context, repo domain.Repository) (contributors, reviewers []string, merged int) {
	resp, err := a.client.Get(ctx, "/repos/"+a.org+"/"+repo.Name+"/pulls", &ghapi.RequestOptions{
		Params: url.Values{
			"state":     []string{"closed"},
			"sort":      []string{"updated"},
			"direction": []string{"desc"},
		},
	})
	if err != nil || !resp.OK() {
		return nil, nil, 0
	}

	var pulls []struct {
		URL      string     `json:"url"`
		MergedAt *time.Time `json:"merged_at"`
		User     struct {
			Login string `json:"login"`
		} `json:"user"`
	}
	if err := resp.JSON(&pulls); err != nil {
		return nil, nil, 0
	}

	cutoff := a.now().Add(-activityWindow)
	for _, pull := range pulls {
		// Closed-but-unmerged PRs have no merge timestamp.
		if pull.MergedAt == nil || pull.MergedAt.Before(cutoff) {
			continue
		}
		contributors = append(contributors, pull.User.Login)
		merged++

		detail, err := a.client.Get(ctx, pull.URL, nil)
		if err != nil || !detail.OK() {
			continue
		}
		var info struct {
			URL      string `json:"url"`
			MergedBy *struct {
				Login string `json:"login"`
			} `json:"merged_by"`
		}
		if err := detail.JSON(&info); err != nil {
			continue
		}
		if info.MergedBy != nil {
			reviewers = append(reviewers, info.MergedBy.Login)
		}

		reviewResp, err := a.client.Get(ctx, info.URL+"/reviews", nil)
		if err != nil || !reviewResp.OK() {
			continue
		}
		var reviews []struct {
			State string `json:"state"`
			User  struct {
				Login string `json:"login"`
			} `json:"user"`
		}
		if err := reviewResp.JSON(&reviews); err != nil {
			continue
		}
		for _, review := range reviews {
			if strings.EqualFold(review.State, "approved") {
				reviewers = append(reviewers, review.User.Login)
			}
		}
	}

	return contributors, reviewers, merged
}

// mergeValidation folds the validator's signals for repo into the error
// ledger, flushing the validator's diagnostic buffer when the sentinel kind
// shows up.
func (a *Aggregator) mergeValidation(ctx context.Context, repo domain.Repository, result *Result) {
	for _, signal := range a.validator.RunRepoValidation(ctx, repo) {
		if signal.Kind == validator.ErrorOutputHandler && len(a.validator.OutputFileData) > 0 {
			a.logger.Info(strings.Join(a.validator.OutputFileData, ", "))
			a.validator.OutputFileData = a.validator.OutputFileData[:0]
		}

		annotated := repo.HTMLURL
		if signal.HasDays {
			annotated = fmt.Sprintf("%s (%d days)", repo.HTMLURL, signal.Days)
		}
		kind := string(signal.Kind)
		result.ErrorLedger[kind] = append(result.ErrorLedger[kind], annotated)
	}
}
