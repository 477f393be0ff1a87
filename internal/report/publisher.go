package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hoffmannjan/adabot/internal/ghapi"
)

// branchDateLayout names the dated update branch, e.g. libraries_update_26-Aug-26.
const branchDateLayout = "02-Jan-06"

// refExistsMessage is the one branch-creation failure that is tolerated:
// a rerun on the same day finds its branch already in place.
const refExistsMessage = "Reference already exists"

// Publisher pushes the serialized document to the downstream site
// repository: a dated branch on the maintainer fork, a content update on
// that branch, and a pull request back to upstream. All steps run over the
// same rate-limited client as the report queries.
type Publisher struct {
	client        *ghapi.Client
	upstream      string // owner/repo of the site repository
	fork          string // owner/repo of the fork the branch is created on
	defaultBranch string
	filePath      string // path of the JSON file inside the site repository
	logger        *log.Logger
	now           func() time.Time
}

// NewPublisher creates a publisher targeting filePath in upstream's
// defaultBranch, staging changes on fork.
func NewPublisher(client *ghapi.Client, upstream, fork, defaultBranch, filePath string, logger *log.Logger) *Publisher {
	return &Publisher{
		client:        client,
		upstream:      upstream,
		fork:          fork,
		defaultBranch: defaultBranch,
		filePath:      filePath,
		logger:        logger,
		now:           time.Now,
	}
}

// Publish runs the remote-update protocol for the serialized document.
// Every failure other than the tolerated branch-exists conflict aborts with
// an error naming the step and carrying the response body; already-applied
// remote state is not rolled back.
func (p *Publisher) Publish(ctx context.Context, document string) error {
	commitDate := p.now().Format(branchDateLayout)
	branch := "libraries_update_" + commitDate
	commitMessage := "Automated Libraries update for " + commitDate

	commitSHA, err := p.defaultBranchSHA(ctx)
	if err != nil {
		return err
	}
	blobSHA, err := p.fileBlobSHA(ctx, commitSHA)
	if err != nil {
		return err
	}
	if err := p.createBranch(ctx, branch, commitSHA); err != nil {
		return err
	}
	if err := p.updateFile(ctx, branch, commitMessage, blobSHA, document); err != nil {
		return err
	}
	if err := p.openPullRequest(ctx, branch, commitMessage); err != nil {
		return err
	}

	p.logger.Info("published libraries update", "branch", branch, "upstream", p.upstream)
	return nil
}

func (p *Publisher) defaultBranchSHA(ctx context.Context) (string, error) {
	resp, err := p.client.Get(ctx, "/repos/"+p.upstream+"/git/refs/heads/"+p.defaultBranch, nil)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve %s sha: %w", p.defaultBranch, err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("failed to retrieve %s sha:\n%s", p.defaultBranch, resp.Text())
	}
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := resp.JSON(&ref); err != nil {
		return "", fmt.Errorf("failed to decode %s ref: %w", p.defaultBranch, err)
	}
	return ref.Object.SHA, nil
}

func (p *Publisher) fileBlobSHA(ctx context.Context, commitSHA string) (string, error) {
	resp, err := p.client.Get(ctx, "/repos/"+p.upstream+"/contents/"+p.filePath+"?ref="+commitSHA, nil)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve %s sha: %w", p.filePath, err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("failed to retrieve %s sha:\n%s", p.filePath, resp.Text())
	}
	var contents struct {
		SHA string `json:"sha"`
	}
	if err := resp.JSON(&contents); err != nil {
		return "", fmt.Errorf("failed to decode %s contents: %w", p.filePath, err)
	}
	return contents.SHA, nil
}

func (p *Publisher) createBranch(ctx context.Context, branch, commitSHA string) error {
	resp, err := p.client.Post(ctx, "/repos/"+p.fork+"/git/refs", &ghapi.RequestOptions{
		JSON: map[string]string{
			"ref": "refs/heads/" + branch,
			"sha": commitSHA,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	if resp.OK() {
		return nil
	}

	// A rerun on the same day races its own earlier branch; that exact
	// conflict is fine, anything else is fatal.
	var failure struct {
		Message string `json:"message"`
	}
	if err := resp.JSON(&failure); err == nil && failure.Message == refExistsMessage {
		p.logger.Debug("update branch already exists, reusing it", "branch", branch)
		return nil
	}
	return fmt.Errorf("failed to create branch:\n%s", resp.Text())
}

func (p *Publisher) updateFile(ctx context.Context, branch, commitMessage, blobSHA, document string) error {
	content := base64.StdEncoding.EncodeToString([]byte(document + "\n"))
	resp, err := p.client.Put(ctx, "/repos/"+p.fork+"/contents/"+p.filePath, &ghapi.RequestOptions{
		JSON: map[string]string{
			"message": commitMessage,
			"content": content,
			"sha":     blobSHA,
			"branch":  branch,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", p.filePath, err)
	}
	if !resp.OK() {
		return fmt.Errorf("failed to update %s:\n%s", p.filePath, resp.Text())
	}
	return nil
}

func (p *Publisher) openPullRequest(ctx context.Context, branch, commitMessage string) error {
	forkOwner := ownerOf(p.fork)
	resp, err := p.client.Post(ctx, "/repos/"+p.upstream+"/pulls", &ghapi.RequestOptions{
		JSON: map[string]any{
			"title":                 commitMessage,
			"head":                  forkOwner + ":" + branch,
			"base":                  p.defaultBranch,
			"body":                  commitMessage,
			"maintainer_can_modify": true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create pull request: %w", err)
	}
	if !resp.OK() {
		return fmt.Errorf("failed to create pull request:\n%s", resp.Text())
	}
	return nil
}

// ownerOf returns the owner part of an owner/repo coordinate.
func ownerOf(coordinate string) string {
	owner, _, _ := strings.Cut(coordinate, "/")
	return owner
}
