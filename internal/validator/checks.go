package validator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hoffmannjan/adabot/internal/domain"
)

// DefaultChecks is the statically declared check table the bot ships with.
func DefaultChecks() []Check {
	return []Check{
		{Name: "readme", Run: validateReadme},
		{Name: "license", Run: validateLicense},
		{Name: "description", Run: validateDescription},
	}
}

// validateReadme flags repositories without a README at the default branch.
func validateReadme(ctx context.Context, v *LibraryValidator, repo domain.Repository) []Signal {
	resp, err := v.client.Get(ctx, "/repos/"+v.org+"/"+repo.Name+"/readme", nil)
	if err != nil {
		return v.note(fmt.Sprintf("%s: readme lookup failed: %v", repo.Name, err))
	}
	switch {
	case resp.OK():
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return []Signal{NewSignal(ErrorMissingReadme)}
	default:
		return v.note(fmt.Sprintf("%s: readme lookup returned %d", repo.Name, resp.StatusCode))
	}
}

// validateLicense flags repositories without a license file. When the
// repository has releases, the finding is annotated with the number of days
// it has been shipping unlicensed.
func validateLicense(ctx context.Context, v *LibraryValidator, repo domain.Repository) []Signal {
	resp, err := v.client.Get(ctx, "/repos/"+v.org+"/"+repo.Name+"/license", nil)
	if err != nil {
		return v.note(fmt.Sprintf("%s: license lookup failed: %v", repo.Name, err))
	}
	switch {
	case resp.OK():
		return nil
	case resp.StatusCode == http.StatusNotFound:
		if days, ok := v.daysSinceLatestRelease(ctx, repo); ok {
			return []Signal{NewSignalWithDays(ErrorMissingLicense, days)}
		}
		return []Signal{NewSignal(ErrorMissingLicense)}
	default:
		return v.note(fmt.Sprintf("%s: license lookup returned %d", repo.Name, resp.StatusCode))
	}
}

// validateDescription flags repositories whose GitHub description is empty.
func validateDescription(ctx context.Context, v *LibraryValidator, repo domain.Repository) []Signal {
	resp, err := v.client.Get(ctx, "/repos/"+v.org+"/"+repo.Name, nil)
	if err != nil {
		return v.note(fmt.Sprintf("%s: repository lookup failed: %v", repo.Name, err))
	}
	if !resp.OK() {
		return v.note(fmt.Sprintf("%s: repository lookup returned %d", repo.Name, resp.StatusCode))
	}

	var details struct {
		Description string `json:"description"`
	}
	if err := resp.JSON(&details); err != nil {
		return v.note(fmt.Sprintf("%s: repository lookup returned malformed JSON: %v", repo.Name, err))
	}
	if details.Description == "" {
		return []Signal{NewSignal(ErrorMissingDescription)}
	}
	return nil
}

// daysSinceLatestRelease returns how many days ago the repository last
// published a release. Missing releases or lookup failures report not-ok.
func (v *LibraryValidator) daysSinceLatestRelease(ctx context.Context, repo domain.Repository) (int, bool) {
	resp, err := v.client.Get(ctx, "/repos/"+v.org+"/"+repo.Name+"/releases/latest", nil)
	if err != nil || !resp.OK() {
		return 0, false
	}
	var release struct {
		PublishedAt time.Time `json:"published_at"`
	}
	if err := resp.JSON(&release); err != nil || release.PublishedAt.IsZero() {
		return 0, false
	}
	return int(v.now().Sub(release.PublishedAt).Hours() / 24), true
}
