// Package validator runs infrastructure checks against library repositories.
//
// Checks are declared in a static table of named functions rather than
// discovered at runtime. Each check returns zero or more signals; a signal
// is an error kind, optionally annotated with an elapsed-days value. Signals
// are report data, not failures: the aggregation loop folds them into the
// error ledger. The one exception is ErrorOutputHandler, a sentinel telling
// the loop to flush the validator's buffered diagnostic output.
package validator

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hoffmannjan/adabot/internal/domain"
	"github.com/hoffmannjan/adabot/internal/ghapi"
)

// ErrorKind identifies one category of infrastructure error.
type ErrorKind string

const (
	// ErrorOutputHandler is the sentinel kind: the validator buffered
	// diagnostic output that the caller should flush and log.
	ErrorOutputHandler ErrorKind = "error_output_handler"

	ErrorMissingReadme      ErrorKind = "missing_readme"
	ErrorMissingLicense     ErrorKind = "missing_license"
	ErrorMissingDescription ErrorKind = "missing_repo_description"
)

// Signal is one validator finding: an error kind, optionally carrying the
// number of days the condition has persisted.
type Signal struct {
	Kind    ErrorKind
	Days    int
	HasDays bool
}

// NewSignal returns a bare signal.
func NewSignal(kind ErrorKind) Signal {
	return Signal{Kind: kind}
}

// NewSignalWithDays returns a signal annotated with an elapsed-days value.
func NewSignalWithDays(kind ErrorKind, days int) Signal {
	return Signal{Kind: kind, Days: days, HasDays: true}
}

// CheckFunc inspects a single repository and returns its findings.
type CheckFunc func(ctx context.Context, v *LibraryValidator, repo domain.Repository) []Signal

// Check is one registered validator: a stable name and the function to run.
type Check struct {
	Name string
	Run  CheckFunc
}

// LibraryValidator runs a registered set of checks over the rate-limited
// API client and accumulates diagnostic output for conditions that are
// neither findings nor fatal.
type LibraryValidator struct {
	client *ghapi.Client
	org    string
	checks []Check
	logger *log.Logger
	now    func() time.Time

	// OutputFileData buffers diagnostic lines. When a check appends here
	// it also returns ErrorOutputHandler so the caller knows to flush.
	OutputFileData []string
}

// New creates a validator running checks against org's repositories.
func New(client *ghapi.Client, org string, checks []Check, logger *log.Logger) *LibraryValidator {
	return &LibraryValidator{
		client: client,
		org:    org,
		checks: checks,
		logger: logger,
		now:    time.Now,
	}
}

// RunRepoValidation runs every registered check against repo and returns
// the combined findings. Individual check failures surface as signals or
// buffered diagnostics, never as errors.
func (v *LibraryValidator) RunRepoValidation(ctx context.Context, repo domain.Repository) []Signal {
	var signals []Signal
	for _, check := range v.checks {
		found := check.Run(ctx, v, repo)
		if len(found) > 0 {
			v.logger.Debug("validator findings", "check", check.Name, "repo", repo.Name, "count", len(found))
		}
		signals = append(signals, found...)
	}
	return signals
}

// note records a diagnostic line and returns the flush sentinel.
func (v *LibraryValidator) note(line string) []Signal {
	v.OutputFileData = append(v.OutputFileData, line)
	return []Signal{NewSignal(ErrorOutputHandler)}
}
