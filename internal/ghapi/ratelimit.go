package ghapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"

	// pauseThreshold is the remaining-call count at or below which the
	// limiter blocks until the quota window resets.
	pauseThreshold = 1

	// ciSleepInterval is the fixed sleep used while paused in CI, short
	// enough that the periodic notices keep the build console from being
	// killed for idle output.
	ciSleepInterval = 5 * time.Minute
)

// RateLimiter holds the quota state observed from GitHub's rate-limit
// response headers. A single limiter is shared by all verbs of a Client:
// it is consulted before every request and updated after every response.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int // -1 until the first response has been observed
	resetAt   time.Time

	ciMode bool
	logger *log.Logger

	// test seams
	now   func() time.Time
	sleep func(time.Duration)
}

// NewRateLimiter creates a limiter. In CI mode pauses sleep in fixed
// five-minute increments instead of a single long sleep.
func NewRateLimiter(ciMode bool, logger *log.Logger) *RateLimiter {
	return &RateLimiter{
		remaining: -1,
		ciMode:    ciMode,
		logger:    logger,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Wait blocks until the quota window has reset, if the last observed
// response signaled near-exhausted quota. It re-checks the clock in a loop
// and emits a notice on each pass so long pauses stay visible.
func (l *RateLimiter) Wait() {
	l.mu.Lock()
	remaining, resetAt := l.remaining, l.resetAt
	l.mu.Unlock()

	if remaining < 0 || remaining > pauseThreshold || !l.now().Before(resetAt) {
		return
	}

	l.logger.Warn("GitHub API rate limit reached, pausing until reset", "reset_at", resetAt)
	for l.now().Before(resetAt) {
		l.logger.Info("rate limit will reset", "reset_at", resetAt)
		if l.ciMode {
			l.sleep(ciSleepInterval)
		} else {
			l.sleep(resetAt.Sub(l.now()) + time.Second)
		}
	}

	// The window has reset; forget the stale count so the next request
	// proceeds and re-observes fresh headers.
	l.mu.Lock()
	l.remaining = -1
	l.mu.Unlock()
}

// Observe records the rate-limit headers of a response. Responses without
// the headers (non-API hosts, some error pages) leave the state untouched.
func (l *RateLimiter) Observe(h http.Header) {
	remainingValue := h.Get(headerRateLimitRemaining)
	if remainingValue == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingValue)
	if err != nil {
		return
	}

	var resetAt time.Time
	if reset, err := strconv.ParseInt(h.Get(headerRateLimitReset), 10, 64); err == nil {
		resetAt = time.Unix(reset, 0)
	}

	l.mu.Lock()
	l.remaining = remaining
	if !resetAt.IsZero() {
		l.resetAt = resetAt
	}
	l.mu.Unlock()

	// Coarse telemetry only, never used for control flow.
	if remaining%100 == 0 {
		l.logger.Info("GitHub API quota", "remaining_this_hour", remaining)
	}
}
