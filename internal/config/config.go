// Package config resolves all environment-driven settings once, at the
// process boundary. Components receive explicit values and never read the
// environment themselves.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries everything a run needs from the environment.
type Config struct {
	// GitHubToken is the access-token credential the request client
	// injects into API calls. Empty means unauthenticated.
	GitHubToken string
	// CI is true when running under a CI environment. It gates scheduled
	// execution and selects the rate limiter's five-minute pause
	// granularity.
	CI bool
	// RunDay is the ISO weekday (1=Monday..7=Sunday) scheduled runs fire
	// on. Zero means no day gate.
	RunDay int

	Org          string
	RepoPrefix   string
	UmbrellaRepo string
	ExcludeRepos []string

	UpstreamRepo  string
	ForkRepo      string
	DefaultBranch string
	TargetFile    string
}

// FromEnv loads .env if present and resolves the configuration.
func FromEnv() *Config {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	return &Config{
		GitHubToken:   os.Getenv("ADABOT_GITHUB_ACCESS_TOKEN"),
		CI:            os.Getenv("CI") != "",
		RunDay:        runDay(os.Getenv("CP_ORG_UPDATER_RUN_DAY")),
		Org:           getEnv("ADABOT_GITHUB_ORG", "adafruit"),
		RepoPrefix:    getEnv("ADABOT_REPO_PREFIX", "Adafruit_CircuitPython"),
		UmbrellaRepo:  getEnv("ADABOT_UMBRELLA_REPO", "circuitpython"),
		ExcludeRepos:  splitList(os.Getenv("ADABOT_EXCLUDE_REPOS")),
		UpstreamRepo:  getEnv("ADABOT_UPSTREAM_REPO", "adafruit/circuitpython-org"),
		ForkRepo:      getEnv("ADABOT_FORK_REPO", "adafruit-adabot/circuitpython-org"),
		DefaultBranch: getEnv("ADABOT_DEFAULT_BRANCH", "master"),
		TargetFile:    getEnv("ADABOT_TARGET_FILE", "_data/libraries.json"),
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runDay parses the scheduled ISO weekday; anything outside 1..7 disables
// the gate.
func runDay(value string) int {
	day, err := strconv.Atoi(value)
	if err != nil || day < 1 || day > 7 {
		return 0
	}
	return day
}

// splitList parses a comma-separated repository list, trimming whitespace
// and dropping empty items.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
