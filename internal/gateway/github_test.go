package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoffmannjan/adabot/internal/domain"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, prefix string, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL

	return &GitHubGateway{
		client: client,
		org:    "adafruit",
		prefix: prefix,
		logger: log.New(io.Discard),
		now:    func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) },
	}, server
}

func TestGitHubGateway_ListRepos(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/orgs/adafruit/repos")
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, r.URL.Path))
			fmt.Fprint(w, `[
				{"name": "Adafruit_CircuitPython_Motor", "html_url": "https://github.com/adafruit/Adafruit_CircuitPython_Motor"},
				{"name": "unrelated-tool", "html_url": "https://github.com/adafruit/unrelated-tool"}
			]`)
		default:
			fmt.Fprint(w, `[
				{"name": "Adafruit_CircuitPython_BusDevice", "html_url": "https://github.com/adafruit/Adafruit_CircuitPython_BusDevice"}
			]`)
		}
	})

	gateway, _ := setupTestGateway(t, "Adafruit_CircuitPython", handler)
	repos, err := gateway.ListRepos(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Repository{
		{Name: "Adafruit_CircuitPython_Motor", HTMLURL: "https://github.com/adafruit/Adafruit_CircuitPython_Motor"},
		{Name: "Adafruit_CircuitPython_BusDevice", HTMLURL: "https://github.com/adafruit/Adafruit_CircuitPython_BusDevice"},
	}, repos)
}

func TestGitHubGateway_ListReposError(t *testing.T) {
	gateway, _ := setupTestGateway(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message": "Internal Server Error"}`)
	}))

	_, err := gateway.ListRepos(context.Background())
	assert.ErrorContains(t, err, "failed to list adafruit repositories")
}

func TestGitHubGateway_Classify(t *testing.T) {
	testCases := []struct {
		name         string
		responseBody string
		expected     domain.ReleaseStatus
	}{
		{
			name:         "no releases",
			responseBody: `[]`,
			expected:     domain.ReleaseNone,
		},
		{
			name:         "only release inside the window is new",
			responseBody: `[{"published_at": "2026-08-24T00:00:00Z"}]`,
			expected:     domain.ReleaseNew,
		},
		{
			name: "latest of several releases inside the window is updated",
			responseBody: `[
				{"published_at": "2026-08-24T00:00:00Z"},
				{"published_at": "2026-01-01T00:00:00Z"}
			]`,
			expected: domain.ReleaseUpdated,
		},
		{
			name:         "latest release older than the window is not new",
			responseBody: `[{"published_at": "2026-08-01T00:00:00Z"}]`,
			expected:     domain.ReleaseNone,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, _ := setupTestGateway(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.URL.Path, "/repos/adafruit/Adafruit_CircuitPython_Motor/releases")
				fmt.Fprint(w, tc.responseBody)
			}))

			status, err := gateway.Classify(context.Background(), domain.Repository{Name: "Adafruit_CircuitPython_Motor"})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}
}
