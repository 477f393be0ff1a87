package ghapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a Client that talks to a mock HTTP server, with a
// fake clock driving the limiter so rate-limit pauses are observable.
func setupTestClient(t *testing.T, token string, handler http.Handler) (*Client, *httptest.Server, *fakeClock) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	clock := &fakeClock{now: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)}
	client := NewClient(token, false, log.New(io.Discard))
	client.BaseURL = server.URL
	client.limiter.now = clock.Now
	client.limiter.sleep = clock.Sleep

	return client, server, clock
}

func TestClient_URLNormalization(t *testing.T) {
	var gotPath string
	client, server, _ := setupTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))

	t.Run("relative path is rewritten against the API base", func(t *testing.T) {
		_, err := client.Get(context.Background(), "/repos/adafruit/some-lib/issues", nil)
		require.NoError(t, err)
		assert.Equal(t, "/repos/adafruit/some-lib/issues", gotPath)
	})

	t.Run("absolute url passes through unchanged", func(t *testing.T) {
		_, err := client.Get(context.Background(), server.URL+"/absolute/endpoint", nil)
		require.NoError(t, err)
		assert.Equal(t, "/absolute/endpoint", gotPath)
	})
}

func TestClient_HeaderAndAuthInjection(t *testing.T) {
	testCases := []struct {
		name           string
		token          string
		opts           *RequestOptions
		expectedAccept string
		assertRequest  func(t *testing.T, r *http.Request)
	}{
		{
			name:           "no accept header gets the default preview type",
			expectedAccept: acceptPreviewDefault,
		},
		{
			name: "caller accept header gets previews appended, not replaced",
			opts: &RequestOptions{
				Headers: http.Header{"Accept": []string{"application/json"}},
			},
			expectedAccept: "application/json;" + acceptPreviewMerge,
		},
		{
			name:           "token is injected as a query parameter",
			token:          "sekrit",
			expectedAccept: acceptPreviewDefault,
			assertRequest: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "sekrit", r.URL.Query().Get("access_token"))
			},
		},
		{
			name:  "explicit auth suppresses the token parameter",
			token: "sekrit",
			opts: &RequestOptions{
				Auth: &BasicAuth{Username: "adabot", Password: "hunter2"},
			},
			expectedAccept: acceptPreviewDefault,
			assertRequest: func(t *testing.T, r *http.Request) {
				assert.Empty(t, r.URL.Query().Get("access_token"))
				user, pass, ok := r.BasicAuth()
				require.True(t, ok)
				assert.Equal(t, "adabot", user)
				assert.Equal(t, "hunter2", pass)
			},
		},
		{
			name: "caller params survive alongside injected ones",
			opts: &RequestOptions{
				Params: url.Values{"state": []string{"open"}},
			},
			expectedAccept: acceptPreviewDefault,
			assertRequest: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "open", r.URL.Query().Get("state"))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got *http.Request
			client, _, _ := setupTestClient(t, tc.token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				clone := *r
				clone.URL = r.URL
				got = &clone
			}))

			_, err := client.Get(context.Background(), "/test", tc.opts)
			require.NoError(t, err)
			require.NotNil(t, got)

			assert.Equal(t, tc.expectedAccept, got.Header.Get("Accept"))
			if tc.assertRequest != nil {
				tc.assertRequest(t, got)
			}
		})
	}
}

func TestClient_JSONBody(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	client, _, _ := setupTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))

	_, err := client.Post(context.Background(), "/repos/adafruit/fork/git/refs", &RequestOptions{
		JSON: map[string]string{"ref": "refs/heads/update", "sha": "abc123"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]any{"ref": "refs/heads/update", "sha": "abc123"}, gotBody)
}

func TestClient_NonSuccessStatusIsNotAnError(t *testing.T) {
	client, _, _ := setupTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	}))

	resp, err := client.Get(context.Background(), "/repos/adafruit/missing", nil)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Text(), "Not Found")
}

func TestClient_BlocksWhenQuotaExhausted(t *testing.T) {
	reset := time.Date(2026, 8, 26, 12, 30, 0, 0, time.UTC)

	var calls []time.Time
	var client *Client
	var clock *fakeClock
	client, _, clock = setupTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, clock.now)
		w.Header().Set(headerRateLimitRemaining, "1")
		w.Header().Set(headerRateLimitReset, formatUnix(reset))
	}))

	// First call observes remaining=1.
	_, err := client.Get(context.Background(), "/first", nil)
	require.NoError(t, err)

	// The next call, regardless of verb, must not reach the server before
	// the reset time has passed.
	_, err = client.Post(context.Background(), "/second", nil)
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.True(t, calls[0].Before(reset))
	assert.False(t, calls[1].Before(reset), "second call was issued before the quota reset")
	assert.NotEmpty(t, clock.sleeps)
}

func TestClient_NoPauseWithQuotaLeft(t *testing.T) {
	var clock *fakeClock
	client, _, clock := setupTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerRateLimitRemaining, "4200")
		w.Header().Set(headerRateLimitReset, formatUnix(clock.now.Add(time.Hour)))
	}))

	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), "/ok", nil)
		require.NoError(t, err)
	}
	assert.Empty(t, clock.sleeps)
}
