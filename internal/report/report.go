// Package report assembles, serializes and publishes the weekly libraries
// document.
//
// Every top-level mapping is sorted by case-insensitive key before
// serialization, so the emitted JSON is byte-reproducible for identical
// input data regardless of API response order or map iteration order.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hoffmannjan/adabot/internal/usecase"
)

// timestampLayout is the run-timestamp format the document has always used.
const timestampLayout = "2006-01-02T15:04:05Z"

// SortedMap is a JSON object whose keys marshal in case-insensitive
// ascending order. encoding/json's map ordering is byte-wise, which would
// interleave upper- and lower-case library names.
type SortedMap struct {
	keys   []string
	values map[string]any
}

// NewSortedMap copies m into a SortedMap. Keys that compare equal
// case-insensitively fall back to byte order so the result stays
// deterministic.
func NewSortedMap(m map[string]any) *SortedMap {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li == lj {
			return keys[i] < keys[j]
		}
		return li < lj
	})
	values := make(map[string]any, len(m))
	for key, value := range m {
		values[key] = value
	}
	return &SortedMap{keys: keys, values: values}
}

// Keys returns the marshaling order.
func (m *SortedMap) Keys() []string {
	return m.keys
}

// MarshalJSON writes the object with keys in sorted order.
func (m *SortedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(m.values[key])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// LibraryUpdates groups the trailing window's first-time and repeat releases.
type LibraryUpdates struct {
	New     *SortedMap `json:"new"`
	Updated *SortedMap `json:"updated"`
}

// Document is the terminal report artifact, constructed once per run.
type Document struct {
	UpdatedAt            string         `json:"updated_at"`
	Contributors         []string       `json:"contributors"`
	Reviewers            []string       `json:"reviewers"`
	MergedPRCount        string         `json:"merged_pr_count"`
	LibraryUpdates       LibraryUpdates `json:"library_updates"`
	OpenIssues           *SortedMap     `json:"open_issues"`
	PullRequests         *SortedMap     `json:"pull_requests"`
	InfrastructureErrors *SortedMap     `json:"repo_infrastructure_errors"`
}

// Build assembles the document from a run's accumulated result: sorted
// copies of every mapping, deduplicated contributor and reviewer lists and
// the run timestamp.
func Build(result *usecase.Result, runTime time.Time) *Document {
	newLibs := make(map[string]any, len(result.NewLibraries))
	for name, url := range result.NewLibraries {
		newLibs[name] = url
	}
	updatedLibs := make(map[string]any, len(result.UpdatedLibraries))
	for name, url := range result.UpdatedLibraries {
		updatedLibs[name] = url
	}
	issues := make(map[string]any, len(result.OpenIssues))
	for name, entries := range result.OpenIssues {
		issues[name] = entries
	}
	prs := make(map[string]any, len(result.OpenPullRequests))
	for name, entries := range result.OpenPullRequests {
		prs[name] = entries
	}
	errors := make(map[string]any, len(result.ErrorLedger))
	for kind, repos := range result.ErrorLedger {
		errors[kind] = repos
	}

	return &Document{
		UpdatedAt:     runTime.Format(timestampLayout),
		Contributors:  dedupe(result.Contributors),
		Reviewers:     dedupe(result.Reviewers),
		MergedPRCount: strconv.Itoa(result.MergedPRCount),
		LibraryUpdates: LibraryUpdates{
			New:     NewSortedMap(newLibs),
			Updated: NewSortedMap(updatedLibs),
		},
		OpenIssues:           NewSortedMap(issues),
		PullRequests:         NewSortedMap(prs),
		InfrastructureErrors: NewSortedMap(errors),
	}
}

// JSON returns the pretty-printed document.
func (d *Document) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// WriteFile writes the pretty-printed document to path.
func (d *Document) WriteFile(path string) error {
	data, err := d.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report to %s: %w", path, err)
	}
	return nil
}

// dedupe drops repeated logins, keeping first-appearance order so output is
// reproducible for a given input ordering.
func dedupe(logins []string) []string {
	seen := make(map[string]struct{}, len(logins))
	result := make([]string, 0, len(logins))
	for _, login := range logins {
		if _, ok := seen[login]; ok {
			continue
		}
		seen[login] = struct{}{}
		result = append(result, login)
	}
	return result
}
