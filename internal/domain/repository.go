// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"encoding/json"
	"fmt"
)

// Repository describes a single library repository as returned by the
// repository-listing provider. It is immutable for the duration of a run.
type Repository struct {
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

// ReleaseStatus classifies a repository's release activity inside the
// trailing reporting window.
type ReleaseStatus string

const (
	// ReleaseNone means no release inside the window.
	ReleaseNone ReleaseStatus = ""
	// ReleaseNew means the repository published its first release inside the window.
	ReleaseNew ReleaseStatus = "new"
	// ReleaseUpdated means an already-released repository published again inside the window.
	ReleaseUpdated ReleaseStatus = "updated"
)

// Entry is a single open issue or pull request. It marshals as a
// single-entry JSON object mapping the item's URL to its title, the shape
// the published libraries document has always used.
type Entry struct {
	URL   string
	Title string
}

// MarshalJSON renders the entry as {"<url>": "<title>"}.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{e.URL: e.Title})
}

// UnmarshalJSON restores an entry from its single-entry object form.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("entry must hold exactly one url/title pair, got %d", len(m))
	}
	for url, title := range m {
		e.URL = url
		e.Title = title
	}
	return nil
}
