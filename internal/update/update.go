// Package update checks GitHub releases for a newer lingonews build.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// ReleasesURL is the latest-release endpoint for this repository.
	ReleasesURL = "https://api.github.com/repos/matheuskafuri/lingonews/releases/latest"

	checkTimeout = 5 * time.Second
)

// Result holds the outcome of a version check.
type Result struct {
	LatestVersion string
	URL           string
}

type ghRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type Checker struct {
	URL    string
	Client *http.Client
}

func NewChecker() *Checker {
	return &Checker{URL: ReleasesURL, Client: &http.Client{Timeout: checkTimeout}}
}

// Check returns the latest release when it differs from currentVersion, or
// nil when the build is current. Development builds are never reported as
// outdated.
func (c *Checker) Check(ctx context.Context, currentVersion string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("checking releases: HTTP %d", resp.StatusCode)
	}

	var release ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	current := strings.TrimPrefix(currentVersion, "v")

	if latest == "" || latest == current || current == "dev" {
		return nil, nil
	}
	return &Result{LatestVersion: latest, URL: release.HTMLURL}, nil
}
