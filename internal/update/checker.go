// Package update polls the GitHub releases API and reports when a newer
// build of the application has been published.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/book-expert/logger"
)

// API endpoints and headers.
const (
	DefaultAPIURL     = "https://api.github.com"
	apiLatestFmt      = "/repos/%s/%s/releases/latest"
	headerAccept      = "Accept"
	contentTypeGitHub = "application/vnd.github.v3+json"
)

// Platform asset suffixes.
const (
	SuffixAppleSilicon = "-Apple-Silicon.dmg"
	SuffixIntel        = "-Intel.dmg"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrRepositoryNotSet is returned when owner or repo is empty.
	ErrRepositoryNotSet = errors.New("release repository owner and name are required")
	// ErrUnexpectedStatus is returned for any non-200 reply from the releases API.
	ErrUnexpectedStatus = errors.New("unexpected status from releases API")
)

// Release is the subset of a GitHub release the checker reads.
type Release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	Body    string  `json:"body"`
	Assets  []Asset `json:"assets"`
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Result describes the outcome of one check.
type Result struct {
	Available     bool
	LatestVersion string
	ReleaseNotes  string
	DownloadURL   string
}

// Checker queries one repository's latest release.
type Checker struct {
	httpClient  *http.Client
	apiURL      string
	owner       string
	repo        string
	assetSuffix string
}

// NewChecker creates a Checker. An empty apiURL selects DefaultAPIURL, an
// empty assetSuffix selects the one for the running architecture and a nil
// httpClient gets a 30 second timeout.
func NewChecker(apiURL, owner, repo, assetSuffix string, httpClient *http.Client) *Checker {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	if assetSuffix == "" {
		assetSuffix = PlatformSuffix(runtime.GOARCH)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Checker{
		httpClient:  httpClient,
		apiURL:      strings.TrimRight(apiURL, "/"),
		owner:       owner,
		repo:        repo,
		assetSuffix: assetSuffix,
	}
}

// PlatformSuffix returns the installer suffix published for goarch.
func PlatformSuffix(goarch string) string {
	if goarch == "arm64" {
		return SuffixAppleSilicon
	}

	return SuffixIntel
}

// Latest fetches the most recent published release.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	if c.owner == "" || c.repo == "" {
		return nil, ErrRepositoryNotSet
	}

	url := c.apiURL + fmt.Sprintf(apiLatestFmt, c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(headerAccept, contentTypeGitHub)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(body)))
	}

	var release Release

	err = json.NewDecoder(resp.Body).Decode(&release)
	if err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}

	return &release, nil
}

// Check compares the latest release with current. The download URL is set
// only when an asset matches the platform suffix.
func (c *Checker) Check(ctx context.Context, current string) (Result, error) {
	release, err := c.Latest(ctx)
	if err != nil {
		return Result{}, err
	}

	latest := TrimTag(release.TagName)
	if !IsNewerVersionAvailable(current, latest) {
		return Result{LatestVersion: latest}, nil
	}

	result := Result{
		Available:     true,
		LatestVersion: latest,
		ReleaseNotes:  release.Body,
	}

	for _, asset := range release.Assets {
		if strings.HasSuffix(asset.Name, c.assetSuffix) {
			result.DownloadURL = asset.BrowserDownloadURL

			break
		}
	}

	return result, nil
}

// Run checks immediately and then on every interval until ctx ends. notify
// is called only for results with Available set. Failures are logged.
func (c *Checker) Run(ctx context.Context, interval time.Duration, current string, log *logger.Logger, notify func(Result)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := c.Check(ctx, current)

		switch {
		case err != nil:
			log.Warn("Update check for %s/%s failed: %v", c.owner, c.repo, err)
		case result.Available:
			log.Info("Version %s is available (running %s)", result.LatestVersion, current)
			notify(result)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
