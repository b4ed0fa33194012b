// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"

	"polyrun/internal/fetch"
)

// githubAPIURL and githubDownloadURL are the GitHub REST API root and the
// release-asset download host. Variables so tests can point the
// release-backed sources at a local server.
var (
	githubAPIURL      = "https://api.github.com"
	githubDownloadURL = "https://github.com"
)

// githubRelease and githubAsset mirror the subset of the Releases API the
// release-backed runtime sources need.
type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// listReleases fetches up to perPage releases of owner/repo.
func listReleases(ctx context.Context, f *fetch.Fetcher, ownerRepo string, perPage int) ([]githubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", githubAPIURL, ownerRepo, perPage)
	var releases []githubRelease
	if err := f.GetJSON(ctx, url, &releases); err != nil {
		return nil, fmt.Errorf("installer: fetch %s releases: %w", ownerRepo, err)
	}
	return releases, nil
}

// latestRelease fetches the release GitHub marks latest for owner/repo.
func latestRelease(ctx context.Context, f *fetch.Fetcher, ownerRepo string) (*githubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", githubAPIURL, ownerRepo)
	var release githubRelease
	if err := f.GetJSON(ctx, url, &release); err != nil {
		return nil, fmt.Errorf("installer: fetch %s latest release: %w", ownerRepo, err)
	}
	return &release, nil
}
