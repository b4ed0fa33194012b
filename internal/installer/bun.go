// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"polyrun/internal/fetch"
	"polyrun/internal/platform"
)

const bunRepo = "oven-sh/bun"

// bunSource installs Bun from its GitHub releases. Release tags look like
// bun-v1.1.8 and each carries per-platform zip assets.
type bunSource struct{}

func bunPlatform() (string, error) {
	arch, err := platform.NodeArch()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case platform.Darwin:
		return "darwin-" + arch, nil
	case platform.Windows:
		return "windows-" + arch, nil
	default:
		return "linux-" + arch, nil
	}
}

func (b *bunSource) listAvailable(ctx context.Context, f *fetch.Fetcher) ([]CatalogEntry, error) {
	releases, err := listReleases(ctx, f, bunRepo, 100)
	if err != nil {
		return nil, err
	}

	entries := make([]CatalogEntry, 0, len(releases))
	for _, r := range releases {
		version := strings.TrimPrefix(r.TagName, "bun-v")
		if version == "" || version == r.TagName {
			continue
		}
		entries = append(entries, CatalogEntry{Version: version})
	}
	return entries, nil
}

func (b *bunSource) resolveAlias(ctx context.Context, f *fetch.Fetcher, alias string) (string, error) {
	if strings.ToLower(alias) != "latest" {
		return "", fmt.Errorf("installer: bun: %w: %q", ErrUnknownAlias, alias)
	}
	release, err := latestRelease(ctx, f, bunRepo)
	if err != nil {
		return "", err
	}
	version := strings.TrimPrefix(release.TagName, "bun-v")
	if version == "" || version == release.TagName {
		return "", fmt.Errorf("installer: unexpected bun release tag %q", release.TagName)
	}
	return version, nil
}

func (b *bunSource) archiveAsset(ctx context.Context, f *fetch.Fetcher, version string) (asset, error) {
	plat, err := bunPlatform()
	if err != nil {
		return asset{}, err
	}

	filename := fmt.Sprintf("bun-%s.zip", plat)
	// Zips wrap the binary in a bun-<platform>/ directory; after stripping,
	// the bun executable sits at the version root, not under bin/.
	return asset{
		url:      fmt.Sprintf("%s/%s/releases/download/bun-v%s/%s", githubDownloadURL, bunRepo, version, filename),
		filename: filename,
		strip:    1,
	}, nil
}
