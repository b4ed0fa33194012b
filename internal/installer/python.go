// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"polyrun/internal/fetch"
	"polyrun/internal/platform"
	"polyrun/internal/resolve"
)

const pythonRepo = "indygreg/python-build-standalone"

// pythonAssetRe captures version and build date from install_only asset
// names like cpython-3.12.1+20240107-x86_64-unknown-linux-gnu-install_only.tar.gz.
var pythonAssetRe = regexp.MustCompile(`^cpython-(\d+\.\d+\.\d+)\+(\d+)-(.+)-install_only\.tar\.gz$`)

// pythonSource installs prebuilt CPython from python-build-standalone
// GitHub releases.
type pythonSource struct{}

func (p *pythonSource) target() (string, error) {
	arch, err := platform.UnixArch()
	if err != nil {
		return "", err
	}
	return arch + "-unknown-linux-gnu", nil
}

// scan walks release assets and keeps install_only builds for the host
// target, newest build per version.
func (p *pythonSource) scan(ctx context.Context, f *fetch.Fetcher) (map[string]githubAsset, error) {
	target, err := p.target()
	if err != nil {
		return nil, err
	}

	releases, err := listReleases(ctx, f, pythonRepo, 10)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]githubAsset)
	for _, release := range releases {
		for _, a := range release.Assets {
			m := pythonAssetRe.FindStringSubmatch(a.Name)
			if m == nil || m[3] != target {
				continue
			}
			version := m[1]
			if _, seen := byVersion[version]; !seen {
				// Releases are ordered newest first; keep the first build.
				byVersion[version] = a
			}
		}
	}
	return byVersion, nil
}

func (p *pythonSource) listAvailable(ctx context.Context, f *fetch.Fetcher) ([]CatalogEntry, error) {
	byVersion, err := p.scan(ctx, f)
	if err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(byVersion))
	for v := range byVersion {
		versions = append(versions, v)
	}
	resolve.SortDescending(versions)

	entries := make([]CatalogEntry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, CatalogEntry{Version: v})
	}
	return entries, nil
}

func (p *pythonSource) resolveAlias(ctx context.Context, f *fetch.Fetcher, alias string) (string, error) {
	if strings.ToLower(alias) != "latest" {
		return "", fmt.Errorf("installer: python: %w: %q", ErrUnknownAlias, alias)
	}
	entries, err := p.listAvailable(ctx, f)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("installer: no python builds found for this platform")
	}
	return entries[0].Version, nil
}

func (p *pythonSource) archiveAsset(ctx context.Context, f *fetch.Fetcher, version string) (asset, error) {
	byVersion, err := p.scan(ctx, f)
	if err != nil {
		return asset{}, err
	}

	a, ok := byVersion[version]
	if !ok {
		return asset{}, fmt.Errorf("installer: python %s: %w", version, fetch.ErrVersionNotFound)
	}

	// Archives wrap everything in a top-level python/ directory. The
	// project publishes no standalone digest file for install_only builds.
	return asset{
		url:      a.BrowserDownloadURL,
		filename: a.Name,
		strip:    1,
	}, nil
}
