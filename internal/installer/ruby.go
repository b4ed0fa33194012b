// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"polyrun/internal/fetch"
	"polyrun/internal/platform"
	"polyrun/internal/resolve"
)

const rubyRepo = "ruby/ruby-builder"

// rubyAssetRe matches toolcache asset names like ubuntu-22.04-ruby-3.3.0.tar.gz.
var rubyAssetRe = regexp.MustCompile(`^([a-z]+-[\d.]+)-ruby-(\d+\.\d+\.\d+)\.tar\.gz$`)

// rubySource installs prebuilt Ruby from the ruby-builder toolcache
// releases. One rolling release tag carries an asset per OS/version pair.
type rubySource struct{}

// rubyOS is the OS label in toolcache asset names.
func rubyOS() (string, error) {
	switch runtime.GOOS {
	case platform.Linux:
		return "ubuntu-22.04", nil
	case platform.Darwin:
		return "macos-latest", nil
	default:
		return "", fmt.Errorf("installer: no prebuilt ruby for %s", runtime.GOOS)
	}
}

func (r *rubySource) scan(ctx context.Context, f *fetch.Fetcher) (map[string]githubAsset, error) {
	osLabel, err := rubyOS()
	if err != nil {
		return nil, err
	}

	release, err := latestRelease(ctx, f, rubyRepo)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]githubAsset)
	for _, a := range release.Assets {
		m := rubyAssetRe.FindStringSubmatch(a.Name)
		if m == nil || m[1] != osLabel {
			continue
		}
		byVersion[m[2]] = a
	}
	return byVersion, nil
}

func (r *rubySource) listAvailable(ctx context.Context, f *fetch.Fetcher) ([]CatalogEntry, error) {
	byVersion, err := r.scan(ctx, f)
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

func (r *rubySource) resolveAlias(ctx context.Context, f *fetch.Fetcher, alias string) (string, error) {
	if strings.ToLower(alias) != "latest" {
		return "", fmt.Errorf("installer: ruby: %w: %q", ErrUnknownAlias, alias)
	}
	entries, err := r.listAvailable(ctx, f)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("installer: no ruby builds found for this platform")
	}
	return entries[0].Version, nil
}

func (r *rubySource) archiveAsset(ctx context.Context, f *fetch.Fetcher, version string) (asset, error) {
	byVersion, err := r.scan(ctx, f)
	if err != nil {
		return asset{}, err
	}

	a, ok := byVersion[version]
	if !ok {
		return asset{}, fmt.Errorf("installer: ruby %s: %w", version, fetch.ErrVersionNotFound)
	}

	// Toolcache archives contain bin/, lib/ etc. at the top level already.
	return asset{
		url:      a.BrowserDownloadURL,
		filename: a.Name,
		strip:    0,
	}, nil
}
