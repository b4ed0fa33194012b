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

// goDownloadURL serves both the release catalog (?mode=json) and the
// archives themselves.
var goDownloadURL = "https://go.dev/dl"

type goRelease struct {
	Version string   `json:"version"` // "go1.22.1"
	Stable  bool     `json:"stable"`
	Files   []goFile `json:"files"`
}

type goFile struct {
	Filename string `json:"filename"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	SHA256   string `json:"sha256"`
	Kind     string `json:"kind"`
}

// goSource speaks the go.dev/dl JSON catalog.
type goSource struct{}

func (g *goSource) catalog(ctx context.Context, f *fetch.Fetcher, all bool) ([]goRelease, error) {
	url := goDownloadURL + "/?mode=json"
	if all {
		url += "&include=all"
	}
	var releases []goRelease
	if err := f.GetJSON(ctx, url, &releases); err != nil {
		return nil, fmt.Errorf("installer: fetch go release catalog: %w", err)
	}
	return releases, nil
}

func (g *goSource) listAvailable(ctx context.Context, f *fetch.Fetcher) ([]CatalogEntry, error) {
	releases, err := g.catalog(ctx, f, true)
	if err != nil {
		return nil, err
	}

	entries := make([]CatalogEntry, 0, len(releases))
	for _, r := range releases {
		version := strings.TrimPrefix(r.Version, "go")
		if version == "" {
			continue
		}
		channel := ""
		if r.Stable {
			channel = "stable"
		}
		entries = append(entries, CatalogEntry{Version: version, Channel: channel})
	}
	return entries, nil
}

func (g *goSource) resolveAlias(ctx context.Context, f *fetch.Fetcher, alias string) (string, error) {
	switch strings.ToLower(alias) {
	case "latest", "stable":
		releases, err := g.catalog(ctx, f, false)
		if err != nil {
			return "", err
		}
		for _, r := range releases {
			if r.Stable {
				return strings.TrimPrefix(r.Version, "go"), nil
			}
		}
		return "", fmt.Errorf("installer: no stable release in go catalog")
	default:
		return "", fmt.Errorf("installer: go: %w: %q", ErrUnknownAlias, alias)
	}
}

func (g *goSource) archiveAsset(ctx context.Context, f *fetch.Fetcher, version string) (asset, error) {
	arch, err := platform.GoArch()
	if err != nil {
		return asset{}, err
	}

	// The catalog carries per-file digests; find the matching archive to
	// reuse its published checksum.
	sum := ""
	if releases, err := g.catalog(ctx, f, true); err == nil {
		for _, r := range releases {
			if strings.TrimPrefix(r.Version, "go") != version {
				continue
			}
			for _, file := range r.Files {
				if file.Kind == "archive" && file.OS == runtime.GOOS && file.Arch == arch {
					sum = file.SHA256
				}
			}
		}
	}

	ext := "tar.gz"
	if runtime.GOOS == platform.Windows {
		ext = "zip"
	}
	filename := fmt.Sprintf("go%s.%s-%s.%s", version, runtime.GOOS, arch, ext)

	return asset{
		url:      fmt.Sprintf("%s/%s", goDownloadURL, filename),
		filename: filename,
		sha256:   sum,
		strip:    1, // archives wrap everything in a top-level go/ directory
	}, nil
}
