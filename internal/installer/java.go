// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"strconv"
	"strings"

	"polyrun/internal/fetch"
	"polyrun/internal/platform"
)

// adoptiumAPIURL is the Adoptium (Eclipse Temurin) v3 API root. Variable so
// tests can point the source at a local server.
var adoptiumAPIURL = "https://api.adoptium.net/v3"

type (
	adoptiumAvailable struct {
		AvailableReleases []int `json:"available_releases"`
		AvailableLTS      []int `json:"available_lts_releases"`
		MostRecentLTS     int   `json:"most_recent_lts"`
		MostRecentFeature int   `json:"most_recent_feature_release"`
	}

	adoptiumAsset struct {
		Binary struct {
			Package struct {
				Link     string `json:"link"`
				Name     string `json:"name"`
				Checksum string `json:"checksum"`
			} `json:"package"`
		} `json:"binary"`
		Version struct {
			Semver string `json:"semver"`
		} `json:"version"`
	}
)

// javaSource installs Eclipse Temurin JDKs via the Adoptium v3 API. Specs
// address feature releases by major version, the way the Java ecosystem
// pins them.
type javaSource struct{}

func javaOS() string {
	switch runtime.GOOS {
	case platform.Darwin:
		return "mac"
	case platform.Windows:
		return "windows"
	default:
		return "linux"
	}
}

func javaArch() (string, error) {
	switch runtime.GOARCH {
	case "amd64":
		return "x64", nil
	case "arm64":
		return "aarch64", nil
	default:
		return "", &platform.ErrUnsupportedArch{Arch: runtime.GOARCH}
	}
}

func (j *javaSource) available(ctx context.Context, f *fetch.Fetcher) (adoptiumAvailable, error) {
	var avail adoptiumAvailable
	if err := f.GetJSON(ctx, adoptiumAPIURL+"/info/available_releases", &avail); err != nil {
		return adoptiumAvailable{}, fmt.Errorf("installer: fetch adoptium release list: %w", err)
	}
	return avail, nil
}

func (j *javaSource) listAvailable(ctx context.Context, f *fetch.Fetcher) ([]CatalogEntry, error) {
	avail, err := j.available(ctx, f)
	if err != nil {
		return nil, err
	}

	lts := make(map[int]bool, len(avail.AvailableLTS))
	for _, major := range avail.AvailableLTS {
		lts[major] = true
	}

	entries := make([]CatalogEntry, 0, len(avail.AvailableReleases))
	// Newest first, matching the other catalogs.
	for i := len(avail.AvailableReleases) - 1; i >= 0; i-- {
		major := avail.AvailableReleases[i]
		entries = append(entries, CatalogEntry{
			Version: strconv.Itoa(major),
			LTS:     lts[major],
		})
	}
	return entries, nil
}

func (j *javaSource) resolveAlias(ctx context.Context, f *fetch.Fetcher, alias string) (string, error) {
	avail, err := j.available(ctx, f)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(alias) {
	case "latest":
		return strconv.Itoa(avail.MostRecentFeature), nil
	case "lts":
		return strconv.Itoa(avail.MostRecentLTS), nil
	default:
		return "", fmt.Errorf("installer: java: %w: %q", ErrUnknownAlias, alias)
	}
}

func (j *javaSource) archiveAsset(ctx context.Context, f *fetch.Fetcher, version string) (asset, error) {
	arch, err := javaArch()
	if err != nil {
		return asset{}, err
	}

	// Specs name the major feature release; the API picks the newest build.
	major := version
	if i := strings.IndexAny(major, ".+-"); i >= 0 {
		major = major[:i]
	}

	q := url.Values{}
	q.Set("architecture", arch)
	q.Set("image_type", "jdk")
	q.Set("os", javaOS())
	q.Set("vendor", "eclipse")

	var assets []adoptiumAsset
	endpoint := fmt.Sprintf("%s/assets/latest/%s/hotspot?%s", adoptiumAPIURL, major, q.Encode())
	if err := f.GetJSON(ctx, endpoint, &assets); err != nil {
		return asset{}, fmt.Errorf("installer: fetch jdk %s assets: %w", major, err)
	}
	if len(assets) == 0 {
		return asset{}, fmt.Errorf("installer: jdk %s: %w", major, fetch.ErrVersionNotFound)
	}

	pkg := assets[0].Binary.Package
	return asset{
		url:      pkg.Link,
		filename: pkg.Name,
		sha256:   pkg.Checksum,
		strip:    1, // archives wrap everything in a jdk-<version> directory
	}, nil
}
