// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"polyrun/internal/fetch"
	"polyrun/internal/platform"
)

// nodeDistURL is the Node.js distribution server. Variable so tests can
// point the source at a local server.
var nodeDistURL = "https://nodejs.org/dist"

// nodeIndexEntry mirrors one entry of index.json. The lts field is either
// false or a codename string, so it needs a custom decode.
type nodeIndexEntry struct {
	Version string      `json:"version"`
	LTS     nodeLTSFlag `json:"lts"`
}

type nodeLTSFlag struct {
	Name string
	Set  bool
}

func (f *nodeLTSFlag) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		f.Name = name
		f.Set = true
		return nil
	}
	// false (or anything else) means not an LTS release
	f.Set = false
	return nil
}

// nodeSource speaks the nodejs.org dist index and asset naming scheme.
type nodeSource struct{}

func (n *nodeSource) listAvailable(ctx context.Context, f *fetch.Fetcher) ([]CatalogEntry, error) {
	var index []nodeIndexEntry
	if err := f.GetJSON(ctx, nodeDistURL+"/index.json", &index); err != nil {
		return nil, fmt.Errorf("installer: fetch node release index: %w", err)
	}

	entries := make([]CatalogEntry, 0, len(index))
	for _, e := range index {
		version := strings.TrimPrefix(e.Version, "v")
		if version == "" {
			continue
		}
		entries = append(entries, CatalogEntry{
			Version: version,
			LTS:     e.LTS.Set,
			Channel: e.LTS.Name,
		})
	}
	return entries, nil
}

func (n *nodeSource) resolveAlias(ctx context.Context, f *fetch.Fetcher, alias string) (string, error) {
	entries, err := n.listAvailable(ctx, f)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(alias) {
	case "latest":
		// index.json is ordered newest first.
		if len(entries) == 0 {
			return "", fmt.Errorf("installer: node release index is empty")
		}
		return entries[0].Version, nil
	case "lts":
		for _, e := range entries {
			if e.LTS {
				return e.Version, nil
			}
		}
		return "", fmt.Errorf("installer: no LTS release in node index")
	default:
		return "", fmt.Errorf("installer: node: %w: %q", ErrUnknownAlias, alias)
	}
}

func (n *nodeSource) archiveAsset(ctx context.Context, f *fetch.Fetcher, version string) (asset, error) {
	arch, err := platform.NodeArch()
	if err != nil {
		return asset{}, err
	}

	ext := "tar.xz"
	if runtime.GOOS == platform.Windows {
		ext = "zip"
	}
	filename := fmt.Sprintf("node-v%s-%s-%s.%s", version, nodeOS(), arch, ext)

	// SHASUMS256.txt lists every asset of the release; a missing checksum
	// file downgrades to an unverified download rather than failing.
	sum := ""
	if text, err := f.GetText(ctx, fmt.Sprintf("%s/v%s/SHASUMS256.txt", nodeDistURL, version)); err == nil {
		sum = checksumFor(text, filename)
	}

	return asset{
		url:      fmt.Sprintf("%s/v%s/%s", nodeDistURL, version, filename),
		filename: filename,
		sha256:   sum,
		strip:    1,
	}, nil
}

func nodeOS() string {
	switch runtime.GOOS {
	case platform.Darwin:
		return "darwin"
	case platform.Windows:
		return "win"
	default:
		return "linux"
	}
}

// checksumFor finds the digest for filename in a "<sha256>  <name>" listing.
func checksumFor(listing, filename string) string {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == filename {
			return fields[0]
		}
	}
	return ""
}
