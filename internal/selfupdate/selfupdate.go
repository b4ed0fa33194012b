// SPDX-License-Identifier: MPL-2.0

// Package selfupdate upgrades the running polyrun binary in place from
// GitHub releases. Managed installs (go install, Homebrew) are detected and
// deferred to their package manager instead of being overwritten.
package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"

	"polyrun/internal/fetch"
)

// releaseRepo is the GitHub repository polyrun releases are published to.
const releaseRepo = "polyrun/polyrun"

// apiURL is the GitHub API root. Variable so tests can point the updater at
// a local server.
var apiURL = "https://api.github.com"

var (
	// ErrInvalidVersion indicates the provided version string is not valid
	// semver.
	ErrInvalidVersion = errors.New("selfupdate: invalid semantic version")

	// ErrManagedInstall indicates the binary is owned by a package manager
	// and must not be replaced in place.
	ErrManagedInstall = errors.New("selfupdate: binary is managed by a package manager")

	// osExecutable is a test seam for os.Executable().
	osExecutable = os.Executable
)

type (
	// Check holds the result of comparing the running version with the
	// latest release.
	Check struct {
		CurrentVersion string
		LatestVersion  string
		AssetURL       string
		SHA256         string
		Available      bool
	}

	// Updater drives the check-and-apply upgrade flow.
	Updater struct {
		fetcher *fetch.Fetcher
		logger  *log.Logger
		current string
	}

	release struct {
		TagName string  `json:"tag_name"`
		Assets  []asset `json:"assets"`
	}

	asset struct {
		Name               string `json:"name"`
		Digest             string `json:"digest"`
		BrowserDownloadURL string `json:"browser_download_url"`
	}
)

// New creates an Updater for the currently running version.
func New(currentVersion string, fetcher *fetch.Fetcher, logger *log.Logger) *Updater {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Updater{fetcher: fetcher, logger: logger, current: currentVersion}
}

// CheckLatest compares the running version against the newest release.
// Dev builds never report an available upgrade.
func (u *Updater) CheckLatest(ctx context.Context) (*Check, error) {
	current, err := normalizeVersion(u.current)
	if err != nil {
		// "dev" and other unversioned builds cannot be compared.
		return &Check{CurrentVersion: u.current}, nil
	}

	var rel release
	url := fmt.Sprintf("%s/repos/%s/releases/latest", apiURL, releaseRepo)
	if err := u.fetcher.GetJSON(ctx, url, &rel); err != nil {
		return nil, fmt.Errorf("selfupdate: fetch latest release: %w", err)
	}

	latest, err := normalizeVersion(rel.TagName)
	if err != nil {
		return nil, fmt.Errorf("selfupdate: release tag %q: %w", rel.TagName, err)
	}

	check := &Check{
		CurrentVersion: current,
		LatestVersion:  latest,
		Available:      semver.Compare(latest, current) > 0,
	}
	if !check.Available {
		return check, nil
	}

	name := assetName(latest)
	for _, a := range rel.Assets {
		if a.Name == name {
			check.AssetURL = a.BrowserDownloadURL
			check.SHA256 = strings.TrimPrefix(a.Digest, "sha256:")
			break
		}
	}
	if check.AssetURL == "" {
		return nil, fmt.Errorf("selfupdate: release %s has no asset %q", latest, name)
	}
	return check, nil
}

// Apply downloads the release binary and atomically replaces the running
// executable: the new binary lands next to the old one and is renamed over
// it, so a crash mid-upgrade never leaves a half-written executable.
func (u *Updater) Apply(ctx context.Context, check *Check) error {
	execPath, err := resolveExecPath()
	if err != nil {
		return err
	}
	if managed(execPath) {
		return fmt.Errorf("%w: %s", ErrManagedInstall, execPath)
	}

	dir := filepath.Dir(execPath)
	staged := filepath.Join(dir, ".polyrun.new")
	u.logger.Info("downloading", "version", check.LatestVersion, "url", check.AssetURL)
	if err := u.fetcher.Download(ctx, fetch.Job{
		URL:    check.AssetURL,
		Dest:   staged,
		SHA256: check.SHA256,
	}); err != nil {
		return fmt.Errorf("selfupdate: download release binary: %w", err)
	}
	if err := os.Chmod(staged, 0o755); err != nil {
		os.Remove(staged)
		return fmt.Errorf("selfupdate: mark binary executable: %w", err)
	}
	if err := os.Rename(staged, execPath); err != nil {
		os.Remove(staged)
		return fmt.Errorf("selfupdate: replace %s: %w", execPath, err)
	}
	return nil
}

// resolveExecPath returns the real path of the running binary, following
// symlinks so the replacement hits the actual file.
func resolveExecPath() (string, error) {
	execPath, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("selfupdate: resolve executable path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return execPath, nil
	}
	return resolved, nil
}

// managed reports whether execPath belongs to a package manager's tree.
func managed(execPath string) bool {
	path := filepath.ToSlash(execPath)
	for _, marker := range []string{"/Cellar/", "/homebrew/", "/go/bin/"} {
		if strings.Contains(path, marker) {
			return true
		}
	}
	if gobin := os.Getenv("GOBIN"); gobin != "" && strings.HasPrefix(execPath, gobin) {
		return true
	}
	return false
}

// assetName is the per-platform release binary name, e.g.
// polyrun-v1.2.0-linux-amd64.
func assetName(version string) string {
	return fmt.Sprintf("polyrun-%s-%s-%s", version, runtime.GOOS, runtime.GOARCH)
}

// normalizeVersion validates v as semver and returns it with the canonical
// v prefix.
func normalizeVersion(v string) (string, error) {
	if v == "" {
		return "", ErrInvalidVersion
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return v, nil
}
