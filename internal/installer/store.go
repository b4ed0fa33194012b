// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"polyrun/internal/resolve"
)

var (
	// ErrNotInstalled is returned when an operation needs a version directory
	// that does not exist.
	ErrNotInstalled = errors.New("installer: version not installed")

	// ErrInstallInProgress is returned when another process holds the install
	// marker for the same runtime and version.
	ErrInstallInProgress = errors.New("installer: install already in progress")
)

// Store is the filesystem version store. The filesystem is the sole source
// of truth: a directory <root>/versions/<runtime>/<version> is an install,
// and the per-runtime `current` symlink selects the active version. No
// in-memory state survives between calls.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{root: dataDir}
}

// Root returns the data directory the store lives under.
func (s *Store) Root() string {
	return s.root
}

// RuntimeDir returns <root>/versions/<runtime>.
func (s *Store) RuntimeDir(runtime string) string {
	return filepath.Join(s.root, "versions", runtime)
}

// VersionDir returns <root>/versions/<runtime>/<version>.
func (s *Store) VersionDir(runtime, version string) string {
	return filepath.Join(s.RuntimeDir(runtime), version)
}

// CurrentLink returns the path of the per-runtime `current` symlink.
func (s *Store) CurrentLink(runtime string) string {
	return filepath.Join(s.RuntimeDir(runtime), "current")
}

// IsInstalled reports whether the version directory exists.
func (s *Store) IsInstalled(runtime, version string) bool {
	info, err := os.Stat(s.VersionDir(runtime, version))
	return err == nil && info.IsDir()
}

// Installed lists installed versions for runtime, highest first. The
// `current` symlink and internal marker directories are excluded.
func (s *Store) Installed(runtime string) ([]string, error) {
	entries, err := os.ReadDir(s.RuntimeDir(runtime))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("installer: list %s versions: %w", runtime, err)
	}

	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if name == "current" || strings.HasPrefix(name, ".") {
			continue
		}
		if !entry.IsDir() {
			continue
		}
		versions = append(versions, name)
	}
	resolve.SortDescending(versions)
	return versions, nil
}

// CurrentVersion returns the active version for runtime, reading the
// `current` symlink target. ok is false when no version is active.
func (s *Store) CurrentVersion(runtime string) (string, bool) {
	target, err := os.Readlink(s.CurrentLink(runtime))
	if err != nil {
		return "", false
	}
	return filepath.Base(target), true
}

// SetCurrent atomically repoints the `current` symlink at version: the new
// link is created under a temporary name and renamed over the old one, so a
// crash never leaves the runtime without an active-version pointer.
func (s *Store) SetCurrent(runtime, version string) error {
	versionDir := s.VersionDir(runtime, version)
	if _, err := os.Stat(versionDir); err != nil {
		return fmt.Errorf("installer: activate %s %s: %w", runtime, version, ErrNotInstalled)
	}

	link := s.CurrentLink(runtime)
	tmp := link + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(versionDir, tmp); err != nil {
		return fmt.Errorf("installer: create current symlink: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("installer: swap current symlink: %w", err)
	}
	return nil
}

// ClearCurrent removes the `current` symlink if present.
func (s *Store) ClearCurrent(runtime string) error {
	err := os.Remove(s.CurrentLink(runtime))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("installer: clear current symlink: %w", err)
	}
	return nil
}

// Remove deletes a version directory. When the removed version was active,
// the now-dangling `current` symlink is removed too; a dangling pointer is
// never left behind.
func (s *Store) Remove(runtime, version string) error {
	versionDir := s.VersionDir(runtime, version)
	if _, err := os.Stat(versionDir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("installer: remove %s %s: %w", runtime, version, ErrNotInstalled)
		}
		return fmt.Errorf("installer: remove %s %s: %w", runtime, version, err)
	}

	wasActive := false
	if current, ok := s.CurrentVersion(runtime); ok && current == version {
		wasActive = true
	}

	if err := os.RemoveAll(versionDir); err != nil {
		return fmt.Errorf("installer: remove %s %s: %w", runtime, version, err)
	}

	if wasActive {
		return s.ClearCurrent(runtime)
	}
	return nil
}

// AcquireInstallLock creates the marker directory
// <runtime dir>/.installing.<version> with exclusive semantics. A second
// process installing the same runtime+version fails fast with
// ErrInstallInProgress instead of racing on the version directory.
func (s *Store) AcquireInstallLock(runtime, version string) (release func(), err error) {
	if err := os.MkdirAll(s.RuntimeDir(runtime), 0o755); err != nil {
		return nil, fmt.Errorf("installer: create runtime directory: %w", err)
	}

	marker := filepath.Join(s.RuntimeDir(runtime), ".installing."+version)
	if err := os.Mkdir(marker, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("installer: %s %s: %w", runtime, version, ErrInstallInProgress)
		}
		return nil, fmt.Errorf("installer: create install marker: %w", err)
	}
	return func() { os.RemoveAll(marker) }, nil
}

// StageDir creates a fresh staging directory under the runtime directory.
// Archives extract into the stage, which is renamed to the version directory
// only on success, so a failed install never leaves a directory that
// IsInstalled would recognize.
func (s *Store) StageDir(runtime, version string) (string, error) {
	if err := os.MkdirAll(s.RuntimeDir(runtime), 0o755); err != nil {
		return "", fmt.Errorf("installer: create runtime directory: %w", err)
	}
	stage, err := os.MkdirTemp(s.RuntimeDir(runtime), ".stage."+version+".")
	if err != nil {
		return "", fmt.Errorf("installer: create staging directory: %w", err)
	}
	return stage, nil
}

// Commit renames a staging directory into place as the version directory.
func (s *Store) Commit(stage, runtime, version string) error {
	if err := os.Rename(stage, s.VersionDir(runtime, version)); err != nil {
		return fmt.Errorf("installer: commit %s %s: %w", runtime, version, err)
	}
	return nil
}
