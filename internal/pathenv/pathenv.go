// SPDX-License-Identifier: MPL-2.0

// Package pathenv composes the PATH additions for a project: the bin
// directories of the resolved runtime versions, ordered native first and
// fallback-manager last, with a project-local virtualenv ahead of everything.
package pathenv

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"polyrun/internal/config"
	"polyrun/internal/installer"
)

// lookPath is a seam for tests; the composer only asks whether a binary
// exists somewhere on the inherited PATH.
var lookPath = exec.LookPath

type (
	// FallbackLocator answers "where is runtime@version installed" for the
	// bundled fallback manager.
	FallbackLocator interface {
		Where(ctx context.Context, runtime, version string) (string, error)
	}

	// Composer builds the ordered PATH additions for a resolved runtime set.
	Composer struct {
		store    *installer.Store
		backend  config.Backend
		fallback FallbackLocator
		logger   *log.Logger
	}

	// Option configures a Composer.
	Option func(*Composer)
)

// WithFallback sets the fallback manager used for runtimes the native store
// cannot serve.
func WithFallback(f FallbackLocator) Option {
	return func(c *Composer) { c.fallback = f }
}

// WithLogger overrides the default discard logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// New creates a Composer over the version store with the configured backend
// preference.
func New(store *installer.Store, backend config.Backend, opts ...Option) *Composer {
	c := &Composer{
		store:   store,
		backend: backend,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VenvDir returns the project-local virtualenv root, if one exists.
// .venv is preferred over venv, matching Python tooling conventions.
func VenvDir(projectDir string) (string, bool) {
	for _, name := range []string{".venv", "venv"} {
		dir := filepath.Join(projectDir, name)
		if info, err := os.Stat(filepath.Join(dir, "bin")); err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// Compose returns the ordered PATH additions for projectDir given the
// resolved runtime→version map: virtualenv bin first, then native bin
// directories, then fallback-manager paths. Runtimes whose bin directory
// does not exist on disk contribute nothing from the native side.
func (c *Composer) Compose(ctx context.Context, projectDir string, versions map[string]string) []string {
	var paths []string

	if venv, ok := VenvDir(projectDir); ok {
		paths = append(paths, filepath.Join(venv, "bin"))
	}

	var missing []runtimeVersion
	if c.backend.UsesNative() {
		for _, rv := range sortedRuntimes(versions) {
			if c.shadowed(rv.runtime) {
				c.logger.Debug("runtime shadowed by system tooling", "runtime", rv.runtime)
				continue
			}
			bin, ok := c.nativeBin(rv.runtime, rv.version)
			if !ok {
				missing = append(missing, rv)
				continue
			}
			paths = append(paths, bin)
		}
	} else {
		missing = sortedRuntimes(versions)
	}

	if c.backend.UsesFallback() && c.fallback != nil {
		for _, rv := range missing {
			dir, err := c.fallback.Where(ctx, rv.runtime, rv.version)
			if err != nil {
				c.logger.Debug("fallback lookup failed", "runtime", rv.runtime, "version", rv.version, "err", err)
				continue
			}
			paths = append(paths, filepath.Join(dir, "bin"))
		}
	}

	return paths
}

type runtimeVersion struct {
	runtime string
	version string
}

func sortedRuntimes(versions map[string]string) []runtimeVersion {
	out := make([]runtimeVersion, 0, len(versions))
	for _, runtime := range sortedKeys(versions) {
		out = append(out, runtimeVersion{runtime: runtime, version: versions[runtime]})
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// nativeBin returns the bin directory of an installed version, reporting
// false when the version (or its bin directory) is absent. Bun ships a bare
// binary at the version root rather than a bin/ tree.
func (c *Composer) nativeBin(runtime, version string) (string, bool) {
	dir := c.store.VersionDir(runtime, version)
	if runtime != "bun" {
		dir = filepath.Join(dir, "bin")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

// shadowed reports whether a system-level version manager already owns the
// runtime, in which case the native candidate is skipped entirely.
func (c *Composer) shadowed(runtime string) bool {
	switch runtime {
	case "rust":
		home, err := os.UserHomeDir()
		if err != nil {
			return false
		}
		for _, dir := range []string{filepath.Join(home, ".rustup"), filepath.Join(home, ".cargo", "bin")} {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				return true
			}
		}
		return false
	case "node":
		if _, err := lookPath("node"); err == nil {
			return true
		}
		// nvm installs as a shell function rather than a PATH entry, so
		// its directory is the only trace visible from here.
		if dir := os.Getenv("NVM_DIR"); dir != "" {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				return true
			}
		}
		return false
	default:
		return false
	}
}
