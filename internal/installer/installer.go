// SPDX-License-Identifier: MPL-2.0

// Package installer manages runtime toolchains in the filesystem version
// store: one installer per runtime, each speaking its upstream's release
// catalog and archive naming scheme, all sharing the same install/activate/
// remove contract over <data_dir>/versions/<runtime>/<version> directories.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"polyrun/internal/fetch"
	"polyrun/internal/resolve"
)

// ErrUnknownAlias is returned when an alias has no meaning for a runtime
// (e.g. "lts" for Go).
var ErrUnknownAlias = errors.New("installer: unknown version alias")

type (
	// CatalogEntry is one version from a runtime's upstream release index.
	CatalogEntry struct {
		// Version is the plain version string, no v prefix.
		Version string
		// LTS marks long-term-support releases (Node only).
		LTS bool
		// Channel is the release channel, where the upstream has them.
		Channel string
	}

	// Installer is the uniform contract over one managed runtime.
	Installer interface {
		// Runtime returns the canonical runtime name.
		Runtime() string

		// ListAvailable fetches the upstream release index. A partially
		// malformed response yields the parseable subset, never a panic.
		ListAvailable(ctx context.Context) ([]CatalogEntry, error)

		// ResolveAlias resolves "latest"/"lts"/channel names against the
		// live catalog. Fails rather than guessing when the catalog is
		// unreachable.
		ResolveAlias(ctx context.Context, alias string) (string, error)

		// Install downloads and unpacks a version, then activates it.
		// Installing an already-present version skips the download and goes
		// straight to activation.
		Install(ctx context.Context, version string) error

		// Use activates an installed version by repointing `current`.
		Use(version string) error

		// Uninstall removes a version directory, clearing `current` if it
		// pointed at the removed version.
		Uninstall(version string) error

		// Installed lists installed versions, highest first.
		Installed() ([]string, error)

		// Current returns the active version, if any.
		Current() (string, bool)
	}

	// asset names one downloadable archive for a version.
	asset struct {
		url      string
		filename string
		sha256   string
		strip    int
	}

	// archiveSource is the per-runtime half of an archive-based installer:
	// the catalog protocol and the asset naming scheme.
	archiveSource interface {
		listAvailable(ctx context.Context, f *fetch.Fetcher) ([]CatalogEntry, error)
		resolveAlias(ctx context.Context, f *fetch.Fetcher, alias string) (string, error)
		archiveAsset(ctx context.Context, f *fetch.Fetcher, version string) (asset, error)
	}

	// archiveInstaller implements Installer for the six runtimes whose
	// upstream ships a single self-contained archive per version.
	archiveInstaller struct {
		runtime string
		store   *Store
		fetcher *fetch.Fetcher
		logger  *log.Logger
		source  archiveSource
	}
)

func (a *archiveInstaller) Runtime() string { return a.runtime }

func (a *archiveInstaller) ListAvailable(ctx context.Context) ([]CatalogEntry, error) {
	return a.source.listAvailable(ctx, a.fetcher)
}

func (a *archiveInstaller) ResolveAlias(ctx context.Context, alias string) (string, error) {
	return a.source.resolveAlias(ctx, a.fetcher, alias)
}

func (a *archiveInstaller) Install(ctx context.Context, version string) error {
	if a.store.IsInstalled(a.runtime, version) {
		a.logger.Debug("version already installed", "runtime", a.runtime, "version", version)
		return a.Use(version)
	}

	release, err := a.store.AcquireInstallLock(a.runtime, version)
	if err != nil {
		return err
	}
	defer release()

	art, err := a.source.archiveAsset(ctx, a.fetcher, version)
	if err != nil {
		return err
	}

	stage, err := a.store.StageDir(a.runtime, version)
	if err != nil {
		return err
	}
	defer os.RemoveAll(stage)

	archivePath := filepath.Join(stage, art.filename)
	a.logger.Info("downloading", "runtime", a.runtime, "version", version, "url", art.url)
	if err := a.fetcher.Download(ctx, fetch.Job{
		URL:    art.url,
		Dest:   archivePath,
		SHA256: art.sha256,
	}); err != nil {
		return err
	}

	extractDir := filepath.Join(stage, "root")
	if err := fetch.Extract(archivePath, extractDir, art.strip); err != nil {
		return err
	}
	os.Remove(archivePath)

	if err := a.store.Commit(extractDir, a.runtime, version); err != nil {
		return err
	}

	a.logger.Info("installed", "runtime", a.runtime, "version", version)
	return a.Use(version)
}

func (a *archiveInstaller) Use(version string) error {
	return a.store.SetCurrent(a.runtime, version)
}

func (a *archiveInstaller) Uninstall(version string) error {
	return a.store.Remove(a.runtime, version)
}

func (a *archiveInstaller) Installed() ([]string, error) {
	return a.store.Installed(a.runtime)
}

func (a *archiveInstaller) Current() (string, bool) {
	return a.store.CurrentVersion(a.runtime)
}

// Registry holds the per-runtime installers keyed by canonical name.
type Registry struct {
	store      *Store
	installers map[string]Installer
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	logger      *log.Logger
	concurrency int
}

// WithLogger overrides the logger shared by all installers.
func WithLogger(l *log.Logger) RegistryOption {
	return func(c *registryConfig) { c.logger = l }
}

// WithConcurrency bounds how many component downloads run at once. Values
// below 1 leave the limit unset.
func WithConcurrency(n int) RegistryOption {
	return func(c *registryConfig) { c.concurrency = n }
}

// NewRegistry builds the registry with all managed runtimes registered.
func NewRegistry(store *Store, fetcher *fetch.Fetcher, opts ...RegistryOption) *Registry {
	cfg := registryConfig{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Registry{
		store:      store,
		installers: make(map[string]Installer),
	}

	archive := func(runtime string, source archiveSource) {
		r.installers[runtime] = &archiveInstaller{
			runtime: runtime,
			store:   store,
			fetcher: fetcher,
			logger:  cfg.logger,
			source:  source,
		}
	}

	archive("node", &nodeSource{})
	archive("go", &goSource{})
	archive("python", &pythonSource{})
	archive("ruby", &rubySource{})
	archive("java", &javaSource{})
	archive("bun", &bunSource{})
	r.installers["rust"] = newRustInstaller(store, fetcher, cfg.logger, cfg.concurrency)

	return r
}

// Get returns the installer for a canonical runtime name.
func (r *Registry) Get(runtime string) (Installer, bool) {
	inst, ok := r.installers[runtime]
	return inst, ok
}

// Store returns the shared version store.
func (r *Registry) Store() *Store {
	return r.store
}

// Runtimes lists the managed runtime names, sorted.
func (r *Registry) Runtimes() []string {
	names := make([]string, 0, len(r.installers))
	for name := range r.installers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ResolveSpec turns a requirement spec into a concrete version for runtime:
// aliases resolve against the live catalog; everything else matches against
// the installed set first, falling back to treating an exact version spec
// as-is (so installing a never-seen pinned version works offline).
func (r *Registry) ResolveSpec(ctx context.Context, runtime, spec string) (string, error) {
	inst, ok := r.Get(runtime)
	if !ok {
		return "", fmt.Errorf("installer: no installer for runtime %q", runtime)
	}

	if resolve.IsAlias(spec) {
		return inst.ResolveAlias(ctx, spec)
	}

	installed, err := inst.Installed()
	if err != nil {
		return "", err
	}
	if version, err := resolve.Match(spec, installed); err == nil {
		return version, nil
	} else if errors.Is(err, resolve.ErrBadRequirement) {
		// Channel-style specs ("stable-2024-05-02") pass through untouched.
		return spec, nil
	}

	// Nothing installed satisfies the spec. Exact pins install directly;
	// bare majors and ranges need the catalog.
	if version, ok := resolve.Exact(spec); ok {
		return version, nil
	}

	entries, err := inst.ListAvailable(ctx)
	if err != nil {
		return "", fmt.Errorf("installer: resolve %q for %s: %w", spec, runtime, err)
	}
	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		versions = append(versions, e.Version)
	}
	return resolve.Match(spec, versions)
}
