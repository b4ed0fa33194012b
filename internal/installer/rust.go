// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"

	"polyrun/internal/fetch"
	"polyrun/internal/platform"
)

// rustDistURL is the Rust release server. Variable so tests can point the
// installer at a local server.
var rustDistURL = "https://static.rust-lang.org/dist"

// rustComponents are installed into every toolchain. The preview
// components are skipped when the manifest marks them unavailable.
var (
	rustComponents         = []string{"rust-std", "rustc", "cargo"}
	rustOptionalComponents = []string{"rustfmt-preview", "clippy-preview"}
)

// datedChannelRe matches channel specs pinned to a date, e.g.
// nightly-2024-05-02.
var datedChannelRe = regexp.MustCompile(`^(stable|beta|nightly)-(\d{4}-\d{2}-\d{2})$`)

// componentsManifest records which components a toolchain directory holds,
// so re-installing only fetches what is missing.
const componentsManifest = ".components"

type (
	rustManifest struct {
		Pkg map[string]rustPackage `toml:"pkg"`
	}

	rustPackage struct {
		Version string                `toml:"version"`
		Target  map[string]rustTarget `toml:"target"`
	}

	rustTarget struct {
		Available bool   `toml:"available"`
		URL       string `toml:"url"`
		Hash      string `toml:"hash"`
	}
)

// rustInstaller assembles toolchains from per-component archives, the way
// rustup does, instead of the single-archive path the other runtimes take.
type rustInstaller struct {
	store       *Store
	fetcher     *fetch.Fetcher
	logger      *log.Logger
	triple      string
	concurrency int
}

func newRustInstaller(store *Store, fetcher *fetch.Fetcher, logger *log.Logger, concurrency int) *rustInstaller {
	// An unsupported platform surfaces on first use, not at registry
	// construction.
	triple, _ := platform.RustTriple()
	return &rustInstaller{store: store, fetcher: fetcher, logger: logger, triple: triple, concurrency: concurrency}
}

func (r *rustInstaller) Runtime() string { return "rust" }

// manifestURL maps a channel or version spec to its release manifest.
// Dated channel specs resolve through the archive layout.
func manifestURL(spec string) string {
	if m := datedChannelRe.FindStringSubmatch(spec); m != nil {
		return fmt.Sprintf("%s/%s/channel-rust-%s.toml", rustDistURL, m[2], m[1])
	}
	return fmt.Sprintf("%s/channel-rust-%s.toml", rustDistURL, spec)
}

func (r *rustInstaller) manifest(ctx context.Context, spec string) (*rustManifest, error) {
	text, err := r.fetcher.GetText(ctx, manifestURL(spec))
	if err != nil {
		if errors.Is(err, fetch.ErrVersionNotFound) {
			return nil, fmt.Errorf("installer: rust %s: %w", spec, fetch.ErrVersionNotFound)
		}
		return nil, fmt.Errorf("installer: fetch rust manifest for %s: %w", spec, err)
	}

	var manifest rustManifest
	if err := toml.Unmarshal([]byte(text), &manifest); err != nil {
		return nil, fmt.Errorf("installer: parse rust manifest for %s: %w", spec, err)
	}
	return &manifest, nil
}

// manifestVersion extracts the plain version from the manifest's rust
// package, whose version field reads like "1.77.0 (aedd173a2 2024-03-17)".
func (m *rustManifest) version() (string, error) {
	pkg, ok := m.Pkg["rust"]
	if !ok || pkg.Version == "" {
		return "", fmt.Errorf("installer: rust manifest has no rust package version")
	}
	fields := strings.Fields(pkg.Version)
	return fields[0], nil
}

func (r *rustInstaller) ListAvailable(ctx context.Context) ([]CatalogEntry, error) {
	entries := make([]CatalogEntry, 0, 3)
	for _, channel := range []string{"stable", "beta", "nightly"} {
		manifest, err := r.manifest(ctx, channel)
		if err != nil {
			if errors.Is(err, fetch.ErrVersionNotFound) {
				continue
			}
			return nil, err
		}
		version, err := manifest.version()
		if err != nil {
			continue
		}
		entries = append(entries, CatalogEntry{Version: version, Channel: channel})
	}
	return entries, nil
}

func (r *rustInstaller) ResolveAlias(ctx context.Context, alias string) (string, error) {
	channel := strings.ToLower(alias)
	if channel == "latest" {
		channel = "stable"
	}
	switch channel {
	case "stable", "beta", "nightly":
	default:
		return "", fmt.Errorf("installer: rust: %w: %q", ErrUnknownAlias, alias)
	}

	manifest, err := r.manifest(ctx, channel)
	if err != nil {
		return "", err
	}
	return manifest.version()
}

// components returns the target entries to install, skipping optional
// components the manifest marks unavailable.
func (r *rustInstaller) components(manifest *rustManifest) (map[string]rustTarget, error) {
	if r.triple == "" {
		return nil, fmt.Errorf("installer: no rust target triple for this platform")
	}

	targets := make(map[string]rustTarget)
	for _, name := range rustComponents {
		pkg, ok := manifest.Pkg[name]
		if !ok {
			return nil, fmt.Errorf("installer: rust manifest missing component %s", name)
		}
		target, ok := pkg.Target[r.triple]
		if !ok || !target.Available {
			return nil, fmt.Errorf("installer: rust component %s unavailable for %s", name, r.triple)
		}
		targets[name] = target
	}
	for _, name := range rustOptionalComponents {
		pkg, ok := manifest.Pkg[name]
		if !ok {
			continue
		}
		if target, ok := pkg.Target[r.triple]; ok && target.Available {
			targets[name] = target
		}
	}
	return targets, nil
}

// toolchainName is the store key for a toolchain. Dated channel specs keep
// the channel name so requirement resolution and PATH composition find the
// installed toolchain again without refetching the channel manifest.
func toolchainName(spec, version string) string {
	if datedChannelRe.MatchString(spec) {
		return spec
	}
	return version
}

func (r *rustInstaller) Install(ctx context.Context, spec string) error {
	manifest, err := r.manifest(ctx, spec)
	if err != nil {
		return err
	}
	version, err := manifest.version()
	if err != nil {
		return err
	}
	name := toolchainName(spec, version)

	targets, err := r.components(manifest)
	if err != nil {
		return err
	}

	if r.store.IsInstalled("rust", name) {
		missing := r.missingComponents(name, targets)
		if len(missing) == 0 {
			r.logger.Debug("toolchain already installed", "runtime", "rust", "toolchain", name)
			return r.Use(name)
		}
		// Delta install into the existing toolchain directory.
		if err := r.installComponents(ctx, r.store.VersionDir("rust", name), version, filterTargets(targets, missing)); err != nil {
			return err
		}
		return r.Use(name)
	}

	release, err := r.store.AcquireInstallLock("rust", name)
	if err != nil {
		return err
	}
	defer release()

	stage, err := r.store.StageDir("rust", name)
	if err != nil {
		return err
	}
	defer os.RemoveAll(stage)

	root := filepath.Join(stage, "root")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("installer: create stage root: %w", err)
	}
	if err := r.installComponents(ctx, root, version, targets); err != nil {
		return err
	}

	if err := r.store.Commit(root, "rust", name); err != nil {
		return err
	}

	r.logger.Info("installed", "runtime", "rust", "version", version, "toolchain", name)
	return r.Use(name)
}

// installComponents downloads and merges each component archive into dest,
// then appends the component names to the toolchain manifest.
func (r *rustInstaller) installComponents(ctx context.Context, dest, version string, targets map[string]rustTarget) error {
	work, err := os.MkdirTemp(filepath.Dir(dest), ".rust-components.")
	if err != nil {
		return fmt.Errorf("installer: create component workspace: %w", err)
	}
	defer os.RemoveAll(work)

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for name, target := range targets {
		g.Go(func() error {
			archive := filepath.Join(work, name+".tar.gz")
			r.logger.Info("downloading", "runtime", "rust", "version", version, "component", name)
			if err := r.fetcher.Download(gctx, fetch.Job{
				URL:    target.URL,
				Dest:   archive,
				SHA256: target.Hash,
			}); err != nil {
				return err
			}
			return fetch.Extract(archive, filepath.Join(work, name), 0)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Merge sequentially so overlapping directories (bin/, lib/) interleave
	// without races.
	installed := make([]string, 0, len(targets))
	for name := range targets {
		if err := mergeComponent(filepath.Join(work, name), dest); err != nil {
			return fmt.Errorf("installer: merge rust component %s: %w", name, err)
		}
		installed = append(installed, name)
	}
	return appendComponents(dest, installed)
}

// mergeComponent copies the payload of one extracted component archive into
// dest. Archives unpack to <component>-<version>-<triple>/<subdir>/... with
// the toolchain files two levels down; only the toolchain directories are
// kept, not the archive's own install scripts and manifests.
func mergeComponent(extracted, dest string) error {
	top, err := os.ReadDir(extracted)
	if err != nil {
		return err
	}
	if len(top) != 1 || !top[0].IsDir() {
		return fmt.Errorf("unexpected archive layout")
	}

	componentRoot := filepath.Join(extracted, top[0].Name())
	subdirs, err := os.ReadDir(componentRoot)
	if err != nil {
		return err
	}
	for _, sub := range subdirs {
		if !sub.IsDir() {
			continue
		}
		payload := filepath.Join(componentRoot, sub.Name())
		entries, err := os.ReadDir(payload)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			switch entry.Name() {
			case "bin", "lib", "libexec", "share", "etc":
				if err := mergeTree(filepath.Join(payload, entry.Name()), filepath.Join(dest, entry.Name())); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// mergeTree moves src into dst, merging directories that already exist.
func mergeTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		os.Remove(dst)
		return os.Rename(src, dst)
	}

	if _, err := os.Lstat(dst); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.Rename(src, dst)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := mergeTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// missingComponents returns the wanted components absent from the
// toolchain's component manifest.
func (r *rustInstaller) missingComponents(name string, targets map[string]rustTarget) []string {
	have := readComponents(r.store.VersionDir("rust", name))
	missing := make([]string, 0)
	for name := range targets {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func filterTargets(targets map[string]rustTarget, names []string) map[string]rustTarget {
	out := make(map[string]rustTarget, len(names))
	for _, name := range names {
		out[name] = targets[name]
	}
	return out
}

func readComponents(dir string) map[string]bool {
	have := make(map[string]bool)
	data, err := os.ReadFile(filepath.Join(dir, componentsManifest))
	if err != nil {
		return have
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			have[line] = true
		}
	}
	return have
}

func appendComponents(dir string, names []string) error {
	f, err := os.OpenFile(filepath.Join(dir, componentsManifest), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("installer: record rust components: %w", err)
	}
	defer f.Close()
	for _, name := range names {
		if _, err := io.WriteString(f, name+"\n"); err != nil {
			return fmt.Errorf("installer: record rust components: %w", err)
		}
	}
	return nil
}

func (r *rustInstaller) Use(version string) error {
	return r.store.SetCurrent("rust", version)
}

func (r *rustInstaller) Uninstall(version string) error {
	return r.store.Remove("rust", version)
}

func (r *rustInstaller) Installed() ([]string, error) {
	return r.store.Installed("rust")
}

func (r *rustInstaller) Current() (string, bool) {
	return r.store.CurrentVersion("rust")
}
