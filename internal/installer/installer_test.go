// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"polyrun/internal/fetch"
	"polyrun/internal/platform"
)

// buildTarGz builds a gzipped tarball from name->content pairs. Names ending
// in / become directories.
func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		if strings.HasSuffix(name, "/") {
			if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
				t.Fatal(err)
			}
			continue
		}
		hdr := &tar.Header{Name: name, Mode: 0o755, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// goTestServer serves a one-release go.dev/dl catalog plus its archive, and
// counts archive downloads. The returned restore runs via t.Cleanup.
func goTestServer(t *testing.T, version, sha string, archive []byte, downloads *atomic.Int64) {
	t.Helper()
	arch, err := platform.GoArch()
	if err != nil {
		t.Skipf("unsupported test architecture: %v", err)
	}
	filename := fmt.Sprintf("go%s.%s-%s.tar.gz", version, runtime.GOOS, arch)

	mux := http.NewServeMux()
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mode") == "json" {
			fmt.Fprintf(w, `[{"version":"go%s","stable":true,"files":[{"filename":%q,"os":%q,"arch":%q,"sha256":%q,"kind":"archive"}]}]`,
				version, filename, runtime.GOOS, arch, sha)
			return
		}
		if filepath.Base(r.URL.Path) == filename {
			downloads.Add(1)
			w.Write(archive)
			return
		}
		http.NotFound(w, r)
	})

	srv := httptest.NewServer(mux)
	old := goDownloadURL
	goDownloadURL = srv.URL + "/dl"
	t.Cleanup(func() {
		goDownloadURL = old
		srv.Close()
	})
}

func TestArchiveInstallerLifecycle(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"go/bin/go":      "#!/bin/sh\n",
		"go/VERSION":     "go1.22.1",
		"go/lib/foo.txt": "x",
	})
	var downloads atomic.Int64
	goTestServer(t, "1.22.1", digest(archive), archive, &downloads)

	store := NewStore(t.TempDir())
	reg := NewRegistry(store, fetch.New())
	inst, ok := reg.Get("go")
	if !ok {
		t.Fatal("no go installer registered")
	}

	if err := inst.Install(context.Background(), "1.22.1"); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !store.IsInstalled("go", "1.22.1") {
		t.Fatal("version directory missing after install")
	}
	if got, ok := inst.Current(); !ok || got != "1.22.1" {
		t.Fatalf("Current = %q, %v; want 1.22.1, true", got, ok)
	}
	// The top-level go/ wrapper is stripped.
	if _, err := os.Stat(filepath.Join(store.VersionDir("go", "1.22.1"), "bin", "go")); err != nil {
		t.Fatalf("bin/go missing after extract: %v", err)
	}

	// Installing again skips the download and just re-activates.
	if err := inst.Install(context.Background(), "1.22.1"); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if got := downloads.Load(); got != 1 {
		t.Fatalf("archive downloaded %d times; want 1", got)
	}

	if err := inst.Uninstall("1.22.1"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if store.IsInstalled("go", "1.22.1") {
		t.Fatal("version directory still present after uninstall")
	}
	if _, ok := inst.Current(); ok {
		t.Fatal("current should be cleared after uninstalling the active version")
	}
}

func TestArchiveInstallerChecksumMismatch(t *testing.T) {
	archive := buildTarGz(t, map[string]string{"go/bin/go": "#!/bin/sh\n"})
	var downloads atomic.Int64
	goTestServer(t, "1.22.1", strings.Repeat("0", 64), archive, &downloads)

	store := NewStore(t.TempDir())
	reg := NewRegistry(store, fetch.New())
	inst, _ := reg.Get("go")

	err := inst.Install(context.Background(), "1.22.1")
	if !errors.Is(err, fetch.ErrChecksumMismatch) {
		t.Fatalf("Install error = %v; want ErrChecksumMismatch", err)
	}
	if store.IsInstalled("go", "1.22.1") {
		t.Fatal("corrupt download must not leave an installed version")
	}

	// No staging or lock debris either.
	entries, err := os.ReadDir(store.RuntimeDir("go"))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		t.Errorf("leftover entry after failed install: %s", entry.Name())
	}
}

func TestNodeResolveAlias(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"version":"v21.6.0","lts":false},
			{"version":"v20.11.0","lts":"Iron"},
			{"version":"v18.19.0","lts":"Hydrogen"}
		]`)
	})
	srv := httptest.NewServer(mux)
	old := nodeDistURL
	nodeDistURL = srv.URL
	t.Cleanup(func() {
		nodeDistURL = old
		srv.Close()
	})

	reg := NewRegistry(NewStore(t.TempDir()), fetch.New())
	inst, _ := reg.Get("node")

	tests := []struct {
		alias string
		want  string
	}{
		{"latest", "21.6.0"},
		{"lts", "20.11.0"},
	}
	for _, tt := range tests {
		got, err := inst.ResolveAlias(context.Background(), tt.alias)
		if err != nil {
			t.Fatalf("ResolveAlias(%q): %v", tt.alias, err)
		}
		if got != tt.want {
			t.Errorf("ResolveAlias(%q) = %q; want %q", tt.alias, got, tt.want)
		}
	}

	if _, err := inst.ResolveAlias(context.Background(), "nightly"); !errors.Is(err, ErrUnknownAlias) {
		t.Fatalf("ResolveAlias(nightly) error = %v; want ErrUnknownAlias", err)
	}
}

func TestResolveSpecAgainstInstalled(t *testing.T) {
	// Any network access fails the test: installed versions satisfy the
	// spec without touching the catalog.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL)
		http.Error(w, "offline", http.StatusInternalServerError)
	}))
	old := nodeDistURL
	nodeDistURL = srv.URL
	t.Cleanup(func() {
		nodeDistURL = old
		srv.Close()
	})

	store := NewStore(t.TempDir())
	for _, v := range []string{"18.1.0", "18.2.0", "20.0.0"} {
		mkVersion(t, store, "node", v)
	}
	reg := NewRegistry(store, fetch.New())

	got, err := reg.ResolveSpec(context.Background(), "node", "18")
	if err != nil {
		t.Fatalf("ResolveSpec: %v", err)
	}
	if got != "18.2.0" {
		t.Fatalf("ResolveSpec(node, 18) = %q; want 18.2.0", got)
	}
}

func TestResolveSpecExactPinOffline(t *testing.T) {
	store := NewStore(t.TempDir())
	reg := NewRegistry(store, fetch.New())

	// A never-installed pinned version resolves without a catalog fetch.
	got, err := reg.ResolveSpec(context.Background(), "go", "1.23.4")
	if err != nil {
		t.Fatalf("ResolveSpec: %v", err)
	}
	if got != "1.23.4" {
		t.Fatalf("ResolveSpec(go, 1.23.4) = %q; want 1.23.4", got)
	}
}

func TestResolveSpecUnknownRuntime(t *testing.T) {
	reg := NewRegistry(NewStore(t.TempDir()), fetch.New())
	if _, err := reg.ResolveSpec(context.Background(), "terraform", "1.5.0"); err == nil {
		t.Fatal("expected error for unmanaged runtime")
	}
}

func TestManifestURL(t *testing.T) {
	old := rustDistURL
	rustDistURL = "http://dist.test"
	t.Cleanup(func() { rustDistURL = old })

	tests := []struct {
		spec string
		want string
	}{
		{"stable", "http://dist.test/channel-rust-stable.toml"},
		{"1.77.0", "http://dist.test/channel-rust-1.77.0.toml"},
		{"nightly-2024-05-02", "http://dist.test/2024-05-02/channel-rust-nightly.toml"},
	}
	for _, tt := range tests {
		if got := manifestURL(tt.spec); got != tt.want {
			t.Errorf("manifestURL(%q) = %q; want %q", tt.spec, got, tt.want)
		}
	}
}

func TestRustResolveAlias(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/channel-rust-stable.toml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[pkg.rust]\nversion = \"1.77.0 (aedd173a2 2024-03-17)\"\n")
	})
	srv := httptest.NewServer(mux)
	old := rustDistURL
	rustDistURL = srv.URL
	t.Cleanup(func() {
		rustDistURL = old
		srv.Close()
	})

	reg := NewRegistry(NewStore(t.TempDir()), fetch.New())
	inst, ok := reg.Get("rust")
	if !ok {
		t.Fatal("no rust installer registered")
	}

	for _, alias := range []string{"stable", "latest"} {
		got, err := inst.ResolveAlias(context.Background(), alias)
		if err != nil {
			t.Fatalf("ResolveAlias(%q): %v", alias, err)
		}
		if got != "1.77.0" {
			t.Errorf("ResolveAlias(%q) = %q; want 1.77.0", alias, got)
		}
	}
}

func TestRustDatedChannelInstall(t *testing.T) {
	triple, err := platform.RustTriple()
	if err != nil {
		t.Skipf("unsupported test architecture: %v", err)
	}

	archives := map[string][]byte{
		"rustc":    buildTarGz(t, map[string]string{"rustc-nightly-" + triple + "/rustc/bin/rustc": "#!/bin/sh\n"}),
		"cargo":    buildTarGz(t, map[string]string{"cargo-nightly-" + triple + "/cargo/bin/cargo": "#!/bin/sh\n"}),
		"rust-std": buildTarGz(t, map[string]string{"rust-std-nightly-" + triple + "/rust-std-" + triple + "/lib/rustlib/libstd.rlib": "std"}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/2024-05-02/channel-rust-nightly.toml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[pkg.rust]\nversion = \"1.80.0-nightly (abcdef123 2024-05-01)\"\n")
		for _, name := range []string{"rust-std", "rustc", "cargo"} {
			fmt.Fprintf(w, "[pkg.%s.target.%s]\navailable = true\nurl = \"http://%s/comp/%s.tar.gz\"\nhash = \"%s\"\n",
				name, triple, r.Host, name, digest(archives[name]))
		}
	})
	mux.HandleFunc("/comp/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(filepath.Base(r.URL.Path), ".tar.gz")
		if data, ok := archives[name]; ok {
			w.Write(data)
			return
		}
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	old := rustDistURL
	rustDistURL = srv.URL
	t.Cleanup(func() {
		rustDistURL = old
		srv.Close()
	})

	store := NewStore(t.TempDir())
	reg := NewRegistry(store, fetch.New())
	inst, _ := reg.Get("rust")

	if err := inst.Install(context.Background(), "nightly-2024-05-02"); err != nil {
		t.Fatalf("Install: %v", err)
	}

	// The toolchain directory keeps the channel name, not the manifest
	// version, so later lookups under the same spec find it.
	if !store.IsInstalled("rust", "nightly-2024-05-02") {
		t.Fatal("toolchain directory should be keyed by the channel name")
	}
	if store.IsInstalled("rust", "1.80.0-nightly") {
		t.Fatal("toolchain must not be keyed by the manifest version")
	}
	if got, ok := inst.Current(); !ok || got != "nightly-2024-05-02" {
		t.Fatalf("Current = %q, %v; want nightly-2024-05-02, true", got, ok)
	}
	if _, err := os.Stat(filepath.Join(store.VersionDir("rust", "nightly-2024-05-02"), "bin", "rustc")); err != nil {
		t.Fatalf("bin/rustc missing after install: %v", err)
	}
}

func TestResolveSpecDatedChannelOffline(t *testing.T) {
	// An installed dated-channel toolchain resolves without any network
	// traffic; any request fails the test.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL)
		http.Error(w, "offline", http.StatusInternalServerError)
	}))
	old := rustDistURL
	rustDistURL = srv.URL
	t.Cleanup(func() {
		rustDistURL = old
		srv.Close()
	})

	store := NewStore(t.TempDir())
	mkVersion(t, store, "rust", "nightly-2024-05-02")
	reg := NewRegistry(store, fetch.New())

	got, err := reg.ResolveSpec(context.Background(), "rust", "nightly-2024-05-02")
	if err != nil {
		t.Fatalf("ResolveSpec: %v", err)
	}
	if got != "nightly-2024-05-02" {
		t.Fatalf("ResolveSpec(rust, nightly-2024-05-02) = %q; want the spec back", got)
	}
	if !store.IsInstalled("rust", got) {
		t.Fatal("resolved toolchain should be recognized as installed")
	}
}

func TestRegistryRuntimes(t *testing.T) {
	reg := NewRegistry(NewStore(t.TempDir()), fetch.New())
	want := []string{"bun", "go", "java", "node", "python", "ruby", "rust"}
	got := reg.Runtimes()
	if len(got) != len(want) {
		t.Fatalf("Runtimes = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Runtimes = %v; want %v", got, want)
		}
	}
}
