// SPDX-License-Identifier: MPL-2.0

package pathenv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"polyrun/internal/fetch"
	"polyrun/internal/platform"
)

// miseDownloadURL serves prebuilt mise binaries under stable names like
// mise-latest-linux-x64. Variable so tests can point the bootstrap at a
// local server.
var miseDownloadURL = "https://mise.jdx.dev"

// Mise is the bundled fallback manager: a private mise binary kept under
// the data directory, queried for runtimes the native store does not carry.
type Mise struct {
	binary  string
	fetcher *fetch.Fetcher
	logger  *log.Logger
}

// NewMise creates the fallback manager rooted at dataDir. The binary lives
// at <dataDir>/mise/mise and is downloaded on first use.
func NewMise(dataDir string, fetcher *fetch.Fetcher, logger *log.Logger) *Mise {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Mise{
		binary:  filepath.Join(dataDir, "mise", "mise"),
		fetcher: fetcher,
		logger:  logger,
	}
}

// Binary returns the path of the bundled mise executable.
func (m *Mise) Binary() string {
	return m.binary
}

// EnsureInstalled downloads the mise binary if it is not already present.
func (m *Mise) EnsureInstalled(ctx context.Context) error {
	if info, err := os.Stat(m.binary); err == nil && info.Mode().IsRegular() {
		return nil
	}

	arch, err := platform.NodeArch()
	if err != nil {
		return err
	}
	goos := runtime.GOOS
	if goos == platform.Darwin {
		goos = "macos"
	}
	url := fmt.Sprintf("%s/mise-latest-%s-%s", miseDownloadURL, goos, arch)

	if err := os.MkdirAll(filepath.Dir(m.binary), 0o755); err != nil {
		return fmt.Errorf("pathenv: create mise directory: %w", err)
	}
	m.logger.Info("downloading fallback manager", "url", url)
	if err := m.fetcher.Download(ctx, fetch.Job{URL: url, Dest: m.binary}); err != nil {
		return fmt.Errorf("pathenv: download mise: %w", err)
	}
	if err := os.Chmod(m.binary, 0o755); err != nil {
		return fmt.Errorf("pathenv: mark mise executable: %w", err)
	}
	return nil
}

// Install installs runtime@version through mise.
func (m *Mise) Install(ctx context.Context, runtimeName, version string) error {
	if err := m.EnsureInstalled(ctx); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, m.binary, "install", "--yes", "--", runtimeName+"@"+version)
	cmd.Env = m.env()
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pathenv: mise install %s@%s: %w: %s", runtimeName, version, err, bytes.TrimSpace(out))
	}
	return nil
}

// Where returns the install directory of runtime@version, per mise's
// "where" query. The runtime must already be installed.
func (m *Mise) Where(ctx context.Context, runtimeName, version string) (string, error) {
	if err := m.EnsureInstalled(ctx); err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, m.binary, "where", "--", runtimeName+"@"+version)
	cmd.Env = m.env()
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pathenv: mise where %s@%s: %w", runtimeName, version, err)
	}
	dir := strings.TrimSpace(string(out))
	if dir == "" {
		return "", fmt.Errorf("pathenv: mise where %s@%s: empty result", runtimeName, version)
	}
	return dir, nil
}

// env keeps the bundled mise isolated from any user-level mise setup.
func (m *Mise) env() []string {
	root := filepath.Dir(m.binary)
	return append(os.Environ(),
		"MISE_DATA_DIR="+filepath.Join(root, "data"),
		"MISE_CACHE_DIR="+filepath.Join(root, "cache"),
	)
}
