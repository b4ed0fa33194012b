// SPDX-License-Identifier: MPL-2.0

// Package scanner discovers runtime version requirements by walking a
// project's ancestor directories and parsing the version-file formats each
// language ecosystem conventionally uses.
//
// The closest file wins per runtime: once a directory has produced a
// requirement for a runtime, files in ancestor directories cannot override
// it. Unreadable or malformed files are treated as absent, never as errors,
// so environment detection degrades gracefully.
package scanner

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// Requirement is one runtime version demand discovered in a version file.
type Requirement struct {
	// Runtime is the canonical runtime name ("node", not "nodejs").
	Runtime string
	// Spec is the raw requirement string: exact version, range, or alias.
	Spec string
	// Source is the version file the requirement came from.
	Source string
}

// Scanner walks directories for version files.
type Scanner struct {
	logger *log.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger overrides the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runtimeAliases folds ecosystem spellings onto canonical runtime names.
var runtimeAliases = map[string]string{
	"nodejs":  "node",
	"node-js": "node",
	"golang":  "go",
	"python3": "python",
	"cpython": "python",
	"openjdk": "java",
	"jdk":     "java",
}

// CanonicalRuntime folds an alias onto the canonical runtime name.
func CanonicalRuntime(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := runtimeAliases[name]; ok {
		return canonical
	}
	return name
}

// versionFile binds a filename to its parser. Order is precedence within a
// single directory: the first file to yield a requirement for a runtime
// wins, so .node-version outranks .nvmrc and both outrank package.json.
type versionFile struct {
	name  string
	parse func(s *Scanner, path string) []Requirement
}

var versionFiles = []versionFile{
	{".node-version", singleVersion("node")},
	{".nvmrc", singleVersion("node")},
	{".python-version", singleVersion("python")},
	{".ruby-version", singleVersion("ruby")},
	{".go-version", singleVersion("go")},
	{".java-version", singleVersion("java")},
	{".bun-version", singleVersion("bun")},
	{"rust-toolchain.toml", (*Scanner).parseRustToolchainTOML},
	{"rust-toolchain", (*Scanner).parseRustToolchainPlain},
	{"go.mod", (*Scanner).parseGoMod},
	{"package.json", (*Scanner).parsePackageJSON},
	{".tool-versions", (*Scanner).parseToolVersions},
	{".mise.local.toml", (*Scanner).parseMiseTOML},
	{".mise.toml", (*Scanner).parseMiseTOML},
	{"mise.toml", (*Scanner).parseMiseTOML},
}

// Scan walks from dir toward the filesystem root and returns the closest
// requirement per canonical runtime name.
func (s *Scanner) Scan(dir string) map[string]Requirement {
	found := make(map[string]Requirement)

	current, err := filepath.Abs(dir)
	if err != nil {
		s.logger.Debug("scan: cannot absolutize start directory", "dir", dir, "err", err)
		return found
	}

	for {
		for _, vf := range versionFiles {
			path := filepath.Join(current, vf.name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			for _, req := range vf.parse(s, path) {
				if _, taken := found[req.Runtime]; taken {
					continue
				}
				found[req.Runtime] = req
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return found
}

// singleVersion parses whole-file version pins like .nvmrc: the trimmed
// first line is the requirement.
func singleVersion(runtime string) func(*Scanner, string) []Requirement {
	return func(s *Scanner, path string) []Requirement {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		line := firstLine(string(data))
		if line == "" {
			return nil
		}
		return []Requirement{{
			Runtime: runtime,
			Spec:    strings.TrimPrefix(line, "v"),
			Source:  path,
		}}
	}
}

func (s *Scanner) parseGoMod(path string) []Requirement {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if version, ok := strings.CutPrefix(line, "go "); ok {
			version = strings.TrimSpace(version)
			if version == "" {
				return nil
			}
			return []Requirement{{Runtime: "go", Spec: version, Source: path}}
		}
	}
	return nil
}

func (s *Scanner) parseRustToolchainPlain(path string) []Requirement {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	channel := firstLine(string(data))
	if channel == "" {
		return nil
	}
	return []Requirement{{Runtime: "rust", Spec: channel, Source: path}}
}

func (s *Scanner) parseRustToolchainTOML(path string) []Requirement {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var doc struct {
		Toolchain struct {
			Channel string `toml:"channel"`
		} `toml:"toolchain"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		s.logger.Debug("scan: malformed rust-toolchain.toml", "path", path, "err", err)
		return nil
	}
	if doc.Toolchain.Channel == "" {
		return nil
	}
	return []Requirement{{Runtime: "rust", Spec: doc.Toolchain.Channel, Source: path}}
}

// packageJSON is the subset of package.json this scanner reads.
type packageJSON struct {
	Engines        map[string]string `json:"engines"`
	Volta          map[string]string `json:"volta"`
	PackageManager string            `json:"packageManager"`
}

func (s *Scanner) parsePackageJSON(path string) []Requirement {
	pkg, err := readPackageJSON(path)
	if err != nil {
		s.logger.Debug("scan: malformed package.json", "path", path, "err", err)
		return nil
	}

	var reqs []Requirement
	for _, runtime := range []string{"node", "bun"} {
		// engines takes precedence over volta when both pin the runtime.
		spec := pkg.Engines[runtime]
		if spec == "" {
			spec = pkg.Volta[runtime]
		}
		if spec == "" {
			continue
		}
		reqs = append(reqs, Requirement{Runtime: runtime, Spec: spec, Source: path})
	}
	return reqs
}

// PackageManager reads the packageManager field ("pnpm@9.1.0" or "yarn")
// from dir's package.json. Empty when absent or unreadable.
func PackageManager(dir string) string {
	pkg, err := readPackageJSON(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	name, _, _ := strings.Cut(pkg.PackageManager, "@")
	return strings.TrimSpace(name)
}

func readPackageJSON(path string) (*packageJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (s *Scanner) parseToolVersions(path string) []Requirement {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var reqs []Requirement
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		reqs = append(reqs, Requirement{
			Runtime: CanonicalRuntime(fields[0]),
			Spec:    fields[1],
			Source:  path,
		})
	}
	return reqs
}

func (s *Scanner) parseMiseTOML(path string) []Requirement {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var doc struct {
		Tools map[string]any `toml:"tools"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		s.logger.Debug("scan: malformed mise config", "path", path, "err", err)
		return nil
	}

	var reqs []Requirement
	for name, raw := range doc.Tools {
		spec := miseToolSpec(raw)
		if spec == "" {
			continue
		}
		// Runtimes without a native installer pass through for the
		// fallback backend; the name is still alias-folded.
		reqs = append(reqs, Requirement{
			Runtime: CanonicalRuntime(name),
			Spec:    spec,
			Source:  path,
		})
	}
	return reqs
}

// miseToolSpec unwraps the three shapes a [tools] value can take: a bare
// string, an array (first element used), or a table with a version key.
func miseToolSpec(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}
		s, _ := v[0].(string)
		return s
	case map[string]any:
		s, _ := v["version"].(string)
		return s
	default:
		return ""
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
