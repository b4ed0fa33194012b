// SPDX-License-Identifier: MPL-2.0

// Package task discovers runnable tasks from the project manifests in a
// working directory: JS package scripts, Deno tasks, Composer scripts,
// Cargo and Maven/Gradle verbs, Makefile targets, Poetry and Pipfile
// scripts, plus Taskfile/Rakefile presence for runner delegation.
package task

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slices"
)

type (
	// Task is one named runnable action sourced from a project manifest.
	Task struct {
		// Name is the invocable task name.
		Name string
		// Command and Args form the argv that runs the task.
		Command string
		Args    []string
		// Source is the manifest file the task came from.
		Source string
		// Raw is the manifest's own command text, where the manifest
		// records one (package scripts, Deno tasks, Pipfile scripts).
		Raw string
	}

	// Inventory is the result of scanning one directory: the discovered
	// tasks plus which manifests exist, for the executor's fallback chain.
	Inventory struct {
		Dir            string
		Tasks          []Task
		PackageManager string

		manifests map[string]bool
	}

	// Detector scans a working directory for tasks. Scanning is not
	// recursive; only the immediate directory counts.
	Detector struct {
		logger *log.Logger
	}

	// Option configures a Detector.
	Option func(*Detector)
)

// WithLogger overrides the default discard logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// cargoVerbs and the build-tool verb lists are fixed: these ecosystems have
// well-known entry points rather than per-project task tables.
var (
	cargoVerbs  = []string{"build", "check", "clean", "doc", "run", "test", "bench", "update"}
	mavenVerbs  = []string{"validate", "compile", "test", "package", "verify", "install", "clean", "deploy"}
	gradleVerbs = []string{"build", "assemble", "check", "test", "clean", "run"}
)

// manifestFiles are the files whose presence the executor's fallback chain
// cares about, beyond the parsed task sources.
var manifestFiles = []string{
	"package.json", "deno.json", "deno.jsonc", "composer.json", "Cargo.toml",
	"Makefile", "Taskfile.yml", "Taskfile.yaml", "Rakefile",
	"pyproject.toml", "Pipfile", "pom.xml", "build.gradle", "build.gradle.kts",
}

// Detect scans dir for tasks. Unreadable or malformed manifests contribute
// nothing; detection never fails on bad project files.
func (d *Detector) Detect(dir string) *Inventory {
	inv := &Inventory{
		Dir:       dir,
		manifests: make(map[string]bool),
	}
	for _, name := range manifestFiles {
		if fileExists(filepath.Join(dir, name)) {
			inv.manifests[name] = true
		}
	}

	if inv.manifests["package.json"] {
		inv.PackageManager = SelectPackageManager(dir)
		d.packageScripts(inv)
	}
	for _, name := range []string{"deno.json", "deno.jsonc"} {
		if inv.manifests[name] {
			d.denoTasks(inv, name)
			break
		}
	}
	if inv.manifests["composer.json"] {
		d.composerScripts(inv)
	}
	if inv.manifests["Cargo.toml"] {
		verbTasks(inv, "Cargo.toml", "cargo", cargoVerbs)
	}
	if inv.manifests["Makefile"] {
		d.makeTargets(inv)
	}
	if inv.manifests["pyproject.toml"] {
		d.poetryScripts(inv)
	}
	if inv.manifests["Pipfile"] {
		d.pipfileScripts(inv)
	}
	if inv.manifests["pom.xml"] {
		verbTasks(inv, "pom.xml", "mvn", mavenVerbs)
	}
	if inv.manifests["build.gradle"] || inv.manifests["build.gradle.kts"] {
		d.gradleVerbs(inv)
	}

	return inv
}

// Lookup finds a task by exact name. Earlier manifests win on collisions,
// matching the scan order above.
func (inv *Inventory) Lookup(name string) (Task, bool) {
	for _, t := range inv.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}

// HasManifest reports whether a manifest file exists in the scanned
// directory.
func (inv *Inventory) HasManifest(name string) bool {
	return inv.manifests[name]
}

// SelectPackageManager picks the JS package manager for dir: the explicit
// packageManager field wins, then lockfile sniffing, then npm.
func SelectPackageManager(dir string) string {
	if pm := packageManagerField(dir); pm != "" {
		return pm
	}
	lockfiles := []struct {
		file string
		pm   string
	}{
		{"bun.lockb", "bun"},
		{"bun.lock", "bun"},
		{"pnpm-lock.yaml", "pnpm"},
		{"yarn.lock", "yarn"},
		{"package-lock.json", "npm"},
	}
	for _, lf := range lockfiles {
		if fileExists(filepath.Join(dir, lf.file)) {
			return lf.pm
		}
	}
	return "npm"
}

func packageManagerField(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		PackageManager string `json:"packageManager"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	// The field pins "name@version"; only the name matters here.
	name := pkg.PackageManager
	for i, r := range name {
		if r == '@' {
			return name[:i]
		}
	}
	return name
}

func (d *Detector) packageScripts(inv *Inventory) {
	data, err := os.ReadFile(filepath.Join(inv.Dir, "package.json"))
	if err != nil {
		return
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		d.logger.Debug("skipping unparseable package.json", "dir", inv.Dir, "err", err)
		return
	}

	for _, name := range sortedNames(pkg.Scripts) {
		inv.Tasks = append(inv.Tasks, Task{
			Name:    name,
			Command: inv.PackageManager,
			Args:    scriptArgs(inv.PackageManager, name),
			Source:  "package.json",
			Raw:     pkg.Scripts[name],
		})
	}
}

// scriptArgs builds the "run this script" argv for a package manager.
// yarn takes script names directly; the others need the run subcommand.
func scriptArgs(pm, script string) []string {
	if pm == "yarn" {
		return []string{script}
	}
	return []string{"run", script}
}

func (d *Detector) denoTasks(inv *Inventory, file string) {
	data, err := os.ReadFile(filepath.Join(inv.Dir, file))
	if err != nil {
		return
	}
	var cfg struct {
		Tasks map[string]string `json:"tasks"`
	}
	// deno.jsonc with comments simply fails the strict parse and is
	// skipped; the runner fallback still covers it.
	if err := json.Unmarshal(data, &cfg); err != nil {
		d.logger.Debug("skipping unparseable deno config", "file", file, "err", err)
		return
	}

	for _, name := range sortedNames(cfg.Tasks) {
		inv.Tasks = append(inv.Tasks, Task{
			Name:    name,
			Command: "deno",
			Args:    []string{"task", name},
			Source:  file,
			Raw:     cfg.Tasks[name],
		})
	}
}

func (d *Detector) composerScripts(inv *Inventory) {
	data, err := os.ReadFile(filepath.Join(inv.Dir, "composer.json"))
	if err != nil {
		return
	}
	var cfg struct {
		Scripts map[string]json.RawMessage `json:"scripts"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		d.logger.Debug("skipping unparseable composer.json", "err", err)
		return
	}

	for _, name := range sortedNames(cfg.Scripts) {
		// Script bodies can be strings or arrays; execution always goes
		// through composer itself.
		inv.Tasks = append(inv.Tasks, Task{
			Name:    name,
			Command: "composer",
			Args:    []string{"run-script", name},
			Source:  "composer.json",
		})
	}
}

func (d *Detector) poetryScripts(inv *Inventory) {
	data, err := os.ReadFile(filepath.Join(inv.Dir, "pyproject.toml"))
	if err != nil {
		return
	}
	var cfg struct {
		Tool struct {
			Poetry struct {
				Scripts map[string]string `toml:"scripts"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		d.logger.Debug("skipping unparseable pyproject.toml", "err", err)
		return
	}

	for _, name := range sortedNames(cfg.Tool.Poetry.Scripts) {
		inv.Tasks = append(inv.Tasks, Task{
			Name:    name,
			Command: "poetry",
			Args:    []string{"run", name},
			Source:  "pyproject.toml",
			Raw:     cfg.Tool.Poetry.Scripts[name],
		})
	}
}

func (d *Detector) pipfileScripts(inv *Inventory) {
	data, err := os.ReadFile(filepath.Join(inv.Dir, "Pipfile"))
	if err != nil {
		return
	}
	var cfg struct {
		Scripts map[string]string `toml:"scripts"`
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		d.logger.Debug("skipping unparseable Pipfile", "err", err)
		return
	}

	for _, name := range sortedNames(cfg.Scripts) {
		inv.Tasks = append(inv.Tasks, Task{
			Name:    name,
			Command: "pipenv",
			Args:    []string{"run", name},
			Source:  "Pipfile",
			Raw:     cfg.Scripts[name],
		})
	}
}

func (d *Detector) gradleVerbs(inv *Inventory) {
	command := "gradle"
	if fileExists(filepath.Join(inv.Dir, "gradlew")) {
		command = "./gradlew"
	}
	source := "build.gradle"
	if !inv.manifests[source] {
		source = "build.gradle.kts"
	}
	verbTasks(inv, source, command, gradleVerbs)
}

func verbTasks(inv *Inventory, source, command string, verbs []string) {
	for _, verb := range verbs {
		if _, exists := inv.Lookup(verb); exists {
			continue
		}
		inv.Tasks = append(inv.Tasks, Task{
			Name:    verb,
			Command: command,
			Args:    []string{verb},
			Source:  source,
		})
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
