// SPDX-License-Identifier: MPL-2.0

// Package executor runs project tasks: exact lookup in the detected task
// table, a fixed runner fallback chain on miss, runtime ensure-installed
// checks before spawning, and watch/parallel execution modes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"mvdan.cc/sh/v3/shell"

	"polyrun/internal/config"
	"polyrun/internal/installer"
	"polyrun/internal/pathenv"
	"polyrun/internal/scanner"
	"polyrun/internal/task"
	"polyrun/internal/tui"
	"polyrun/internal/watch"
)

var (
	// ErrTaskNotFound is returned when a task name resolves to nothing,
	// including after the whole fallback chain.
	ErrTaskNotFound = errors.New("executor: task not found")

	// ErrInstallDeclined is returned when the user refuses to install a
	// required runtime. The task never runs with a missing runtime.
	ErrInstallDeclined = errors.New("executor: runtime install declined")
)

// ExitError carries a child process's non-zero exit status.
type ExitError struct {
	Task string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("executor: task %q exited with code %d", e.Task, e.Code)
}

type (
	// Invocation is one fully resolved command about to be spawned.
	Invocation struct {
		Task    string
		Command string
		Args    []string
		Dir     string
		Env     []string
		Source  string
	}

	// FallbackInstaller installs runtimes the native installers do not
	// manage.
	FallbackInstaller interface {
		Install(ctx context.Context, runtime, version string) error
	}

	// Executor wires detection, runtime installation and process spawning.
	Executor struct {
		detector *task.Detector
		scanner  *scanner.Scanner
		registry *installer.Registry
		composer *pathenv.Composer
		fallback FallbackInstaller
		prompter *tui.Prompter
		cfg      *config.Config
		logger   *log.Logger
		stdout   io.Writer
		stderr   io.Writer

		// spawn is the process-spawning seam; tests swap it out.
		spawn func(ctx context.Context, inv Invocation) error
	}

	// Option configures an Executor.
	Option func(*Executor)
)

// WithFallback sets the fallback manager used to install unmanaged
// runtimes.
func WithFallback(f FallbackInstaller) Option {
	return func(e *Executor) { e.fallback = f }
}

// WithLogger overrides the default discard logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithOutput redirects child process output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// withSpawner replaces the process spawner. Test seam.
func withSpawner(spawn func(ctx context.Context, inv Invocation) error) Option {
	return func(e *Executor) { e.spawn = spawn }
}

// New creates an Executor.
func New(registry *installer.Registry, composer *pathenv.Composer, prompter *tui.Prompter, cfg *config.Config, opts ...Option) *Executor {
	e := &Executor{
		detector: task.New(),
		scanner:  scanner.New(),
		registry: registry,
		composer: composer,
		prompter: prompter,
		cfg:      cfg,
		logger:   log.New(io.Discard),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.spawn == nil {
		e.spawn = e.execSpawn
	}
	return e
}

// Run executes the named task from dir, appending extraArgs to its argv.
// Runtimes the project requires are installed first (with consent); the
// child's non-zero exit surfaces as an ExitError.
func (e *Executor) Run(ctx context.Context, dir, name string, extraArgs []string) error {
	versions, err := e.ensureRuntimes(ctx, dir)
	if err != nil {
		return err
	}
	return e.runResolved(ctx, dir, name, extraArgs, versions)
}

// runResolved runs one task against an already-ensured runtime set.
func (e *Executor) runResolved(ctx context.Context, dir, name string, extraArgs []string, versions map[string]string) error {
	inv, err := e.resolveTask(dir, name)
	if err != nil {
		return err
	}
	inv.Args = append(inv.Args, extraArgs...)
	inv.Env = e.environment(ctx, dir, versions)

	e.logger.Debug("running task", "task", inv.Task, "command", inv.Command, "args", inv.Args, "source", inv.Source)
	return e.spawn(ctx, inv)
}

// resolveTask finds the command for name: exact lookup in the detected
// table, then the fixed fallback chain, finally the name itself as a
// literal shell command.
func (e *Executor) resolveTask(dir, name string) (Invocation, error) {
	inventory := e.detector.Detect(dir)

	if t, ok := inventory.Lookup(name); ok {
		return Invocation{
			Task:    name,
			Command: t.Command,
			Args:    append([]string(nil), t.Args...),
			Dir:     dir,
			Source:  t.Source,
		}, nil
	}

	// Each runner is tried only if its manifest exists; the order is fixed.
	fallbacks := []struct {
		manifests []string
		command   string
		args      []string
	}{
		{[]string{"Makefile"}, "make", []string{name}},
		{[]string{"package.json"}, inventory.PackageManager, []string{"run", name}},
		{[]string{"Taskfile.yml", "Taskfile.yaml"}, "task", []string{name}},
		{[]string{"Rakefile"}, "rake", []string{name}},
		{[]string{"Pipfile"}, "pipenv", []string{"run", name}},
		{[]string{"deno.json", "deno.jsonc"}, "deno", []string{"task", name}},
		{[]string{"composer.json"}, "composer", []string{"run-script", name}},
	}
	for _, fb := range fallbacks {
		for _, manifest := range fb.manifests {
			if inventory.HasManifest(manifest) {
				return Invocation{
					Task:    name,
					Command: fb.command,
					Args:    append([]string(nil), fb.args...),
					Dir:     dir,
					Source:  manifest,
				}, nil
			}
		}
	}

	// Last resort: the name itself is a command line.
	fields, err := shell.Fields(name, nil)
	if err != nil || len(fields) == 0 {
		return Invocation{}, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	return Invocation{
		Task:    name,
		Command: fields[0],
		Args:    fields[1:],
		Dir:     dir,
	}, nil
}

// RunParallel runs a comma-separated task list concurrently. Every task
// runs to completion regardless of sibling failures; the aggregate error
// names each failed task.
func (e *Executor) RunParallel(ctx context.Context, dir, list string, extraArgs []string) error {
	names := splitTaskList(list)
	if len(names) == 0 {
		return fmt.Errorf("%w: empty task list", ErrTaskNotFound)
	}
	if len(names) == 1 {
		return e.Run(ctx, dir, names[0], extraArgs)
	}

	versions, err := e.ensureRuntimes(ctx, dir)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	// A bare errgroup has no shared cancellation: one task's failure never
	// interrupts its siblings.
	var g errgroup.Group
	if n := e.cfg.Concurrency; n > 0 {
		g.SetLimit(n)
	}
	for _, name := range names {
		g.Go(func() error {
			if err := e.runResolved(ctx, dir, name, extraArgs, versions); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("task %q: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // individual errors are aggregated above

	return errors.Join(errs...)
}

// Watch re-runs the task on filesystem changes under the candidate source
// directories, debounced, until ctx is cancelled.
func (e *Executor) Watch(ctx context.Context, dir, name string, extraArgs []string) error {
	versions, err := e.ensureRuntimes(ctx, dir)
	if err != nil {
		return err
	}

	// First run happens immediately; failures are reported but keep the
	// watch alive, matching the edit-rerun loop users expect.
	if err := e.runResolved(ctx, dir, name, extraArgs, versions); err != nil {
		fmt.Fprintf(e.stderr, "polyrun: %v\n", err)
	}

	w, err := watch.New(watch.Config{
		BaseDir:  dir,
		Dirs:     watch.CandidateSourceDirs,
		Debounce: time.Duration(e.cfg.Watch.DebounceMs) * time.Millisecond,
		Stdout:   e.stdout,
		Stderr:   e.stderr,
		OnChange: func(ctx context.Context, changed []string) error {
			e.logger.Debug("change detected", "files", len(changed))
			if err := e.runResolved(ctx, dir, name, extraArgs, versions); err != nil {
				fmt.Fprintf(e.stderr, "polyrun: %v\n", err)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// ensureRuntimes resolves the project's runtime requirements and installs
// anything missing, asking for consent first. It returns the resolved
// runtime→version map for PATH composition.
func (e *Executor) ensureRuntimes(ctx context.Context, dir string) (map[string]string, error) {
	requirements := e.scanner.Scan(dir)
	versions := make(map[string]string, len(requirements))

	for runtime, req := range requirements {
		inst, managed := e.registry.Get(runtime)
		if !managed {
			if e.cfg.Backend.UsesFallback() && e.fallback != nil {
				if err := e.ensureFallback(ctx, runtime, req.Spec); err != nil {
					return nil, err
				}
				versions[runtime] = req.Spec
			}
			continue
		}

		version, err := e.registry.ResolveSpec(ctx, runtime, req.Spec)
		if err != nil {
			return nil, fmt.Errorf("executor: resolve %s requirement %q: %w", runtime, req.Spec, err)
		}
		versions[runtime] = version

		if e.registry.Store().IsInstalled(runtime, version) {
			continue
		}
		if err := e.confirmInstall(runtime, version, req.Source); err != nil {
			return nil, err
		}
		if err := inst.Install(ctx, version); err != nil {
			return nil, fmt.Errorf("executor: install %s %s: %w", runtime, version, err)
		}
	}
	return versions, nil
}

func (e *Executor) ensureFallback(ctx context.Context, runtime, spec string) error {
	if err := e.confirmInstall(runtime, spec, ""); err != nil {
		return err
	}
	if err := e.fallback.Install(ctx, runtime, spec); err != nil {
		return fmt.Errorf("executor: install %s %s via fallback: %w", runtime, spec, err)
	}
	return nil
}

// confirmInstall asks for consent before installing. Declining, or running
// without a terminal and without auto-confirm, aborts the task.
func (e *Executor) confirmInstall(runtime, version, source string) error {
	question := fmt.Sprintf("Install %s %s?", runtime, version)
	if source != "" {
		question = fmt.Sprintf("Install %s %s (required by %s)?", runtime, version, source)
	}
	if err := e.prompter.Confirm(question, true); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInstallDeclined, runtime, version, err)
	}
	return nil
}

// environment builds the child environment: composed runtime paths prepended
// to PATH, VIRTUAL_ENV exported and PYTHONHOME cleared when a project
// virtualenv is active.
func (e *Executor) environment(ctx context.Context, dir string, versions map[string]string) []string {
	paths := e.composer.Compose(ctx, dir, versions)

	env := os.Environ()
	if venv, ok := pathenv.VenvDir(dir); ok {
		env = setEnv(env, "VIRTUAL_ENV", venv)
		env = unsetEnv(env, "PYTHONHOME")
	}
	if len(paths) > 0 {
		path := strings.Join(paths, string(os.PathListSeparator))
		if inherited := os.Getenv("PATH"); inherited != "" {
			path += string(os.PathListSeparator) + inherited
		}
		env = setEnv(env, "PATH", path)
	}
	return env
}

// execSpawn is the real process spawner.
func (e *Executor) execSpawn(ctx context.Context, inv Invocation) error {
	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Task: inv.Task, Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("executor: run task %q: %w", inv.Task, err)
}

func splitTaskList(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

func unsetEnv(env []string, key string) []string {
	prefix := key + "="
	out := env[:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return out
}
