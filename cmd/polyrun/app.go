// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"polyrun/internal/config"
	"polyrun/internal/executor"
	"polyrun/internal/fetch"
	"polyrun/internal/installer"
	"polyrun/internal/issue"
	"polyrun/internal/pathenv"
	"polyrun/internal/scanner"
	"polyrun/internal/tui"
)

// app bundles the wired collaborators every command needs. Construction is
// per-invocation; there is no long-lived state beyond the filesystem store.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    *installer.Store
	registry *installer.Registry
	composer *pathenv.Composer
	mise     *pathenv.Mise
	executor *executor.Executor
}

// newApp loads configuration and wires the store, installers, PATH composer
// and executor. A broken config file degrades to defaults with a warning
// rather than blocking every command.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		if rendered, renderErr := issue.Get(issue.ConfigLoadFailedId).Render("dark"); renderErr == nil {
			fmt.Fprint(os.Stderr, rendered)
		}
		cfg = config.DefaultConfig()
	}

	logger := log.New(os.Stderr)
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	dataDir, err := config.DataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("determine data directory: %w", err)
	}

	fetcher := fetch.New(fetch.WithLogger(logger))
	store := installer.NewStore(dataDir)
	registry := installer.NewRegistry(store, fetcher,
		installer.WithLogger(logger),
		installer.WithConcurrency(cfg.Concurrency),
	)
	mise := pathenv.NewMise(dataDir, fetcher, logger)
	composer := pathenv.New(store, cfg.Backend,
		pathenv.WithFallback(mise),
		pathenv.WithLogger(logger),
	)
	prompter := tui.NewPrompter(tui.WithAutoConfirm(cfg.AutoConfirm))
	exec := executor.New(registry, composer, prompter, cfg,
		executor.WithFallback(mise),
		executor.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		composer: composer,
		mise:     mise,
		executor: exec,
	}, nil
}

// installerFor resolves a runtime argument to its installer, folding
// aliases like "nodejs" first.
func (a *app) installerFor(runtime string) (installer.Installer, string, error) {
	canonical := scanner.CanonicalRuntime(runtime)
	inst, ok := a.registry.Get(canonical)
	if !ok {
		return nil, "", fmt.Errorf("unknown runtime %q (managed: %v)", runtime, a.registry.Runtimes())
	}
	return inst, canonical, nil
}
