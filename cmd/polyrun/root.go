// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"polyrun/internal/executor"
	"polyrun/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output.
	verbose bool
	// cfgFile allows specifying a custom config file.
	cfgFile string

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "polyrun",
		Short: "Per-project runtime versions and task running",
		Long: TitleStyle.Render("polyrun") + SubtitleStyle.Render(" - per-project runtime versions and task running") + `

polyrun reads the version files your projects already have (.nvmrc,
.python-version, go.mod, rust-toolchain.toml, .tool-versions, ...),
installs the declared runtime versions on demand, and runs project
tasks from whatever manifest defines them (package.json scripts,
Makefile targets, cargo verbs, and more).

` + SubtitleStyle.Render("Examples:") + `
  polyrun run build           Run the 'build' task with the right runtimes
  polyrun run test --watch    Re-run tests on file changes
  polyrun install node lts    Install the current Node.js LTS
  polyrun use go 1.22.1       Switch the active Go version
  polyrun env                 Print PATH additions for this directory`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/polyrun/config.cue)")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(useCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(upgradeCmd)
}

// versionString returns a formatted version string for display.
func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command through fang and maps task exit codes onto
// the process exit status.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *executor.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		renderIssue(err)
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// render their suggestions; verbose mode shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
