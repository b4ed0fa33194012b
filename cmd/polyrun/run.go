// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var runWatch bool

var runCmd = &cobra.Command{
	Use:   "run <task> [-- args...]",
	Short: "Run a project task",
	Long: `Run a task from the current directory's manifests. Runtimes the
project declares are installed first (with consent).

The task is looked up in every detected manifest; unknown names fall
through a fixed runner chain (make, npm run, task, rake, pipenv run,
deno task, composer run-script) and finally run as a literal command.

A comma-separated list ("lint,test") runs the tasks concurrently; the
overall result fails if any task fails. --watch re-runs the task when
source files change.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		dir, err := os.Getwd()
		if err != nil {
			return err
		}

		name := args[0]
		extra := args[1:]

		if runWatch {
			return app.executor.Watch(cmd.Context(), dir, name, extra)
		}
		if strings.Contains(name, ",") {
			return app.executor.RunParallel(cmd.Context(), dir, name, extra)
		}
		return app.executor.Run(cmd.Context(), dir, name, extra)
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "re-run the task when source files change")
	// Everything after -- belongs to the task, not to polyrun.
	runCmd.Flags().SetInterspersed(false)
}
