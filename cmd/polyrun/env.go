// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"polyrun/internal/scanner"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print PATH additions for the current directory",
	Long: `Print the PATH additions polyrun would give tasks run from the
current directory, in shell-eval form:

  eval "$(polyrun env)"

Only runtimes that are already installed contribute; nothing is
installed by this command.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		dir, err := os.Getwd()
		if err != nil {
			return err
		}

		versions := make(map[string]string)
		for runtime, req := range scanner.New(scanner.WithLogger(app.logger)).Scan(dir) {
			version, err := app.registry.ResolveSpec(cmd.Context(), runtime, req.Spec)
			if err != nil {
				app.logger.Debug("skipping unresolvable requirement", "runtime", runtime, "spec", req.Spec, "err", err)
				continue
			}
			versions[runtime] = version
		}

		paths := app.composer.Compose(cmd.Context(), dir, versions)
		if len(paths) == 0 {
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "export PATH=%q\n",
			strings.Join(paths, string(os.PathListSeparator))+string(os.PathListSeparator)+"$PATH")
		return nil
	},
}
