// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"polyrun/internal/resolve"
)

var installCmd = &cobra.Command{
	Use:   "install <runtime> <version>",
	Short: "Install a runtime version",
	Long: `Install a runtime version into the managed store and activate it.

The version can be an exact version, a range, or an alias like "latest"
or "lts" (runtimes that have one). Rust accepts channels ("stable",
"nightly-2024-05-02").`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		inst, runtime, err := app.installerFor(args[0])
		if err != nil {
			return err
		}

		version, err := app.registry.ResolveSpec(cmd.Context(), runtime, args[1])
		if err != nil {
			return err
		}
		if err := inst.Install(cmd.Context(), version); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓")+fmt.Sprintf(" %s %s installed and active", runtime, version))
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <runtime> <version>",
	Short: "Remove an installed runtime version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		inst, runtime, err := app.installerFor(args[0])
		if err != nil {
			return err
		}

		if err := inst.Uninstall(args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s removed\n", runtime, args[1])
		return nil
	},
}

var useCmd = &cobra.Command{
	Use:   "use <runtime> <version>",
	Short: "Switch the active version of a runtime",
	Long: `Switch the active version of a runtime by repointing its current
symlink. The version must already be installed; ranges and bare majors
are matched against the installed set.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		inst, runtime, err := app.installerFor(args[0])
		if err != nil {
			return err
		}

		installed, err := inst.Installed()
		if err != nil {
			return err
		}
		version, err := resolve.Match(args[1], installed)
		if err != nil {
			return fmt.Errorf("no installed %s version matches %q (installed: %v)", runtime, args[1], installed)
		}
		if err := inst.Use(version); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓")+fmt.Sprintf(" %s now at %s", runtime, version))
		return nil
	},
}
