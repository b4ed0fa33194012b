// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listRemote int

var listCmd = &cobra.Command{
	Use:   "list [runtime]",
	Short: "List runtimes and installed versions",
	Long: `Without arguments, list every managed runtime with its active
version. With a runtime, list its installed versions and, with --remote,
the newest versions the upstream catalog offers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		if len(args) == 0 {
			for _, runtime := range app.registry.Runtimes() {
				inst, _ := app.registry.Get(runtime)
				current, ok := inst.Current()
				if !ok {
					current = SubtitleStyle.Render("(none)")
				}
				installed, err := inst.Installed()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s  %s\n",
					runtime, current, SubtitleStyle.Render(fmt.Sprintf("%d installed", len(installed))))
			}
			return nil
		}

		inst, runtime, err := app.installerFor(args[0])
		if err != nil {
			return err
		}

		installed, err := inst.Installed()
		if err != nil {
			return err
		}
		current, _ := inst.Current()

		fmt.Fprintln(cmd.OutOrStdout(), TitleStyle.Render(runtime))
		if len(installed) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("  no versions installed"))
		}
		for _, version := range installed {
			marker := "  "
			if version == current {
				marker = SuccessStyle.Render("* ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, version)
		}

		if listRemote > 0 {
			entries, err := inst.ListAvailable(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("available:"))
			for i, e := range entries {
				if i >= listRemote {
					break
				}
				label := e.Version
				if e.LTS {
					label += " (lts)"
				} else if e.Channel != "" {
					label += " (" + e.Channel + ")"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", label)
			}
		}
		return nil
	},
}

func init() {
	listCmd.Flags().IntVar(&listRemote, "remote", 0, "also list up to N versions from the upstream catalog")
}
