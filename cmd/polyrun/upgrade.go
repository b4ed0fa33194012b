// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"polyrun/internal/fetch"
	"polyrun/internal/selfupdate"
	"polyrun/internal/tui"
)

var upgradeCheckOnly bool

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade polyrun to the latest release",
	Long: `Check GitHub for a newer polyrun release and replace the running
binary with it. Installations owned by a package manager (Homebrew,
go install) are left alone; upgrade through that manager instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(os.Stderr)
		if verbose {
			logger.SetLevel(log.DebugLevel)
		}

		updater := selfupdate.New(Version, fetch.New(fetch.WithLogger(logger)), logger)
		check, err := updater.CheckLatest(cmd.Context())
		if err != nil {
			return err
		}
		if !check.Available {
			if check.LatestVersion == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "development build; upgrade from a released binary")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓")+" already up to date ("+check.CurrentVersion+")")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "new version available: %s (current %s)\n",
			check.LatestVersion, check.CurrentVersion)
		if upgradeCheckOnly {
			return nil
		}

		prompter := tui.NewPrompter()
		if err := prompter.Confirm(fmt.Sprintf("Upgrade to %s?", check.LatestVersion), true); err != nil {
			return err
		}

		if err := updater.Apply(cmd.Context(), check); err != nil {
			if errors.Is(err, selfupdate.ErrManagedInstall) {
				return fmt.Errorf("%w; upgrade via your package manager", err)
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓")+" upgraded to "+check.LatestVersion)
		return nil
	},
}

func init() {
	upgradeCmd.Flags().BoolVar(&upgradeCheckOnly, "check", false, "only check for a new version, do not install")
}
