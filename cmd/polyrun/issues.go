// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"polyrun/internal/executor"
	"polyrun/internal/fetch"
	"polyrun/internal/installer"
	"polyrun/internal/issue"
	"polyrun/internal/platform"
)

// renderIssue prints the guidance catalog entry matching err to stderr, if
// the failure class has one.
func renderIssue(err error) {
	entry := issueFor(err)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render("dark")
	if renderErr != nil {
		return
	}
	fmt.Fprint(os.Stderr, rendered)
}

// issueFor maps an error chain to its catalog entry. Checksum and 404
// failures are matched before the generic network case so the more specific
// guidance wins.
func issueFor(err error) *issue.Issue {
	var archErr *platform.ErrUnsupportedArch
	var urlErr *url.Error
	switch {
	case errors.Is(err, fetch.ErrChecksumMismatch):
		return issue.Get(issue.ChecksumMismatchId)
	case errors.Is(err, fetch.ErrVersionNotFound):
		return issue.Get(issue.VersionNotFoundId)
	case errors.Is(err, installer.ErrNotInstalled):
		return issue.Get(issue.RuntimeNotInstalledId)
	case errors.Is(err, installer.ErrInstallInProgress):
		return issue.Get(issue.InstallInProgressId)
	case errors.As(err, &archErr):
		return issue.Get(issue.UnsupportedArchId)
	case errors.Is(err, executor.ErrInstallDeclined):
		return issue.Get(issue.InstallDeclinedId)
	case errors.Is(err, executor.ErrTaskNotFound):
		return issue.Get(issue.TaskNotFoundId)
	case errors.As(err, &urlErr):
		return issue.Get(issue.CatalogFetchFailedId)
	default:
		return nil
	}
}
