// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalFsnotifyError reports whether an fsnotify error means the watch
// session cannot continue and the task re-run loop must stop. On Linux these
// are the inotify exhaustion errnos: ENOSPC when fs.inotify.max_user_watches
// is spent, EMFILE and ENFILE when descriptors run out.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
