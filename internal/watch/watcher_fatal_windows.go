// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

// Win32 error codes fsnotify can surface from ReadDirectoryChangesW.
const (
	// ERROR_TOO_MANY_OPEN_FILES (4): per-process handle limit spent.
	errnoTooManyOpenFiles = syscall.Errno(4)
	// ERROR_INVALID_HANDLE (6): the watched directory was deleted or
	// unmounted under us.
	errnoInvalidHandle = syscall.Errno(6)
	// ERROR_NOT_ENOUGH_MEMORY (8): no room for the notification buffer.
	errnoNotEnoughMemory = syscall.Errno(8)
)

// isFatalFsnotifyError reports whether an fsnotify error means the watch
// session cannot continue and the task re-run loop must stop. Windows has no
// inotify-style watch limits, so only handle and memory exhaustion (and a
// vanished watch root) qualify.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, errnoTooManyOpenFiles) ||
		errors.Is(err, errnoInvalidHandle) ||
		errors.Is(err, errnoNotEnoughMemory)
}
