// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"fmt"
	"syscall"
	"testing"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"inotify watches exhausted", syscall.ENOSPC, true},
		{"process descriptors exhausted", syscall.EMFILE, true},
		{"system descriptors exhausted", syscall.ENFILE, true},
		{"wrapped exhaustion", fmt.Errorf("fsnotify: %w", syscall.ENOSPC), true},
		{"permission denied keeps watching", syscall.EACCES, false},
		{"operation not permitted keeps watching", syscall.EPERM, false},
		{"plain error keeps watching", fmt.Errorf("transient hiccup"), false},
	}
	for _, tt := range tests {
		if got := isFatalFsnotifyError(tt.err); got != tt.want {
			t.Errorf("%s: isFatalFsnotifyError(%v) = %v; want %v", tt.name, tt.err, got, tt.want)
		}
	}
}
