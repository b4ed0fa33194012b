// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"runtime"
	"strings"
	"testing"
)

func TestNodeArch(t *testing.T) {
	t.Parallel()

	arch, err := NodeArch()
	switch runtime.GOARCH {
	case "amd64":
		if err != nil {
			t.Fatalf("NodeArch() error = %v", err)
		}
		if arch != "x64" {
			t.Errorf("NodeArch() = %q, want %q", arch, "x64")
		}
	case "arm64":
		if err != nil {
			t.Fatalf("NodeArch() error = %v", err)
		}
		if arch != "arm64" {
			t.Errorf("NodeArch() = %q, want %q", arch, "arm64")
		}
	default:
		if err == nil {
			t.Errorf("NodeArch() = %q, want unsupported-architecture error", arch)
		}
	}
}

func TestUnixArch(t *testing.T) {
	t.Parallel()

	arch, err := UnixArch()
	switch runtime.GOARCH {
	case "amd64":
		if err != nil || arch != "x86_64" {
			t.Errorf("UnixArch() = %q, %v, want %q, nil", arch, err, "x86_64")
		}
	case "arm64":
		if err != nil || arch != "aarch64" {
			t.Errorf("UnixArch() = %q, %v, want %q, nil", arch, err, "aarch64")
		}
	default:
		if err == nil {
			t.Errorf("UnixArch() = %q, want unsupported-architecture error", arch)
		}
	}
}

func TestRustTriple(t *testing.T) {
	t.Parallel()

	triple, err := RustTriple()
	if runtime.GOOS != Linux && runtime.GOOS != Darwin {
		if err == nil {
			t.Fatalf("RustTriple() = %q, want error on %s", triple, runtime.GOOS)
		}
		return
	}
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		if err == nil {
			t.Fatalf("RustTriple() = %q, want unsupported-architecture error", triple)
		}
		return
	}
	if err != nil {
		t.Fatalf("RustTriple() error = %v", err)
	}
	if !strings.Contains(triple, "-") {
		t.Errorf("RustTriple() = %q, want a full target triple", triple)
	}
}

func TestErrUnsupportedArchMessage(t *testing.T) {
	t.Parallel()

	err := &ErrUnsupportedArch{Arch: "mips"}
	if got := err.Error(); !strings.Contains(got, "mips") {
		t.Errorf("Error() = %q, want it to name the architecture", got)
	}
}
