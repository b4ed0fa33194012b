// SPDX-License-Identifier: MPL-2.0

// Package platform maps the host OS and architecture onto the naming schemes
// used by upstream runtime distribution servers.
package platform

import (
	"fmt"
	"runtime"
)

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// ErrUnsupportedArch reports a host architecture no upstream publishes
// prebuilt archives for.
type ErrUnsupportedArch struct {
	Arch string
}

// Error implements the error interface.
func (e *ErrUnsupportedArch) Error() string {
	return fmt.Sprintf("platform: unsupported architecture %q", e.Arch)
}

// NodeArch returns the architecture label used by nodejs.org dist assets
// ("x64", "arm64").  Bun and mise releases use the same labels.
func NodeArch() (string, error) {
	switch runtime.GOARCH {
	case "amd64":
		return "x64", nil
	case "arm64":
		return "arm64", nil
	default:
		return "", &ErrUnsupportedArch{Arch: runtime.GOARCH}
	}
}

// GoArch returns the architecture label used by go.dev/dl assets
// ("amd64", "arm64").
func GoArch() (string, error) {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return runtime.GOARCH, nil
	default:
		return "", &ErrUnsupportedArch{Arch: runtime.GOARCH}
	}
}

// UnixArch returns the label used by python-build-standalone, ruby-builder
// and Adoptium ("x86_64", "aarch64").
func UnixArch() (string, error) {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64", nil
	case "arm64":
		return "aarch64", nil
	default:
		return "", &ErrUnsupportedArch{Arch: runtime.GOARCH}
	}
}

// RustTriple returns the host target triple used by static.rust-lang.org
// component archives.
func RustTriple() (string, error) {
	arch, err := UnixArch()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case Linux:
		return arch + "-unknown-linux-gnu", nil
	case Darwin:
		return arch + "-apple-darwin", nil
	default:
		return "", fmt.Errorf("platform: no rust target triple for %s", runtime.GOOS)
	}
}
