// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
)

const (
	// BackendNative installs and activates runtimes from upstream archives only.
	BackendNative Backend = "native"
	// BackendFallback delegates every runtime to the bundled fallback manager.
	BackendFallback Backend = "fallback"
	// BackendNativeThenFallback prefers native installs and consults the
	// fallback manager for runtimes without a native path.
	BackendNativeThenFallback Backend = "native-then-fallback"

	// DefaultConcurrency bounds parallel downloads and parallel task runs.
	DefaultConcurrency = 4

	// DefaultWatchDebounceMs coalesces filesystem events that arrive within
	// this window after a task run is triggered.
	DefaultWatchDebounceMs = 300
)

var (
	// ErrInvalidBackend is returned when a Backend value is not recognized.
	ErrInvalidBackend = errors.New("invalid backend")
	// ErrInvalidConcurrency is returned when the concurrency limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency")
	// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
	ErrInvalidWatchConfig = errors.New("invalid watch config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Backend selects how runtime binaries are located and installed.
	Backend string

	// InvalidBackendError is returned when a Backend value is not recognized.
	// It wraps ErrInvalidBackend for errors.Is() compatibility.
	InvalidBackendError struct {
		Value Backend
	}

	// WatchConfig configures watch-mode task execution.
	WatchConfig struct {
		// DebounceMs is the event-coalescing window in milliseconds.
		DebounceMs int `json:"debounce_ms" mapstructure:"debounce_ms"`
	}

	// InvalidWatchConfigError is returned when a WatchConfig has invalid fields.
	// It wraps ErrInvalidWatchConfig for errors.Is() compatibility.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// DataDir overrides the root of the version store. Empty means the
		// platform default data directory.
		DataDir string `json:"data_dir" mapstructure:"data_dir"`
		// Backend selects native installs, the fallback manager, or both.
		Backend Backend `json:"backend" mapstructure:"backend"`
		// Concurrency bounds parallel downloads and parallel task runs.
		Concurrency int `json:"concurrency" mapstructure:"concurrency"`
		// AutoConfirm answers install prompts without asking. Required for
		// unattended runs where no terminal is attached.
		AutoConfirm bool `json:"auto_confirm" mapstructure:"auto_confirm"`
		// Watch configures watch-mode task execution.
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
	}
)

// IsValid returns whether the Backend is a recognized value.
func (b Backend) IsValid() (bool, []error) {
	switch b {
	case BackendNative, BackendFallback, BackendNativeThenFallback:
		return true, nil
	default:
		return false, []error{&InvalidBackendError{Value: b}}
	}
}

// Error implements the error interface for InvalidBackendError.
func (e *InvalidBackendError) Error() string {
	return fmt.Sprintf("invalid backend %q (valid: %q, %q, %q)",
		e.Value, BackendNative, BackendFallback, BackendNativeThenFallback)
}

// Unwrap returns ErrInvalidBackend for errors.Is() compatibility.
func (e *InvalidBackendError) Unwrap() error { return ErrInvalidBackend }

// UsesNative reports whether native installs participate in PATH composition.
func (b Backend) UsesNative() bool {
	return b == BackendNative || b == BackendNativeThenFallback
}

// UsesFallback reports whether the fallback manager participates in PATH
// composition.
func (b Backend) UsesFallback() bool {
	return b == BackendFallback || b == BackendNativeThenFallback
}

// IsValid returns whether the WatchConfig has valid fields.
func (c WatchConfig) IsValid() (bool, []error) {
	var errs []error
	if c.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("debounce_ms must be >= 0, got %d", c.DebounceMs))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidWatchConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidWatchConfigError.
func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("invalid watch config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// IsValid returns whether the Config has valid fields.
// It delegates to Backend.IsValid() and Watch.IsValid() and checks the
// concurrency bound. DataDir and AutoConfirm need no validation.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Backend.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidConcurrency, c.Concurrency))
	}
	if valid, fieldErrs := c.Watch.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:     "", // Resolved via DataDir() when empty
		Backend:     BackendNativeThenFallback,
		Concurrency: DefaultConcurrency,
		AutoConfirm: false,
		Watch: WatchConfig{
			DebounceMs: DefaultWatchDebounceMs,
		},
	}
}
