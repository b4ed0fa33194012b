// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/polyrun/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/polyrun/config.cue on macOS, %APPDATA%\polyrun\config.cue
// on Windows). The package provides type-safe configuration access: the version-store
// location, the backend preference for locating runtime binaries, download/task
// concurrency, unattended-install consent, and watch-mode debouncing.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations. Environment
// variables prefixed POLYRUN_ override file values.
package config
