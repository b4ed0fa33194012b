// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

func TestBackend_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		want    bool
	}{
		{"native", BackendNative, true},
		{"fallback", BackendFallback, true},
		{"native-then-fallback", BackendNativeThenFallback, true},
		{"empty", Backend(""), false},
		{"unknown", Backend("rustup"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, errs := tt.backend.IsValid()
			if valid != tt.want {
				t.Errorf("IsValid() = %v, want %v", valid, tt.want)
			}
			if !tt.want {
				if len(errs) != 1 {
					t.Fatalf("IsValid() errs = %v, want exactly one", errs)
				}
				if !errors.Is(errs[0], ErrInvalidBackend) {
					t.Errorf("errs[0] = %v, want ErrInvalidBackend", errs[0])
				}
			}
		})
	}
}

func TestBackend_Uses(t *testing.T) {
	if !BackendNative.UsesNative() || BackendNative.UsesFallback() {
		t.Error("native backend should use native only")
	}
	if BackendFallback.UsesNative() || !BackendFallback.UsesFallback() {
		t.Error("fallback backend should use fallback only")
	}
	if !BackendNativeThenFallback.UsesNative() || !BackendNativeThenFallback.UsesFallback() {
		t.Error("native-then-fallback should use both")
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		if valid, errs := DefaultConfig().IsValid(); !valid {
			t.Errorf("DefaultConfig().IsValid() = false: %v", errs)
		}
	})

	t.Run("zero concurrency rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Concurrency = 0
		valid, errs := cfg.IsValid()
		if valid {
			t.Fatal("IsValid() = true, want false")
		}
		if !errors.Is(errs[0], ErrInvalidConfig) {
			t.Errorf("errs[0] = %v, want to wrap ErrInvalidConfig", errs[0])
		}
	})

	t.Run("negative debounce rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Watch.DebounceMs = -1
		if valid, _ := cfg.IsValid(); valid {
			t.Error("IsValid() = true, want false for negative debounce")
		}
	})
}
