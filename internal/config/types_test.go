// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestPlatform_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value Platform
		want  bool
	}{
		{"", true},
		{"ios", true},
		{"android", true},
		{"vr-headset_2", true},
		{"iOS", false},
		{"2d", false},
		{"web app", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()
			ok, errs := tt.value.IsValid()
			if ok != tt.want {
				t.Fatalf("IsValid() = %v, want %v", ok, tt.want)
			}
			if !ok && !errors.Is(errs[0], ErrInvalidPlatform) {
				t.Errorf("expected ErrInvalidPlatform, got %v", errs[0])
			}
		})
	}
}

func TestDebounce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value Debounce
		want  time.Duration
		valid bool
	}{
		{"100ms", 100 * time.Millisecond, true},
		{"1.5s", 1500 * time.Millisecond, true},
		{"0s", 0, false},
		{"-1s", -time.Second, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()
			ok, errs := tt.value.IsValid()
			if ok != tt.valid {
				t.Errorf("IsValid() = %v, want %v", ok, tt.valid)
			}
			if !ok && !errors.Is(errs[0], ErrInvalidDebounce) {
				t.Errorf("expected ErrInvalidDebounce, got %v", errs[0])
			}
			if got := tt.value.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value LogLevel
		level log.Level
		valid bool
	}{
		{LogLevelDebug, log.DebugLevel, true},
		{LogLevelInfo, log.InfoLevel, true},
		{LogLevelWarn, log.WarnLevel, true},
		{LogLevelError, log.ErrorLevel, true},
		{"trace", log.InfoLevel, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()
			if ok, _ := tt.value.IsValid(); ok != tt.valid {
				t.Errorf("IsValid() = %v, want %v", ok, tt.valid)
			}
			if got := tt.value.Level(); got != tt.level {
				t.Errorf("Level() = %v, want %v", got, tt.level)
			}
		})
	}
}

func TestCacheDirPath(t *testing.T) {
	t.Parallel()

	if ok, errs := CacheDirPath("  ").IsValid(); ok || !errors.Is(errs[0], ErrInvalidCacheDir) {
		t.Errorf("blank dir should be invalid, got %v %v", ok, errs)
	}
	dir, err := CacheDirPath("").Resolve()
	if err != nil {
		t.Skipf("no user cache directory: %v", err)
	}
	if dir == "" {
		t.Error("Resolve() returned an empty path")
	}
}

func TestConfig_ValidateCollectsEveryField(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Platform = "Bad"
	cfg.Watch.Debounce = "x"
	cfg.Log.Level = "loud"
	cfg.Workers = -2
	cfg.EntryPoints = nil

	err := cfg.Validate()
	var cfgErr *InvalidConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *InvalidConfigError, got %T", err)
	}
	if len(cfgErr.FieldErrors) != 5 {
		t.Errorf("got %d field errors, want 5: %v", len(cfgErr.FieldErrors), cfgErr.FieldErrors)
	}
	for _, sentinel := range []error{ErrInvalidConfig, ErrInvalidPlatform, ErrInvalidDebounce, ErrInvalidLogLevel} {
		if !errors.Is(err, sentinel) {
			t.Errorf("expected errors.Is(err, %v)", sentinel)
		}
	}
}
