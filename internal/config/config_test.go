// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/deltagraph/deltagraph/internal/issue"
)

// isolated returns options that ignore the real working and user
// configuration directories.
func isolated(t *testing.T) LoadOptions {
	t.Helper()
	return LoadOptions{WorkDir: t.TempDir(), ConfigDirPath: t.TempDir()}
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Watch.Debounce.Duration().Milliseconds() != 100 {
		t.Errorf("default debounce = %s, want 100ms", cfg.Watch.Debounce)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	loaded, err := NewProvider().Load(t.Context(), isolated(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Path != "" {
		t.Errorf("Path = %q, want empty", loaded.Path)
	}
	if diff := cmp.Diff(DefaultConfig(), loaded.Config, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Lookup(t *testing.T) {
	t.Parallel()

	t.Run("project file", func(t *testing.T) {
		t.Parallel()
		opts := isolated(t)
		path := writeConfig(t, opts.WorkDir, ProjectFileName, `platform: "ios"
entry_points: ["src/main.js"]
watch: debounce: "250ms"
`)
		loaded, err := NewProvider().Load(t.Context(), opts)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if loaded.Path != path {
			t.Errorf("Path = %q, want %q", loaded.Path, path)
		}
		cfg := loaded.Config
		if cfg.Platform != "ios" || cfg.Watch.Debounce != "250ms" {
			t.Errorf("unexpected values: platform=%q debounce=%q", cfg.Platform, cfg.Watch.Debounce)
		}
		if diff := cmp.Diff([]string{"src/main.js"}, cfg.EntryPoints); diff != "" {
			t.Errorf("EntryPoints mismatch (-want +got):\n%s", diff)
		}
		if cfg.Log.Level != LogLevelInfo {
			t.Errorf("unset fields should keep defaults, log level = %q", cfg.Log.Level)
		}
	})

	t.Run("user directory", func(t *testing.T) {
		t.Parallel()
		opts := isolated(t)
		path := writeConfig(t, opts.ConfigDirPath, ConfigFileName, "workers: 3\n")
		loaded, err := NewProvider().Load(t.Context(), opts)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if loaded.Path != path || loaded.Config.Workers != 3 {
			t.Errorf("got path %q workers %d", loaded.Path, loaded.Config.Workers)
		}
	})

	t.Run("project file wins", func(t *testing.T) {
		t.Parallel()
		opts := isolated(t)
		writeConfig(t, opts.ConfigDirPath, ConfigFileName, "workers: 3\n")
		writeConfig(t, opts.WorkDir, ProjectFileName, "workers: 5\n")
		loaded, err := NewProvider().Load(t.Context(), opts)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if loaded.Config.Workers != 5 {
			t.Errorf("Workers = %d, want 5", loaded.Config.Workers)
		}
	})

	t.Run("explicit file", func(t *testing.T) {
		t.Parallel()
		opts := isolated(t)
		writeConfig(t, opts.WorkDir, ProjectFileName, "workers: 5\n")
		opts.ConfigFilePath = writeConfig(t, t.TempDir(), "custom.cue", "workers: 7\n")
		loaded, err := NewProvider().Load(t.Context(), opts)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if loaded.Config.Workers != 7 {
			t.Errorf("Workers = %d, want 7", loaded.Config.Workers)
		}
	})
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{name: "syntax", content: "workers: ", contains: "deltagraph.cue"},
		{name: "unknown field", content: "entry: \"a.js\"\n", contains: "entry"},
		{name: "bad platform", content: "platform: \"iOS\"\n", contains: "platform"},
		{name: "bad debounce", content: "watch: debounce: \"soon\"\n", contains: "debounce"},
		{name: "bad log level", content: "log: level: \"loud\"\n", contains: "level"},
		{name: "negative workers", content: "workers: -1\n", contains: "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := isolated(t)
			writeConfig(t, opts.WorkDir, ProjectFileName, tt.content)

			_, err := NewProvider().Load(t.Context(), opts)
			var actionable *issue.ActionableError
			if !errors.As(err, &actionable) {
				t.Fatalf("expected *issue.ActionableError, got %T: %v", err, err)
			}
			if !actionable.HasSuggestions() {
				t.Error("load errors should carry suggestions")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q should mention %q", err, tt.contains)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	opts.ConfigFilePath = filepath.Join(t.TempDir(), "nope.cue")
	_, err := NewProvider().Load(t.Context(), opts)
	if err == nil || !strings.Contains(err.Error(), "nope.cue") {
		t.Errorf("expected an error naming the file, got %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DELTAGRAPH_WATCH_DEBOUNCE", "1s")
	t.Setenv("DELTAGRAPH_PLATFORM", "android")
	t.Setenv("DELTAGRAPH_LOG_LEVEL", "debug")

	opts := isolated(t)
	writeConfig(t, opts.WorkDir, ProjectFileName, "platform: \"ios\"\n")

	loaded, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg := loaded.Config
	if cfg.Watch.Debounce != "1s" || cfg.Platform != "android" || cfg.Log.Level != LogLevelDebug {
		t.Errorf("environment not applied: %+v", cfg)
	}
}

func TestLoad_InvalidEnvironmentOverride(t *testing.T) {
	t.Setenv("DELTAGRAPH_WATCH_DEBOUNCE", "-5s")

	_, err := NewProvider().Load(t.Context(), isolated(t))
	if !errors.Is(err, ErrInvalidDebounce) {
		t.Errorf("expected ErrInvalidDebounce, got %v", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestGenerateCUE_LoadsBack(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.ProjectRoot = "/srv/app"
	want.EntryPoints = []string{"index.js", "worker.js"}
	want.Platform = "android"
	want.NodeModulesPaths = []string{"../shared/node_modules"}
	want.Workers = 8
	want.LazyAsync = true
	want.Cache = CacheConfig{Enabled: false, Dir: "/tmp/dg-cache"}
	want.Watch = WatchConfig{Patterns: []string{"src/**"}, Ignore: []string{"**/*.test.js"}, Debounce: "50ms"}
	want.Log.Level = LogLevelWarn
	want.Metrics.Addr = ":9464"

	opts := isolated(t)
	path := filepath.Join(opts.ConfigDirPath, ConfigFileName)
	if err := WriteFile(path, want, false); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loaded, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v\n%s", err, GenerateCUE(want))
	}
	if diff := cmp.Diff(want, loaded.Config, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFile_RefusesOverwrite(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), ConfigFileName, "workers: 1\n")
	if err := WriteFile(path, DefaultConfig(), false); !errors.Is(err, os.ErrExist) {
		t.Errorf("expected os.ErrExist, got %v", err)
	}
	if err := WriteFile(path, DefaultConfig(), true); err != nil {
		t.Errorf("overwrite: unexpected error %v", err)
	}
}

func TestConfig_Paths(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ProjectRoot = "app"
	cfg.EntryPoints = []string{"index.js", "/abs/entry.js"}
	cfg.NodeModulesPaths = []string{"../vendor/node_modules"}

	root := cfg.Root("/work")
	if root != "/work/app" {
		t.Errorf("Root() = %q", root)
	}
	if diff := cmp.Diff([]string{"/work/app/index.js", "/abs/entry.js"}, cfg.AbsEntryPoints(root)); diff != "" {
		t.Errorf("AbsEntryPoints() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/work/vendor/node_modules"}, cfg.AbsNodeModulesPaths(root)); diff != "" {
		t.Errorf("AbsNodeModulesPaths() mismatch (-want +got):\n%s", diff)
	}
}
