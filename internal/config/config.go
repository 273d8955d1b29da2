// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/deltagraph/deltagraph/internal/issue"
	"github.com/deltagraph/deltagraph/pkg/cueutil"
)

const (
	// AppName names the configuration and cache directories.
	AppName = "deltagraph"
	// ConfigFileName is the file looked up in the configuration directory.
	ConfigFileName = "config.cue"
	// ProjectFileName is the file looked up in the working directory.
	ProjectFileName = "deltagraph.cue"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "DELTAGRAPH"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the per-user configuration directory.
//
//nolint:revive // config.ConfigDir reads better than config.Dir at call sites
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("locate home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// ResolvePath returns the file Load would read, or "" when none exists.
func ResolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, nil
	}
	local := filepath.Join(opts.WorkDir, ProjectFileName)
	if fileExists(local) {
		return local, nil
	}
	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	if user := filepath.Join(dir, ConfigFileName); fileExists(user) {
		return user, nil
	}
	return "", nil
}

func load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := ResolvePath(opts)
	if err != nil {
		return nil, err
	}
	if opts.ConfigFilePath != "" && !fileExists(path) {
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithResource(path).
			WithSuggestion("Check the --config path").
			WithSuggestion("Run 'deltagraph config init' to write a default file").
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}
	if path != "" {
		if err := mergeCUE(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check the file for CUE syntax errors").
				WithSuggestion("Run 'deltagraph config dump' to see every accepted field").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithResource(path).
			WithSuggestion("Check DELTAGRAPH_* environment variables as well as the file").
			Wrap(err).
			BuildError()
	}
	return &Loaded{Config: &cfg, Path: path}, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("project_root", d.ProjectRoot)
	v.SetDefault("entry_points", d.EntryPoints)
	v.SetDefault("platform", string(d.Platform))
	v.SetDefault("source_exts", d.SourceExts)
	v.SetDefault("asset_exts", d.AssetExts)
	v.SetDefault("node_modules_paths", d.NodeModulesPaths)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("lazy_async", d.LazyAsync)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", string(d.Cache.Dir))
	v.SetDefault("watch.patterns", d.Watch.Patterns)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("watch.debounce", string(d.Watch.Debounce))
	v.SetDefault("log.level", string(d.Log.Level))
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// mergeCUE validates a CUE file against #Config and merges it over the
// defaults already set on v.
func mergeCUE(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	values, err := cueutil.Decode(configSchema, "#Config", data, path)
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteFile writes cfg as CUE to path, creating parent directories. An
// existing file is only replaced when overwrite is set.
func WriteFile(path string, cfg *Config, overwrite bool) error {
	if !overwrite && fileExists(path) {
		return issue.NewErrorContext().
			WithOperation("write configuration").
			WithResource(path).
			WithSuggestion("Pass --force to overwrite it").
			Wrap(os.ErrExist).
			BuildError()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// GenerateCUE renders cfg as a config file that loads back to cfg.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	sb.WriteString("// deltagraph configuration\n\n")
	fmt.Fprintf(&sb, "project_root: %q\n", cfg.ProjectRoot)
	fmt.Fprintf(&sb, "entry_points: %s\n", cueList(cfg.EntryPoints))
	fmt.Fprintf(&sb, "platform: %q\n", cfg.Platform)
	fmt.Fprintf(&sb, "source_exts: %s\n", cueList(cfg.SourceExts))
	fmt.Fprintf(&sb, "asset_exts: %s\n", cueList(cfg.AssetExts))
	fmt.Fprintf(&sb, "node_modules_paths: %s\n", cueList(cfg.NodeModulesPaths))
	fmt.Fprintf(&sb, "workers: %d\n", cfg.Workers)
	fmt.Fprintf(&sb, "lazy_async: %t\n", cfg.LazyAsync)

	sb.WriteString("\ncache: {\n")
	fmt.Fprintf(&sb, "\tenabled: %t\n", cfg.Cache.Enabled)
	if cfg.Cache.Dir != "" {
		fmt.Fprintf(&sb, "\tdir: %q\n", cfg.Cache.Dir)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tpatterns: %s\n", cueList(cfg.Watch.Patterns))
	fmt.Fprintf(&sb, "\tignore: %s\n", cueList(cfg.Watch.Ignore))
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Watch.Debounce)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	if cfg.Metrics.Addr != "" {
		sb.WriteString("\nmetrics: {\n")
		fmt.Fprintf(&sb, "\taddr: %q\n", cfg.Metrics.Addr)
		sb.WriteString("}\n")
	}
	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
