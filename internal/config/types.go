// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/deltagraph/deltagraph/internal/resolver"
)

const (
	// LogLevelDebug logs every traversal step.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn only reports problems.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError only reports failures.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidPlatform is wrapped by *InvalidPlatformError.
	ErrInvalidPlatform = errors.New("invalid platform")
	// ErrInvalidLogLevel is wrapped by *InvalidLogLevelError.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidDebounce is wrapped by *InvalidDebounceError.
	ErrInvalidDebounce = errors.New("invalid debounce")
	// ErrInvalidCacheDir is wrapped by *InvalidCacheDirError.
	ErrInvalidCacheDir = errors.New("invalid cache dir")
	// ErrInvalidConfig is wrapped by *InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	platformPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

type (
	// Platform selects platform specific files such as button.ios.js. Empty
	// disables platform resolution.
	Platform string

	// LogLevel is the minimum level written to stderr.
	LogLevel string

	// Debounce is a duration in time.ParseDuration syntax.
	Debounce string

	// CacheDirPath is where the transform cache lives. Empty means the user
	// cache directory.
	CacheDirPath string

	// InvalidPlatformError reports a malformed platform name.
	InvalidPlatformError struct {
		Value Platform
	}

	// InvalidLogLevelError reports an unknown log level.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidDebounceError reports an unparsable or non-positive duration.
	InvalidDebounceError struct {
		Value Debounce
	}

	// InvalidCacheDirError reports a whitespace-only cache directory.
	InvalidCacheDirError struct {
		Value CacheDirPath
	}

	// InvalidConfigError collects every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the deltagraph configuration.
	Config struct {
		// ProjectRoot is resolved against the working directory.
		ProjectRoot string `json:"project_root" mapstructure:"project_root"`
		// EntryPoints are resolved against ProjectRoot.
		EntryPoints      []string      `json:"entry_points" mapstructure:"entry_points"`
		Platform         Platform      `json:"platform" mapstructure:"platform"`
		SourceExts       []string      `json:"source_exts" mapstructure:"source_exts"`
		AssetExts        []string      `json:"asset_exts" mapstructure:"asset_exts"`
		NodeModulesPaths []string      `json:"node_modules_paths" mapstructure:"node_modules_paths"`
		Workers          int           `json:"workers" mapstructure:"workers"`
		LazyAsync        bool          `json:"lazy_async" mapstructure:"lazy_async"`
		Cache            CacheConfig   `json:"cache" mapstructure:"cache"`
		Watch            WatchConfig   `json:"watch" mapstructure:"watch"`
		Log              LogConfig     `json:"log" mapstructure:"log"`
		Metrics          MetricsConfig `json:"metrics" mapstructure:"metrics"`
	}

	// CacheConfig configures the transform cache.
	CacheConfig struct {
		Enabled bool         `json:"enabled" mapstructure:"enabled"`
		Dir     CacheDirPath `json:"dir" mapstructure:"dir"`
	}

	// WatchConfig configures watch mode.
	WatchConfig struct {
		Patterns []string `json:"patterns" mapstructure:"patterns"`
		Ignore   []string `json:"ignore" mapstructure:"ignore"`
		Debounce Debounce `json:"debounce" mapstructure:"debounce"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// MetricsConfig configures the Prometheus endpoint served in watch mode.
	MetricsConfig struct {
		// Addr is a listen address such as ":9464". Empty disables the endpoint.
		Addr string `json:"addr" mapstructure:"addr"`
	}
)

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		ProjectRoot:      ".",
		EntryPoints:      []string{"index.js"},
		SourceExts:       append([]string(nil), resolver.DefaultSourceExts...),
		AssetExts:        append([]string(nil), resolver.DefaultAssetExts...),
		NodeModulesPaths: []string{},
		Cache:            CacheConfig{Enabled: true},
		Watch: WatchConfig{
			Patterns: []string{},
			Ignore:   []string{},
			Debounce: "100ms",
		},
		Log: LogConfig{Level: LogLevelInfo},
	}
}

// Validate checks every typed field.
func (c *Config) Validate() error {
	var errs []error
	for _, v := range []interface{ IsValid() (bool, []error) }{
		c.Platform, c.Watch.Debounce, c.Log.Level, c.Cache.Dir,
	} {
		if ok, fieldErrs := v.IsValid(); !ok {
			errs = append(errs, fieldErrs...)
		}
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if len(c.EntryPoints) == 0 {
		errs = append(errs, errors.New("at least one entry point is required"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Root returns ProjectRoot as an absolute path, relative to base when it is
// not absolute already.
func (c *Config) Root(base string) string {
	if filepath.IsAbs(c.ProjectRoot) {
		return filepath.Clean(c.ProjectRoot)
	}
	return filepath.Join(base, c.ProjectRoot)
}

// AbsEntryPoints resolves every entry point against root.
func (c *Config) AbsEntryPoints(root string) []string {
	out := make([]string, 0, len(c.EntryPoints))
	for _, e := range c.EntryPoints {
		if filepath.IsAbs(e) {
			out = append(out, filepath.Clean(e))
		} else {
			out = append(out, filepath.Join(root, e))
		}
	}
	return out
}

// AbsNodeModulesPaths resolves the extra node_modules directories against
// root.
func (c *Config) AbsNodeModulesPaths(root string) []string {
	out := make([]string, 0, len(c.NodeModulesPaths))
	for _, p := range c.NodeModulesPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap exposes ErrInvalidConfig and every field error to errors.Is.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

func (p Platform) String() string { return string(p) }

// IsValid accepts the empty platform and lowercase identifiers.
func (p Platform) IsValid() (bool, []error) {
	if p == "" || platformPattern.MatchString(string(p)) {
		return true, nil
	}
	return false, []error{&InvalidPlatformError{Value: p}}
}

func (e *InvalidPlatformError) Error() string {
	return fmt.Sprintf("invalid platform %q (lowercase letters, digits, '-' and '_')", e.Value)
}

func (e *InvalidPlatformError) Unwrap() error { return ErrInvalidPlatform }

func (l LogLevel) String() string { return string(l) }

// IsValid accepts debug, info, warn and error.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level converts l to a charm log level. Unknown values map to info.
func (l LogLevel) Level() log.Level {
	switch l {
	case LogLevelDebug:
		return log.DebugLevel
	case LogLevelWarn:
		return log.WarnLevel
	case LogLevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

func (d Debounce) String() string { return string(d) }

// IsValid requires a positive duration.
func (d Debounce) IsValid() (bool, []error) {
	if v, err := time.ParseDuration(string(d)); err != nil || v <= 0 {
		return false, []error{&InvalidDebounceError{Value: d}}
	}
	return true, nil
}

// Duration returns the parsed value, or zero if d is invalid.
func (d Debounce) Duration() time.Duration {
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return v
}

func (e *InvalidDebounceError) Error() string {
	return fmt.Sprintf("invalid debounce %q: want a positive duration such as 100ms", e.Value)
}

func (e *InvalidDebounceError) Unwrap() error { return ErrInvalidDebounce }

func (p CacheDirPath) String() string { return string(p) }

// IsValid rejects whitespace-only paths.
func (p CacheDirPath) IsValid() (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidCacheDirError{Value: p}}
	}
	return true, nil
}

// Resolve returns the cache directory, defaulting to deltagraph under the
// user cache directory.
func (p CacheDirPath) Resolve() (string, error) {
	if p != "" {
		return filepath.Abs(string(p))
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate user cache directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

func (e *InvalidCacheDirError) Error() string {
	return fmt.Sprintf("invalid cache dir %q: must not be blank", e.Value)
}

func (e *InvalidCacheDirError) Unwrap() error { return ErrInvalidCacheDir }
