// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/deltagraph/deltagraph/internal/config"
)

type (
	// ConfigProvider loads configuration. Tests replace it to avoid reading
	// the user's files.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Loaded, error)
	}

	// App is the composition root of the CLI. Every command receives it and
	// reaches the file system, configuration and output streams through it.
	App struct {
		Config    ConfigProvider
		Fs        afero.Fs
		workDir   string
		configDir string
		stdout    io.Writer
		stderr    io.Writer
	}

	// Dependencies are the injection points of NewApp. Nil or empty fields
	// get production defaults.
	Dependencies struct {
		Config ConfigProvider
		// Fs is what modules are read from; the watcher always uses the OS.
		Fs afero.Fs
		// WorkDir replaces the process working directory.
		WorkDir string
		// ConfigDir replaces the per-user configuration directory.
		ConfigDir string
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// rootFlags holds the persistent flags shared by every command.
	rootFlags struct {
		configPath string
		verbose    bool
		root       string
		platform   string
		workers    int
		noCache    bool
	}
)

// NewApp fills in defaults for every zero field of deps.
func NewApp(deps Dependencies) (*App, error) {
	app := &App{
		Config:    deps.Config,
		Fs:        deps.Fs,
		workDir:   deps.WorkDir,
		configDir: deps.ConfigDir,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Fs == nil {
		app.Fs = afero.NewOsFs()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	if app.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		app.workDir = wd
	}
	return app, nil
}

func (a *App) loadOptions(flags *rootFlags) config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: flags.configPath,
		ConfigDirPath:  a.configDir,
		WorkDir:        a.workDir,
	}
}

// loadConfig loads the configuration and applies command-line overrides.
// Positional entry points replace the configured ones.
func (a *App) loadConfig(cmd *cobra.Command, flags *rootFlags, entries []string) (*config.Loaded, error) {
	loaded, err := a.Config.Load(cmd.Context(), a.loadOptions(flags))
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config
	if flags.root != "" {
		cfg.ProjectRoot = flags.root
	}
	if flags.platform != "" {
		cfg.Platform = config.Platform(flags.platform)
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flags.workers
	}
	if flags.noCache {
		cfg.Cache.Enabled = false
	}
	if flags.verbose {
		cfg.Log.Level = config.LogLevelDebug
	}
	if len(entries) > 0 {
		cfg.EntryPoints = entries
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("command-line overrides: %w", err)
	}
	return loaded, nil
}

func newLogger(w io.Writer, level config.LogLevel) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          "deltagraph",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           level.Level(),
	})
}
