// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deltagraph/deltagraph/internal/config"
)

// newConfigCommand creates the `deltagraph config` command tree.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
		Long: `Inspect and create configuration files.

Configuration is read from the first of:
  - the file given with --config
  - deltagraph.cue in the working directory
  - config.cue in the user configuration directory
    (Linux: ~/.config/deltagraph, macOS: ~/Library/Application Support/deltagraph,
    Windows: %APPDATA%\deltagraph)

DELTAGRAPH_* environment variables override file values, for example
DELTAGRAPH_WATCH_DEBOUNCE=250ms.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfig(cmd, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show which configuration file is used",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfigPath(flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd, flags, nil)
			if err != nil {
				return app.fail(cmd, flags, err)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			return nil
		},
	})

	var force, project bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig(cmd, flags, force, project)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	initCmd.Flags().BoolVar(&project, "project", false, "write deltagraph.cue in the working directory instead of the user configuration")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}

func (a *App) showConfig(cmd *cobra.Command, flags *rootFlags) error {
	loaded, err := a.loadConfig(cmd, flags, nil)
	if err != nil {
		return a.fail(cmd, flags, err)
	}
	cfg := loaded.Config
	w := a.stdout

	source := SubtitleStyle.Render("(defaults)")
	if loaded.Path != "" {
		source = loaded.Path
	}
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s: %s\n", PathStyle.Render("Config file"), source)
	fmt.Fprintln(w)

	rows := []struct{ key, value string }{
		{"project_root", cfg.Root(a.workDir)},
		{"entry_points", strings.Join(cfg.EntryPoints, ", ")},
		{"platform", orNone(string(cfg.Platform))},
		{"source_exts", strings.Join(cfg.SourceExts, ", ")},
		{"asset_exts", strings.Join(cfg.AssetExts, ", ")},
		{"node_modules_paths", orNone(strings.Join(cfg.NodeModulesPaths, ", "))},
		{"workers", workersLabel(cfg.Workers)},
		{"lazy_async", fmt.Sprint(cfg.LazyAsync)},
		{"cache.enabled", fmt.Sprint(cfg.Cache.Enabled)},
		{"cache.dir", cacheDirLabel(cfg.Cache.Dir)},
		{"watch.patterns", orNone(strings.Join(cfg.Watch.Patterns, ", "))},
		{"watch.ignore", orNone(strings.Join(cfg.Watch.Ignore, ", "))},
		{"watch.debounce", string(cfg.Watch.Debounce)},
		{"log.level", string(cfg.Log.Level)},
		{"metrics.addr", orNone(cfg.Metrics.Addr)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s: %s\n", PathStyle.Render(r.key), SuccessStyle.Render(r.value))
	}
	return nil
}

func (a *App) showConfigPath(flags *rootFlags) error {
	path, err := config.ResolvePath(a.loadOptions(flags))
	if err != nil {
		return err
	}
	dir := a.configDir
	if dir == "" {
		if dir, err = config.ConfigDir(); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.stdout, "Config directory: %s\n", dir)
	if path == "" {
		fmt.Fprintf(a.stdout, "Config file: %s\n", SubtitleStyle.Render("(none, using defaults)"))
		return nil
	}
	fmt.Fprintf(a.stdout, "Config file: %s\n", path)
	return nil
}

func (a *App) initConfig(cmd *cobra.Command, flags *rootFlags, force, project bool) error {
	path := filepath.Join(a.workDir, config.ProjectFileName)
	if !project {
		dir := a.configDir
		if dir == "" {
			var err error
			if dir, err = config.ConfigDir(); err != nil {
				return a.fail(cmd, flags, err)
			}
		}
		path = filepath.Join(dir, config.ConfigFileName)
	}
	if err := config.WriteFile(path, config.DefaultConfig(), force); err != nil {
		return a.fail(cmd, flags, err)
	}
	fmt.Fprintf(a.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func workersLabel(n int) string {
	if n == 0 {
		return "0 (one per CPU)"
	}
	return fmt.Sprint(n)
}

func cacheDirLabel(dir config.CacheDirPath) string {
	resolved, err := dir.Resolve()
	if err != nil {
		return "(unavailable)"
	}
	return resolved
}
