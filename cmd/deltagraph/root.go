// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the deltagraph command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "deltagraph",
		Short: "Incremental module dependency graph for JavaScript projects",
		Long: TitleStyle.Render("deltagraph") + SubtitleStyle.Render(" - incremental module dependency graph") + `

deltagraph resolves every import reachable from your entry points, keeps the
graph in memory, and updates only what changed when files are edited.

` + SubtitleStyle.Render("Examples:") + `
  deltagraph build                 Build the graph and list modules in bundle order
  deltagraph build --cycles        Also report require cycles
  deltagraph watch                 Print a delta after every change
  deltagraph deps src/App.js       Show a module's imports and importers
  deltagraph config show           Show the effective configuration`,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default: ./deltagraph.cue, then the user config directory)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging and detailed errors")
	pf.StringVar(&flags.root, "root", "", "project root (overrides project_root)")
	pf.StringVar(&flags.platform, "platform", "", "target platform for platform-specific files, e.g. ios")
	pf.IntVar(&flags.workers, "workers", 0, "concurrent transform jobs (0: one per CPU)")
	pf.BoolVar(&flags.noCache, "no-cache", false, "disable the transform cache")

	root.AddCommand(
		newBuildCommand(app, flags),
		newWatchCommand(app, flags),
		newDepsCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the status of the failed command.
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗")+" "+err.Error())
		os.Exit(1)
	}
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// errorHandler leaves errors that were already reported by the command to
// the exit code.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
