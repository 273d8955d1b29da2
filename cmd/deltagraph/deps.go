// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newDepsCommand(app *App, flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "deps <path>",
		Short: "Show what a module imports and what imports it",
		Long: `Build the module graph and print the dependencies and inverse dependencies
of one module. The path is resolved against the project root.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runDeps(cmd, flags, args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format (text|json)")
	return cmd
}

func (a *App) runDeps(cmd *cobra.Command, flags *rootFlags, target, output string) error {
	if output != outputText && output != outputJSON {
		return fmt.Errorf("unknown output format %q (want %s or %s)", output, outputText, outputJSON)
	}
	loaded, err := a.loadConfig(cmd, flags, nil)
	if err != nil {
		return a.fail(cmd, flags, err)
	}
	s, err := a.openSession(loaded.Config)
	if err != nil {
		return a.fail(cmd, flags, err)
	}
	defer func() {
		if closeErr := s.close(); closeErr != nil {
			s.log.Warn("close session", "err", closeErr)
		}
	}()

	if _, _, err := s.update(cmd.Context()); err != nil {
		return a.fail(cmd, flags, err)
	}

	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	mod, ok := s.graph.Get(path)
	if !ok {
		return a.fail(cmd, flags, fmt.Errorf("%s is not part of the graph built from %v", target, s.cfg.EntryPoints))
	}

	m := s.moduleReport(mod)
	if output == outputJSON {
		return writeJSON(a.stdout, m)
	}

	w := a.stdout
	fmt.Fprintf(w, "%s %s\n\n", TitleStyle.Render(m.Path), SubtitleStyle.Render(string(m.Kind)))
	fmt.Fprintln(w, TitleStyle.Render("Dependencies"))
	if len(m.Dependencies) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none)"))
	}
	for _, d := range m.Dependencies {
		fmt.Fprintf(w, "  %s -> %s%s\n", d.Name, PathStyle.Render(d.Path), dependencyFlags(d))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Imported by"))
	if len(m.InverseDependencies) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(entry point)"))
	}
	for _, p := range m.InverseDependencies {
		fmt.Fprintf(w, "  %s\n", PathStyle.Render(p))
	}
	return nil
}
