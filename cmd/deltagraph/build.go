// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/deltagraph/deltagraph/internal/graph"
	"github.com/deltagraph/deltagraph/internal/transform"
)

const (
	outputText = "text"
	outputJSON = "json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	buildOptions struct {
		output  string
		cycles  bool
		verify  bool
		acyclic bool
	}

	buildReport struct {
		Root          string         `json:"root"`
		Modules       []moduleReport `json:"modules"`
		TotalSize     int            `json:"total_size"`
		Cycles        [][]string     `json:"cycles,omitempty"`
		ImportBundles []string       `json:"import_bundles,omitempty"`
		DurationMS    int64          `json:"duration_ms"`
	}

	moduleReport struct {
		Path                string             `json:"path"`
		Kind                transform.Kind     `json:"kind"`
		Hash                string             `json:"hash"`
		Size                int                `json:"size"`
		Dependencies        []dependencyReport `json:"dependencies,omitempty"`
		InverseDependencies []string           `json:"inverse_dependencies,omitempty"`
	}

	dependencyReport struct {
		Name     string `json:"name"`
		Path     string `json:"path"`
		Async    bool   `json:"async,omitempty"`
		Optional bool   `json:"optional,omitempty"`
	}
)

func newBuildCommand(app *App, flags *rootFlags) *cobra.Command {
	var opts buildOptions
	cmd := &cobra.Command{
		Use:   "build [entry...]",
		Short: "Build the module graph once and print it",
		Long: `Build the module graph from the entry points and print every module in
bundle order. Entry points given as arguments replace the configured ones and
are resolved against the project root.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runBuild(cmd, flags, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputText, "output format (text|json)")
	cmd.Flags().BoolVar(&opts.cycles, "cycles", false, "report require cycles")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "check graph consistency after building")
	cmd.Flags().BoolVar(&opts.acyclic, "acyclic", false, "fail if the graph has require cycles")
	return cmd
}

func (a *App) runBuild(cmd *cobra.Command, flags *rootFlags, opts buildOptions, entries []string) error {
	if opts.output != outputText && opts.output != outputJSON {
		return fmt.Errorf("unknown output format %q (want %s or %s)", opts.output, outputText, outputJSON)
	}
	loaded, err := a.loadConfig(cmd, flags, entries)
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

	_, elapsed, err := s.update(cmd.Context())
	if err != nil {
		return a.fail(cmd, flags, err)
	}
	if err := s.graph.ReorderGraph(); err != nil {
		return a.fail(cmd, flags, err)
	}
	if opts.verify {
		if err := s.graph.Validate(); err != nil {
			return a.fail(cmd, flags, err)
		}
	}
	if opts.acyclic {
		if _, err := s.graph.TopologicalOrder(); err != nil {
			return a.fail(cmd, flags, err)
		}
	}

	report := s.report(elapsed, opts.cycles || opts.output == outputJSON)
	if opts.output == outputJSON {
		return writeJSON(a.stdout, report)
	}
	writeBuildText(a.stdout, report, opts.cycles, opts.verify)
	return nil
}

// report describes the graph in its current order.
func (s *session) report(elapsed time.Duration, withCycles bool) buildReport {
	r := buildReport{Root: s.root, DurationMS: elapsed.Milliseconds()}
	for _, mod := range s.graph.Modules() {
		m := s.moduleReport(mod)
		r.TotalSize += m.Size
		r.Modules = append(r.Modules, m)
	}
	if withCycles {
		for _, cycle := range s.graph.RequireCycles() {
			r.Cycles = append(r.Cycles, s.relAll(cycle))
		}
	}
	r.ImportBundles = s.relAll(s.graph.ImportBundlePaths())
	return r
}

func (s *session) moduleReport(mod *graph.Module[transform.Output]) moduleReport {
	m := moduleReport{
		Path: s.rel(mod.Path),
		Kind: mod.Output.Kind,
		Hash: mod.Output.HashHex(),
		Size: mod.Output.Size,
	}
	for el := mod.Dependencies.Front(); el != nil; el = el.Next() {
		m.Dependencies = append(m.Dependencies, dependencyReport{
			Name:     el.Key,
			Path:     s.rel(el.Value.AbsolutePath),
			Async:    el.Value.Data.Async,
			Optional: el.Value.Data.Optional,
		})
	}
	m.InverseDependencies = s.relAll(mod.InverseDependencies.ToSlice())
	slices.Sort(m.InverseDependencies)
	return m
}

func (s *session) relAll(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = s.rel(p)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func writeBuildText(w io.Writer, r buildReport, cycles, verified bool) {
	for _, m := range r.Modules {
		fmt.Fprintf(w, "%s %s\n", PathStyle.Render(m.Path),
			SubtitleStyle.Render(fmt.Sprintf("%s %s %s", m.Kind, humanize.Bytes(uint64(m.Size)), m.Hash)))
		for _, d := range m.Dependencies {
			fmt.Fprintf(w, "  %s -> %s%s\n", d.Name, d.Path, dependencyFlags(d))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s modules, %s in %s\n", SuccessStyle.Render("✓"),
		humanize.Comma(int64(len(r.Modules))), humanize.Bytes(uint64(r.TotalSize)),
		time.Duration(r.DurationMS)*time.Millisecond)
	if verified {
		fmt.Fprintf(w, "%s graph is consistent\n", SuccessStyle.Render("✓"))
	}
	if len(r.ImportBundles) > 0 {
		fmt.Fprintf(w, "%s %d lazy bundle(s): %s\n", SubtitleStyle.Render("•"),
			len(r.ImportBundles), strings.Join(r.ImportBundles, ", "))
	}
	if !cycles {
		return
	}
	if len(r.Cycles) == 0 {
		fmt.Fprintf(w, "%s no require cycles\n", SuccessStyle.Render("✓"))
		return
	}
	for _, c := range r.Cycles {
		fmt.Fprintf(w, "%s require cycle: %s\n", WarningStyle.Render("!"), strings.Join(c, ", "))
	}
}

func dependencyFlags(d dependencyReport) string {
	var flags []string
	if d.Async {
		flags = append(flags, "async")
	}
	if d.Optional {
		flags = append(flags, "optional")
	}
	if len(flags) == 0 {
		return ""
	}
	return " " + SubtitleStyle.Render("("+strings.Join(flags, ", ")+")")
}
