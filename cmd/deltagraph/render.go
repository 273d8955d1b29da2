// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/deltagraph/deltagraph/internal/dag"
	"github.com/deltagraph/deltagraph/internal/graph"
	"github.com/deltagraph/deltagraph/internal/issue"
	"github.com/deltagraph/deltagraph/internal/transform"
	"github.com/deltagraph/deltagraph/internal/watch"
)

// formatErrorForDisplay uses ActionableError.Format when the chain has one,
// so suggestions are shown.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// classifyError picks the catalog entry that explains err best.
func classifyError(err error) issue.Id {
	if i := issue.IssueOf(err); i != nil {
		return i.Id()
	}
	var cycleErr *dag.CycleError
	var transformErr *graph.TransformError
	switch {
	case errors.Is(err, transform.ErrSyntax):
		return issue.SyntaxErrorId
	case errors.Is(err, graph.ErrUnresolvable):
		return issue.UnresolvableDependencyId
	case errors.Is(err, graph.ErrInconsistentGraph):
		return issue.InconsistentGraphId
	case errors.Is(err, watch.ErrWatcherExhausted):
		return issue.WatcherLimitReachedId
	case errors.As(err, &cycleErr):
		return issue.DependencyCycleId
	case errors.As(err, &transformErr) && errors.Is(err, fs.ErrNotExist):
		return issue.EntryPointNotFoundId
	case errors.As(err, &transformErr):
		return issue.TransformFailedId
	}
	return 0
}

// reportError prints err, plus the matching catalog entry in verbose mode.
func reportError(w io.Writer, err error, verbose bool) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("✗"), formatErrorForDisplay(err, verbose))
	if !verbose {
		return
	}
	if entry := issue.Get(classifyError(err)); entry != nil {
		if rendered, renderErr := entry.Render("dark"); renderErr == nil {
			fmt.Fprint(w, rendered)
		}
	}
}

// fail reports err and returns an *ExitError so cobra does not print it again.
func (a *App) fail(cmd *cobra.Command, flags *rootFlags, err error) error {
	reportError(a.stderr, err, flags.verbose)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: 1, Err: err}
}
