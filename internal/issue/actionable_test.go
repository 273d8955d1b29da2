// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var errLocked = errors.New("resource temporarily unavailable")

func TestActionableError_Message(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "bare",
			err:  NewActionableError("open transform cache"),
			want: "failed to open transform cache",
		},
		{
			name: "resource",
			err:  &ActionableError{Operation: "read entry point", Resource: "/app/index.js"},
			want: "failed to read entry point: /app/index.js",
		},
		{
			name: "cause",
			err:  WrapWithOperation(errLocked, "open transform cache"),
			want: "failed to open transform cache: resource temporarily unavailable",
		},
		{
			name: "resource and cause",
			err:  WrapWithContext(fs.ErrNotExist, "read entry point", "/app/index.js"),
			want: "failed to read entry point: /app/index.js: file does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Chain(t *testing.T) {
	t.Parallel()

	inner := WrapWithContext(fs.ErrNotExist, "read module", "/app/a.js")
	outer := fmt.Errorf("delta: %w", WrapWithOperation(inner, "build graph"))

	if !errors.Is(outer, fs.ErrNotExist) {
		t.Error("errors.Is should reach the innermost cause")
	}
	var ae *ActionableError
	if !errors.As(outer, &ae) || ae.Operation != "build graph" {
		t.Fatalf("errors.As found %+v, want the outer ActionableError", ae)
	}
	if ae.Unwrap() != error(inner) {
		t.Error("Unwrap() should return the cause")
	}
	if NewActionableError("noop").Unwrap() != nil {
		t.Error("Unwrap() without cause should be nil")
	}
}

func TestWrapHelpers_Nil(t *testing.T) {
	t.Parallel()

	if WrapWithOperation(nil, "build graph") != nil {
		t.Error("WrapWithOperation(nil) should be nil")
	}
	if WrapWithContext(nil, "read module", "/app/a.js") != nil {
		t.Error("WrapWithContext(nil) should be nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	cacheErr := &ActionableError{
		Operation:   "open transform cache",
		Resource:    "/home/dev/.cache/deltagraph",
		Suggestions: []string{"Run with --no-cache", "Close other deltagraph processes"},
		Cause:       errLocked,
	}
	nested := WrapWithOperation(WrapWithContext(fs.ErrNotExist, "read module", "/app/a.js"), "build graph")

	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name:     "message only",
			err:      NewActionableError("watch project"),
			contains: []string{"failed to watch project"},
			excludes: []string{"•", "Error chain:"},
		},
		{
			name: "suggestions",
			err:  cacheErr,
			contains: []string{
				"failed to open transform cache: /home/dev/.cache/deltagraph",
				"  • Run with --no-cache",
				"  • Close other deltagraph processes",
			},
			excludes: []string{"Error chain:"},
		},
		{
			name:     "verbose single cause",
			err:      cacheErr,
			verbose:  true,
			contains: []string{"Error chain:", "1. resource temporarily unavailable"},
		},
		{
			name:    "verbose nested causes",
			err:     nested,
			verbose: true,
			contains: []string{
				"1. failed to read module: /app/a.js: file does not exist",
				"2. file does not exist",
			},
		},
		{
			name:     "verbose without cause",
			err:      NewActionableError("watch project"),
			verbose:  true,
			excludes: []string{"Error chain:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.err.Format(tt.verbose)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Format() missing %q\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Format() should not contain %q\n%s", s, got)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  *ErrorContext
		want *ActionableError
	}{
		{
			name: "no operation",
			ctx:  NewErrorContext().WithResource("/app/a.js").Wrap(errLocked),
		},
		{
			name: "operation only",
			ctx:  NewErrorContext().WithOperation("watch project"),
			want: &ActionableError{Operation: "watch project"},
		},
		{
			name: "everything",
			ctx: NewErrorContext().
				WithOperation("load configuration").
				WithResource("/app/deltagraph.cue").
				WithIssue(ConfigLoadFailedId).
				WithSuggestion("Run 'deltagraph config dump'").
				WithSuggestions("Check the field names", "Remove the file to use defaults").
				Wrap(errLocked),
			want: &ActionableError{
				Operation: "load configuration",
				Resource:  "/app/deltagraph.cue",
				Issue:     ConfigLoadFailedId,
				Suggestions: []string{
					"Run 'deltagraph config dump'",
					"Check the field names",
					"Remove the file to use defaults",
				},
				Cause: errLocked,
			},
		},
		{
			name: "wrap replaces cause",
			ctx:  NewErrorContext().WithOperation("read module").Wrap(fs.ErrPermission).Wrap(fs.ErrNotExist),
			want: &ActionableError{Operation: "read module", Cause: fs.ErrNotExist},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.ctx.Build()
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty(), cmpopts.EquateErrors()); diff != "" {
				t.Errorf("Build() mismatch (-want +got):\n%s", diff)
			}
			if tt.want == nil && tt.ctx.BuildError() != nil {
				t.Error("BuildError() should be an untyped nil without operation")
			}
		})
	}
}

func TestErrorContext_Reuse(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithOperation("read module").WithResource("/app/a.js")
	first := ctx.Wrap(fs.ErrNotExist).Build()
	second := ctx.Wrap(fs.ErrPermission).Build()

	if !errors.Is(first, fs.ErrNotExist) || !errors.Is(second, fs.ErrPermission) {
		t.Errorf("causes were shared: %v / %v", first, second)
	}
	if first.Resource != second.Resource {
		t.Error("reused context should keep the resource")
	}
}

func TestErrorContext_BuildCopiesSuggestions(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithOperation("build graph").WithSuggestion("first")
	err1 := ctx.Build()
	ctx.WithSuggestion("second")
	err2 := ctx.Build()

	if len(err1.Suggestions) != 1 {
		t.Errorf("earlier error changed: %v", err1.Suggestions)
	}
	if len(err2.Suggestions) != 2 || !err2.HasSuggestions() {
		t.Errorf("Suggestions = %v, want two", err2.Suggestions)
	}
	if NewActionableError("build graph").HasSuggestions() {
		t.Error("HasSuggestions() should be false without suggestions")
	}
}

func TestIssueOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Id
	}{
		{name: "nil", err: nil},
		{name: "plain error", err: errLocked},
		{name: "no issue", err: NewActionableError("build graph")},
		{
			name: "direct",
			err:  NewErrorContext().WithOperation("load configuration").WithIssue(ConfigLoadFailedId).BuildError(),
			want: ConfigLoadFailedId,
		},
		{
			name: "wrapped",
			err: fmt.Errorf("watch: %w", NewErrorContext().
				WithOperation("start watcher").
				WithIssue(WatcherLimitReachedId).
				BuildError()),
			want: WatcherLimitReachedId,
		},
		{
			name: "nested under an error without issue",
			err: WrapWithOperation(NewErrorContext().
				WithOperation("resolve").
				WithIssue(UnresolvableDependencyId).
				BuildError(), "build graph"),
			want: UnresolvableDependencyId,
		},
		{
			name: "outermost issue wins",
			err: NewErrorContext().
				WithOperation("open transform cache").
				WithIssue(CacheUnavailableId).
				Wrap(NewErrorContext().WithOperation("load configuration").WithIssue(ConfigLoadFailedId).BuildError()).
				BuildError(),
			want: CacheUnavailableId,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IssueOf(tt.err)
			if tt.want == 0 {
				if got != nil {
					t.Errorf("IssueOf() = %d, want nil", got.Id())
				}
				return
			}
			if got == nil || got.Id() != tt.want {
				t.Errorf("IssueOf() = %v, want %d", got, tt.want)
			}
		})
	}
}
