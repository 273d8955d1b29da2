// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvable is the sentinel wrapped by *UnresolvableError.
	ErrUnresolvable = errors.New("unable to resolve module")
	// ErrInconsistentGraph is the sentinel wrapped by *ConsistencyError. It
	// signals a bug in the graph engine, not in user code.
	ErrInconsistentGraph = errors.New("inconsistent module graph")
	// ErrGraphNotEmpty is returned when an initial traversal is requested on a
	// graph that already holds modules.
	ErrGraphNotEmpty = errors.New("initial traversal requires an empty graph")
	// ErrDuplicateDependency is the sentinel wrapped by *DuplicateDependencyError.
	ErrDuplicateDependency = errors.New("duplicate dependency")
	// ErrMissingCollaborator is returned when Options lacks a transformer or a resolver.
	ErrMissingCollaborator = errors.New("traversal requires a transformer and a resolver")
)

type (
	// UnresolvableError reports a dependency name that could not be mapped to a file.
	UnresolvableError struct {
		From string
		Name string
		// Err is the underlying cause, if any.
		Err error
	}

	// TransformError reports a failed transform.
	TransformError struct {
		Path string
		Err  error
	}

	// ConsistencyError reports a violated graph invariant.
	ConsistencyError struct {
		Path   string
		Reason string
	}

	// DuplicateDependencyError reports a transformer that listed the same
	// dependency name twice for one module.
	DuplicateDependencyError struct {
		Path string
		Name string
	}
)

func (e *UnresolvableError) Error() string {
	msg := fmt.Sprintf("unable to resolve module %q from %s", e.Name, e.From)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrUnresolvable) match.
func (e *UnresolvableError) Is(target error) bool { return target == ErrUnresolvable }

func (e *UnresolvableError) Unwrap() error { return e.Err }

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Path, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInconsistentGraph, e.Path, e.Reason)
}

func (e *ConsistencyError) Unwrap() error { return ErrInconsistentGraph }

func (e *DuplicateDependencyError) Error() string {
	return fmt.Sprintf("%s %q in %s", ErrDuplicateDependency, e.Name, e.Path)
}

func (e *DuplicateDependencyError) Unwrap() error { return ErrDuplicateDependency }
