// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"context"

	"github.com/charmbracelet/log"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/elliotchance/orderedmap/v2"
)

type (
	// TransformDependency is a raw dependency as reported by a Transformer.
	TransformDependency struct {
		// Name is the specifier as written in source (e.g. "./a" or "react").
		Name string `json:"name" msgpack:"name"`
		// Optional dependencies that fail to resolve are dropped instead of
		// failing the pass (a require wrapped in try/catch).
		Optional bool `json:"optional,omitempty" msgpack:"optional,omitempty"`
		// Async marks a dynamic import().
		Async bool `json:"async,omitempty" msgpack:"async,omitempty"`
		// Line is the 1-based source line of the specifier, 0 when unknown.
		Line int `json:"line,omitempty" msgpack:"line,omitempty"`
	}

	// Dependency is a resolved edge from one module to another.
	Dependency struct {
		AbsolutePath string
		Data         TransformDependency
	}

	// Module is a node of the graph.
	Module[T any] struct {
		Path string
		// Dependencies maps the name used in source to the resolved edge, in
		// the order the transformer reported them.
		Dependencies *orderedmap.OrderedMap[string, Dependency]
		// InverseDependencies holds the path of every module that currently
		// depends on this one.
		InverseDependencies mapset.Set[string]
		Output              T
	}

	// TransformResult is what a Transformer produces for a single file.
	TransformResult[T any] struct {
		Dependencies []TransformDependency
		Output       T
	}

	// Transformer turns a file into its raw dependencies and an opaque payload.
	// Implementations must be safe for concurrent use.
	Transformer[T any] interface {
		Transform(ctx context.Context, path string) (TransformResult[T], error)
	}

	// Resolver maps a dependency name, as seen from a module, to an absolute
	// path. Implementations must be safe for concurrent use and should report
	// failures with *UnresolvableError.
	Resolver interface {
		Resolve(ctx context.Context, from, name string) (string, error)
	}

	// Progress receives one DependencyDiscovered call per newly found module
	// and one DependencyProcessed call once that module and everything it
	// pulled in has been processed. Calls are made from the coordinating
	// goroutine only.
	Progress interface {
		DependencyDiscovered()
		DependencyProcessed()
	}

	// Options configures a traversal pass.
	Options[T any] struct {
		Transformer Transformer[T]
		Resolver    Resolver
		// Progress is optional.
		Progress Progress
		// Workers bounds the number of concurrent transform and resolve jobs.
		// Zero means runtime.GOMAXPROCS(0).
		Workers int
		// Logger is optional; nil discards debug output.
		Logger *log.Logger
	}

	// Result describes the outcome of a traversal pass.
	Result[T any] struct {
		// Added holds every module that was added or modified, in graph order.
		Added *orderedmap.OrderedMap[string, *Module[T]]
		// Modified is the subset of Added that existed before the pass.
		Modified mapset.Set[string]
		// Deleted holds the paths of every module removed from the graph.
		Deleted mapset.Set[string]
	}
)

func newModule[T any](path string, inverse mapset.Set[string]) *Module[T] {
	if inverse == nil {
		inverse = mapset.NewThreadUnsafeSet[string]()
	}
	return &Module[T]{
		Path:                path,
		Dependencies:        orderedmap.NewOrderedMap[string, Dependency](),
		InverseDependencies: inverse,
	}
}

// DependencyPaths returns the distinct absolute paths this module depends on,
// in edge order.
func (m *Module[T]) DependencyPaths() []string {
	seen := make(map[string]struct{}, m.Dependencies.Len())
	paths := make([]string, 0, m.Dependencies.Len())
	for el := m.Dependencies.Front(); el != nil; el = el.Next() {
		if _, ok := seen[el.Value.AbsolutePath]; ok {
			continue
		}
		seen[el.Value.AbsolutePath] = struct{}{}
		paths = append(paths, el.Value.AbsolutePath)
	}
	return paths
}

func newResult[T any]() Result[T] {
	return Result[T]{
		Added:    orderedmap.NewOrderedMap[string, *Module[T]](),
		Modified: mapset.NewThreadUnsafeSet[string](),
		Deleted:  mapset.NewThreadUnsafeSet[string](),
	}
}

// Empty reports whether the pass changed nothing.
func (r Result[T]) Empty() bool {
	return r.Added.Len() == 0 && r.Deleted.Cardinality() == 0
}
