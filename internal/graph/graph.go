// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/elliotchance/orderedmap/v2"

	"github.com/deltagraph/deltagraph/internal/dag"
)

type (
	// Graph is the module dependency graph of one bundle.
	Graph[T any] struct {
		entryPoints []string
		entrySet    map[string]struct{}
		lazyAsync   bool

		modules *orderedmap.OrderedMap[string, *Module[T]]
		gc      *cycleCollector
		// importBundles counts the modules holding a lazy async edge to a path
		// that is kept out of the graph.
		importBundles map[string]mapset.Set[string]
	}

	// Option configures a Graph.
	Option func(*graphConfig)

	graphConfig struct {
		lazyAsync bool
	}
)

// WithLazyAsync keeps the targets of dynamic imports out of the graph. The
// edge is still recorded on the importing module and the target is tracked
// through ImportBundlePaths so that it can be built as a separate bundle.
func WithLazyAsync() Option {
	return func(c *graphConfig) { c.lazyAsync = true }
}

// New creates an empty graph with the given entry points. Duplicate entry
// points are ignored.
func New[T any](entryPoints []string, opts ...Option) *Graph[T] {
	var cfg graphConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	g := &Graph[T]{
		entrySet:  make(map[string]struct{}, len(entryPoints)),
		lazyAsync: cfg.lazyAsync,
	}
	for _, p := range entryPoints {
		if _, ok := g.entrySet[p]; ok {
			continue
		}
		g.entrySet[p] = struct{}{}
		g.entryPoints = append(g.entryPoints, p)
	}
	g.Reset()
	return g
}

// Reset drops every module while keeping the entry points.
func (g *Graph[T]) Reset() {
	g.modules = orderedmap.NewOrderedMap[string, *Module[T]]()
	g.gc = newCycleCollector()
	g.importBundles = make(map[string]mapset.Set[string])
}

// EntryPoints returns the entry points in declaration order.
func (g *Graph[T]) EntryPoints() []string {
	return slices.Clone(g.entryPoints)
}

// IsEntryPoint reports whether path is one of the graph's entry points.
func (g *Graph[T]) IsEntryPoint(path string) bool {
	_, ok := g.entrySet[path]
	return ok
}

// Get returns the module stored under path.
func (g *Graph[T]) Get(path string) (*Module[T], bool) {
	return g.modules.Get(path)
}

// Has reports whether path is part of the graph.
func (g *Graph[T]) Has(path string) bool {
	_, ok := g.modules.Get(path)
	return ok
}

// Len returns the number of modules in the graph.
func (g *Graph[T]) Len() int {
	return g.modules.Len()
}

// Paths returns every module path in graph order.
func (g *Graph[T]) Paths() []string {
	return g.modules.Keys()
}

// Modules returns every module in graph order.
func (g *Graph[T]) Modules() []*Module[T] {
	mods := make([]*Module[T], 0, g.modules.Len())
	for el := g.modules.Front(); el != nil; el = el.Next() {
		mods = append(mods, el.Value)
	}
	return mods
}

// ModifiedModulesForDeletedPath returns the modules that import a file that
// has just been deleted. Re-processing them either picks up a replacement or
// surfaces a resolution error.
func (g *Graph[T]) ModifiedModulesForDeletedPath(path string) []string {
	var paths []string
	if mod, ok := g.modules.Get(path); ok {
		paths = append(paths, mod.InverseDependencies.ToSlice()...)
	}
	if parents, ok := g.importBundles[path]; ok {
		paths = append(paths, parents.ToSlice()...)
	}
	slices.Sort(paths)
	return slices.Compact(paths)
}

// ImportBundlePaths returns, sorted, the targets of lazy async edges.
func (g *Graph[T]) ImportBundlePaths() []string {
	paths := make([]string, 0, len(g.importBundles))
	for p := range g.importBundles {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// RequireCycles returns the groups of modules that import each other, in
// graph order. Cycles are legal but usually worth a warning.
func (g *Graph[T]) RequireCycles() [][]string {
	return g.dag().Cycles()
}

// TopologicalOrder returns every module before the modules it imports. A
// graph with require cycles yields a *dag.CycleError.
func (g *Graph[T]) TopologicalOrder() ([]string, error) {
	return g.dag().TopologicalSort()
}

func (g *Graph[T]) dag() *dag.Graph {
	d := dag.New()
	for el := g.modules.Front(); el != nil; el = el.Next() {
		d.AddNode(el.Key)
		for _, child := range g.children(el.Value) {
			d.AddEdge(el.Key, child)
		}
	}
	return d
}

// Validate checks the structural invariants of the graph: every edge target
// exists, edges and inverse edges agree, every module but the entry points
// is referenced and every entry point is present.
func (g *Graph[T]) Validate() error {
	for _, entry := range g.entryPoints {
		if !g.Has(entry) {
			return &ConsistencyError{Path: entry, Reason: "entry point is missing from the graph"}
		}
	}

	for el := g.modules.Front(); el != nil; el = el.Next() {
		mod := el.Value
		for _, child := range g.children(mod) {
			target, ok := g.modules.Get(child)
			if !ok {
				return &ConsistencyError{Path: mod.Path, Reason: fmt.Sprintf("dependency %s is not in the graph", child)}
			}
			if !target.InverseDependencies.Contains(mod.Path) {
				return &ConsistencyError{Path: child, Reason: fmt.Sprintf("missing inverse dependency %s", mod.Path)}
			}
		}

		if !g.IsEntryPoint(mod.Path) && mod.InverseDependencies.Cardinality() == 0 {
			return &ConsistencyError{Path: mod.Path, Reason: "module is not referenced by any other module"}
		}

		var err error
		mod.InverseDependencies.Each(func(parent string) bool {
			pm, ok := g.modules.Get(parent)
			if !ok || !slices.Contains(g.children(pm), mod.Path) {
				err = &ConsistencyError{Path: mod.Path, Reason: fmt.Sprintf("inverse dependency %s has no matching edge", parent)}
				return true
			}
			return false
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// isLazy reports whether dep is kept out of the graph.
func (g *Graph[T]) isLazy(dep Dependency) bool {
	return g.lazyAsync && dep.Data.Async
}

// children returns the distinct traversed dependency paths of mod.
func (g *Graph[T]) children(mod *Module[T]) []string {
	seen := make(map[string]struct{}, mod.Dependencies.Len())
	var paths []string
	for el := mod.Dependencies.Front(); el != nil; el = el.Next() {
		if g.isLazy(el.Value) {
			continue
		}
		if _, ok := seen[el.Value.AbsolutePath]; ok {
			continue
		}
		seen[el.Value.AbsolutePath] = struct{}{}
		paths = append(paths, el.Value.AbsolutePath)
	}
	return paths
}

// references reports whether mod still holds an edge of the same kind as dep
// to dep's target.
func (g *Graph[T]) references(mod *Module[T], dep Dependency) bool {
	lazy := g.isLazy(dep)
	for el := mod.Dependencies.Front(); el != nil; el = el.Next() {
		if el.Value.AbsolutePath == dep.AbsolutePath && g.isLazy(el.Value) == lazy {
			return true
		}
	}
	return false
}

func (g *Graph[T]) retainImportBundle(parent, target string) {
	parents, ok := g.importBundles[target]
	if !ok {
		parents = mapset.NewThreadUnsafeSet[string]()
		g.importBundles[target] = parents
	}
	parents.Add(parent)
}

func (g *Graph[T]) releaseImportBundle(parent, target string) {
	parents, ok := g.importBundles[target]
	if !ok {
		return
	}
	parents.Remove(parent)
	if parents.Cardinality() == 0 {
		delete(g.importBundles, target)
	}
}
