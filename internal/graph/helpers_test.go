// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"context"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeProject is an in-memory project: every file maps to the dependencies
// its transform reports. Dependency names are the absolute paths they
// resolve to, so the resolver only has to check that the file exists.
type fakeProject struct {
	mu         sync.Mutex
	files      map[string][]TransformDependency
	transforms map[string]int
	failing    map[string]error
	maxDelay   time.Duration
	// workers overrides the default pool size of 4 when set.
	workers int
}

func newProject(files map[string][]string) *fakeProject {
	p := &fakeProject{
		files:      make(map[string][]TransformDependency),
		transforms: make(map[string]int),
		failing:    make(map[string]error),
	}
	for path, deps := range files {
		p.set(path, deps...)
	}
	return p
}

func deps(names ...string) []TransformDependency {
	out := make([]TransformDependency, 0, len(names))
	for _, n := range names {
		out = append(out, TransformDependency{Name: n})
	}
	return out
}

func (p *fakeProject) set(path string, names ...string) {
	p.setDeps(path, deps(names...)...)
}

func (p *fakeProject) setDeps(path string, d ...TransformDependency) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[path] = d
}

func (p *fakeProject) remove(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, path)
}

func (p *fakeProject) fail(path string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing[path] = err
}

func (p *fakeProject) transformCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transforms[path]
}

func (p *fakeProject) Transform(ctx context.Context, path string) (TransformResult[string], error) {
	p.mu.Lock()
	d, ok := p.files[path]
	failErr := p.failing[path]
	p.transforms[path]++
	maxDelay := p.maxDelay
	p.mu.Unlock()

	if maxDelay > 0 {
		select {
		case <-time.After(rand.N(maxDelay)):
		case <-ctx.Done():
			return TransformResult[string]{}, ctx.Err()
		}
	}
	if failErr != nil {
		return TransformResult[string]{}, failErr
	}
	if !ok {
		return TransformResult[string]{}, fs.ErrNotExist
	}
	return TransformResult[string]{Dependencies: slices.Clone(d), Output: "code of " + path}, nil
}

func (p *fakeProject) Resolve(_ context.Context, from, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[name]; !ok {
		return "", &UnresolvableError{From: from, Name: name}
	}
	return name, nil
}

func (p *fakeProject) options() Options[string] {
	workers := 4
	if p.workers > 0 {
		workers = p.workers
	}
	return Options[string]{Transformer: p, Resolver: p, Workers: workers}
}

func initialGraph(t *testing.T, p *fakeProject, entries ...string) *Graph[string] {
	t.Helper()
	g := New[string](entries)
	if _, err := g.InitialTraverseDependencies(t.Context(), p.options()); err != nil {
		t.Fatalf("InitialTraverseDependencies() error = %v", err)
	}
	return g
}

func traverse(t *testing.T, g *Graph[string], p *fakeProject, paths ...string) Result[string] {
	t.Helper()
	res, err := g.TraverseDependencies(t.Context(), paths, p.options())
	if err != nil {
		t.Fatalf("TraverseDependencies(%v) error = %v", paths, err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate() after TraverseDependencies(%v) = %v", paths, err)
	}
	return res
}

func sorted(paths []string) []string {
	out := slices.Clone(paths)
	slices.Sort(out)
	return out
}

func dependencyPaths(g *Graph[string], path string) []string {
	mod, ok := g.Get(path)
	if !ok {
		return nil
	}
	return mod.DependencyPaths()
}

func inversePaths(g *Graph[string], path string) []string {
	mod, ok := g.Get(path)
	if !ok {
		return nil
	}
	return sorted(mod.InverseDependencies.ToSlice())
}

// assertSameGraph compares g against a graph freshly built from the current
// project state: same modules, same order and same edges in both directions.
func assertSameGraph(t *testing.T, g *Graph[string], p *fakeProject) {
	t.Helper()
	fresh := initialGraph(t, p, g.EntryPoints()...)
	if diff := cmp.Diff(fresh.Paths(), g.Paths()); diff != "" {
		t.Fatalf("incremental graph differs from a fresh build (-fresh +incremental):\n%s", diff)
	}
	for _, path := range fresh.Paths() {
		if diff := cmp.Diff(dependencyPaths(fresh, path), dependencyPaths(g, path)); diff != "" {
			t.Fatalf("dependencies of %s differ (-fresh +incremental):\n%s", path, diff)
		}
		if diff := cmp.Diff(inversePaths(fresh, path), inversePaths(g, path)); diff != "" {
			t.Fatalf("inverse dependencies of %s differ (-fresh +incremental):\n%s", path, diff)
		}
	}
}

// randomProject builds a project of n files where every file imports up to
// four random files, cycles and self imports included.
func randomProject(r *rand.Rand, n int) *fakeProject {
	p := newProject(nil)
	for i := range n {
		p.set(modulePath(i), randomDeps(r, n)...)
	}
	return p
}

func randomDeps(r *rand.Rand, n int) []string {
	var out []string
	for range r.IntN(5) {
		d := modulePath(r.IntN(n))
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}

func modulePath(i int) string {
	return fmt.Sprintf("/src/m%02d.js", i)
}

type countingProgress struct {
	discovered, processed int
}

func (c *countingProgress) DependencyDiscovered() { c.discovered++ }
func (c *countingProgress) DependencyProcessed()  { c.processed++ }
