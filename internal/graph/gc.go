// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"github.com/elliotchance/orderedmap/v2"
)

// color is the cycle collection state of a module, after Bacon and Rajan,
// "Concurrent Cycle Collection in Reference Counted Systems" (2001).
type color uint8

const (
	// black modules are in use. Modules without a recorded color are black.
	black color = iota
	// gray modules are being trial-deleted.
	gray
	// white modules are garbage.
	white
	// purple modules are possible roots of a garbage cycle.
	purple
)

// cycleCollector frees cycles that reference counting alone cannot. A module
// whose inverse set shrinks without reaching zero may be the last link into
// a cycle that is no longer reachable from an entry point; it is buffered as
// a possible root and examined at the end of the pass.
type cycleCollector struct {
	colors        map[string]color
	possibleRoots *orderedmap.OrderedMap[string, struct{}]
}

func newCycleCollector() *cycleCollector {
	return &cycleCollector{
		colors:        make(map[string]color),
		possibleRoots: orderedmap.NewOrderedMap[string, struct{}](),
	}
}

func (c *cycleCollector) color(path string) color {
	return c.colors[path]
}

func (c *cycleCollector) markInUse(path string) {
	c.colors[path] = black
}

func (c *cycleCollector) markPossibleRoot(path string) {
	c.colors[path] = purple
	c.possibleRoots.Set(path, struct{}{})
}

func (c *cycleCollector) forget(path string) {
	delete(c.colors, path)
	c.possibleRoots.Delete(path)
}

// collectCycles runs the synchronous collection over the buffered roots and
// frees every module that is only kept alive by a cycle.
func (g *Graph[T]) collectCycles(d *delta) {
	gc := g.gc
	if gc.possibleRoots.Len() == 0 {
		return
	}

	// Roots nothing references anymore are released right away. Every other
	// root is trial-deleted, even one that gained an edge since it was
	// buffered: the edge may come from a module that is itself garbage.
	// Releasing can buffer new roots, so loop until nothing is released.
	for released := true; released; {
		released = false
		for _, path := range gc.possibleRoots.Keys() {
			mod, ok := g.modules.Get(path)
			if !ok {
				gc.possibleRoots.Delete(path)
				continue
			}
			if mod.InverseDependencies.Cardinality() == 0 && !g.IsEntryPoint(path) {
				gc.possibleRoots.Delete(path)
				g.releaseModule(mod, d)
				released = true
				continue
			}
			gc.colors[path] = purple
		}
	}

	// Mark: trial-delete every edge reachable from a purple root.
	for _, path := range gc.possibleRoots.Keys() {
		if mod, ok := g.modules.Get(path); ok && gc.color(path) == purple {
			g.markGray(mod)
		}
	}

	// Scan: restore whatever is still referenced from outside.
	for _, path := range gc.possibleRoots.Keys() {
		if mod, ok := g.modules.Get(path); ok {
			g.scan(mod)
		}
	}

	// Collect: free what stayed white.
	roots := gc.possibleRoots.Keys()
	gc.possibleRoots = orderedmap.NewOrderedMap[string, struct{}]()
	for _, path := range roots {
		if mod, ok := g.modules.Get(path); ok {
			g.collectWhite(mod, d)
		}
	}
}

func (g *Graph[T]) markGray(mod *Module[T]) {
	if g.gc.color(mod.Path) == gray {
		return
	}
	g.gc.colors[mod.Path] = gray
	for _, path := range g.children(mod) {
		child, ok := g.modules.Get(path)
		if !ok {
			continue
		}
		// Restored by scanBlack if mod turns out to be live.
		child.InverseDependencies.Remove(mod.Path)
		g.markGray(child)
	}
}

func (g *Graph[T]) scan(mod *Module[T]) {
	if g.gc.color(mod.Path) != gray {
		return
	}
	if mod.InverseDependencies.Cardinality() > 0 || g.IsEntryPoint(mod.Path) {
		g.scanBlack(mod)
		return
	}
	g.gc.colors[mod.Path] = white
	for _, path := range g.children(mod) {
		if child, ok := g.modules.Get(path); ok {
			g.scan(child)
		}
	}
}

func (g *Graph[T]) scanBlack(mod *Module[T]) {
	g.gc.colors[mod.Path] = black
	for _, path := range g.children(mod) {
		child, ok := g.modules.Get(path)
		if !ok {
			continue
		}
		child.InverseDependencies.Add(mod.Path)
		if g.gc.color(path) != black {
			g.scanBlack(child)
		}
	}
}

func (g *Graph[T]) collectWhite(mod *Module[T], d *delta) {
	if g.gc.color(mod.Path) != white {
		return
	}
	g.gc.colors[mod.Path] = black
	for el := mod.Dependencies.Front(); el != nil; el = el.Next() {
		dep := el.Value
		if g.isLazy(dep) {
			g.releaseImportBundle(mod.Path, dep.AbsolutePath)
			continue
		}
		if child, ok := g.modules.Get(dep.AbsolutePath); ok {
			g.collectWhite(child, d)
		}
	}
	g.freeModule(mod, d)
}
