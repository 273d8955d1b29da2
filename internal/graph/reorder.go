// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
)

// ReorderGraph linearizes the graph: modules are re-inserted in depth-first
// pre-order, starting from each entry point in declaration order and
// following each module's edges in the order they were reported. The result
// only depends on the structure of the graph.
//
// A referenced module that is missing from the graph, or a module that is not
// reachable from any entry point, yields a *ConsistencyError and leaves the
// graph untouched.
func (g *Graph[T]) ReorderGraph() error {
	ordered := orderedmap.NewOrderedMap[string, *Module[T]]()

	// Iterative walk: the stack holds paths still to visit, pushed in
	// reverse so that the first edge is visited first.
	for _, entry := range g.entryPoints {
		stack := []string{entry}
		for len(stack) > 0 {
			path := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, seen := ordered.Get(path); seen {
				continue
			}

			mod, ok := g.modules.Get(path)
			if !ok {
				return &ConsistencyError{Path: path, Reason: "referenced module is not in the graph"}
			}
			ordered.Set(path, mod)

			children := g.children(mod)
			for i := len(children) - 1; i >= 0; i-- {
				if _, seen := ordered.Get(children[i]); !seen {
					stack = append(stack, children[i])
				}
			}
		}
	}

	if ordered.Len() != g.modules.Len() {
		for el := g.modules.Front(); el != nil; el = el.Next() {
			if _, ok := ordered.Get(el.Key); !ok {
				return &ConsistencyError{
					Path:   el.Key,
					Reason: fmt.Sprintf("module is unreachable from the entry points (%d of %d visited)", ordered.Len(), g.modules.Len()),
				}
			}
		}
	}

	g.modules = ordered
	return nil
}
