// SPDX-License-Identifier: MPL-2.0

// Package graph maintains the module dependency graph of a bundle and keeps it
// up to date incrementally.
//
// A Graph is keyed by absolute module path. Every Module records its outgoing
// edges (keyed by the name used in source) and the set of modules that depend
// on it; the inverse set doubles as a reference count. Entry points are never
// collected.
//
// Two passes mutate a graph:
//
//   - InitialTraverseDependencies builds the graph from the entry points.
//   - TraverseDependencies re-processes changed files and returns only the
//     modules that were added, modified or deleted as a result.
//
// A pass is driven by a single coordinating goroutine that owns the graph.
// Transform and resolve calls run on a bounded pool of worker goroutines and
// report back over a channel, so graph mutation never needs a lock. Concurrent
// passes over one Graph are not supported; callers serialize them.
//
// After every pass the graph is linearized: modules are reordered by a
// depth-first pre-order walk from the entry points so that iteration order only
// depends on the graph structure, never on the order in which work completed.
package graph
