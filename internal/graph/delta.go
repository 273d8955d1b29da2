// SPDX-License-Identifier: MPL-2.0

package graph

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// delta is the bookkeeping of a single traversal pass.
type delta struct {
	// added holds the discovered paths that were not part of the graph when
	// the pass started.
	added    mapset.Set[string]
	modified mapset.Set[string]
	deleted  mapset.Set[string]
	// inverseDependencies reserves modules that are being processed in this
	// pass. A module created for a reserved path adopts the reserved set as
	// its inverse dependencies, so parents recorded while it was in flight
	// are kept.
	inverseDependencies map[string]mapset.Set[string]
}

func newDelta() *delta {
	return &delta{
		added:               mapset.NewThreadUnsafeSet[string](),
		modified:            mapset.NewThreadUnsafeSet[string](),
		deleted:             mapset.NewThreadUnsafeSet[string](),
		inverseDependencies: make(map[string]mapset.Set[string]),
	}
}

// reserve records that path is being processed, seeding its inverse set
// with the given parents.
func (d *delta) reserve(path string, parents ...string) {
	d.inverseDependencies[path] = mapset.NewThreadUnsafeSet(parents...)
}

func (d *delta) markAdded(path string) {
	if !d.deleted.Contains(path) {
		d.added.Add(path)
	}
}

func (d *delta) reservation(path string) (mapset.Set[string], bool) {
	set, ok := d.inverseDependencies[path]
	return set, ok
}

func (d *delta) release(path string) {
	delete(d.inverseDependencies, path)
}

// result reconciles the delta against the live graph. A path that was both
// added and deleted within the pass cancels out when it ends up where it
// started: a module that appeared and vanished again was never seen by the
// caller, and a module that was dropped and rediscovered keeps the caller's
// copy valid. Otherwise the final state wins, so a module that existed before
// the pass and is gone after it is always reported as deleted.
func result[T any](g *Graph[T], d *delta) Result[T] {
	res := newResult[T]()

	for el := g.modules.Front(); el != nil; el = el.Next() {
		path := el.Key
		switch {
		case d.added.Contains(path):
			res.Added.Set(path, el.Value)
		case d.modified.Contains(path):
			res.Added.Set(path, el.Value)
			res.Modified.Add(path)
		}
	}

	d.deleted.Each(func(path string) bool {
		if !d.added.Contains(path) && !g.Has(path) {
			res.Deleted.Add(path)
		}
		return false
	})
	return res
}
