// SPDX-License-Identifier: MPL-2.0

// Package bundler keeps a module graph in sync with file changes and hands
// out the difference since the previous request.
package bundler

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/deltagraph/deltagraph/internal/graph"
	"github.com/deltagraph/deltagraph/internal/watch"
)

type (
	// DeltaResult is the change set returned by GetDelta.
	DeltaResult[T any] struct {
		// Added lists modules new to the graph, in graph order. After a reset it
		// lists every module.
		Added []*graph.Module[T]
		// Modified lists modules that were re-processed, in graph order.
		Modified []*graph.Module[T]
		// Deleted lists removed paths, sorted.
		Deleted []string
		// Reset is set when the graph was built from scratch and the caller must
		// discard everything it knew.
		Reset bool
	}

	// Calculator owns a graph and the file events that happened since the last
	// delta. It is safe for concurrent use; deltas are computed one at a time.
	Calculator[T any] struct {
		graph *graph.Graph[T]
		opts  graph.Options[T]
		log   *log.Logger

		build sync.Mutex

		mu          sync.Mutex
		modified    mapset.Set[string]
		deleted     mapset.Set[string]
		subscribers map[chan struct{}]struct{}
		ended       bool
	}
)

// Empty reports whether nothing changed.
func (r DeltaResult[T]) Empty() bool {
	return !r.Reset && len(r.Added) == 0 && len(r.Modified) == 0 && len(r.Deleted) == 0
}

// NewCalculator returns a Calculator for g. The first GetDelta builds the
// graph.
func NewCalculator[T any](g *graph.Graph[T], opts graph.Options[T]) *Calculator[T] {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Calculator[T]{
		graph:       g,
		opts:        opts,
		log:         logger,
		modified:    mapset.NewThreadUnsafeSet[string](),
		deleted:     mapset.NewThreadUnsafeSet[string](),
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Graph returns the underlying graph. It must not be read while a delta is
// being computed.
func (c *Calculator[T]) Graph() *graph.Graph[T] {
	return c.graph
}

// HandleChanges records file events and notifies subscribers. The last event
// for a path wins: a deleted file stops counting as modified and a file that
// reappears is no longer deleted.
func (c *Calculator[T]) HandleChanges(changes ...watch.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended || len(changes) == 0 {
		return
	}
	for _, ch := range changes {
		if ch.Deleted {
			c.deleted.Add(ch.Path)
			c.modified.Remove(ch.Path)
		} else {
			c.deleted.Remove(ch.Path)
			c.modified.Add(ch.Path)
		}
	}
	for sub := range c.subscribers {
		select {
		case sub <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel that receives a value after file changes, and a
// function that cancels the subscription. Notifications are coalesced.
func (c *Calculator[T]) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		close(ch)
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subscribers[ch]; ok {
				delete(c.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Reset forgets pending changes and the graph; the next delta rebuilds it.
func (c *Calculator[T]) Reset() {
	c.build.Lock()
	defer c.build.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// End resets the calculator, closes every subscription and ignores further
// changes.
func (c *Calculator[T]) End() {
	c.build.Lock()
	defer c.build.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.ended = true
	for sub := range c.subscribers {
		delete(c.subscribers, sub)
		close(sub)
	}
}

func (c *Calculator[T]) reset() {
	c.modified.Clear()
	c.deleted.Clear()
	c.graph.Reset()
}

// GetDelta brings the graph up to date with the changes seen so far and
// returns what changed. If it fails, the changes are kept for the next call
// and the graph is rebuilt from scratch when it may have been left
// inconsistent.
func (c *Calculator[T]) GetDelta(ctx context.Context) (DeltaResult[T], error) {
	c.build.Lock()
	defer c.build.Unlock()

	c.mu.Lock()
	modified, deleted := c.modified, c.deleted
	c.modified = mapset.NewThreadUnsafeSet[string]()
	c.deleted = mapset.NewThreadUnsafeSet[string]()
	c.mu.Unlock()

	size := c.graph.Len()
	start := time.Now()
	res, err := c.changedDependencies(ctx, modified, deleted)
	if err != nil {
		c.requeue(modified, deleted)

		if c.graph.Len() != size || c.graph.Validate() != nil {
			c.log.Debug("discarding graph after failed update", "modules", c.graph.Len())
			c.graph.Reset()
		}
		return DeltaResult[T]{}, err
	}

	c.log.Debug("delta computed",
		"reset", res.Reset, "added", len(res.Added), "modified", len(res.Modified), "deleted", len(res.Deleted),
		"duration", time.Since(start))
	return res, nil
}

// requeue puts the changes of a failed pass back. Changes that arrived
// during the pass are newer, so they win.
func (c *Calculator[T]) requeue(modified, deleted mapset.Set[string]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	newModified, newDeleted := c.modified, c.deleted
	c.modified = newModified.Union(modified.Difference(newDeleted))
	c.deleted = newDeleted.Union(deleted.Difference(newModified))
}

func (c *Calculator[T]) changedDependencies(ctx context.Context, modified, deleted mapset.Set[string]) (DeltaResult[T], error) {
	if c.graph.Len() == 0 {
		res, err := c.graph.InitialTraverseDependencies(ctx, c.opts)
		if err != nil {
			return DeltaResult[T]{}, err
		}
		return DeltaResult[T]{Added: values(res), Reset: true}, nil
	}

	for _, path := range deleted.ToSlice() {
		for _, parent := range c.graph.ModifiedModulesForDeletedPath(path) {
			modified.Add(parent)
		}
		// Rebuilding a deleted entry point surfaces the missing file.
		if c.graph.IsEntryPoint(path) {
			modified.Add(path)
		}
	}

	paths := modified.ToSlice()
	slices.Sort(paths)
	paths = slices.DeleteFunc(paths, func(p string) bool { return !c.graph.Has(p) })
	if len(paths) == 0 {
		return DeltaResult[T]{}, nil
	}

	res, err := c.graph.TraverseDependencies(ctx, paths, c.opts)
	if err != nil {
		return DeltaResult[T]{}, err
	}

	var delta DeltaResult[T]
	for el := res.Added.Front(); el != nil; el = el.Next() {
		if res.Modified.Contains(el.Key) {
			delta.Modified = append(delta.Modified, el.Value)
		} else {
			delta.Added = append(delta.Added, el.Value)
		}
	}
	if res.Deleted.Cardinality() > 0 {
		delta.Deleted = res.Deleted.ToSlice()
		slices.Sort(delta.Deleted)
	}
	return delta, nil
}

func values[T any](res graph.Result[T]) []*graph.Module[T] {
	mods := make([]*graph.Module[T], 0, res.Added.Len())
	for el := res.Added.Front(); el != nil; el = el.Next() {
		mods = append(mods, el.Value)
	}
	return mods
}
