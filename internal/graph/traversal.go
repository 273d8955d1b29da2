// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/elliotchance/orderedmap/v2"
	"golang.org/x/sync/semaphore"
)

type (
	// node tracks one processModule call of a pass. pending counts its own
	// outstanding job plus every child it spawned that has not finished.
	node struct {
		path    string
		parent  *node
		pending int
		// counted nodes were discovered through an edge and report progress.
		counted bool
	}

	jobResult[T any] struct {
		node   *node
		output T
		deps   *orderedmap.OrderedMap[string, Dependency]
		err    error
	}

	// pass is the coordinator of a single traversal. Only the goroutine that
	// calls wait touches the graph or the delta.
	pass[T any] struct {
		g        *Graph[T]
		opts     Options[T]
		ctx      context.Context
		cancel   context.CancelFunc
		delta    *delta
		sem      *semaphore.Weighted
		results  chan jobResult[T]
		inflight int
		err      error
		log      *log.Logger
	}
)

func newPass[T any](ctx context.Context, g *Graph[T], opts Options[T]) (*pass[T], error) {
	if opts.Transformer == nil || opts.Resolver == nil {
		return nil, ErrMissingCollaborator
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	ctx, cancel := context.WithCancel(ctx)
	return &pass[T]{
		g:       g,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		delta:   newDelta(),
		sem:     semaphore.NewWeighted(int64(workers)),
		results: make(chan jobResult[T], workers),
		log:     logger,
	}, nil
}

// InitialTraverseDependencies builds the graph from its entry points. All
// entry points are processed concurrently. Every module of the resulting
// graph is reported as added, in linearized order.
//
// On error the graph is left partially built and must be Reset before it is
// used again.
func (g *Graph[T]) InitialTraverseDependencies(ctx context.Context, opts Options[T]) (Result[T], error) {
	if g.modules.Len() > 0 {
		return Result[T]{}, ErrGraphNotEmpty
	}
	p, err := newPass(ctx, g, opts)
	if err != nil {
		return Result[T]{}, err
	}
	defer p.cancel()

	start := time.Now()
	for _, entry := range g.entryPoints {
		p.delta.reserve(entry)
		p.process(entry, nil, false)
	}
	if err := p.wait(); err != nil {
		return Result[T]{}, err
	}
	if err := g.ReorderGraph(); err != nil {
		return Result[T]{}, err
	}

	res := newResult[T]()
	for el := g.modules.Front(); el != nil; el = el.Next() {
		res.Added.Set(el.Key, el.Value)
	}
	p.log.Debug("initial traversal complete", "entries", len(g.entryPoints), "modules", res.Added.Len(), "duration", time.Since(start))
	return res, nil
}

// TraverseDependencies re-processes the given files and updates the graph
// accordingly. Paths that are not part of the graph are ignored. Changed
// files are processed one after another; everything a file pulls in is
// processed concurrently.
//
// On error the graph is left in an undefined state and must be Reset before
// it is used again.
func (g *Graph[T]) TraverseDependencies(ctx context.Context, paths []string, opts Options[T]) (Result[T], error) {
	p, err := newPass(ctx, g, opts)
	if err != nil {
		return Result[T]{}, err
	}
	defer p.cancel()

	start := time.Now()
	for _, path := range paths {
		if p.delta.modified.Contains(path) {
			continue
		}
		if !g.Has(path) {
			p.log.Debug("skipping path outside of the graph", "path", path)
			continue
		}
		p.delta.modified.Add(path)
		p.process(path, nil, false)
		if err := p.wait(); err != nil {
			return Result[T]{}, err
		}
	}

	g.collectCycles(p.delta)
	if err := g.ReorderGraph(); err != nil {
		return Result[T]{}, err
	}

	res := result(g, p.delta)
	p.log.Debug("traversal complete",
		"changed", len(paths), "added", res.Added.Len(), "deleted", res.Deleted.Cardinality(), "duration", time.Since(start))
	return res, nil
}

// process schedules path for processing on the worker pool.
func (p *pass[T]) process(path string, parent *node, counted bool) {
	n := &node{path: path, parent: parent, pending: 1, counted: counted}
	if parent != nil {
		parent.pending++
	}
	p.inflight++
	go p.work(n)
}

func (p *pass[T]) work(n *node) {
	r := jobResult[T]{node: n}
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		r.err = err
		p.results <- r
		return
	}
	r.output, r.deps, r.err = p.processModule(n.path)
	p.sem.Release(1)
	p.results <- r
}

// wait applies results until no job is in flight. After the first error the
// remaining jobs are cancelled and drained without being applied.
func (p *pass[T]) wait() error {
	for p.inflight > 0 {
		r := <-p.results
		p.inflight--
		if p.err != nil {
			continue
		}
		if r.err == nil {
			r.err = p.apply(r)
		}
		if r.err != nil {
			p.err = r.err
			p.cancel()
		}
	}
	return p.err
}

// settle reports completion of n and of every ancestor it was the last
// outstanding child of.
func (p *pass[T]) settle(n *node) {
	for n != nil && n.pending == 0 {
		if n.counted && p.opts.Progress != nil {
			p.opts.Progress.DependencyProcessed()
		}
		n = n.parent
		if n != nil {
			n.pending--
		}
	}
}

// addDependency records the edge parent -> dep and pulls dep's target into
// the graph if needed.
func (p *pass[T]) addDependency(parent *Module[T], dep Dependency, n *node) {
	g := p.g
	target := dep.AbsolutePath

	if g.isLazy(dep) {
		g.retainImportBundle(parent.Path, target)
		return
	}

	if mod, ok := g.modules.Get(target); ok {
		mod.InverseDependencies.Add(parent.Path)
		g.gc.markInUse(target)
		return
	}

	// Already in flight in this pass, either from a sibling branch or from an
	// ancestor (a cycle).
	if reserved, ok := p.delta.reservation(target); ok {
		reserved.Add(parent.Path)
		return
	}

	p.delta.markAdded(target)
	p.delta.reserve(target, parent.Path)
	if p.opts.Progress != nil {
		p.opts.Progress.DependencyDiscovered()
	}
	p.process(target, n, true)
}

// removeDependency drops the edge parent -> dep and releases the target once
// nothing references it anymore.
func (p *pass[T]) removeDependency(parent *Module[T], dep Dependency) {
	p.g.unlink(parent.Path, dep, p.delta)
}

func (g *Graph[T]) unlink(parent string, dep Dependency, d *delta) {
	if g.isLazy(dep) {
		g.releaseImportBundle(parent, dep.AbsolutePath)
		return
	}

	mod, ok := g.modules.Get(dep.AbsolutePath)
	if !ok {
		return
	}
	mod.InverseDependencies.Remove(parent)

	if g.IsEntryPoint(mod.Path) {
		return
	}
	if mod.InverseDependencies.Cardinality() > 0 {
		// Still referenced, possibly only from within a cycle that just
		// became unreachable.
		g.gc.markPossibleRoot(mod.Path)
		return
	}
	g.releaseModule(mod, d)
}

// releaseModule removes mod from the graph and cascades to its own edges.
// The module leaves the graph before the cascade so that cyclic edges back
// to it are no-ops.
func (g *Graph[T]) releaseModule(mod *Module[T], d *delta) {
	g.freeModule(mod, d)
	for el := mod.Dependencies.Front(); el != nil; el = el.Next() {
		g.unlink(mod.Path, el.Value, d)
	}
}

// freeModule deletes mod from the graph and from every piece of per-pass and
// cycle collection state.
func (g *Graph[T]) freeModule(mod *Module[T], d *delta) {
	d.deleted.Add(mod.Path)
	d.release(mod.Path)
	g.modules.Delete(mod.Path)
	g.gc.forget(mod.Path)
}
