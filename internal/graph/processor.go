// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"errors"

	"github.com/elliotchance/orderedmap/v2"
)

// processModule transforms path and resolves its dependencies. It runs on a
// worker goroutine and must not touch the graph.
func (p *pass[T]) processModule(path string) (T, *orderedmap.OrderedMap[string, Dependency], error) {
	var zero T

	tr, err := p.opts.Transformer.Transform(p.ctx, path)
	if err != nil {
		return zero, nil, &TransformError{Path: path, Err: err}
	}

	deps := orderedmap.NewOrderedMap[string, Dependency]()
	seen := make(map[string]struct{}, len(tr.Dependencies))
	for _, raw := range tr.Dependencies {
		if _, dup := seen[raw.Name]; dup {
			return zero, nil, &DuplicateDependencyError{Path: path, Name: raw.Name}
		}
		seen[raw.Name] = struct{}{}

		abs, err := p.resolve(path, raw.Name)
		if err != nil {
			if raw.Optional && errors.Is(err, ErrUnresolvable) {
				p.log.Debug("skipping unresolvable optional dependency", "from", path, "name", raw.Name)
				continue
			}
			return zero, nil, err
		}
		deps.Set(raw.Name, Dependency{AbsolutePath: abs, Data: raw})
	}
	return tr.Output, deps, nil
}

func (p *pass[T]) resolve(from, name string) (string, error) {
	abs, err := p.opts.Resolver.Resolve(p.ctx, from, name)
	if err == nil {
		return abs, nil
	}
	var ue *UnresolvableError
	if errors.As(err, &ue) {
		return "", err
	}
	if ctxErr := p.ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	return "", &UnresolvableError{From: from, Name: name, Err: err}
}

// apply commits a processed module to the graph: it stores the new edges,
// releases the edges that went away and follows the new ones.
func (p *pass[T]) apply(r jobResult[T]) error {
	g := p.g
	n := r.node

	mod, existed := g.modules.Get(n.path)
	if !existed {
		inverse, ok := p.delta.reservation(n.path)
		if !ok {
			return &ConsistencyError{Path: n.path, Reason: "processed a module that was never reserved"}
		}
		mod = newModule[T](n.path, inverse)
		g.modules.Set(n.path, mod)
		g.gc.markInUse(n.path)
	}
	previous := mod.Dependencies
	mod.Dependencies = r.deps
	mod.Output = r.output

	for el := previous.Front(); el != nil; el = el.Next() {
		if cur, ok := r.deps.Get(el.Key); ok && g.sameEdge(cur, el.Value) {
			continue
		}
		if g.references(mod, el.Value) {
			continue
		}
		p.removeDependency(mod, el.Value)
	}

	// Releasing edges may have collected the module itself when it was only
	// reachable through a cycle that just broke.
	if cur, ok := g.modules.Get(n.path); ok && cur == mod {
		for el := r.deps.Front(); el != nil; el = el.Next() {
			if prev, ok := previous.Get(el.Key); ok && g.sameEdge(prev, el.Value) {
				continue
			}
			p.addDependency(mod, el.Value, n)
		}
	} else {
		p.log.Debug("module released while processing", "path", n.path)
	}

	n.pending--
	p.settle(n)
	return nil
}

func (g *Graph[T]) sameEdge(a, b Dependency) bool {
	return a.AbsolutePath == b.AbsolutePath && g.isLazy(a) == g.isLazy(b)
}
