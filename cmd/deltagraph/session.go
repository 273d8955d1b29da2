// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/deltagraph/deltagraph/internal/bundler"
	"github.com/deltagraph/deltagraph/internal/config"
	"github.com/deltagraph/deltagraph/internal/graph"
	"github.com/deltagraph/deltagraph/internal/issue"
	"github.com/deltagraph/deltagraph/internal/metrics"
	"github.com/deltagraph/deltagraph/internal/resolver"
	"github.com/deltagraph/deltagraph/internal/transform"
	"github.com/deltagraph/deltagraph/internal/watch"
)

// session is one configured graph with its collaborators.
type session struct {
	cfg      *config.Config
	root     string
	log      *log.Logger
	resolver *resolver.Resolver
	cache    transform.Cache
	metrics  *metrics.Collector
	graph    *graph.Graph[transform.Output]
	calc     *bundler.Calculator[transform.Output]
}

func (a *App) openSession(cfg *config.Config) (*session, error) {
	root := cfg.Root(a.workDir)
	logger := newLogger(a.stderr, cfg.Log.Level)

	res, err := resolver.New(resolver.Config{
		Fs:               a.Fs,
		SourceExts:       cfg.SourceExts,
		AssetExts:        cfg.AssetExts,
		Platform:         string(cfg.Platform),
		NodeModulesPaths: cfg.AbsNodeModulesPaths(root),
	})
	if err != nil {
		return nil, err
	}

	cache, err := openCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	collector := metrics.New()
	tr := transform.New(transform.Config{
		Fs:        a.Fs,
		AssetExts: cfg.AssetExts,
		Cache:     cache,
		Logger:    logger,
	})

	var graphOpts []graph.Option
	if cfg.LazyAsync {
		graphOpts = append(graphOpts, graph.WithLazyAsync())
	}
	g := graph.New[transform.Output](cfg.AbsEntryPoints(root), graphOpts...)

	calc := bundler.NewCalculator(g, graph.Options[transform.Output]{
		Transformer: metrics.InstrumentTransformer(collector, tr),
		Resolver:    res,
		Progress:    graph.MultiProgress(collector, graph.ProgressRatio(logProgress(logger))),
		Workers:     cfg.Workers,
		Logger:      logger,
	})

	logger.Debug("session ready", "root", root, "entries", len(cfg.EntryPoints), "cache", cfg.Cache.Enabled)
	return &session{
		cfg:      cfg,
		root:     root,
		log:      logger,
		resolver: res,
		cache:    cache,
		metrics:  collector,
		graph:    g,
		calc:     calc,
	}, nil
}

// progressLogEvery is how many processed modules pass between two progress
// lines; the end of every pass is always logged.
const progressLogEvery = 250

// logProgress logs transform progress at debug level. Counts accumulate over
// the life of the session.
func logProgress(logger *log.Logger) graph.ProgressFunc {
	last := 0
	return func(processed, total int) {
		if processed == last {
			return
		}
		last = processed
		if processed == total || processed%progressLogEvery == 0 {
			logger.Debug("transform progress", "processed", processed, "total", total)
		}
	}
}

func openCache(cfg *config.Config, logger *log.Logger) (transform.Cache, error) {
	if !cfg.Cache.Enabled {
		return transform.NopCache{}, nil
	}
	errCtx := issue.NewErrorContext().
		WithOperation("open transform cache").
		WithIssue(issue.CacheUnavailableId).
		WithSuggestion("Run with --no-cache")

	dir, err := cfg.Cache.Dir.Resolve()
	if err != nil {
		return nil, errCtx.Wrap(err).BuildError()
	}
	bc, err := transform.OpenBadgerCache(dir, logger.WithPrefix("cache"))
	if err != nil {
		return nil, errCtx.WithResource(dir).Wrap(err).BuildError()
	}
	return bc, nil
}

// update computes the next delta and records it. Errors are returned after
// being counted, so a caller in watch mode can report them and carry on.
func (s *session) update(ctx context.Context) (bundler.DeltaResult[transform.Output], time.Duration, error) {
	start := time.Now()
	delta, err := s.calc.GetDelta(ctx)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.ObserveDeltaFailure(s.graph.Len())
		}
		return delta, elapsed, err
	}
	s.metrics.ObserveDelta(metrics.Delta{
		Duration:  elapsed,
		Added:     len(delta.Added),
		Modified:  len(delta.Modified),
		Deleted:   len(delta.Deleted),
		Reset:     delta.Reset,
		GraphSize: s.graph.Len(),
	})
	return delta, elapsed, nil
}

// handleChanges forwards watcher events to the calculator. A changed
// package.json can change how anything resolves, so it drops the resolver's
// package cache.
func (s *session) handleChanges(changes []watch.Change) {
	for _, c := range changes {
		if filepath.Base(c.Path) == "package.json" {
			s.log.Debug("package.json changed, purging resolver cache", "path", s.rel(c.Path))
			s.resolver.Purge()
			break
		}
	}
	s.calc.HandleChanges(changes...)
}

// rel returns path relative to the project root when it lies inside it.
func (s *session) rel(path string) string {
	r, err := filepath.Rel(s.root, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return path
	}
	return r
}

func (s *session) close() error {
	s.calc.End()
	return s.cache.Close()
}
