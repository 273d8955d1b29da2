// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deltagraph/deltagraph/internal/bundler"
	"github.com/deltagraph/deltagraph/internal/metrics"
	"github.com/deltagraph/deltagraph/internal/transform"
	"github.com/deltagraph/deltagraph/internal/watch"
)

func newWatchCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [entry...]",
		Short: "Keep the module graph up to date and print every change",
		Long: `Build the module graph, then watch the project root and print a delta
after each batch of file changes. Stop with Ctrl+C.

When metrics.addr is configured, Prometheus metrics are served on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runWatch(cmd, flags, args)
		},
	}
}

func (a *App) runWatch(cmd *cobra.Command, flags *rootFlags, entries []string) error {
	loaded, err := a.loadConfig(cmd, flags, entries)
	if err != nil {
		return a.fail(cmd, flags, err)
	}
	cfg := loaded.Config
	s, err := a.openSession(cfg)
	if err != nil {
		return a.fail(cmd, flags, err)
	}
	defer func() {
		if closeErr := s.close(); closeErr != nil {
			s.log.Warn("close session", "err", closeErr)
		}
	}()

	patterns := cfg.Watch.Patterns
	if len(patterns) == 0 {
		patterns = []string{"**/*"}
	}
	w, err := watch.New(watch.Config{
		Patterns: patterns,
		Ignore:   cfg.Watch.Ignore,
		Debounce: cfg.Watch.Debounce.Duration(),
		BaseDir:  s.root,
		OnChange: func(_ context.Context, changes []watch.Change) error {
			s.handleChanges(changes)
			return nil
		},
		Logger: s.log.WithPrefix("watch"),
	})
	if err != nil {
		return a.fail(cmd, flags, err)
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return w.Run(ctx) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return metrics.Serve(ctx, cfg.Metrics.Addr, s.metrics, s.log) })
	}
	g.Go(func() error {
		a.deltaLoop(ctx, s, flags.verbose)
		return nil
	})

	fmt.Fprintf(a.stderr, "%s watching %s\n", SubtitleStyle.Render("•"), PathStyle.Render(s.root))
	if err := g.Wait(); err != nil {
		return a.fail(cmd, flags, err)
	}
	return nil
}

// deltaLoop prints the initial build, then one delta per notification,
// until ctx is done. Failed deltas are reported and the loop carries on:
// the calculator keeps the changes and retries them with the next batch.
func (a *App) deltaLoop(ctx context.Context, s *session, verbose bool) {
	notify, unsubscribe := s.calc.Subscribe()
	defer unsubscribe()

	a.printUpdate(ctx, s, verbose)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notify:
			if !ok {
				return
			}
			a.printUpdate(ctx, s, verbose)
		}
	}
}

func (a *App) printUpdate(ctx context.Context, s *session, verbose bool) {
	delta, elapsed, err := s.update(ctx)
	if err != nil {
		if ctx.Err() == nil {
			reportError(a.stderr, err, verbose)
		}
		return
	}
	if delta.Empty() {
		return
	}
	writeDelta(a.stdout, s, delta, elapsed)
}

func writeDelta(w io.Writer, s *session, d bundler.DeltaResult[transform.Output], elapsed time.Duration) {
	title := "update"
	if d.Reset {
		title = "build"
	}
	fmt.Fprintf(w, "%s %s +%d ~%d -%d %s\n", TitleStyle.Render("Δ"), title,
		len(d.Added), len(d.Modified), len(d.Deleted),
		SubtitleStyle.Render(elapsed.Round(time.Millisecond).String()))
	for _, m := range d.Added {
		fmt.Fprintf(w, "  %s %s\n", addedStyle.Render("+"), s.rel(m.Path))
	}
	for _, m := range d.Modified {
		fmt.Fprintf(w, "  %s %s\n", modifiedStyle.Render("~"), s.rel(m.Path))
	}
	for _, p := range d.Deleted {
		fmt.Fprintf(w, "  %s %s\n", deletedStyle.Render("-"), s.rel(p))
	}
}
