// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/deltagraph/deltagraph/internal/graph"
)

type fakeTransformer struct {
	err error
}

func (f fakeTransformer) Transform(ctx context.Context, _ string) (graph.TransformResult[string], error) {
	if err := ctx.Err(); err != nil {
		return graph.TransformResult[string]{}, err
	}
	if f.err != nil {
		return graph.TransformResult[string]{}, f.err
	}
	return graph.TransformResult[string]{Output: "ok"}, nil
}

func TestCollector_Progress(t *testing.T) {
	t.Parallel()

	c := New()
	p := graph.MultiProgress(c)
	for range 3 {
		p.DependencyDiscovered()
	}
	p.DependencyProcessed()

	if got := testutil.ToFloat64(c.discovered); got != 3 {
		t.Errorf("discovered = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.processed); got != 1 {
		t.Errorf("processed = %v, want 1", got)
	}
}

func TestCollector_ObserveDelta(t *testing.T) {
	t.Parallel()

	c := New()
	c.ObserveDelta(Delta{Duration: 20 * time.Millisecond, Added: 3, Reset: true, GraphSize: 3})
	c.ObserveDelta(Delta{Duration: time.Millisecond, Modified: 1, Deleted: 2, GraphSize: 1})
	c.ObserveDeltaFailure(4)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"added", testutil.ToFloat64(c.deltaModules.WithLabelValues("added")), 3},
		{"modified", testutil.ToFloat64(c.deltaModules.WithLabelValues("modified")), 1},
		{"deleted", testutil.ToFloat64(c.deltaModules.WithLabelValues("deleted")), 2},
		{"resets", testutil.ToFloat64(c.resets), 1},
		{"failures", testutil.ToFloat64(c.deltaFailures), 1},
		{"modules", testutil.ToFloat64(c.modules), 4},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(c.deltaSeconds); n != 2 {
		t.Errorf("delta histogram series = %d, want 2 (reset true and false)", n)
	}
}

func TestInstrumentTransformer(t *testing.T) {
	t.Parallel()

	c := New()
	boom := errors.New("boom")

	ok := InstrumentTransformer[string](c, fakeTransformer{})
	res, err := ok.Transform(t.Context(), "/a.js")
	if err != nil || res.Output != "ok" {
		t.Fatalf("Transform() = %v, %v", res, err)
	}

	failing := InstrumentTransformer[string](c, fakeTransformer{err: boom})
	if _, err := failing.Transform(t.Context(), "/b.js"); !errors.Is(err, boom) {
		t.Fatalf("error should pass through, got %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := ok.Transform(ctx, "/c.js"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if got := testutil.ToFloat64(c.transformFailures); got != 1 {
		t.Errorf("failures = %v, want 1 (cancellation is not a failure)", got)
	}
	if n := testutil.CollectAndCount(c.transformSeconds); n != 1 {
		t.Errorf("transform histogram series = %d, want 1", n)
	}
}

func TestCollector_Handler(t *testing.T) {
	t.Parallel()

	c := New()
	c.DependencyDiscovered()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"deltagraph_traversal_modules_discovered_total 1",
		"deltagraph_graph_modules 0",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestServe(t *testing.T) {
	t.Parallel()

	ln, err := (&net.ListenConfig{}).Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, New(), log.New(io.Discard)) }()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://"+ln.Addr().String()+"/metrics", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_BadAddress(t *testing.T) {
	t.Parallel()

	if err := Serve(t.Context(), "not an address", New(), log.New(io.Discard)); err == nil {
		t.Error("expected a listen error")
	}
}
