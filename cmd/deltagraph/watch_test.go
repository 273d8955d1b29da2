// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/deltagraph/deltagraph/internal/config"
	"github.com/deltagraph/deltagraph/internal/watch"
)

func TestDeltaLoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, baseProject)
	cfg := config.DefaultConfig()
	cfg.ProjectRoot = testRoot
	cfg.Cache.Enabled = false
	s, err := env.app.openSession(cfg)
	if err != nil {
		t.Fatalf("openSession() error = %v", err)
	}
	t.Cleanup(func() { _ = s.close() })

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		env.app.deltaLoop(ctx, s, false)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	eventually(t, "initial build", func() bool {
		return strings.Contains(env.stdout.String(), "Δ build +3 ~0 -0")
	})

	env.write(t, "b.js", "import './c';\n")
	env.write(t, "c.js", "")
	s.handleChanges([]watch.Change{{Path: testRoot + "/b.js"}})
	eventually(t, "update adding c.js", func() bool {
		out := env.stdout.String()
		return strings.Contains(out, "Δ update +1 ~1 -0") && strings.Contains(out, "+ c.js") && strings.Contains(out, "~ b.js")
	})

	env.write(t, "index.js", "const b = require('./b');\n")
	s.handleChanges([]watch.Change{{Path: testRoot + "/index.js"}})
	eventually(t, "update dropping a.js", func() bool {
		return strings.Contains(env.stdout.String(), "- a.js")
	})

	env.write(t, "index.js", "import './gone';\n")
	s.handleChanges([]watch.Change{{Path: testRoot + "/index.js"}})
	eventually(t, "error report", func() bool {
		return strings.Contains(env.stderr.String(), `unable to resolve module "./gone"`)
	})

	// The loop survives a failed update.
	env.write(t, "gone.js", "")
	s.handleChanges([]watch.Change{{Path: testRoot + "/gone.js"}})
	eventually(t, "recovery", func() bool {
		return strings.Contains(env.stdout.String(), "+ gone.js")
	})
}

func TestSessionRel(t *testing.T) {
	t.Parallel()

	s := &session{root: "/proj"}
	tests := map[string]string{
		"/proj/a.js":                "a.js",
		"/proj/src/b.js":            "src/b.js",
		"/other/c.js":               "/other/c.js",
		"/project-sibling/d.js":     "/project-sibling/d.js",
		"/proj/node_modules/x/i.js": "node_modules/x/i.js",
	}
	for in, want := range tests {
		if got := s.rel(in); got != want {
			t.Errorf("rel(%q) = %q, want %q", in, got, want)
		}
	}
}
