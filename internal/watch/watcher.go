// SPDX-License-Identifier: MPL-2.0

// Package watch reports debounced batches of file changes under a project
// root. Each batch carries absolute paths and whether the file is gone, which
// is what incremental graph updates need.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Config.Debounce is not positive.
const DefaultDebounce = 100 * time.Millisecond

var (
	// ErrInvalidConfig is wrapped by *InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid watch configuration")
	// ErrWatcherExhausted is returned by Run when the operating system runs
	// out of watch descriptors.
	ErrWatcherExhausted = errors.New("watch limit reached")
)

// defaultIgnores are never reported.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/.cache/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Change is one file event after coalescing.
	Change struct {
		// Path is absolute.
		Path string
		// Deleted is set when the last event seen for Path removed or renamed it.
		Deleted bool
	}

	// Config configures a Watcher.
	Config struct {
		// Patterns select the files that are reported, relative to BaseDir
		// (doublestar syntax). Empty reports everything not ignored.
		Patterns []string
		// Ignore is merged with the built-in ignores.
		Ignore []string
		// Debounce is the quiet period before a batch is delivered.
		Debounce time.Duration
		// BaseDir defaults to the working directory.
		BaseDir string
		// OnChange receives every batch, sorted by path. Batches are never
		// delivered concurrently.
		OnChange func(ctx context.Context, changes []Change) error
		Logger   *log.Logger
	}

	// InvalidConfigError lists every invalid Config field.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Watcher delivers debounced change batches. Run may only be called once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		debounce time.Duration
		baseDir  string
		log      *log.Logger
		started  atomic.Bool
	}
)

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("%s: %d field error(s): %v", ErrInvalidConfig, len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks the glob patterns and the base directory.
func (c Config) Validate() error {
	var errs []error
	for _, p := range c.Patterns {
		if err := validatePattern(p, "watch"); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.Ignore {
		if err := validatePattern(p, "ignore"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.BaseDir != "" && strings.TrimSpace(c.BaseDir) == "" {
		errs = append(errs, errors.New("base directory is blank"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// New validates cfg and registers every directory under BaseDir that is not
// ignored.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: debounce,
		baseDir:  absBase,
		log:      logger,
	}
	if err := w.addTree(absBase); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close watcher after failed start", "err", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// BaseDir returns the absolute directory being watched.
func (w *Watcher) BaseDir() string {
	return w.baseDir
}

// Run delivers batches until ctx is done. It returns nil on cancellation and
// an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.log.Warn("close fsnotify", "err", err)
		}
	}()

	b := &batcher{w: w, ctx: ctx, pending: make(map[string]bool)}
	defer b.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			w.handle(b, evt)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isWatcherExhausted(err) {
				return fmt.Errorf("watch: %w: %w", ErrWatcherExhausted, err)
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(b *batcher, evt fsnotify.Event) {
	if evt.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(w.baseDir, evt.Name)
	if err != nil {
		rel = evt.Name
	}
	if w.ignored(rel) {
		return
	}
	if evt.Has(fsnotify.Create) && w.addNewDir(evt.Name) {
		return
	}
	if !w.matches(rel) {
		return
	}

	deleted := evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename)
	w.log.Debug("file event", "path", rel, "op", evt.Op.String())
	b.add(evt.Name, deleted)
}

// batcher coalesces events per path until the debounce timer fires.
type batcher struct {
	w       *Watcher
	ctx     context.Context
	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
	busy    atomic.Bool
}

func (b *batcher) add(path string, deleted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[path] = deleted
	if b.timer == nil {
		b.timer = time.AfterFunc(b.w.debounce, b.flush)
	} else {
		b.timer.Reset(b.w.debounce)
	}
}

func (b *batcher) flush() {
	if b.ctx.Err() != nil {
		return
	}
	if !b.busy.CompareAndSwap(false, true) {
		// A batch is still being handled; try again after another quiet period.
		b.mu.Lock()
		b.timer.Reset(b.w.debounce)
		b.mu.Unlock()
		return
	}
	defer b.busy.Store(false)

	b.mu.Lock()
	changes := make([]Change, 0, len(b.pending))
	for _, path := range slices.Sorted(maps.Keys(b.pending)) {
		changes = append(changes, Change{Path: path, Deleted: b.pending[path]})
	}
	clear(b.pending)
	b.mu.Unlock()

	if len(changes) == 0 || b.w.cfg.OnChange == nil {
		return
	}
	if err := b.w.cfg.OnChange(b.ctx, changes); err != nil {
		b.w.log.Error("change handler failed", "err", err)
	}
}

func (b *batcher) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
}

// addTree registers root and every directory below it that is not ignored.
func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("skipping unreadable path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil //nolint:nilerr // not below the base directory
		}
		if rel != "." && (w.ignored(rel) || w.ignored(rel+"/")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", root, err)
	}
	return nil
}

// addNewDir starts watching a directory created after startup and reports
// whether path was a directory.
func (w *Watcher) addNewDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if err := w.addTree(path); err != nil {
		w.log.Warn("watch new directory", "path", path, "err", err)
	}
	return true
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matches(rel string) bool {
	return len(w.cfg.Patterns) == 0 || matchAny(w.cfg.Patterns, rel)
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func matchAny(patterns []string, rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

func validatePattern(pattern, label string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("empty %s pattern", label)
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid %s pattern %q", label, pattern)
	}
	return nil
}
