// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/deltagraph/deltagraph/internal/graph"
	"github.com/deltagraph/deltagraph/internal/resolver"
)

type (
	// Config configures a Transformer.
	Config struct {
		// Fs is the filesystem files are read from. Defaults to the OS.
		Fs afero.Fs
		// AssetExts lists asset extensions without a dot. Defaults to the
		// resolver's.
		AssetExts []string
		// Cache stores results by content hash. Defaults to NopCache.
		Cache  Cache
		Logger *log.Logger
	}

	// Transformer reads files and extracts their dependencies. It is safe for
	// concurrent use.
	Transformer struct {
		fs        afero.Fs
		assetExts []string
		cache     Cache
		logger    *log.Logger
	}
)

var _ graph.Transformer[Output] = (*Transformer)(nil)

// New creates a Transformer.
func New(cfg Config) *Transformer {
	t := &Transformer{
		fs:        cfg.Fs,
		assetExts: cfg.AssetExts,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
	}
	if t.fs == nil {
		t.fs = afero.NewOsFs()
	}
	if t.assetExts == nil {
		t.assetExts = resolver.DefaultAssetExts
	}
	if t.cache == nil {
		t.cache = NopCache{}
	}
	if t.logger == nil {
		t.logger = log.New(io.Discard)
	}
	return t
}

// Transform reads path and returns its dependencies. A cache failure is
// logged and otherwise ignored.
func (t *Transformer) Transform(ctx context.Context, path string) (graph.TransformResult[Output], error) {
	if err := ctx.Err(); err != nil {
		return graph.TransformResult[Output]{}, err
	}

	data, err := afero.ReadFile(t.fs, path)
	if err != nil {
		return graph.TransformResult[Output]{}, fmt.Errorf("read %s: %w", path, err)
	}

	out := Output{
		Kind: t.kindOf(path),
		Hash: contentHash(data),
		Size: len(data),
	}
	if out.Kind != KindModule {
		if out.Kind == KindJSON {
			out.Code = string(data)
		}
		return graph.TransformResult[Output]{Output: out}, nil
	}

	key := cacheKey(out.Kind, out.Hash)
	cached, ok, err := t.cache.Get(key)
	if err != nil {
		t.logger.Warn("transform cache read failed", "path", path, "err", err)
	}
	if ok {
		t.logger.Debug("transform cache hit", "path", path)
		return cached, nil
	}

	deps, err := ExtractDependencies(ctx, path, data)
	if err != nil {
		return graph.TransformResult[Output]{}, err
	}
	out.Code = string(data)
	result := graph.TransformResult[Output]{Dependencies: deps, Output: out}

	if err := t.cache.Put(key, result); err != nil {
		t.logger.Warn("transform cache write failed", "path", path, "err", err)
	}
	return result, nil
}

func (t *Transformer) kindOf(path string) Kind {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch {
	case ext == "json":
		return KindJSON
	case slices.Contains(t.assetExts, ext):
		return KindAsset
	default:
		return KindModule
	}
}
