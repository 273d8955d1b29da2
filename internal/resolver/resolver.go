// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"github.com/deltagraph/deltagraph/internal/graph"
)

const defaultPackageCacheSize = 1024

var (
	// ErrModuleNotFound is wrapped when no candidate file exists.
	ErrModuleNotFound = errors.New("module not found")
	// ErrInvalidPackage is wrapped when a package.json cannot be parsed or
	// points at a main module that does not exist.
	ErrInvalidPackage = errors.New("invalid package")
	// ErrExcluded is wrapped when a "browser" map excludes the module and no
	// empty module is configured.
	ErrExcluded = errors.New("module excluded by package.json")

	// DefaultSourceExts are tried, in order, for extension-less names.
	DefaultSourceExts = []string{"js", "jsx", "mjs", "cjs", "ts", "tsx", "json"}
	// DefaultAssetExts are resolved as assets rather than source files.
	DefaultAssetExts = []string{"png", "jpg", "jpeg", "gif", "webp", "svg", "ttf", "otf"}
	// DefaultMainFields lists the package.json fields consulted for a
	// package's entry point, in order.
	DefaultMainFields = []string{"browser", "main"}
)

type (
	// Config configures a Resolver. Zero values select the defaults.
	Config struct {
		// Fs is the file system to resolve against; nil means the OS.
		Fs afero.Fs
		// SourceExts are extensions without the leading dot.
		SourceExts []string
		AssetExts  []string
		MainFields []string
		// Platform enables name.<platform>.<ext> candidates.
		Platform string
		// PreferNativePlatform enables name.native.<ext> candidates.
		PreferNativePlatform bool
		// ExtraNodeModules maps a package name to the directory that holds it.
		ExtraNodeModules map[string]string
		// NodeModulesPaths are searched after the node_modules directories
		// above the importing module.
		NodeModulesPaths []string
		// EmptyModulePath is substituted for modules a "browser" map excludes.
		EmptyModulePath string
		// PackageCacheSize bounds the number of parsed package.json files.
		PackageCacheSize int
	}

	// Resolver resolves dependency names. It is safe for concurrent use.
	Resolver struct {
		cfg      Config
		packages *lru.Cache[string, *packageInfo]
	}
)

// New creates a Resolver.
func New(cfg Config) (*Resolver, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if len(cfg.SourceExts) == 0 {
		cfg.SourceExts = DefaultSourceExts
	}
	if cfg.AssetExts == nil {
		cfg.AssetExts = DefaultAssetExts
	}
	if len(cfg.MainFields) == 0 {
		cfg.MainFields = DefaultMainFields
	}
	if cfg.PackageCacheSize <= 0 {
		cfg.PackageCacheSize = defaultPackageCacheSize
	}

	cache, err := lru.New[string, *packageInfo](cfg.PackageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create package cache: %w", err)
	}
	return &Resolver{cfg: cfg, packages: cache}, nil
}

// Purge drops every cached package.json. Call it when one changes on disk.
func (r *Resolver) Purge() {
	r.packages.Purge()
}

// Resolve implements graph.Resolver. Failures are reported as
// *graph.UnresolvableError wrapping one of this package's sentinels.
func (r *Resolver) Resolve(ctx context.Context, from, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resolved, err := r.resolve(from, name)
	if err != nil {
		return "", &graph.UnresolvableError{From: from, Name: name, Err: err}
	}
	return resolved, nil
}

func (r *Resolver) resolve(from, name string) (string, error) {
	if isRelative(name) || filepath.IsAbs(name) {
		modulePath := name
		if !filepath.IsAbs(name) {
			modulePath = filepath.Join(filepath.Dir(from), filepath.FromSlash(name))
		}
		return r.resolveModulePath(modulePath)
	}

	pkg, err := r.packageFor(from)
	if err != nil {
		return "", err
	}
	target := redirect{path: name}
	if pkg != nil {
		target = pkg.redirectPath(name, r.cfg.MainFields)
	}
	if target.excluded {
		return r.excluded(name)
	}
	if isRelative(target.path) || filepath.IsAbs(target.path) {
		p := target.path
		if !filepath.IsAbs(p) {
			base := filepath.Dir(from)
			if pkg != nil {
				base = pkg.root
			}
			p = filepath.Join(base, filepath.FromSlash(p))
		}
		return r.resolveModulePath(p)
	}

	var tried []string
	for _, dir := range r.searchPaths(from, target.path) {
		found, candidates, err := r.resolveFileOrDir(dir)
		if err != nil {
			return "", err
		}
		if found != "" {
			return found, nil
		}
		tried = append(tried, candidates...)
	}
	return "", notFound(tried)
}

// resolveModulePath resolves an absolute path that may be redirected by the
// package it belongs to.
func (r *Resolver) resolveModulePath(modulePath string) (string, error) {
	pkg, err := r.packageFor(modulePath)
	if err != nil {
		return "", err
	}
	if pkg != nil {
		red := pkg.redirectPath(modulePath, r.cfg.MainFields)
		if red.excluded {
			return r.excluded(modulePath)
		}
		modulePath = red.path
	}

	found, candidates, err := r.resolveFileOrDir(modulePath)
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", notFound(candidates)
	}
	return found, nil
}

// searchPaths lists the directories a bare module name may live in: every
// node_modules directory above the importing file, then the configured
// extras.
func (r *Resolver) searchPaths(from, name string) []string {
	var dirs []string
	for dir := filepath.Dir(from); ; dir = filepath.Dir(dir) {
		if filepath.Base(dir) != "node_modules" {
			dirs = append(dirs, filepath.Join(dir, "node_modules", filepath.FromSlash(name)))
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	pkgName, rest := splitPackageName(name)
	if extra, ok := r.cfg.ExtraNodeModules[pkgName]; ok {
		dirs = append(dirs, filepath.Join(extra, filepath.FromSlash(rest)))
	}
	for _, nm := range r.cfg.NodeModulesPaths {
		dirs = append(dirs, filepath.Join(nm, filepath.FromSlash(name)))
	}
	return dirs
}

// resolveFileOrDir tries path as a file and then as a directory. It returns
// the candidates it tried when nothing matched.
func (r *Resolver) resolveFileOrDir(path string) (string, []string, error) {
	found, fileCandidates := r.resolveFile(filepath.Dir(path), filepath.Base(path))
	if found != "" {
		return found, nil, nil
	}
	found, dirCandidates, err := r.resolveDir(path)
	if err != nil || found != "" {
		return found, nil, err
	}
	return "", append(fileCandidates, dirCandidates...), nil
}

func (r *Resolver) resolveDir(dir string) (string, []string, error) {
	pkgPath := filepath.Join(dir, packageJSON)
	if r.isFile(pkgPath) {
		return r.resolvePackageMain(pkgPath)
	}
	found, candidates := r.resolveFile(dir, "index")
	return found, candidates, nil
}

func (r *Resolver) resolvePackageMain(pkgPath string) (string, []string, error) {
	pkg, err := r.loadPackage(pkgPath)
	if err != nil {
		return "", nil, err
	}
	mainPrefix := filepath.Join(pkg.root, filepath.FromSlash(pkg.entryPoint(r.cfg.MainFields)))

	found, fileCandidates := r.resolveFile(filepath.Dir(mainPrefix), filepath.Base(mainPrefix))
	if found != "" {
		return found, nil, nil
	}
	found, indexCandidates := r.resolveFile(mainPrefix, "index")
	if found != "" {
		return found, nil, nil
	}
	return "", nil, fmt.Errorf("%w: %s: main module %s not found (tried %s)",
		ErrInvalidPackage, pkgPath, mainPrefix, strings.Join(append(fileCandidates, indexCandidates...), ", "))
}

// resolveFile tries dir/name with every platform and extension variant.
func (r *Resolver) resolveFile(dir, name string) (string, []string) {
	prefix := filepath.Join(dir, name)
	if r.isAsset(name) {
		return r.resolveAsset(prefix)
	}

	var tried []string
	try := func(ext string) string {
		candidate := prefix + ext
		if r.isFile(candidate) {
			return candidate
		}
		tried = append(tried, candidate)
		return ""
	}

	exts := append([]string{""}, r.cfg.SourceExts...)
	for _, ext := range exts {
		if ext != "" {
			ext = "." + ext
		}
		if r.cfg.Platform != "" && ext != "" {
			if found := try("." + r.cfg.Platform + ext); found != "" {
				return found, nil
			}
		}
		if r.cfg.PreferNativePlatform {
			if found := try(".native" + ext); found != "" {
				return found, nil
			}
		}
		if found := try(ext); found != "" {
			return found, nil
		}
	}
	return "", tried
}

// resolveAsset resolves an asset name such as icon.png, preferring the
// platform specific icon.ios.png.
func (r *Resolver) resolveAsset(prefix string) (string, []string) {
	ext := filepath.Ext(prefix)
	base := strings.TrimSuffix(prefix, ext)

	var candidates []string
	if r.cfg.Platform != "" {
		candidates = append(candidates, base+"."+r.cfg.Platform+ext)
	}
	candidates = append(candidates, prefix)
	for _, c := range candidates {
		if r.isFile(c) {
			return c, nil
		}
	}
	return "", candidates
}

// packageFor returns the closest package.json above path, or nil.
func (r *Resolver) packageFor(path string) (*packageInfo, error) {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		pkgPath := filepath.Join(dir, packageJSON)
		if r.isFile(pkgPath) {
			return r.loadPackage(pkgPath)
		}
		if parent := filepath.Dir(dir); parent == dir {
			return nil, nil
		}
	}
}

func (r *Resolver) loadPackage(pkgPath string) (*packageInfo, error) {
	if pkg, ok := r.packages.Get(pkgPath); ok {
		return pkg, nil
	}
	pkg, err := readPackage(r.cfg.Fs, pkgPath)
	if err != nil {
		return nil, err
	}
	r.packages.Add(pkgPath, pkg)
	return pkg, nil
}

func (r *Resolver) excluded(name string) (string, error) {
	if r.cfg.EmptyModulePath == "" {
		return "", fmt.Errorf("%w: %s", ErrExcluded, name)
	}
	return r.cfg.EmptyModulePath, nil
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.cfg.Fs.Stat(path)
	return err == nil && !info.IsDir()
}

func (r *Resolver) isAsset(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return ext != "" && slices.Contains(r.cfg.AssetExts, ext)
}

func isRelative(name string) bool {
	return name == "." || name == ".." || strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../")
}

// splitPackageName splits "@scope/pkg/sub/path" into "@scope/pkg" and
// "sub/path".
func splitPackageName(name string) (string, string) {
	parts := strings.SplitN(name, "/", 3)
	if strings.HasPrefix(name, "@") && len(parts) >= 2 {
		pkg := parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			return pkg, parts[2]
		}
		return pkg, ""
	}
	pkg, rest, _ := strings.Cut(name, "/")
	return pkg, rest
}

func notFound(candidates []string) error {
	if len(candidates) == 0 {
		return ErrModuleNotFound
	}
	return fmt.Errorf("%w (tried %s)", ErrModuleNotFound, strings.Join(candidates, ", "))
}
