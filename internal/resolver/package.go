// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"fmt"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

const packageJSON = "package.json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// packageInfo is a parsed package.json together with its directory.
	packageInfo struct {
		root   string
		fields map[string]jsoniter.RawMessage
	}

	// redirect is the outcome of looking a path up in a "browser" map.
	redirect struct {
		path     string
		excluded bool
	}
)

func readPackage(fs afero.Fs, path string) (*packageInfo, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPackage, path, err)
	}
	return &packageInfo{root: filepath.Dir(path), fields: fields}, nil
}

// stringField returns the named field when it holds a non-empty string.
func (p *packageInfo) stringField(name string) (string, bool) {
	raw, ok := p.fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

// replacements returns the first object-valued main field, the subpath
// replacement map of the package.json "browser" field. A value of false excludes
// the module.
func (p *packageInfo) replacements(mainFields []string) map[string]redirect {
	for _, name := range mainFields {
		raw, ok := p.fields[name]
		if !ok {
			continue
		}
		var obj map[string]jsoniter.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		out := make(map[string]redirect, len(obj))
		for k, v := range obj {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				out[k] = redirect{path: s}
				continue
			}
			var b bool
			if err := json.Unmarshal(v, &b); err == nil && !b {
				out[k] = redirect{excluded: true}
			}
		}
		return out
	}
	return nil
}

// entryPoint returns the main module of the package relative to its root,
// honouring replacements of the main file itself.
func (p *packageInfo) entryPoint(mainFields []string) string {
	main := "index"
	for _, name := range mainFields {
		if s, ok := p.stringField(name); ok {
			main = s
			break
		}
	}

	if repl := p.replacements(mainFields); repl != nil {
		variants := []string{main}
		if rest, ok := strings.CutPrefix(main, "./"); ok {
			variants = append(variants, rest)
		} else {
			variants = append(variants, "./"+main)
		}
		for _, v := range variants {
			trimmed := strings.TrimSuffix(strings.TrimSuffix(v, ".js"), ".json")
			for _, key := range []string{v, v + ".js", v + ".json", trimmed} {
				if r, ok := repl[key]; ok && !r.excluded {
					return r.path
				}
			}
		}
	}
	return main
}

// redirectPath applies the package's replacement map to an absolute path
// inside the package or to a bare module name.
func (p *packageInfo) redirectPath(name string, mainFields []string) redirect {
	repl := p.replacements(mainFields)
	if repl == nil {
		return redirect{path: name}
	}

	if !filepath.IsAbs(name) {
		if r, ok := repl[name]; ok {
			return r
		}
		return redirect{path: name}
	}

	rel, err := filepath.Rel(p.root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return redirect{path: name}
	}
	rel = "./" + filepath.ToSlash(rel)
	for _, key := range []string{rel, rel + ".js", rel + ".json"} {
		if r, ok := repl[key]; ok {
			if r.excluded {
				return r
			}
			return redirect{path: filepath.Join(p.root, filepath.FromSlash(r.path))}
		}
	}
	return redirect{path: name}
}
