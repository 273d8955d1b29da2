// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions controls where configuration is read from.
	LoadOptions struct {
		// ConfigFilePath forces a specific file; it must exist.
		ConfigFilePath string
		// ConfigDirPath replaces the per-user configuration directory.
		ConfigDirPath string
		// WorkDir is searched for deltagraph.cue. Empty means the process
		// working directory.
		WorkDir string
	}

	// Loaded is a configuration together with the file it came from.
	Loaded struct {
		Config *Config
		// Path is empty when only defaults and the environment were used.
		Path string
	}

	// Provider loads configuration.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Loaded, error)
	}

	fileProvider struct{}
)

// NewProvider returns a Provider that reads CUE files from disk.
func NewProvider() Provider {
	return &fileProvider{}
}

func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	return load(ctx, opts)
}
