// Package config holds host-facing defaults for the embedding collaborator:
// GC thresholds, recognized module file extensions, and which optional
// standard-library natives are registered. None of this is part of the
// source language itself.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SourceFileExtensions are the file suffixes the module resolver
// collaborator is expected to recognize when resolving bare import paths.
var SourceFileExtensions = []string{".script", ".scr"}

// Config is the host-facing tunable set, loadable from a YAML document.
type Config struct {
	// InitialGCThresholdBytes is the bytesAllocated level that triggers the
	// first collection. Defaults to 1 MiB per spec.md §5.
	InitialGCThresholdBytes int64 `yaml:"gc_initial_threshold_bytes"`

	// EvalStackSize is the initial capacity reserved for the VM's
	// evaluation stack. The stack grows past it as needed; its depth is
	// not bounded and no stack-overflow error is raised.
	EvalStackSize int `yaml:"eval_stack_size"`

	// RegisterSetNative toggles whether the variadic Set() native
	// constructor (spec.md §6.3) is seeded into the VM's globals. The type
	// checker and compiler know its signature either way.
	RegisterSetNative bool `yaml:"register_set_native"`
}

// Default returns the configuration the VM uses when no YAML override is
// supplied.
func Default() *Config {
	return &Config{
		InitialGCThresholdBytes: 1024 * 1024,
		EvalStackSize:           256,
		RegisterSetNative:       true,
	}
}

// Load reads a YAML document from path and overlays it onto Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasSourceExt reports whether path ends in a recognized source extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}
