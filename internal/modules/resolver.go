// Package modules resolves import paths to source text and caches the
// resulting ModuleObject, so a path executes at most once per run
// (spec.md §5 "a module cache keyed by the resolved absolute path
// prevents re-execution").
package modules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/funvibe/scriptlang/internal/config"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// Resolver turns a bare import path, relative to the importing file, into
// an absolute path and its source text. The VM calls it on every import;
// a resolved path already in Cache is not compiled or executed again.
type Resolver interface {
	Resolve(fromPath, importPath string) (resolvedPath string, source string, err error)
}

// FileResolver resolves import paths against the filesystem, trying each
// of config.SourceFileExtensions in turn when importPath has no
// extension of its own.
type FileResolver struct {
	// Extensions overrides config.SourceFileExtensions when non-nil, for
	// hosts that register additional source suffixes.
	Extensions []string
}

func (r *FileResolver) exts() []string {
	if r.Extensions != nil {
		return r.Extensions
	}
	return config.SourceFileExtensions
}

func (r *FileResolver) Resolve(fromPath, importPath string) (string, string, error) {
	base := filepath.Dir(fromPath)
	if fromPath == "" {
		base = "."
	}
	candidate := filepath.Join(base, importPath)
	if config.HasSourceExt(candidate) {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			return "", "", err
		}
		src, err := os.ReadFile(abs)
		if err != nil {
			return "", "", fmt.Errorf("cannot read module %q: %w", importPath, err)
		}
		return abs, string(src), nil
	}
	for _, ext := range r.exts() {
		abs, err := filepath.Abs(candidate + ext)
		if err != nil {
			continue
		}
		src, err := os.ReadFile(abs)
		if err == nil {
			return abs, string(src), nil
		}
	}
	return "", "", fmt.Errorf("cannot resolve module %q from %q", importPath, fromPath)
}

// Cache holds one ModuleObject per resolved path, populated the first
// time a path is imported and reused by every subsequent import of the
// same path (including cyclic imports still mid-execution, where the
// entry is present but its Exports are only partially populated).
type Cache struct {
	modules map[string]*vmheap.ModuleObject
}

func NewCache() *Cache { return &Cache{modules: make(map[string]*vmheap.ModuleObject)} }

// Get returns the cached module for path, if any.
func (c *Cache) Get(path string) (*vmheap.ModuleObject, bool) {
	m, ok := c.modules[path]
	return m, ok
}

// Put registers m under path, called before the module's script body
// executes so a cyclic import sees the (still-empty) exports instead of
// re-entering compilation.
func (c *Cache) Put(path string, m *vmheap.ModuleObject) { c.modules[path] = m }
