package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/scriptlang/internal/vmheap"
)

func TestFileResolverFindsExactExtension(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "lib.script")
	require.NoError(t, os.WriteFile(target, []byte("var x = 1;"), 0o644))

	r := &FileResolver{}
	resolved, src, err := r.Resolve(filepath.Join(dir, "main.script"), "./lib.script")
	require.NoError(t, err)
	require.Equal(t, target, resolved)
	require.Equal(t, "var x = 1;", src)
}

func TestFileResolverTriesConfiguredExtensions(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "lib.scr")
	require.NoError(t, os.WriteFile(target, []byte("var y = 2;"), 0o644))

	r := &FileResolver{}
	resolved, src, err := r.Resolve(filepath.Join(dir, "main.script"), "./lib")
	require.NoError(t, err)
	require.Equal(t, target, resolved)
	require.Equal(t, "var y = 2;", src)
}

func TestFileResolverCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "lib.sl")
	require.NoError(t, os.WriteFile(target, []byte("var z = 3;"), 0o644))

	r := &FileResolver{Extensions: []string{".sl"}}
	resolved, _, err := r.Resolve(filepath.Join(dir, "main.script"), "./lib")
	require.NoError(t, err)
	require.Equal(t, target, resolved)
}

func TestFileResolverRelativeToImportingFileDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	target := filepath.Join(sub, "helper.script")
	require.NoError(t, os.WriteFile(target, []byte("var h = 1;"), 0o644))

	r := &FileResolver{}
	resolved, _, err := r.Resolve(filepath.Join(sub, "main.script"), "./helper")
	require.NoError(t, err)
	require.Equal(t, target, resolved)
}

func TestFileResolverEmptyFromPathUsesCurrentDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("lib.script", []byte("var c = 1;"), 0o644))

	r := &FileResolver{}
	resolved, _, err := r.Resolve("", "./lib")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "lib.script"), resolved)

	_, _, err = r.Resolve("", "./does-not-exist")
	require.Error(t, err)
}

func TestFileResolverMissingFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	r := &FileResolver{}
	_, _, err := r.Resolve(filepath.Join(dir, "main.script"), "./missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot resolve module")
}

func TestCacheGetPutRoundTrip(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("/abs/lib.script")
	require.False(t, ok)

	mod := vmheap.NewModule("/abs/lib.script")
	c.Put("/abs/lib.script", mod)

	got, ok := c.Get("/abs/lib.script")
	require.True(t, ok)
	require.Same(t, mod, got)
}

func TestCacheDistinctPathsDoNotCollide(t *testing.T) {
	c := NewCache()
	a := vmheap.NewModule("/abs/a.script")
	b := vmheap.NewModule("/abs/b.script")
	c.Put("/abs/a.script", a)
	c.Put("/abs/b.script", b)

	got, ok := c.Get("/abs/b.script")
	require.True(t, ok)
	require.Same(t, b, got)
}
