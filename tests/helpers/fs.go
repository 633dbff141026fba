// Package helpers - fs provides a throwaway project tree for tests.
package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jmcc0nn3ll/test/layout"
	"github.com/jmcc0nn3ll/test/testfs"
)

// TestFS is a temporary project base directory with the conventional layout.
type TestFS struct {
	t    testing.TB
	Root string
}

func NewTestFS(t testing.TB) *TestFS {
	t.Helper()
	return &TestFS{t: t, Root: t.TempDir()}
}

func (fs *TestFS) Path(parts ...string) string {
	return filepath.Join(append([]string{fs.Root}, parts...)...)
}

// Write creates rel below the root with content, creating parent directories.
func (fs *TestFS) Write(rel string, content string) string {
	fs.t.Helper()
	path := fs.Path(filepath.FromSlash(rel))
	if err := testfs.EnsureDirExists(filepath.Dir(path)); err != nil {
		fs.t.Fatalf("failed to create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		fs.t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// Layout returns the default layout rooted at the project directory.
func (fs *TestFS) Layout() *layout.Layout {
	fs.t.Helper()
	l, err := layout.New(fs.Root)
	if err != nil {
		fs.t.Fatalf("failed to resolve layout: %v", err)
	}
	return l
}

// Scratch returns the guard for the project's target/tests directory.
func (fs *TestFS) Scratch() *testfs.Scratch {
	return testfs.NewScratch(fs.Layout().TargetTestingDir())
}

// WriteFixture stores a fixture in the project's testdata directory.
func (fs *TestFS) WriteFixture(name, content string) string {
	fs.t.Helper()
	return fs.Write(filepath.Join("testdata", name), content)
}
