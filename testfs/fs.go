package testfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jmcc0nn3ll/test/layout"
)

// FS binds the scratch helpers to a test: every failure fails the test.
type FS struct {
	tb      testing.TB
	layout  *layout.Layout
	scratch *Scratch
}

// New returns an FS guarding the scratch directory of the default layout.
func New(tb testing.TB) *FS {
	tb.Helper()
	l, err := layout.Default()
	if err != nil {
		tb.Fatalf("unable to resolve project layout: %v", err)
	}
	return NewWithLayout(tb, l)
}

// NewWithLayout returns an FS guarding the scratch directory of l.
func NewWithLayout(tb testing.TB, l *layout.Layout) *FS {
	return &FS{
		tb:      tb,
		layout:  l,
		scratch: NewScratch(l.TargetTestingDir()),
	}
}

func (fs *FS) check(err error) {
	fs.tb.Helper()
	if err != nil {
		fs.tb.Fatalf("%v", err)
	}
}

// Scratch returns the underlying guard.
func (fs *FS) Scratch() *Scratch {
	return fs.scratch
}

// Root returns the scratch directory.
func (fs *FS) Root() string {
	return fs.scratch.Root()
}

// Dir returns an empty per-test directory below the scratch area, named
// after the test. Its content from a previous run is removed.
func (fs *FS) Dir() string {
	fs.tb.Helper()
	dir := fs.layout.TestingDir(fs.tb.Name())
	fs.check(fs.scratch.EnsureEmpty(dir))
	return dir
}

// TempDir returns a new uniquely named directory inside the per-test
// directory that is deleted when the test ends.
func (fs *FS) TempDir() string {
	fs.tb.Helper()
	dir := filepath.Join(fs.layout.TestingDir(fs.tb.Name()), uuid.New().String())
	fs.check(EnsureDirExists(dir))
	fs.tb.Cleanup(func() {
		if err := fs.scratch.EnsureDeleted(dir); err != nil {
			fs.tb.Errorf("failed to remove %s: %v", dir, err)
		}
	})
	return dir
}

// Path joins parts below the per-test directory.
func (fs *FS) Path(parts ...string) string {
	return filepath.Join(append([]string{fs.layout.TestingDir(fs.tb.Name())}, parts...)...)
}

// Write creates rel below the per-test directory with content, creating
// parent directories as needed.
func (fs *FS) Write(rel string, content string) string {
	fs.tb.Helper()
	path := fs.Path(filepath.FromSlash(rel))
	fs.check(EnsureDirExists(filepath.Dir(path)))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		fs.tb.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// Delete removes path, failing the test on error.
func (fs *FS) Delete(path string) {
	fs.tb.Helper()
	fs.check(fs.scratch.Delete(path))
}

// DeleteFile removes a single file or link, failing the test on error.
func (fs *FS) DeleteFile(path string) {
	fs.tb.Helper()
	fs.check(fs.scratch.DeleteFile(path))
}

// DeleteDir removes an empty directory, failing the test on error.
func (fs *FS) DeleteDir(path string) {
	fs.tb.Helper()
	fs.check(fs.scratch.DeleteDir(path))
}

// DeleteDirectory removes dir recursively, failing the test on error.
func (fs *FS) DeleteDirectory(dir string) {
	fs.tb.Helper()
	fs.check(fs.scratch.DeleteDirectory(dir))
}

// CleanDirectory empties dir, failing the test on error.
func (fs *FS) CleanDirectory(dir string) {
	fs.tb.Helper()
	fs.check(fs.scratch.CleanDirectory(dir))
}

// EnsureEmpty makes sure dir exists and is empty.
func (fs *FS) EnsureEmpty(dir string) {
	fs.tb.Helper()
	fs.check(fs.scratch.EnsureEmpty(dir))
}

// EnsureDeleted makes sure path does not exist.
func (fs *FS) EnsureDeleted(path string) {
	fs.tb.Helper()
	fs.check(fs.scratch.EnsureDeleted(path))
}

// EnsureDirExists creates dir when missing.
func (fs *FS) EnsureDirExists(dir string) {
	fs.tb.Helper()
	fs.check(EnsureDirExists(dir))
}

// Touch creates path or updates its modification time.
func (fs *FS) Touch(path string) {
	fs.tb.Helper()
	fs.check(Touch(path))
}

// IsTestingDir reports whether dir is inside the scratch directory.
func (fs *FS) IsTestingDir(dir string) bool {
	return fs.scratch.Contains(dir)
}
