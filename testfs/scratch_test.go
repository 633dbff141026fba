package testfs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jmcc0nn3ll/test/layout"
)

// newLayout returns a layout rooted in a fresh temporary base directory with
// an existing scratch directory.
func newLayout(t *testing.T) (*layout.Layout, *Scratch) {
	t.Helper()
	l, err := layout.New(t.TempDir())
	if err != nil {
		t.Fatalf("layout.New failed: %v", err)
	}
	if err := EnsureDirExists(l.TargetTestingDir()); err != nil {
		t.Fatalf("EnsureDirExists failed: %v", err)
	}
	return l, NewScratch(l.TargetTestingDir())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

func assertMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected %s to be deleted, stat error: %v", path, err)
	}
}

// TestTouchCreatesFile tests that touching a missing path creates an empty file.
func TestTouchCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pizza.log")

	if err := Touch(path); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file to be created: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected empty file, got %d bytes", info.Size())
	}
}

// TestTouchUpdatesTimestamp tests that touching an existing file moves its mtime forward.
func TestTouchUpdatesTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pizza.receipt")
	writeFile(t, path, "pepperoni")

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	if err := Touch(path); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if !info.ModTime().After(past) {
		t.Errorf("expected timestamp after %v, got %v", past, info.ModTime())
	}

	data, _ := os.ReadFile(path)
	if string(data) != "pepperoni" {
		t.Errorf("expected content to be preserved, got %q", string(data))
	}
}

// TestTouchTwiceInARow tests that back-to-back touches still change the timestamp.
func TestTouchTwiceInARow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "url.log")

	if err := Touch(path); err != nil {
		t.Fatalf("first Touch failed: %v", err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}

	if err := Touch(path); err != nil {
		t.Fatalf("second Touch failed: %v", err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}

	if after.ModTime().Equal(before.ModTime()) {
		t.Error("expected timestamp to change")
	}
}

// TestTouchMissingParent tests that Touch does not create parent directories.
func TestTouchMissingParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "file.txt")
	if err := Touch(path); err == nil {
		t.Fatal("expected error for missing parent directory, got nil")
	}
}

// TestEnsureDirExists tests directory creation and the file conflict case.
func TestEnsureDirExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	if err := EnsureDirExists(dir); err != nil {
		t.Fatalf("EnsureDirExists failed: %v", err)
	}
	// second call leaves it alone
	if err := EnsureDirExists(dir); err != nil {
		t.Fatalf("EnsureDirExists on existing dir failed: %v", err)
	}

	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")
	if err := EnsureDirExists(file); !errors.Is(err, ErrNotDir) {
		t.Errorf("expected ErrNotDir, got %v", err)
	}
}

// TestContains tests scratch membership, compared per path component.
func TestContains(t *testing.T) {
	l, s := newLayout(t)
	root := l.TargetTestingDir()

	tests := []struct {
		path string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "pizza"), true},
		{filepath.Join(root, "not", "yet", "created"), true},
		{filepath.Join(root, "pizza", "..", "..", "escape"), false},
		{l.TargetDir(), false},
		{root + "-other", false},
		{l.BaseDir(), false},
	}

	for _, tt := range tests {
		if got := s.Contains(tt.path); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// TestDeleteFileOutsideScratch tests that files outside the scratch area are refused.
func TestDeleteFileOutsideScratch(t *testing.T) {
	l, s := newLayout(t)

	outside := l.TargetPath("pizza.log")
	writeFile(t, outside, "keep me")

	err := s.DeleteFile(outside)
	if !errors.Is(err, ErrOutsideScratch) {
		t.Fatalf("expected ErrOutsideScratch, got %v", err)
	}
	assertExists(t, outside)

	if err := s.Delete(outside); !errors.Is(err, ErrOutsideScratch) {
		t.Errorf("expected Delete to refuse as well, got %v", err)
	}
	assertExists(t, outside)
}

// TestDeleteDirectoryOutsideScratch tests that directories outside the scratch area are refused.
func TestDeleteDirectoryOutsideScratch(t *testing.T) {
	l, s := newLayout(t)

	outside := l.TargetPath("classes")
	writeFile(t, filepath.Join(outside, "A.export"), "data")

	if err := s.DeleteDirectory(outside); !errors.Is(err, ErrOutsideScratch) {
		t.Fatalf("expected ErrOutsideScratch, got %v", err)
	}
	assertExists(t, filepath.Join(outside, "A.export"))
}

// TestDeleteFileRejectsDirectory tests that DeleteFile only removes files.
func TestDeleteFileRejectsDirectory(t *testing.T) {
	l, s := newLayout(t)
	dir := filepath.Join(l.TargetTestingDir(), "dir")
	if err := EnsureDirExists(dir); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFile(dir); !errors.Is(err, ErrNotFile) {
		t.Errorf("expected ErrNotFile, got %v", err)
	}
}

// TestDeleteDirRequiresEmpty tests that DeleteDir refuses non-empty directories and files.
func TestDeleteDirRequiresEmpty(t *testing.T) {
	l, s := newLayout(t)
	dir := filepath.Join(l.TargetTestingDir(), "full")
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")

	if err := s.DeleteDir(dir); err == nil {
		t.Error("expected error deleting non-empty directory, got nil")
	}
	if err := s.DeleteDir(file); !errors.Is(err, ErrNotDir) {
		t.Errorf("expected ErrNotDir, got %v", err)
	}

	empty := filepath.Join(l.TargetTestingDir(), "empty")
	if err := EnsureDirExists(empty); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDir(empty); err != nil {
		t.Fatalf("DeleteDir failed: %v", err)
	}
	assertMissing(t, empty)
}

// TestDeleteMissingIsNoop tests that deleting missing paths succeeds.
func TestDeleteMissingIsNoop(t *testing.T) {
	l, s := newLayout(t)
	missing := filepath.Join(l.TargetTestingDir(), "nothing-here")

	if err := s.Delete(missing); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if err := s.DeleteFile(missing); err != nil {
		t.Errorf("DeleteFile: %v", err)
	}
	if err := s.DeleteDir(missing); err != nil {
		t.Errorf("DeleteDir: %v", err)
	}
	if err := s.EnsureDeleted(missing); err != nil {
		t.Errorf("EnsureDeleted: %v", err)
	}
}

// TestDeleteDirectoryRecursive tests recursive deletion of a nested tree.
func TestDeleteDirectoryRecursive(t *testing.T) {
	l, s := newLayout(t)
	dir := filepath.Join(l.TargetTestingDir(), "tree")
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "sub", "deeper", "c.txt"), "c")
	if err := EnsureDirExists(filepath.Join(dir, "empty")); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(dir); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	assertMissing(t, dir)
	assertExists(t, l.TargetTestingDir())
}

// TestDeleteDirectoryDoesNotFollowLinks tests that links are removed, not traversed.
func TestDeleteDirectoryDoesNotFollowLinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	l, s := newLayout(t)

	precious := l.TargetPath("precious")
	writeFile(t, filepath.Join(precious, "keep.txt"), "keep")

	dir := filepath.Join(l.TargetTestingDir(), "linked")
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	if err := os.Symlink(precious, filepath.Join(dir, "to-dir")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(precious, "keep.txt"), filepath.Join(dir, "to-file")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	if err := s.DeleteDirectory(dir); err != nil {
		t.Fatalf("DeleteDirectory failed: %v", err)
	}

	assertMissing(t, dir)
	assertExists(t, filepath.Join(precious, "keep.txt"))
}

// TestCleanDirectoryOnLinkKeepsTarget tests that a link passed as the
// directory is replaced, leaving the linked directory untouched.
func TestCleanDirectoryOnLinkKeepsTarget(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	_, s := newLayout(t)

	linked := filepath.Join(s.Root(), "linked")
	writeFile(t, filepath.Join(linked, "keep.txt"), "keep")
	link := filepath.Join(s.Root(), "link")
	if err := os.Symlink(linked, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	if err := s.CleanDirectory(link); err != nil {
		t.Fatalf("CleanDirectory failed: %v", err)
	}

	assertExists(t, filepath.Join(linked, "keep.txt"))
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", link, err)
	}
	if !info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
		t.Errorf("expected %s to be a plain directory, got mode %v", link, info.Mode())
	}

	if err := s.DeleteDirectory(link); err != nil {
		t.Fatalf("DeleteDirectory failed: %v", err)
	}
	if err := os.Symlink(linked, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := s.DeleteDirectory(link); err != nil {
		t.Fatalf("DeleteDirectory on link failed: %v", err)
	}
	assertMissing(t, link)
	assertExists(t, filepath.Join(linked, "keep.txt"))
}

// TestScratchRootCannotBeDeleted tests that the scratch root itself survives a delete.
func TestScratchRootCannotBeDeleted(t *testing.T) {
	l, s := newLayout(t)
	root := l.TargetTestingDir()
	writeFile(t, filepath.Join(root, "x.txt"), "x")

	if err := s.DeleteDirectory(root); !errors.Is(err, ErrOutsideScratch) {
		t.Fatalf("expected ErrOutsideScratch, got %v", err)
	}
	assertExists(t, root)
}

// TestCleanDirectory tests that cleaning keeps the directory but removes its content.
func TestCleanDirectory(t *testing.T) {
	l, s := newLayout(t)
	dir := filepath.Join(l.TargetTestingDir(), "clean-me")
	writeFile(t, filepath.Join(dir, "sub", "file.txt"), "x")

	if err := s.CleanDirectory(dir); err != nil {
		t.Fatalf("CleanDirectory failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("expected directory to exist: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty directory, got %d entries", len(entries))
	}
}

// TestEnsureEmpty tests both the create and the clean branch.
func TestEnsureEmpty(t *testing.T) {
	l, s := newLayout(t)
	dir := filepath.Join(l.TargetTestingDir(), "fresh")

	if err := s.EnsureEmpty(dir); err != nil {
		t.Fatalf("EnsureEmpty (create) failed: %v", err)
	}
	assertExists(t, dir)

	writeFile(t, filepath.Join(dir, "leftover.txt"), "x")
	if err := s.EnsureEmpty(dir); err != nil {
		t.Fatalf("EnsureEmpty (clean) failed: %v", err)
	}
	assertMissing(t, filepath.Join(dir, "leftover.txt"))
	assertExists(t, dir)
}

// TestEnsureDeleted tests deletion of both files and directories.
func TestEnsureDeleted(t *testing.T) {
	l, s := newLayout(t)
	dir := filepath.Join(l.TargetTestingDir(), "gone")
	file := filepath.Join(l.TargetTestingDir(), "gone.txt")
	writeFile(t, filepath.Join(dir, "x.txt"), "x")
	writeFile(t, file, "x")

	if err := s.EnsureDeleted(dir); err != nil {
		t.Fatalf("EnsureDeleted(dir) failed: %v", err)
	}
	if err := s.EnsureDeleted(file); err != nil {
		t.Fatalf("EnsureDeleted(file) failed: %v", err)
	}
	assertMissing(t, dir)
	assertMissing(t, file)
}

// TestClean tests emptying the whole scratch area.
func TestClean(t *testing.T) {
	l, s := newLayout(t)
	root := l.TargetTestingDir()
	writeFile(t, filepath.Join(root, "TestA", "x.txt"), "x")
	writeFile(t, filepath.Join(root, "TestB", "sub", "y.txt"), "y")
	writeFile(t, filepath.Join(root, "loose.txt"), "z")

	n, err := s.Clean()
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 removed entries, got %d", n)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("expected scratch root to exist: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty scratch root, got %d entries", len(entries))
	}
}

// TestCleanMissingRoot tests that cleaning a scratch area that was never created is a no-op.
func TestCleanMissingRoot(t *testing.T) {
	s := NewScratch(filepath.Join(t.TempDir(), "target", "tests"))

	n, err := s.Clean()
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 removed entries, got %d", n)
	}
}
