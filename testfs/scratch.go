// Package testfs provides file-system helpers for test fixtures. Every
// destructive operation is restricted to a scratch directory, by default
// the target/tests directory of the project layout.
package testfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmcc0nn3ll/test/internal/logger"
	"go.uber.org/zap"
)

var (
	ErrOutsideScratch = errors.New("can only delete content within the scratch directory")
	ErrNotFile        = errors.New("path must be a file or link")
	ErrNotDir         = errors.New("path must be a directory")
	ErrUnsupported    = errors.New("not a file or directory")
)

// Scratch guards file-system mutations to paths below its root.
type Scratch struct {
	root string
}

// NewScratch returns a Scratch rooted at root. The root does not need to
// exist yet.
func NewScratch(root string) *Scratch {
	return &Scratch{root: realPath(root)}
}

// Root returns the resolved scratch root.
func (s *Scratch) Root() string {
	return s.root
}

// Contains reports whether dir is the scratch root or lies below it.
func (s *Scratch) Contains(dir string) bool {
	return within(s.root, realPath(dir))
}

// Delete removes a file, a link or a directory tree. A missing path is not
// an error.
func (s *Scratch) Delete(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil // nothing to delete. we're done.
	}
	if err != nil {
		return fmt.Errorf("unable to stat %s: %w", abs(path), err)
	}

	switch {
	case info.Mode().IsRegular(), info.Mode()&os.ModeSymlink != 0:
		return s.DeleteFile(path)
	case info.IsDir():
		return s.DeleteDirectory(path)
	default:
		return fmt.Errorf("not able to delete path %s: %w", abs(path), ErrUnsupported)
	}
}

// DeleteFile removes a single file or link whose parent is inside the scratch
// directory. A missing path is not an error.
func (s *Scratch) DeleteFile(path string) error {
	location := abs(path)

	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to stat %s: %w", location, err)
	}

	if !info.Mode().IsRegular() && info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("%w: %s", ErrNotFile, location)
	}
	if err := s.guard(filepath.Dir(location)); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("unable to delete file %s: %w", location, err)
	}

	logger.L().Debug("deleted file", zap.String("path", location))
	return nil
}

// DeleteDir removes an empty directory whose parent is inside the scratch
// directory. A missing path is not an error.
func (s *Scratch) DeleteDir(path string) error {
	location := abs(path)

	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to stat %s: %w", location, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, location)
	}
	if err := s.guard(filepath.Dir(location)); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("unable to delete directory %s: %w", location, err)
	}

	logger.L().Debug("deleted directory", zap.String("path", location))
	return nil
}

// DeleteDirectory removes a directory and everything below it. Links are
// removed, never followed, including dir itself when it is a link.
func (s *Scratch) DeleteDirectory(dir string) error {
	if info, err := os.Lstat(dir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return s.DeleteFile(dir)
	}

	location := abs(dir)
	if err := s.guard(location); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("unable to (recursively) delete path %s: %w", location, err)
	}

	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			err = s.DeleteDirectory(p)
		} else {
			err = s.DeleteFile(p)
		}
		if err != nil {
			return err
		}
	}

	// delete itself
	return s.DeleteDir(dir)
}

// CleanDirectory deletes the contents of dir, leaving an empty dir in place.
func (s *Scratch) CleanDirectory(dir string) error {
	if err := s.DeleteDirectory(dir); err != nil {
		return err
	}
	return EnsureDirExists(dir)
}

// EnsureEmpty makes sure dir exists and has no content.
func (s *Scratch) EnsureEmpty(dir string) error {
	if exists(dir) {
		return s.CleanDirectory(dir)
	}
	return EnsureDirExists(dir)
}

// EnsureDeleted makes sure path does not exist.
func (s *Scratch) EnsureDeleted(path string) error {
	if exists(path) {
		return s.Delete(path)
	}
	return nil
}

// Clean deletes every entry below the scratch root and returns the number of
// removed top-level entries. The root itself is kept.
func (s *Scratch) Clean() (int, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("unable to read scratch directory %s: %w", s.root, err)
	}

	for i, entry := range entries {
		if err := s.Delete(filepath.Join(s.root, entry.Name())); err != nil {
			return i, err
		}
	}

	logger.L().Info("scratch directory cleaned", zap.String("root", s.root), zap.Int("entries", len(entries)))
	return len(entries), nil
}

func (s *Scratch) guard(dir string) error {
	if s.Contains(dir) {
		return nil
	}
	logger.L().Warn("refusing to modify path outside scratch directory",
		zap.String("path", dir),
		zap.String("scratch", s.root),
	)
	return fmt.Errorf("%w %s: %s", ErrOutsideScratch, s.root, dir)
}

// EnsureDirExists creates dir and its parents when missing. An existing
// path must be a directory.
func EnsureDirExists(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path exists, but should be a dir: %w: %s", ErrNotDir, abs(dir))
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	logger.L().Debug("created directory", zap.String("path", abs(dir)))
	return nil
}

// Touch creates an empty file at path, or updates the modification time of
// an existing one. The parent directory must exist.
func Touch(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("unable to create file %s: %w", path, err)
		}
		return f.Close()
	}
	if err != nil {
		return fmt.Errorf("unable to stat %s: %w", path, err)
	}

	orig := info.ModTime()
	now := time.Now()
	for _, ts := range []time.Time{now, orig.Add(time.Second)} {
		if !ts.After(orig) {
			continue
		}
		if err := os.Chtimes(path, ts, ts); err != nil {
			return fmt.Errorf("unable to update timestamp of %s: %w", path, err)
		}
		updated, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("unable to stat %s: %w", path, err)
		}
		// coarse file systems may round the new time back to the old one
		if !updated.ModTime().Equal(orig) {
			return nil
		}
	}
	return fmt.Errorf("timestamp of %s was not updated", path)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func abs(path string) string {
	if a, err := filepath.Abs(path); err == nil {
		return a
	}
	return path
}

// realPath resolves symlinks of the longest existing prefix of path and
// appends the missing remainder, so paths that do not exist yet compare
// against the same real root.
func realPath(path string) string {
	p := abs(path)
	var rest []string
	for {
		if r, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(append([]string{r}, rest...)...)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return abs(path)
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}

// within reports whether p equals root or lies below it, compared per path
// component.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
