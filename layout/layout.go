// Package layout resolves the standard build-output and test-resource paths
// of a project: the target directory, the scratch area under target/tests
// and the test resources directory.
package layout

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmcc0nn3ll/test/internal/config"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"go.uber.org/zap"
)

// ErrNotExist is returned when a path that must exist is missing or has the
// wrong type.
var ErrNotExist = errors.New("path does not exist")

// Layout holds the absolute directories of a project layout.
type Layout struct {
	base      string
	target    string
	testing   string
	resources string
}

var (
	defaultLayout *Layout
	defaultErr    error
	defaultOnce   sync.Once
)

// New returns the conventional layout rooted at baseDir.
func New(baseDir string) (*Layout, error) {
	return FromConfig(config.Config{
		BaseDir: baseDir,
		Layout: config.Layout{
			Target:    "target",
			Testing:   "tests",
			Resources: "testdata",
		},
	})
}

// FromConfig returns the layout described by cfg.
func FromConfig(cfg config.Config) (*Layout, error) {
	base, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", cfg.BaseDir, err)
	}
	cfg.BaseDir = base

	return &Layout{
		base:      base,
		target:    cfg.TargetDir(),
		testing:   cfg.TestingDir(),
		resources: cfg.ResourcesDir(),
	}, nil
}

// Default returns the layout resolved from TESTKIT_* environment variables,
// an optional testkit config file and the working directory. It does not
// configure logging; the helpers stay silent unless the process has
// initialised the logger.
func Default() (*Layout, error) {
	defaultOnce.Do(func() {
		cfg, err := config.Read()
		if err != nil {
			defaultErr = err
			return
		}
		defaultLayout, defaultErr = FromConfig(cfg)
		if defaultErr == nil {
			logger.L().Debug("layout resolved",
				zap.String("base", defaultLayout.base),
				zap.String("testing", defaultLayout.testing),
			)
		}
	})
	return defaultLayout, defaultErr
}

// BaseDir returns the project base directory.
func (l *Layout) BaseDir() string {
	return l.base
}

// TargetDir returns the build output directory.
func (l *Layout) TargetDir() string {
	return l.target
}

// TargetTestingDir returns the scratch directory that destructive file
// operations are restricted to.
func (l *Layout) TargetTestingDir() string {
	return l.testing
}

// TargetPath returns the path of rel inside the target directory without
// checking that it exists.
func (l *Layout) TargetPath(rel string) string {
	return join(l.target, rel)
}

// TargetFile returns the path of rel inside the target directory. The path
// must exist.
func (l *Layout) TargetFile(rel string) (string, error) {
	return mustExist(join(l.target, rel), anyType)
}

// TargetURL returns the file URL of an existing path inside the target directory.
func (l *Layout) TargetURL(rel string) (*url.URL, error) {
	p, err := l.TargetFile(rel)
	if err != nil {
		return nil, err
	}
	return FileURL(p), nil
}

// TestingDir returns the per-test directory for name inside the scratch
// area. Slashes in name (as in Go subtest names) produce nested directories.
func (l *Layout) TestingDir(name string) string {
	parts := strings.Split(name, "/")
	elems := make([]string, 0, len(parts)+1)
	elems = append(elems, l.testing)
	for _, p := range parts {
		if s := Sanitize(p); s != "" {
			elems = append(elems, s)
		}
	}
	return filepath.Join(elems...)
}

// TestResourcesDir returns the test resources directory. It must exist.
func (l *Layout) TestResourcesDir() (string, error) {
	return mustExist(l.resources, dirType)
}

// TestResourcePath returns the path of rel inside the test resources
// directory without checking that it exists.
func (l *Layout) TestResourcePath(rel string) string {
	return join(l.resources, rel)
}

// TestResourceFile returns the path of an existing file inside the test
// resources directory.
func (l *Layout) TestResourceFile(rel string) (string, error) {
	return mustExist(join(l.resources, rel), fileType)
}

// TestResourceDir returns the path of an existing directory inside the test
// resources directory.
func (l *Layout) TestResourceDir(rel string) (string, error) {
	return mustExist(join(l.resources, rel), dirType)
}

// ProjectPath returns the path of rel inside the base directory without
// checking that it exists.
func (l *Layout) ProjectPath(rel string) string {
	return join(l.base, rel)
}

// ProjectFile returns the path of an existing file inside the base directory.
func (l *Layout) ProjectFile(rel string) (string, error) {
	return mustExist(join(l.base, rel), fileType)
}

// ProjectDir returns the path of an existing directory inside the base directory.
func (l *Layout) ProjectDir(rel string) (string, error) {
	return mustExist(join(l.base, rel), dirType)
}

// FileURL returns the file URL of an absolute path.
func FileURL(p string) *url.URL {
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		// Windows drive letter paths
		p = "/" + p
	}
	return &url.URL{Scheme: "file", Path: p}
}

// Sanitize removes dangerous characters from a string so it can be safely
// used as a single path component.
func Sanitize(s string) string {
	// Replace path separators with underscores
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	// Remove path traversal sequences
	s = strings.ReplaceAll(s, "..", "")
	// Characters rejected by common file systems
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
	// Remove any remaining dots at the start (hidden files)
	return strings.TrimLeft(s, ".")
}

type pathType int

const (
	anyType pathType = iota
	fileType
	dirType
)

func join(base, rel string) string {
	return filepath.Join(base, filepath.FromSlash(rel))
}

func mustExist(p string, want pathType) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotExist, p)
	}
	switch {
	case want == fileType && !info.Mode().IsRegular():
		return "", fmt.Errorf("%w: not a file: %s", ErrNotExist, p)
	case want == dirType && !info.IsDir():
		return "", fmt.Errorf("%w: not a directory: %s", ErrNotExist, p)
	}
	return p, nil
}
