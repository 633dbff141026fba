package layout

import (
	"net/url"
	"testing"
)

// The functions below resolve paths against the Default layout and fail the
// test instead of returning an error.

func mustDefault(tb testing.TB) *Layout {
	tb.Helper()
	l, err := Default()
	if err != nil {
		tb.Fatalf("unable to resolve project layout: %v", err)
	}
	return l
}

func must(tb testing.TB, p string, err error) string {
	tb.Helper()
	if err != nil {
		tb.Fatalf("%v", err)
	}
	return p
}

// BaseDir returns the project base directory.
func BaseDir(tb testing.TB) string {
	tb.Helper()
	return mustDefault(tb).BaseDir()
}

// TargetDir returns the build output directory.
func TargetDir(tb testing.TB) string {
	tb.Helper()
	return mustDefault(tb).TargetDir()
}

// TargetPath returns rel inside the target directory.
func TargetPath(tb testing.TB, rel string) string {
	tb.Helper()
	return mustDefault(tb).TargetPath(rel)
}

// TargetFile returns rel inside the target directory, failing when it is missing.
func TargetFile(tb testing.TB, rel string) string {
	tb.Helper()
	p, err := mustDefault(tb).TargetFile(rel)
	return must(tb, p, err)
}

// TargetURL returns the file URL of rel inside the target directory.
func TargetURL(tb testing.TB, rel string) *url.URL {
	tb.Helper()
	u, err := mustDefault(tb).TargetURL(rel)
	if err != nil {
		tb.Fatalf("%v", err)
	}
	return u
}

// TargetTestingDir returns the scratch directory.
func TargetTestingDir(tb testing.TB) string {
	tb.Helper()
	return mustDefault(tb).TargetTestingDir()
}

// TestingDir returns the per-test scratch directory named after tb.Name().
// The directory is not created.
func TestingDir(tb testing.TB) string {
	tb.Helper()
	return mustDefault(tb).TestingDir(tb.Name())
}

// TestResourcesDir returns the test resources directory.
func TestResourcesDir(tb testing.TB) string {
	tb.Helper()
	p, err := mustDefault(tb).TestResourcesDir()
	return must(tb, p, err)
}

// TestResourcePath returns rel inside the test resources directory.
func TestResourcePath(tb testing.TB, rel string) string {
	tb.Helper()
	return mustDefault(tb).TestResourcePath(rel)
}

// TestResourceFile returns an existing file inside the test resources directory.
func TestResourceFile(tb testing.TB, rel string) string {
	tb.Helper()
	p, err := mustDefault(tb).TestResourceFile(rel)
	return must(tb, p, err)
}

// TestResourceDir returns an existing directory inside the test resources directory.
func TestResourceDir(tb testing.TB, rel string) string {
	tb.Helper()
	p, err := mustDefault(tb).TestResourceDir(rel)
	return must(tb, p, err)
}

// ProjectFile returns an existing file inside the base directory.
func ProjectFile(tb testing.TB, rel string) string {
	tb.Helper()
	p, err := mustDefault(tb).ProjectFile(rel)
	return must(tb, p, err)
}

// ProjectDir returns an existing directory inside the base directory.
func ProjectDir(tb testing.TB, rel string) string {
	tb.Helper()
	p, err := mustDefault(tb).ProjectDir(rel)
	return must(tb, p, err)
}
