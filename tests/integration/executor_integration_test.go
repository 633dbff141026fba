// Package integration contains integration tests for the executor, fixture loader and ledger.
package integration

import (
	"context"
	"errors"
	"go/types"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmcc0nn3ll/test/internal/executor"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/internal/run"
	"github.com/jmcc0nn3ll/test/memcompiler"
	"github.com/jmcc0nn3ll/test/tests/helpers"
)

func init() {
	logger.Init(logger.Config{
		Level:  "info",
		Format: "console",
	})
}

func newExecutor(t *testing.T, fs *helpers.TestFS) (*executor.Executor, *run.Store) {
	t.Helper()
	store, err := run.NewStore(fs.Path("target", "testkit.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ex := executor.NewExecutor(store, fs.Scratch())
	ex.Out = io.Discard
	return ex, store
}

func load(t *testing.T, fs *helpers.TestFS, name, content string) (*memcompiler.Fixture, string) {
	t.Helper()
	path := fs.WriteFixture(name, content)
	fx, err := memcompiler.LoadFixture(path)
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}
	return fx, path
}

// TestExecutorIntegrationSuccess tests compiling a fixture with inter-unit imports.
func TestExecutorIntegrationSuccess(t *testing.T) {
	fs := helpers.NewTestFS(t)
	ex, store := newExecutor(t, fs)
	fx, path := load(t, fs, "pizza.toml", helpers.PizzaFixture())

	if _, err := ex.Run(context.Background(), fx, path); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	runs, err := store.ListRuns(fx.Name, "", 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}

	cr := runs[0]
	if cr.Status != run.StatusSuccess {
		t.Errorf("expected status %s, got %s", run.StatusSuccess, cr.Status)
	}
	if !cr.EndedAt.Valid {
		t.Error("expected EndedAt to be set")
	}

	units, err := store.LoadUnits(cr.ID)
	if err != nil {
		t.Fatalf("failed to load units: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}

	// Records follow the fixture's unit order
	want := []string{"example.com/pizza/dough", "example.com/pizza/sauce", "example.com/pizza/oven"}
	for i, u := range units {
		if u.Name != want[i] {
			t.Errorf("unit %d: expected %s, got %s", i, want[i], u.Name)
		}
		if u.Size == 0 {
			t.Errorf("expected export data for %s", u.Name)
		}
	}
}

// TestExecutorIntegrationCompileFailure tests that a broken fixture fails the run.
func TestExecutorIntegrationCompileFailure(t *testing.T) {
	fs := helpers.NewTestFS(t)
	ex, store := newExecutor(t, fs)
	fx, path := load(t, fs, "broken.toml", helpers.BrokenFixture())

	cr, err := ex.Run(context.Background(), fx, path)
	if !errors.Is(err, memcompiler.ErrCompilationFailed) {
		t.Fatalf("expected ErrCompilationFailed, got %v", err)
	}

	loaded, err := store.Load(cr.ID)
	if err != nil {
		t.Fatalf("failed to load run: %v", err)
	}
	if loaded.Status != run.StatusFailed {
		t.Errorf("expected status %s, got %s", run.StatusFailed, loaded.Status)
	}

	units, err := store.LoadUnits(cr.ID)
	if err != nil {
		t.Fatalf("failed to load units: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("expected no unit records for a failed run, got %d", len(units))
	}
}

// TestExecutorIntegrationExportFiles tests that export files land in the scratch
// area and load back into the same package.
func TestExecutorIntegrationExportFiles(t *testing.T) {
	fs := helpers.NewTestFS(t)
	ex, store := newExecutor(t, fs)
	ex.OutputDir = fs.Path("target", "tests", "exports")
	fx, path := load(t, fs, "breakfast.txtar", helpers.BreakfastFixture())

	cr, err := ex.Run(context.Background(), fx, path)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	rec, err := store.GetUnit(cr.ID, "breakfast/plate")
	if err != nil {
		t.Fatalf("failed to get unit: %v", err)
	}
	data, err := os.ReadFile(rec.ExportFile.String)
	if err != nil {
		t.Fatalf("failed to read export file: %v", err)
	}

	u := &memcompiler.Unit{Name: rec.Name, Export: data}
	pkg, err := u.Load(memcompiler.New().FileSet(), map[string]*types.Package{})
	if err != nil {
		t.Fatalf("failed to load export data: %v", err)
	}
	if pkg.Scope().Lookup("Order") == nil {
		t.Error("expected Order in loaded package")
	}

	// Cleaning the scratch area removes the exports but keeps the ledger
	if _, err := fs.Scratch().Clean(); err != nil {
		t.Fatalf("failed to clean scratch: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(rec.ExportFile.String)); !os.IsNotExist(err) {
		t.Errorf("expected exports to be removed, got %v", err)
	}
	if _, err := store.Load(cr.ID); err != nil {
		t.Errorf("expected run to survive cleaning: %v", err)
	}
}

// TestExecutorIntegrationRerunFixedFixture tests rerunning after fixing a fixture.
func TestExecutorIntegrationRerunFixedFixture(t *testing.T) {
	fs := helpers.NewTestFS(t)
	ex, _ := newExecutor(t, fs)
	fx, path := load(t, fs, "broken.toml", helpers.BrokenFixture())

	failed, err := ex.Run(context.Background(), fx, path)
	if err == nil {
		t.Fatal("expected first run to fail")
	}

	fs.WriteFixture("broken.toml", helpers.BrokenFixtureFixed())

	rerun, err := ex.Rerun(context.Background(), failed.ID)
	if err != nil {
		t.Fatalf("expected rerun to succeed, got %v", err)
	}
	if rerun.FixtureHash == failed.FixtureHash {
		t.Error("expected the fixed fixture to hash differently")
	}
	if rerun.Status != run.StatusSuccess {
		t.Errorf("expected status %s, got %s", run.StatusSuccess, rerun.Status)
	}
}

// TestExecutorIntegrationContextCancellation tests that a cancelled context
// fails the run.
func TestExecutorIntegrationContextCancellation(t *testing.T) {
	fs := helpers.NewTestFS(t)
	ex, store := newExecutor(t, fs)
	fx, path := load(t, fs, "simple.toml", helpers.SimpleFixture())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ex.Run(ctx, fx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	runs, err := store.ListRuns("simple", string(run.StatusFailed), 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected one failed run, got %d", len(runs))
	}
}
