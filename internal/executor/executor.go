// Package executor compiles unit fixtures and records every compilation in
// the run ledger.
package executor

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/internal/run"
	"github.com/jmcc0nn3ll/test/memcompiler"
	"github.com/jmcc0nn3ll/test/testfs"
	"go.uber.org/zap"
)

// Executor compiles fixtures and keeps the ledger up to date.
type Executor struct {
	RunStore *run.Store
	Scratch  *testfs.Scratch
	// OutputDir receives export files under <OutputDir>/<run id>. It must lie
	// inside Scratch. Empty keeps export data in memory only.
	OutputDir string
	Out       io.Writer
}

// NewExecutor creates a new Executor with the given RunStore and scratch area.
func NewExecutor(store *run.Store, scratch *testfs.Scratch) *Executor {
	return &Executor{
		RunStore: store,
		Scratch:  scratch,
		Out:      os.Stdout,
	}
}

// Run compiles the fixture loaded from path and records the outcome.
func (e *Executor) Run(ctx context.Context, fx *memcompiler.Fixture, path string) (*run.CompileRun, error) {
	return e.run(ctx, fx, path, nil)
}

// Rerun compiles the fixture of an earlier run again, as a new run. The
// fixture is re-read from disk; a changed fixture is compiled as it is now.
func (e *Executor) Rerun(ctx context.Context, id string) (*run.CompileRun, error) {
	prev, err := e.RunStore.Load(id)
	if err != nil {
		logger.L().Error("failed to load compile run", zap.String("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	fx, err := memcompiler.LoadFixture(prev.FixturePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture '%s': %w", prev.Fixture, err)
	}

	hash, err := fx.Hash()
	if err != nil {
		return nil, err
	}
	if hash != prev.FixtureHash {
		logger.L().Warn("fixture changed since run", zap.String("fixture", fx.Name), zap.String("run_id", prev.ID))
		fmt.Fprintln(e.out(), "Fixture changed since run:", prev.ID)
	}

	return e.run(ctx, fx, prev.FixturePath, map[string]interface{}{"rerun_of": prev.ID})
}

func (e *Executor) run(ctx context.Context, fx *memcompiler.Fixture, path string, meta map[string]interface{}) (*run.CompileRun, error) {
	logger.L().Info("compiling fixture", zap.String("fixture", fx.Name))
	fmt.Fprintln(e.out(), "Compiling fixture:", fx.Name)

	hash, err := fx.Hash()
	if err != nil {
		return nil, err
	}

	// Rerun reloads the fixture from here, possibly from another directory
	if path != "" {
		if path, err = filepath.Abs(path); err != nil {
			return nil, fmt.Errorf("failed to resolve fixture path: %w", err)
		}
	}

	cr, err := e.RunStore.NewCompileRun(fx.Name, path, hash)
	if err != nil {
		return nil, err
	}

	if meta == nil {
		meta = map[string]interface{}{}
	}
	fail := func(err error) (*run.CompileRun, error) {
		_ = cr.MarshalMeta(meta)
		cr.Finish(run.StatusFailed, err)
		_ = e.RunStore.Update(cr)
		logger.L().Error("compile run failed", zap.String("fixture", fx.Name), zap.String("run_id", cr.ID), zap.Error(err))
		return cr, err
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("compile run cancelled: %w", err))
	}

	compiler := fx.Compiler()
	meta["source"] = compiler.Source()
	meta["target"] = compiler.Target()

	order, err := fx.Order()
	if err != nil {
		return fail(err)
	}
	meta["order"] = order

	units, err := compiler.Compile(fx.Units)
	if err != nil {
		var cerr *memcompiler.CompileError
		if errors.As(err, &cerr) {
			meta["diagnostics"] = cerr.Diagnostics
		}
		return fail(err)
	}

	dir, err := e.exportDir(cr.ID)
	if err != nil {
		return fail(err)
	}

	for _, u := range units {
		select {
		case <-ctx.Done():
			return fail(fmt.Errorf("compile run cancelled: %w", ctx.Err()))
		default:
		}

		digest := sha256.Sum256(u.Export)
		rec := &run.UnitRecord{
			RunID:      cr.ID,
			Name:       u.Name,
			SourceFile: u.SourceFilename(),
			Size:       int64(len(u.Export)),
			Digest:     hex.EncodeToString(digest[:]),
		}

		if dir != "" {
			p, err := writeExport(dir, u)
			if err != nil {
				return fail(err)
			}
			rec.ExportFile = sql.NullString{String: p, Valid: true}
		}

		if err := e.RunStore.SaveUnit(rec); err != nil {
			logger.L().Error("failed to save unit record", zap.String("unit", u.Name), zap.Error(err))
			return fail(err)
		}

		cr.Units++
		cr.Bytes += rec.Size
		logger.L().Info("unit compiled", zap.String("unit", u.Name), zap.Int64("bytes", rec.Size))
		fmt.Fprintln(e.out(), "Unit compiled:", u.Name)
	}

	_ = cr.MarshalMeta(meta)
	cr.Finish(run.StatusSuccess, nil)
	if err := e.RunStore.Update(cr); err != nil {
		return cr, err
	}

	logger.L().Info("compile run completed", zap.String("fixture", fx.Name), zap.String("run_id", cr.ID))
	fmt.Fprintln(e.out(), "Compile run completed:", cr.ID)
	return cr, nil
}

// exportDir returns the run's export directory, or "" when no OutputDir is set.
func (e *Executor) exportDir(id string) (string, error) {
	if e.OutputDir == "" {
		return "", nil
	}
	if e.Scratch == nil || !e.Scratch.Contains(e.OutputDir) {
		return "", fmt.Errorf("output dir %s: %w", e.OutputDir, testfs.ErrOutsideScratch)
	}
	dir := filepath.Join(e.OutputDir, id)
	if err := e.Scratch.EnsureEmpty(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func writeExport(dir string, u *memcompiler.Unit) (string, error) {
	p := filepath.Join(dir, filepath.FromSlash(u.ExportFilename()))
	if err := testfs.EnsureDirExists(filepath.Dir(p)); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, u.Export, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file %s: %w", p, err)
	}
	return p, nil
}

func (e *Executor) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}
