// Package run implements the ledger of compile runs.
package run

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store manages the persistence of CompileRun instances using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initialises a new Store with SQLite database at the given path.
// The parent directory is created when missing.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	_, err := s.db.Exec(dbschema)
	return err
}

// NewCompileRun creates and stores a running CompileRun for the fixture.
func (s *Store) NewCompileRun(fixture, fixturePath, fixtureHash string) (*CompileRun, error) {
	id := uuid.New().String()

	run := &CompileRun{
		ID:          id,
		Fixture:     fixture,
		FixturePath: fixturePath,
		FixtureHash: fixtureHash,
		Status:      StatusRunning,
		StartedAt:   time.Now(),
		CreatedAt:   time.Now(),
	}

	_, err := s.db.Exec(QueryCreateCompileRun, run.ID, run.Fixture, run.FixturePath, run.FixtureHash, run.Status, run.StartedAt, run.CreatedAt)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// Update persists changes to an existing CompileRun.
func (s *Store) Update(run *CompileRun) error {
	_, err := s.db.Exec(QueryUpdateCompileRun, run.Status, run.EndedAt, run.Units, run.Bytes, run.LastError, run.Meta, run.ID)
	return err
}

// Load retrieves a CompileRun by its ID.
func (s *Store) Load(id string) (*CompileRun, error) {
	run := &CompileRun{}
	err := s.db.QueryRow(QueryLoadCompileRun, id).Scan(&run.ID, &run.Fixture, &run.FixturePath, &run.FixtureHash, &run.Status, &run.StartedAt, &run.EndedAt, &run.Units, &run.Bytes, &run.LastError, &run.Meta, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// ListRuns retrieves compile runs with optional filtering and pagination.
func (s *Store) ListRuns(fixture, status string, limit, offset int) ([]*CompileRun, error) {
	rows, err := s.db.Query(QueryListRuns, fixture, fixture, status, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*CompileRun
	for rows.Next() {
		run := &CompileRun{}
		if err := rows.Scan(&run.ID, &run.Fixture, &run.FixturePath, &run.FixtureHash, &run.Status, &run.StartedAt, &run.EndedAt, &run.Units, &run.Bytes, &run.LastError, &run.Meta, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// SaveUnit persists a UnitRecord to the database.
func (s *Store) SaveUnit(unit *UnitRecord) error {
	result, err := s.db.Exec(QueryCreateUnitRecord, unit.RunID, unit.Name, unit.SourceFile, unit.ExportFile, unit.Size, unit.Digest)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	unit.ID = id
	return nil
}

// LoadUnits retrieves all UnitRecords of a CompileRun in the order they were saved.
func (s *Store) LoadUnits(runID string) ([]UnitRecord, error) {
	rows, err := s.db.Query(QueryLoadUnitRecords, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []UnitRecord
	for rows.Next() {
		var unit UnitRecord
		if err := rows.Scan(&unit.ID, &unit.RunID, &unit.Name, &unit.SourceFile, &unit.ExportFile, &unit.Size, &unit.Digest); err != nil {
			return nil, err
		}
		units = append(units, unit)
	}

	return units, rows.Err()
}

// GetUnit retrieves a specific UnitRecord by run ID and unit name.
func (s *Store) GetUnit(runID, name string) (*UnitRecord, error) {
	unit := &UnitRecord{}
	err := s.db.QueryRow(QueryGetUnitRecord, runID, name).Scan(&unit.ID, &unit.RunID, &unit.Name, &unit.SourceFile, &unit.ExportFile, &unit.Size, &unit.Digest)
	if err != nil {
		return nil, err
	}

	return unit, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
