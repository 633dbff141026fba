package run

import (
	"database/sql"
	"encoding/json"
	"time"
)

type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
)

const dbschema = `
CREATE TABLE IF NOT EXISTS compile_runs (
    id TEXT PRIMARY KEY,
    fixture TEXT NOT NULL,
    fixture_path TEXT NOT NULL,
    fixture_hash TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP,
    units INTEGER NOT NULL DEFAULT 0,
    bytes INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    meta TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS unit_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    name TEXT NOT NULL,
    source_file TEXT NOT NULL,
    export_file TEXT,
    size INTEGER NOT NULL DEFAULT 0,
    digest TEXT NOT NULL,
    FOREIGN KEY (run_id) REFERENCES compile_runs(id)
);

CREATE INDEX IF NOT EXISTS idx_unit_records_run_id ON unit_records(run_id);
`

const (
	QueryCreateCompileRun = `
        INSERT INTO compile_runs (id, fixture, fixture_path, fixture_hash, status, started_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `

	QueryUpdateCompileRun = `
        UPDATE compile_runs
        SET status = ?, ended_at = ?, units = ?, bytes = ?, last_error = ?, meta = ?
        WHERE id = ?
    `

	QueryLoadCompileRun = `
        SELECT id, fixture, fixture_path, fixture_hash, status, started_at, ended_at, units, bytes, last_error, meta, created_at
        FROM compile_runs
        WHERE id = ?
    `

	QueryListRuns = `
		SELECT id, fixture, fixture_path, fixture_hash, status, started_at, ended_at, units, bytes, last_error, meta, created_at
		FROM compile_runs
		WHERE (? = '' OR fixture = ?)
			AND (? = '' OR status = ?)
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	QueryCreateUnitRecord = `
        INSERT INTO unit_records (run_id, name, source_file, export_file, size, digest)
        VALUES (?, ?, ?, ?, ?, ?)
    `

	QueryLoadUnitRecords = `
        SELECT id, run_id, name, source_file, export_file, size, digest
        FROM unit_records
        WHERE run_id = ?
        ORDER BY id
    `

	QueryGetUnitRecord = `
		SELECT id, run_id, name, source_file, export_file, size, digest
		FROM unit_records
		WHERE run_id = ? AND name = ?
	`
)

// CompileRun is one compilation of a unit fixture.
type CompileRun struct {
	ID          string         `db:"id"`
	Fixture     string         `db:"fixture"`
	FixturePath string         `db:"fixture_path"`
	FixtureHash string         `db:"fixture_hash"`
	Status      RunStatus      `db:"status"`
	StartedAt   time.Time      `db:"started_at"`
	EndedAt     sql.NullTime   `db:"ended_at"`
	Units       int            `db:"units"`
	Bytes       int64          `db:"bytes"`
	LastError   sql.NullString `db:"last_error"`
	Meta        sql.NullString `db:"meta"` // JSON string
	CreatedAt   time.Time      `db:"created_at"`
}

// UnitRecord describes one compiled unit of a run. The export data itself
// is not stored; ExportFile is set when it was written to disk.
type UnitRecord struct {
	ID         int64          `db:"id"`
	RunID      string         `db:"run_id"` // Foreign key to CompileRun
	Name       string         `db:"name"`
	SourceFile string         `db:"source_file"`
	ExportFile sql.NullString `db:"export_file"`
	Size       int64          `db:"size"`
	Digest     string         `db:"digest"`
}

// Finish marks the run as ended with the given status.
func (r *CompileRun) Finish(status RunStatus, err error) {
	r.Status = status
	r.EndedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err != nil {
		r.LastError = sql.NullString{String: err.Error(), Valid: true}
	}
}

// Duration returns how long the run took, or how long it has been running.
func (r *CompileRun) Duration() time.Duration {
	if r.EndedAt.Valid {
		return r.EndedAt.Time.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// MarshalMeta converts Meta map to JSON string for storage
func (r *CompileRun) MarshalMeta(meta map[string]interface{}) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	r.Meta = sql.NullString{String: string(data), Valid: true}
	return nil
}

// UnmarshalMeta converts JSON string back to Meta map
func (r *CompileRun) UnmarshalMeta() (map[string]interface{}, error) {
	var meta map[string]interface{}
	if !r.Meta.Valid {
		return meta, nil
	}
	err := json.Unmarshal([]byte(r.Meta.String), &meta)
	return meta, err
}

// MarshalRun converts a CompileRun and its units to JSON bytes.
func MarshalRun(r *CompileRun, units []UnitRecord) ([]byte, error) {
	type unitOutput struct {
		Name       string `json:"name"`
		SourceFile string `json:"source_file"`
		ExportFile string `json:"export_file,omitempty"`
		Size       int64  `json:"size"`
		Digest     string `json:"digest"`
	}

	type runOutput struct {
		ID          string       `json:"id"`
		Fixture     string       `json:"fixture"`
		FixturePath string       `json:"fixture_path"`
		FixtureHash string       `json:"fixture_hash"`
		Status      string       `json:"status"`
		StartedAt   time.Time    `json:"started_at"`
		EndedAt     *time.Time   `json:"ended_at,omitempty"`
		Units       int          `json:"units"`
		Bytes       int64        `json:"bytes"`
		LastError   string       `json:"last_error,omitempty"`
		Meta        interface{}  `json:"meta,omitempty"`
		CreatedAt   time.Time    `json:"created_at"`
		UnitRecords []unitOutput `json:"unit_records,omitempty"`
	}

	var endedAt *time.Time
	if r.EndedAt.Valid {
		endedAt = &r.EndedAt.Time
	}

	var meta interface{}
	if r.Meta.Valid {
		_ = json.Unmarshal([]byte(r.Meta.String), &meta)
	}

	var records []unitOutput
	for _, u := range units {
		records = append(records, unitOutput{
			Name:       u.Name,
			SourceFile: u.SourceFile,
			ExportFile: u.ExportFile.String,
			Size:       u.Size,
			Digest:     u.Digest,
		})
	}

	return json.Marshal(runOutput{
		ID:          r.ID,
		Fixture:     r.Fixture,
		FixturePath: r.FixturePath,
		FixtureHash: r.FixtureHash,
		Status:      string(r.Status),
		StartedAt:   r.StartedAt,
		EndedAt:     endedAt,
		Units:       r.Units,
		Bytes:       r.Bytes,
		LastError:   r.LastError.String,
		Meta:        meta,
		CreatedAt:   r.CreatedAt,
		UnitRecords: records,
	})
}
