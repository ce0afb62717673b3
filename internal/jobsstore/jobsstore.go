// Package jobsstore tracks background dump jobs (an OID range being
// decoded and written to disk) with a pluggable JSON-file or SQLite
// backend, selected the same way the teacher application picked between
// its two PsipredJob backends.
//
// Grounded on jobsStore/jobsPath/jobsDB, saveJobs, and loadJobs as
// reconstructed from _examples/BuBitt-DRD4-F2/cmd/web/jobs_test.go and
// jobs_sqlite_test.go -- jobs.go itself was not present in the retrieved
// tree, so the table schema and dispatch logic below are rebuilt from
// those tests' observable behavior rather than copied.
package jobsstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"blastdb/internal/dberr"
)

// DumpJob is one background dump request: decode every record in OIDRange
// and write the result to disk, tracked from "queued" through "running"
// to "done" or "failed".
type DumpJob struct {
	ID        string
	OIDRange  string
	State     string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists a snapshot of all known jobs under one of two backends.
type Store struct {
	backend string // "json" or "sqlite"
	path    string
	db      *sql.DB
}

// Open opens a job store. backend must be "json" or "sqlite". For
// "sqlite" the backing file and schema are created if they do not exist.
func Open(backend, path string) (*Store, error) {
	s := &Store{backend: backend, path: path}
	switch backend {
	case "json":
		return s, nil
	case "sqlite":
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite job store: %w", err)
		}
		if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			oid_range TEXT,
			state TEXT,
			message TEXT,
			created_at TEXT,
			updated_at TEXT
		)`); err != nil {
			db.Close()
			return nil, fmt.Errorf("create jobs schema: %w", err)
		}
		s.db = db
		return s, nil
	default:
		return nil, fmt.Errorf("unknown job store backend %q: %w", backend, dberr.BadFormat)
	}
}

// Close releases the store's resources. It is a no-op for the JSON backend.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save overwrites the store's entire contents with jobs.
func (s *Store) Save(jobs []DumpJob) error {
	switch s.backend {
	case "json":
		return saveJSON(s.path, jobs)
	case "sqlite":
		return saveSQLite(s.db, jobs)
	default:
		return fmt.Errorf("unknown job store backend %q: %w", s.backend, dberr.BadFormat)
	}
}

// Load returns every job currently in the store.
func (s *Store) Load() ([]DumpJob, error) {
	switch s.backend {
	case "json":
		return loadJSON(s.path)
	case "sqlite":
		return loadSQLite(s.db)
	default:
		return nil, fmt.Errorf("unknown job store backend %q: %w", s.backend, dberr.BadFormat)
	}
}

// Put inserts or updates a single job by ID and persists the whole
// snapshot. Callers with many updates in flight should prefer Load +
// mutate + Save to avoid a read-modify-write round trip per job.
func (s *Store) Put(job DumpJob) error {
	jobs, err := s.Load()
	if err != nil {
		return err
	}
	found := false
	for i := range jobs {
		if jobs[i].ID == job.ID {
			jobs[i] = job
			found = true
			break
		}
	}
	if !found {
		jobs = append(jobs, job)
	}
	return s.Save(jobs)
}

// Get returns the job with the given ID, if any.
func (s *Store) Get(id string) (DumpJob, bool, error) {
	jobs, err := s.Load()
	if err != nil {
		return DumpJob{}, false, err
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, true, nil
		}
	}
	return DumpJob{}, false, nil
}

func saveJSON(path string, jobs []DumpJob) error {
	b, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal jobs: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write jobs file: %w", err)
	}
	return nil
}

func loadJSON(path string) ([]DumpJob, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}
	var jobs []DumpJob
	if err := json.Unmarshal(b, &jobs); err != nil {
		return nil, fmt.Errorf("unmarshal jobs: %w", err)
	}
	return jobs, nil
}

func saveSQLite(db *sql.DB, jobs []DumpJob) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin jobs transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM jobs`); err != nil {
		return fmt.Errorf("clear jobs table: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO jobs (id, oid_range, state, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare job insert: %w", err)
	}
	defer stmt.Close()

	for _, j := range jobs {
		if _, err := stmt.Exec(j.ID, j.OIDRange, j.State, j.Message,
			j.CreatedAt.UTC().Format(time.RFC3339), j.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert job %q: %w", j.ID, err)
		}
	}
	return tx.Commit()
}

func loadSQLite(db *sql.DB) ([]DumpJob, error) {
	rows, err := db.Query(`SELECT id, oid_range, state, message, created_at, updated_at FROM jobs`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []DumpJob
	for rows.Next() {
		var j DumpJob
		var created, updated string
		if err := rows.Scan(&j.ID, &j.OIDRange, &j.State, &j.Message, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		j.CreatedAt, err = time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for job %q: %w", j.ID, err)
		}
		j.UpdatedAt, err = time.Parse(time.RFC3339, updated)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for job %q: %w", j.ID, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
