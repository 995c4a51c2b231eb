package projectctx

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Sink accepts context facts reported by output analysis, keyed by the task
// that produced them. The engine only ever writes; nothing in the sink feeds
// back into scheduling.
type Sink interface {
	Apply(ctx context.Context, taskID string, facts map[string]any) error
}

// Ledger additionally records run sessions and per-task executions for
// end-of-run reporting and audit.
type Ledger interface {
	Sink
	BeginRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, runID, stopReason string, completed, failed, generated int) error
	RecordExecution(ctx context.Context, rec ExecutionRecord) error
	Close() error
}

// ExecutionRecord is one task execution within a run.
type ExecutionRecord struct {
	RunID        string
	TaskID       string
	Status       string
	Duration     time.Duration
	Checkpointed bool
	Error        string
}

// SQLiteStore implements Ledger on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the ledger database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger schema: %w", err)
	}
	return s, nil
}

// NewMemoryStore opens an in-memory ledger for tests.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS facts (
		task_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (task_id, key)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME,
		stop_reason TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		generated INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		checkpointed INTEGER NOT NULL,
		error TEXT,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_executions_run ON executions(run_id);
	CREATE INDEX IF NOT EXISTS idx_facts_task ON facts(task_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Apply upserts each fact under the reporting task's id. Values are stored as
// their string form; the sink enforces no schema.
func (s *SQLiteStore) Apply(ctx context.Context, taskID string, facts map[string]any) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning fact transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range facts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO facts (task_id, key, value)
			VALUES (?, ?, ?)
			ON CONFLICT(task_id, key) DO UPDATE SET
				value = excluded.value,
				recorded_at = CURRENT_TIMESTAMP
		`, taskID, key, fmt.Sprint(value))
		if err != nil {
			return fmt.Errorf("upserting fact %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// Facts returns all recorded facts for a task as strings.
func (s *SQLiteStore) Facts(ctx context.Context, taskID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM facts WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	facts := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		facts[key] = value
	}
	return facts, rows.Err()
}

// BeginRun opens a new run row and returns its id.
func (s *SQLiteStore) BeginRun(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id) VALUES (?)`, runID)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return runID, nil
}

// FinishRun closes out a run with its stop reason and totals.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID, stopReason string, completed, failed, generated int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = CURRENT_TIMESTAMP, stop_reason = ?, completed = ?, failed = ?, generated = ?
		WHERE id = ?
	`, stopReason, completed, failed, generated, runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// RecordExecution appends one task execution to the ledger.
func (s *SQLiteStore) RecordExecution(ctx context.Context, rec ExecutionRecord) error {
	checkpointed := 0
	if rec.Checkpointed {
		checkpointed = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (run_id, task_id, status, duration_ms, checkpointed, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.TaskID, rec.Status, rec.Duration.Milliseconds(), checkpointed, rec.Error)
	if err != nil {
		return fmt.Errorf("recording execution: %w", err)
	}
	return nil
}

// Executions returns all execution records for a run, oldest first.
func (s *SQLiteStore) Executions(ctx context.Context, runID string) ([]ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, status, duration_ms, checkpointed, error
		FROM executions
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var recs []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var ms int64
		var checkpointed int
		if err := rows.Scan(&rec.TaskID, &rec.Status, &ms, &checkpointed, &rec.Error); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		rec.RunID = runID
		rec.Duration = time.Duration(ms) * time.Millisecond
		rec.Checkpointed = checkpointed == 1
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
