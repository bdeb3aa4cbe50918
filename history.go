package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ========================================
// HistoryStore - SQLite run history
// ========================================
// Persists every replay and script run with its per-step results, so past
// runs can be inspected after the fact.

const historySchemaSQL = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    workflow_id TEXT,
    success INTEGER NOT NULL,
    total_steps INTEGER NOT NULL,
    executed_steps INTEGER NOT NULL,
    failed_steps INTEGER NOT NULL,
    skipped_steps INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    error TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_device ON runs(device_id);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

CREATE TABLE IF NOT EXISTS run_steps (
    run_id TEXT NOT NULL,
    step_index INTEGER NOT NULL,
    action TEXT NOT NULL,
    status TEXT NOT NULL,
    message TEXT,
    attempts INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    confidence REAL,
    strategy_used TEXT,
    fallback_level INTEGER,
    error TEXT,
    PRIMARY KEY (run_id, step_index),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

// Run kinds.
const (
	RunKindReplay = "replay"
	RunKindScript = "script"
)

// RunRecord is one persisted run.
type RunRecord struct {
	ID         string           `json:"id"`
	DeviceID   string           `json:"device_id"`
	Kind       string           `json:"kind"`
	WorkflowID string           `json:"workflow_id,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	Result     AutomationResult `json:"result"`
}

// HistoryStore is the SQLite-backed run history.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistoryStore opens (and migrates) the history database.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(historySchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	LogInfo("history").Str("path", path).Msg("Run history opened")
	return &HistoryStore{db: db}, nil
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// SaveRun persists one run and its step results. Returns the run id.
func (s *HistoryStore) SaveRun(deviceID, kind, workflowID string, result AutomationResult) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, device_id, kind, workflow_id, success, total_steps,
			executed_steps, failed_steps, skipped_steps, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, deviceID, kind, workflowID, boolToInt(result.Success), result.TotalSteps,
		result.ExecutedSteps, result.FailedSteps, result.SkippedSteps,
		result.DurationMs, result.Error, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_steps (run_id, step_index, action, status, message,
			attempts, duration_ms, confidence, strategy_used, fallback_level, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, sr := range result.StepResults {
		var confidence sql.NullFloat64
		if sr.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *sr.Confidence, Valid: true}
		}
		if _, err := stmt.Exec(id, sr.StepIndex, sr.Action, string(sr.Status), sr.Message,
			sr.Attempts, sr.DurationMs, confidence, sr.StrategyUsed, sr.FallbackLevel, sr.Error); err != nil {
			return "", fmt.Errorf("failed to insert step result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	LogInfo("history").Str("run_id", id).Str("kind", kind).Bool("success", result.Success).Msg("Run saved")
	return id, nil
}

// ListRuns returns the most recent runs, optionally filtered by device.
// Step results are not populated; use GetRun for the full record.
func (s *HistoryStore) ListRuns(deviceID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, device_id, kind, workflow_id, success, total_steps,
		executed_steps, failed_steps, skipped_steps, duration_ms, error, created_at
		FROM runs`
	args := []any{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRun returns one run including its step results.
func (s *HistoryStore) GetRun(id string) (RunRecord, error) {
	row := s.db.QueryRow(`SELECT id, device_id, kind, workflow_id, success, total_steps,
		executed_steps, failed_steps, skipped_steps, duration_ms, error, created_at
		FROM runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return RunRecord{}, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return RunRecord{}, err
	}

	rows, err := s.db.Query(`SELECT step_index, action, status, message, attempts,
		duration_ms, confidence, strategy_used, fallback_level, error
		FROM run_steps WHERE run_id = ? ORDER BY step_index`, id)
	if err != nil {
		return RunRecord{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var sr StepResult
		var confidence sql.NullFloat64
		if err := rows.Scan(&sr.StepIndex, &sr.Action, &sr.Status, &sr.Message,
			&sr.Attempts, &sr.DurationMs, &confidence, &sr.StrategyUsed,
			&sr.FallbackLevel, &sr.Error); err != nil {
			return RunRecord{}, err
		}
		if confidence.Valid {
			sr.Confidence = &confidence.Float64
		}
		rec.Result.StepResults = append(rec.Result.StepResults, sr)
	}
	return rec, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var success int
	var createdAt int64
	err := row.Scan(&rec.ID, &rec.DeviceID, &rec.Kind, &rec.WorkflowID, &success,
		&rec.Result.TotalSteps, &rec.Result.ExecutedSteps, &rec.Result.FailedSteps,
		&rec.Result.SkippedSteps, &rec.Result.DurationMs, &rec.Result.Error, &createdAt)
	if err != nil {
		return rec, err
	}
	rec.Result.Success = success == 1
	rec.CreatedAt = time.UnixMilli(createdAt)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// MarshalRuns renders run records as indented JSON for CLI output.
func MarshalRuns(records []RunRecord) (string, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
