// Package journal records every worker attempt and its outcome in a
// project-local SQLite database (.vizier/journal.db). The journal is an audit
// trail and the source of the lessons fed back into retry prompts; the task
// tree document stays the only authority on step status.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome classifies one recorded attempt.
type Outcome string

const (
	// OutcomeWorkFailed means the worker exited non-zero.
	OutcomeWorkFailed Outcome = "work_failed"
	// OutcomeRejected means the verifier declined the result.
	OutcomeRejected Outcome = "rejected"
	// OutcomeAccepted means the verifier accepted and the step merged.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeInvocationError means the agent process itself failed.
	OutcomeInvocationError Outcome = "invocation_error"
)

// Attempt is one recorded worker attempt.
type Attempt struct {
	StepID   int
	Tier     string
	Attempt  int
	Outcome  Outcome
	Feedback string
	At       time.Time
}

// Journal wraps the attempts database.
type Journal struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// Path returns the journal path for a project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, ".vizier", "journal.db")
}

// Open opens (and migrates) the journal at the given path, creating parent
// directories as needed. WAL mode keeps concurrent status reads cheap.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	j := &Journal{conn: conn, path: path}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.conn.Close()
}

func (j *Journal) migrate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := j.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Attempts},
		{2, migrationV2Lessons},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := j.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

const migrationV1Attempts = `
CREATE TABLE IF NOT EXISTS attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	step_id INTEGER NOT NULL,
	tier TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	feedback TEXT,
	at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_step_id ON attempts(step_id);
`

const migrationV2Lessons = `
CREATE TABLE IF NOT EXISTS lessons (
	step_id INTEGER PRIMARY KEY,
	lesson TEXT NOT NULL,
	at DATETIME NOT NULL
);
`

// Record appends one attempt to the journal.
func (j *Journal) Record(a Attempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.conn.Exec(`
		INSERT INTO attempts (step_id, tier, attempt, outcome, feedback, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.StepID, a.Tier, a.Attempt, string(a.Outcome), a.Feedback, at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Attempts returns all recorded attempts for a step, oldest first.
func (j *Journal) Attempts(stepID int) ([]Attempt, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.conn.Query(`
		SELECT step_id, tier, attempt, outcome, COALESCE(feedback, ''), at
		FROM attempts WHERE step_id = ? ORDER BY id
	`, stepID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var outcome, at string
		if err := rows.Scan(&a.StepID, &a.Tier, &a.Attempt, &outcome, &a.Feedback, &at); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Outcome = Outcome(outcome)
		a.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Feedback returns the feedback strings from rejected attempts of a step,
// oldest first. These ride along in the next attempt's prompt.
func (j *Journal) Feedback(stepID int) ([]string, error) {
	attempts, err := j.Attempts(stepID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, a := range attempts {
		if a.Outcome == OutcomeRejected && a.Feedback != "" {
			out = append(out, a.Feedback)
		}
	}
	return out, nil
}

// SetLesson records the terminal lesson for a blocked step, replacing any
// earlier one.
func (j *Journal) SetLesson(stepID int, lesson string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.conn.Exec(`
		INSERT INTO lessons (step_id, lesson, at) VALUES (?, ?, ?)
		ON CONFLICT(step_id) DO UPDATE SET lesson=excluded.lesson, at=excluded.at
	`, stepID, lesson, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set lesson: %w", err)
	}
	return nil
}

// Lesson returns the terminal lesson for a step, or "" if none is recorded.
func (j *Journal) Lesson(stepID int) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var lesson string
	err := j.conn.QueryRow("SELECT lesson FROM lessons WHERE step_id = ?", stepID).Scan(&lesson)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get lesson: %w", err)
	}
	return lesson, nil
}

// Lessons returns every recorded terminal lesson keyed by step id.
func (j *Journal) Lessons() (map[int]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.conn.Query("SELECT step_id, lesson FROM lessons ORDER BY step_id")
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var id int
		var lesson string
		if err := rows.Scan(&id, &lesson); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		out[id] = lesson
	}
	return out, rows.Err()
}
