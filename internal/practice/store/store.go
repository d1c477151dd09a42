// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     store
// Description: SQLite history of attempt results and finished sessions
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
)

// ResultEntry is one scored attempt
type ResultEntry struct {
	ID            string                     `json:"id"`
	AttemptID     string                     `json:"attempt_id"`
	LessonID      string                     `json:"lesson_id"`
	Score         float64                    `json:"score"`
	Label         string                     `json:"label"`
	Transcription string                     `json:"transcription"`
	ExpectedText  string                     `json:"expected_text"`
	Analysis      map[string]json.RawMessage `json:"analysis,omitempty"`
	RecordedAt    time.Time                  `json:"recorded_at"`
}

// SessionScore is one recorded score of a session
type SessionScore struct {
	LessonID string  `json:"lesson_id"`
	Score    float64 `json:"score"`
}

// SessionEntry is one finished lesson sequence
type SessionEntry struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Aggregate  float64        `json:"aggregate"`
	Lessons    int            `json:"lessons"`
	Skipped    int            `json:"skipped"`
	Scores     []SessionScore `json:"scores"`
}

// LessonStat aggregates the results of one lesson
type LessonStat struct {
	LessonID string
	Attempts int
	Best     float64
	Average  float64
	Last     time.Time
}

// HistoryStore defines the interface for practice history persistence
type HistoryStore interface {
	RecordResult(ctx context.Context, entry *ResultEntry) error
	SaveSession(ctx context.Context, entry *SessionEntry) error
	RecentSessions(ctx context.Context, limit int) ([]*SessionEntry, error)
	Results(ctx context.Context, lessonID string, limit int) ([]*ResultEntry, error)
	LessonStats(ctx context.Context) ([]LessonStat, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// SQLiteStore implements HistoryStore using SQLite
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// Config holds configuration for the SQLite store
type Config struct {
	Path string
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Path: "./data/history.db",
	}
}

func storageError(err error, msg string) *hterror.Error {
	return hterror.Wrap(err, msg).WithCode(hterror.CodeStorageError)
}

// Open creates or opens the history database
func Open(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, storageError(err, "failed to create directory").WithDetail("path", cfg.Path)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, storageError(err, "failed to open database").WithDetail("path", cfg.Path)
	}
	// One connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, storageError(err, "failed to initialize schema").WithDetail("path", cfg.Path)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		attempt_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		score REAL NOT NULL,
		label TEXT,
		transcription TEXT,
		expected_text TEXT,
		analysis TEXT,
		recorded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		aggregate REAL NOT NULL,
		lessons INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		scores TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_results_attempt ON results(attempt_id);
	CREATE INDEX IF NOT EXISTS idx_results_lesson ON results(lesson_id, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sessions_finished ON sessions(finished_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordResult stores one result. A second result for the same attempt is ignored.
func (s *SQLiteStore) RecordResult(ctx context.Context, entry *ResultEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.LessonID == "" {
		return hterror.New("result without lesson id").WithCode(hterror.CodeInvalidInput)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.AttemptID == "" {
		entry.AttemptID = entry.ID
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	var analysisJSON []byte
	if entry.Analysis != nil {
		analysisJSON, _ = json.Marshal(entry.Analysis)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (id, attempt_id, lesson_id, score, label, transcription, expected_text, analysis, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(attempt_id) DO NOTHING
	`, entry.ID, entry.AttemptID, entry.LessonID, entry.Score, entry.Label, entry.Transcription,
		entry.ExpectedText, analysisJSON, entry.RecordedAt.UTC())
	if err != nil {
		return storageError(err, "failed to insert result")
	}
	return nil
}

// SaveSession stores a finished session
func (s *SQLiteStore) SaveSession(ctx context.Context, entry *SessionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = entry.FinishedAt
	}

	scoresJSON, err := json.Marshal(entry.Scores)
	if err != nil {
		return storageError(err, "failed to encode scores")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, finished_at, aggregate, lessons, skipped, scores)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.StartedAt.UTC(), entry.FinishedAt.UTC(), entry.Aggregate, entry.Lessons, entry.Skipped, string(scoresJSON))
	if err != nil {
		return storageError(err, "failed to insert session")
	}
	return nil
}

// RecentSessions returns the latest sessions, newest first
func (s *SQLiteStore) RecentSessions(ctx context.Context, limit int) ([]*SessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, started_at, finished_at, aggregate, lessons, skipped, scores FROM sessions ORDER BY finished_at DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(err, "failed to query sessions")
	}
	defer rows.Close()

	var entries []*SessionEntry
	for rows.Next() {
		var entry SessionEntry
		var scoresJSON sql.NullString
		if err := rows.Scan(&entry.ID, &entry.StartedAt, &entry.FinishedAt, &entry.Aggregate,
			&entry.Lessons, &entry.Skipped, &scoresJSON); err != nil {
			return nil, storageError(err, "failed to scan session")
		}
		if scoresJSON.Valid {
			json.Unmarshal([]byte(scoresJSON.String), &entry.Scores)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "failed to read sessions")
	}
	return entries, nil
}

// Results returns recorded results, newest first. An empty lessonID returns all lessons.
func (s *SQLiteStore) Results(ctx context.Context, lessonID string, limit int) ([]*ResultEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, attempt_id, lesson_id, score, label, transcription, expected_text, analysis, recorded_at FROM results WHERE 1=1`
	var args []interface{}
	if lessonID != "" {
		query += " AND lesson_id = ?"
		args = append(args, lessonID)
	}
	query += " ORDER BY recorded_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(err, "failed to query results")
	}
	defer rows.Close()

	var entries []*ResultEntry
	for rows.Next() {
		var entry ResultEntry
		var label, transcription, expected, analysisJSON sql.NullString
		if err := rows.Scan(&entry.ID, &entry.AttemptID, &entry.LessonID, &entry.Score,
			&label, &transcription, &expected, &analysisJSON, &entry.RecordedAt); err != nil {
			return nil, storageError(err, "failed to scan result")
		}
		entry.Label = label.String
		entry.Transcription = transcription.String
		entry.ExpectedText = expected.String
		if analysisJSON.Valid && analysisJSON.String != "" {
			json.Unmarshal([]byte(analysisJSON.String), &entry.Analysis)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "failed to read results")
	}
	return entries, nil
}

// LessonStats returns per-lesson attempt statistics ordered by lesson id
func (s *SQLiteStore) LessonStats(ctx context.Context) ([]LessonStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT lesson_id, COUNT(*), MAX(score), AVG(score), MAX(recorded_at)
		FROM results
		GROUP BY lesson_id
		ORDER BY lesson_id
	`)
	if err != nil {
		return nil, storageError(err, "failed to query lesson stats")
	}
	defer rows.Close()

	var stats []LessonStat
	for rows.Next() {
		var st LessonStat
		var last string
		if err := rows.Scan(&st.LessonID, &st.Attempts, &st.Best, &st.Average, &last); err != nil {
			return nil, storageError(err, "failed to scan lesson stats")
		}
		st.Last = parseTime(last)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "failed to read lesson stats")
	}
	return stats, nil
}

// parseTime reads aggregate timestamps, which SQLite returns as text
func parseTime(v string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Prune removes results and sessions older than the given duration
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan).UTC()

	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, storageError(err, "failed to prune results")
	}
	n, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE finished_at < ?`, cutoff)
	if err != nil {
		return n, storageError(err, "failed to prune sessions")
	}
	m, _ := res.RowsAffected()
	return n + m, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
