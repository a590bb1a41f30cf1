// Package store persists an audit log of interjection verdicts to sqlite.
// The log is purely operational: losing it never affects scheduling state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// VerdictRecord is one decision-pipeline outcome.
type VerdictRecord struct {
	ID           int64
	Key          string // conversation key
	Generation   uint64 // scheduler generation that fired
	MessageCount int    // buffered messages drained for this check
	ShouldReply  bool
	Content      string
	Outcome      string // "sent", "declined", "rate_limited", "error", "malformed"
	LatencyMS    int64
	CreatedAt    time.Time
}

// Verdict outcome labels.
const (
	OutcomeSent        = "sent"
	OutcomeDeclined    = "declined"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeMalformed   = "malformed"
)

// VerdictStore is the sqlite-backed audit log.
type VerdictStore struct {
	db *sql.DB
}

// OpenVerdictStore opens (and if needed creates) the verdict database.
func OpenVerdictStore(dbPath string) (*VerdictStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdicts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			generation INTEGER NOT NULL,
			message_count INTEGER NOT NULL,
			should_reply INTEGER NOT NULL,
			content TEXT,
			outcome TEXT NOT NULL,
			latency_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create verdicts table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_verdicts_key_created ON verdicts(key, created_at)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_verdicts_created ON verdicts(created_at)`)

	return &VerdictStore{db: db}, nil
}

// Record appends one verdict to the log.
func (s *VerdictStore) Record(ctx context.Context, rec VerdictRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	shouldReply := 0
	if rec.ShouldReply {
		shouldReply = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verdicts (key, generation, message_count, should_reply, content, outcome, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Key, rec.Generation, rec.MessageCount, shouldReply, rec.Content, rec.Outcome, rec.LatencyMS, created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

// Recent returns up to limit verdicts for a key, newest first.
func (s *VerdictStore) Recent(ctx context.Context, key string, limit int) ([]VerdictRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, generation, message_count, should_reply, content, outcome, latency_ms, created_at
		FROM verdicts WHERE key = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []VerdictRecord
	for rows.Next() {
		var rec VerdictRecord
		var shouldReply int
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Key, &rec.Generation, &rec.MessageCount, &shouldReply, &rec.Content, &rec.Outcome, &rec.LatencyMS, &created); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		rec.ShouldReply = shouldReply != 0
		rec.CreatedAt = time.Unix(created, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CleanupBefore deletes verdicts older than the cutoff, returning the
// number removed. Called from the idle sweep.
func (s *VerdictStore) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM verdicts WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup verdicts: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *VerdictStore) Close() error {
	return s.db.Close()
}
