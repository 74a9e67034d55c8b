package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bitop-dev/relay/pkg/ai"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_user_time ON history(user_id, created_at);
`

// SQLiteStore keeps every user's history in one SQLite table. created_at is
// unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// One writer; the dispatcher already serializes per user.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	o := buildOptions(opts)
	return &SQLiteStore{db: db, now: o.now}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, userID, userText, modelText string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	for _, e := range pair(s.now(), userText, modelText) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO history (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			e.ID, userID, string(e.Role), e.Content, e.Timestamp.UnixMilli())
		if err != nil {
			return fmt.Errorf("history: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, userID string, window time.Duration) ([]ai.Message, error) {
	since := cutoff(s.now(), window).UnixMilli()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM history
		 WHERE user_id = ? AND created_at > ?
		 ORDER BY created_at, seq`,
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var msgs []ai.Message
	for rows.Next() {
		var (
			e    Entry
			role string
			ms   int64
		)
		if err := rows.Scan(&e.ID, &role, &e.Content, &ms); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Role = ai.Role(role)
		e.Timestamp = time.UnixMilli(ms).UTC()
		msgs = append(msgs, e.Message())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
