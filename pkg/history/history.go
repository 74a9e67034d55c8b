// Package history persists conversation turns per user and replays them as
// model context.
//
// A Store is an append-only log keyed by user id. Every conversational
// interaction appends exactly one pair: the raw user text and the raw model
// output. Query returns the turns newer than a time window, oldest first.
//
// Two backends are provided:
//
//	// one JSONL file per user
//	store, _ := history.OpenJSONL("~/.local/share/relay/history")
//
//	// a single SQLite database
//	store, _ := history.OpenSQLite("~/.local/share/relay/history.db")
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bitop-dev/relay/pkg/ai"
)

// DefaultWindow is how far back Query looks when no window is configured.
const DefaultWindow = 12 * time.Hour

// Store is an append-only conversation log.
type Store interface {
	// Append records one interaction. Both entries share one timestamp.
	Append(ctx context.Context, userID, userText, modelText string) error
	// Query returns the turns of userID newer than now-window, oldest first.
	Query(ctx context.Context, userID string, window time.Duration) ([]ai.Message, error)
	Close() error
}

// Entry is one persisted turn.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Role      ai.Role   `json:"role"`
	Content   string    `json:"content"`
}

// Message converts e to the model message type for its role.
func (e Entry) Message() ai.Message {
	ts := e.Timestamp.UnixMilli()
	if e.Role == ai.RoleAssistant {
		return ai.NewAssistantText(e.Content, ts)
	}
	return ai.NewUserText(e.Content, ts)
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// pair builds the two entries of one interaction.
func pair(now time.Time, userText, modelText string) [2]Entry {
	ts := now.UTC()
	return [2]Entry{
		{ID: newEntryID(), Timestamp: ts, Role: ai.RoleUser, Content: userText},
		{ID: newEntryID(), Timestamp: ts, Role: ai.RoleAssistant, Content: modelText},
	}
}

// newEntryID generates an 8-character hex entry ID from a random UUID.
func newEntryID() string {
	return uuid.New().String()[:8]
}

func cutoff(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = DefaultWindow
	}
	return now.Add(-window)
}

// Drivers accepted by Open.
const (
	DriverJSONL  = "jsonl"
	DriverSQLite = "sqlite"
)

// Open returns the backend named by driver. For jsonl, path is a directory;
// for sqlite, a database file.
func Open(driver, path string, opts ...Option) (Store, error) {
	switch driver {
	case DriverJSONL, "":
		return OpenJSONL(path, opts...)
	case DriverSQLite:
		return OpenSQLite(path, opts...)
	default:
		return nil, fmt.Errorf("history: unknown driver %q", driver)
	}
}
