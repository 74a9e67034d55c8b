package history

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bitop-dev/relay/pkg/ai"
)

// JSONLStore keeps one append-only JSONL file per user under a directory.
// Each line is one Entry. Malformed lines are skipped on read.
type JSONLStore struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// OpenJSONL creates dir if needed and returns a store rooted there.
func OpenJSONL(dir string, opts ...Option) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", dir, err)
	}
	o := buildOptions(opts)
	return &JSONLStore{dir: dir, now: o.now}, nil
}

// Path returns the file backing userID.
func (s *JSONLStore) Path(userID string) string {
	return filepath.Join(s.dir, fileName(userID))
}

func (s *JSONLStore) Append(_ context.Context, userID, userText, modelText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(userID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("history: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range pair(s.now(), userText, modelText) {
		if err := writeLine(w, e); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("history: flush %s: %w", path, err)
	}
	return nil
}

func (s *JSONLStore) Query(_ context.Context, userID string, window time.Duration) ([]ai.Message, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.Path(userID))
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}

	since := cutoff(s.now(), window)
	var msgs []ai.Message
	for _, e := range ParseEntries(data) {
		if e.Timestamp.After(since) {
			msgs = append(msgs, e.Message())
		}
	}
	return msgs, nil
}

func (s *JSONLStore) Close() error { return nil }

// ParseEntries decodes a JSONL history file, skipping lines that are blank or
// do not decode.
func ParseEntries(data []byte) []Entry {
	var out []Entry
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if e.Role != ai.RoleUser && e.Role != ai.RoleAssistant {
			continue
		}
		out = append(out, e)
	}
	return out
}

func writeLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("history: marshal entry: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("history: write newline: %w", err)
	}
	return nil
}

// fileName maps a user id to a file name. Ids made only of ASCII letters,
// digits, '-' and '_' are used as-is; anything else is hashed.
func fileName(userID string) string {
	if safeID(userID) {
		return userID + ".jsonl"
	}
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:]) + ".jsonl"
}

func safeID(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
