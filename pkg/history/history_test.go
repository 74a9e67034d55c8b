package history_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitop-dev/relay/pkg/ai"
	"github.com/bitop-dev/relay/pkg/history"
)

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type opener func(t *testing.T, opts ...history.Option) history.Store

var backends = map[string]opener{
	"jsonl": func(t *testing.T, opts ...history.Option) history.Store {
		s, err := history.OpenJSONL(filepath.Join(t.TempDir(), "hist"), opts...)
		require.NoError(t, err)
		return s
	},
	"sqlite": func(t *testing.T, opts ...history.Option) history.Store {
		s, err := history.OpenSQLite(filepath.Join(t.TempDir(), "db", "history.db"), opts...)
		require.NoError(t, err)
		return s
	},
}

type turn struct {
	Role ai.Role
	Text string
}

func turns(msgs []ai.Message) []turn {
	out := make([]turn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, turn{Role: m.GetRole(), Text: ai.Text(m)})
	}
	return out
}

func TestStore_AppendThenQuery(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			clk := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
			s := open(t, history.WithClock(clk.now))
			defer s.Close()
			ctx := context.Background()

			require.NoError(t, s.Append(ctx, "U1", "hello", "hi there"))
			clk.advance(time.Minute)
			require.NoError(t, s.Append(ctx, "U1", "list files", "<gemini-cli>ls</gemini-cli>"))

			msgs, err := s.Query(ctx, "U1", history.DefaultWindow)
			require.NoError(t, err)
			assert.Equal(t, []turn{
				{ai.RoleUser, "hello"},
				{ai.RoleAssistant, "hi there"},
				{ai.RoleUser, "list files"},
				{ai.RoleAssistant, "<gemini-cli>ls</gemini-cli>"},
			}, turns(msgs))
		})
	}
}

func TestStore_WindowExcludesOldTurns(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			clk := &clock{t: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
			s := open(t, history.WithClock(clk.now))
			defer s.Close()
			ctx := context.Background()

			require.NoError(t, s.Append(ctx, "U1", "old", "old reply"))
			clk.advance(13 * time.Hour)
			require.NoError(t, s.Append(ctx, "U1", "new", "new reply"))

			msgs, err := s.Query(ctx, "U1", 12*time.Hour)
			require.NoError(t, err)
			assert.Equal(t, []turn{
				{ai.RoleUser, "new"},
				{ai.RoleAssistant, "new reply"},
			}, turns(msgs))
		})
	}
}

func TestStore_UsersAreIsolated(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			require.NoError(t, s.Append(ctx, "U1", "a", "b"))

			msgs, err := s.Query(ctx, "U2", time.Hour)
			require.NoError(t, err)
			assert.Empty(t, msgs)
		})
	}
}

func TestStore_PairSharesTimestamp(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			require.NoError(t, s.Append(ctx, "U1", "q", "a"))
			msgs, err := s.Query(ctx, "U1", time.Hour)
			require.NoError(t, err)
			require.Len(t, msgs, 2)

			u := msgs[0].(ai.UserMessage)
			m := msgs[1].(ai.AssistantMessage)
			assert.Equal(t, u.Timestamp, m.Timestamp)
		})
	}
}

func TestJSONL_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	s, err := history.OpenJSONL(dir)
	require.NoError(t, err)

	require.NoError(t, s.Append(context.Background(), "U1", "q", "a"))

	f, err := os.OpenFile(s.Path("U1"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n{\"role\":\"system\",\"content\":\"x\"}\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	msgs, err := s.Query(context.Background(), "U1", time.Hour)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestJSONL_FileNames(t *testing.T) {
	dir := t.TempDir()
	s, err := history.OpenJSONL(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Uabc123_-.jsonl"), s.Path("Uabc123_-"))

	unsafe := s.Path("../../etc/passwd")
	assert.Equal(t, dir, filepath.Dir(unsafe))
	assert.Len(t, filepath.Base(unsafe), 64+len(".jsonl"))
}

func TestJSONL_QueryMissingUser(t *testing.T) {
	s, err := history.OpenJSONL(t.TempDir())
	require.NoError(t, err)

	msgs, err := s.Query(context.Background(), "nobody", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, msgs)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := history.Open("redis", t.TempDir())
	assert.ErrorContains(t, err, `unknown driver "redis"`)
}
