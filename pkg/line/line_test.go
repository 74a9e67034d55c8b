package line_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitop-dev/relay/pkg/bridge"
	"github.com/bitop-dev/relay/pkg/line"
)

const secret = "channel-secret"

// ---------------------------------------------------------------------------
// Signature
// ---------------------------------------------------------------------------

func TestVerify(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := line.Sign(secret, body)

	assert.NoError(t, line.Verify(secret, body, sig))
	assert.ErrorIs(t, line.Verify("other", body, sig), line.ErrInvalidSignature)
	assert.ErrorIs(t, line.Verify(secret, []byte(`{}`), sig), line.ErrInvalidSignature)
	assert.ErrorIs(t, line.Verify(secret, body, ""), line.ErrInvalidSignature)
	assert.ErrorIs(t, line.Verify(secret, body, "%%%"), line.ErrInvalidSignature)
}

// ---------------------------------------------------------------------------
// Split
// ---------------------------------------------------------------------------

func TestSplit_Short(t *testing.T) {
	res := line.Split("hello", 10, 5)
	assert.Equal(t, []string{"hello"}, res.Parts)
	assert.False(t, res.Truncated)
}

func TestSplit_PrefersNewlines(t *testing.T) {
	res := line.Split("aaaa\nbbbb\ncc", 7, 5)
	assert.Equal(t, []string{"aaaa\n", "bbbb\ncc"}, res.Parts)
	assert.Equal(t, "aaaa\nbbbb\ncc", strings.Join(res.Parts, ""))
}

func TestSplit_HardCutWithoutNewline(t *testing.T) {
	res := line.Split("あいうえおかきくけこ", 4, 5)
	assert.Equal(t, []string{"あいうえ", "おかきく", "けこ"}, res.Parts)
}

func TestSplit_CountsSurrogatePairs(t *testing.T) {
	res := line.Split("😀😀😀", 4, 5)
	assert.Equal(t, []string{"😀😀", "😀"}, res.Parts)
	assert.Equal(t, 6, res.TotalUnits)
}

func TestSplit_Truncates(t *testing.T) {
	text := strings.Repeat("x", line.MaxTextLength*line.MaxMessages+100)
	res := line.Split(text, line.MaxTextLength, line.MaxMessages)

	require.Len(t, res.Parts, line.MaxMessages)
	assert.True(t, res.Truncated)
	last := res.Parts[len(res.Parts)-1]
	assert.True(t, strings.HasSuffix(last, "(以下省略)"))
	for _, p := range res.Parts {
		assert.LessOrEqual(t, len([]rune(p)), line.MaxTextLength)
	}
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

type captured struct {
	Path string
	Auth string
	Body map[string]any
}

func apiServer(t *testing.T, status int, respBody string) (*httptest.Server, *[]captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		reqs = append(reqs, captured{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestClient_Reply(t *testing.T) {
	srv, reqs := apiServer(t, http.StatusOK, "{}")
	c := line.NewClient(line.ClientOptions{AccessToken: "tok", BaseURL: srv.URL + "/"})

	require.NoError(t, c.Reply(context.Background(), "reply-1", "hello"))

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "/v2/bot/message/reply", got.Path)
	assert.Equal(t, "Bearer tok", got.Auth)
	assert.Equal(t, "reply-1", got.Body["replyToken"])
	assert.Equal(t, []any{map[string]any{"type": "text", "text": "hello"}}, got.Body["messages"])
}

func TestClient_PushSplitsLongText(t *testing.T) {
	srv, reqs := apiServer(t, http.StatusOK, "{}")
	c := line.NewClient(line.ClientOptions{AccessToken: "tok", BaseURL: srv.URL})

	text := strings.Repeat("a", line.MaxTextLength) + strings.Repeat("b", 10)
	require.NoError(t, c.Push(context.Background(), "U1", text))

	got := (*reqs)[0]
	assert.Equal(t, "/v2/bot/message/push", got.Path)
	assert.Equal(t, "U1", got.Body["to"])
	assert.Len(t, got.Body["messages"], 2)
}

func TestClient_APIError(t *testing.T) {
	srv, _ := apiServer(t, http.StatusBadRequest, `{"message":"Invalid reply token"}`)
	c := line.NewClient(line.ClientOptions{AccessToken: "tok", BaseURL: srv.URL})

	err := c.Reply(context.Background(), "stale", "x")
	var apiErr *line.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid reply token", apiErr.Message)
}

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

type sink struct {
	mu  sync.Mutex
	got []bridge.Inbound
	err error
}

func (s *sink) Submit(in bridge.Inbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, in)
	return nil
}

func post(t *testing.T, h http.Handler, body string, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set(line.SignatureHeader, sig)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const textEvent = `{
  "destination": "Ubot",
  "events": [
    {"type":"message","replyToken":"r1","source":{"type":"user","userId":"U1"},
     "message":{"id":"1","type":"text","text":"!pwd"}},
    {"type":"message","replyToken":"r2","source":{"type":"user","userId":"U2"},
     "message":{"id":"2","type":"sticker"}},
    {"type":"follow","replyToken":"r3","source":{"type":"user","userId":"U3"}}
  ]
}`

func TestWebhook_SubmitsTextEvents(t *testing.T) {
	s := &sink{}
	h := line.NewRouter("/callback", line.NewWebhook(secret, s, nil))

	rec := post(t, h, textEvent, line.Sign(secret, []byte(textEvent)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bridge.Inbound{{UserID: "U1", Text: "!pwd", AckToken: "r1"}}, s.got)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	s := &sink{}
	h := line.NewRouter("/callback", line.NewWebhook(secret, s, nil))

	rec := post(t, h, textEvent, line.Sign("wrong", []byte(textEvent)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.got)
}

func TestWebhook_VerificationPing(t *testing.T) {
	body := `{"destination":"Ubot","events":[]}`
	h := line.NewRouter("/callback", line.NewWebhook(secret, &sink{}, nil))

	rec := post(t, h, body, line.Sign(secret, []byte(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_ShuttingDown(t *testing.T) {
	h := line.NewRouter("/callback", line.NewWebhook(secret, &sink{err: bridge.ErrClosed}, nil))

	rec := post(t, h, textEvent, line.Sign(secret, []byte(textEvent)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_Healthz(t *testing.T) {
	h := line.NewRouter("", line.NewWebhook(secret, &sink{}, nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
