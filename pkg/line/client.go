package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultAPIBaseURL is the Messaging API endpoint.
const DefaultAPIBaseURL = "https://api.line.me"

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the Messaging API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client sends reply and push messages. It implements reply.Transport.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// ClientOptions configures a Client.
type ClientOptions struct {
	AccessToken string
	BaseURL     string       // defaults to DefaultAPIBaseURL
	HTTPClient  *http.Client // defaults to a client with a 30s timeout
	Logger      *zap.Logger
}

// NewClient returns a Messaging API client.
func NewClient(opts ClientOptions) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.AccessToken,
		http:    opts.HTTPClient,
		log:     opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultAPIBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// Reply answers a webhook event with its reply token.
func (c *Client) Reply(ctx context.Context, token, text string) error {
	return c.post(ctx, "/v2/bot/message/reply", replyRequest{
		ReplyToken: token,
		Messages:   c.messages(text),
	})
}

// Push sends text to userID.
func (c *Client) Push(ctx context.Context, userID, text string) error {
	return c.post(ctx, "/v2/bot/message/push", pushRequest{
		To:       userID,
		Messages: c.messages(text),
	})
}

func (c *Client) messages(text string) []textMessage {
	res := Split(text, MaxTextLength, MaxMessages)
	if res.Truncated {
		c.log.Warn("message truncated",
			zap.Int("units", res.TotalUnits),
			zap.Int("parts", len(res.Parts)),
		)
	}
	out := make([]textMessage, 0, len(res.Parts))
	for _, p := range res.Parts {
		out = append(out, textMessage{Type: "text", Text: p})
	}
	return out
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("line: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("line: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
