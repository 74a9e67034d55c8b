// Package google implements ai.Provider for the Gemini REST API
// (streamGenerateContent over SSE). No SDK dependency; see package genai for
// the SDK-backed alternative.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bitop-dev/relay/pkg/ai"
	"github.com/bitop-dev/relay/pkg/ai/sse"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider is the Gemini streaming provider.
type Provider struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *Provider) Name() string { return "google" }

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type wirePart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

type wireGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type wireSystemInstruction struct {
	Parts []wirePart `json:"parts"`
}

type wireRequest struct {
	SystemInstruction *wireSystemInstruction `json:"systemInstruction,omitempty"`
	Contents          []wireContent          `json:"contents"`
	GenerationConfig  wireGenConfig          `json:"generationConfig,omitempty"`
}

type wireChunk struct {
	Candidates []struct {
		Content      wireContent `json:"content"`
		FinishReason string      `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount        int `json:"promptTokenCount"`
		CandidatesTokenCount    int `json:"candidatesTokenCount"`
		ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
		TotalTokenCount         int `json:"totalTokenCount"`
		CachedContentTokenCount int `json:"cachedContentTokenCount"`
	} `json:"usageMetadata"`
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

func (p *Provider) Stream(
	ctx context.Context,
	model string,
	llmCtx ai.Context,
	opts ai.StreamOptions,
) (<-chan ai.StreamEvent, func() (*ai.AssistantMessage, error)) {
	events := make(chan ai.StreamEvent, 64)
	var finalMsg *ai.AssistantMessage
	var finalErr error
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(events)
		finalMsg, finalErr = p.stream(ctx, model, llmCtx, opts, events)
		if finalErr != nil {
			events <- ai.StreamEvent{Type: ai.StreamEventError, Error: finalErr}
		}
	}()

	return events, func() (*ai.AssistantMessage, error) {
		<-done
		return finalMsg, finalErr
	}
}

func (p *Provider) stream(
	ctx context.Context,
	model string,
	llmCtx ai.Context,
	opts ai.StreamOptions,
	events chan<- ai.StreamEvent,
) (*ai.AssistantMessage, error) {
	body, err := json.Marshal(buildRequest(llmCtx, opts))
	if err != nil {
		return nil, fmt.Errorf("google: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.BaseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", opts.APIKey)

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("google: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	partial := &ai.AssistantMessage{
		Role:      ai.RoleAssistant,
		Model:     model,
		Provider:  "google",
		Timestamp: time.Now().UnixMilli(),
	}
	events <- ai.StreamEvent{Type: ai.StreamEventStart, Partial: snapshotMsg(partial)}

	textIdx := -1
	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("google: sse read: %w", err)
		}
		if ev.Data == "" || ev.Data == "[DONE]" {
			continue
		}

		var chunk wireChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			continue
		}

		if chunk.UsageMetadata.TotalTokenCount > 0 {
			partial.Usage.Input = chunk.UsageMetadata.PromptTokenCount
			partial.Usage.Output = chunk.UsageMetadata.CandidatesTokenCount + chunk.UsageMetadata.ThoughtsTokenCount
			partial.Usage.CacheRead = chunk.UsageMetadata.CachedContentTokenCount
			partial.Usage.TotalTokens = chunk.UsageMetadata.TotalTokenCount
		}
		if reason := chunk.PromptFeedback.BlockReason; reason != "" {
			partial.StopReason = ai.StopReasonError
			partial.ErrorMessage = "prompt blocked: " + reason
			continue
		}
		if len(chunk.Candidates) == 0 {
			continue
		}

		cand := chunk.Candidates[0]
		if cand.FinishReason != "" {
			partial.StopReason = mapStopReason(cand.FinishReason)
		}

		for _, part := range cand.Content.Parts {
			// Thought summaries are never relayed to the user.
			if part.Thought || part.Text == "" {
				continue
			}
			if textIdx < 0 {
				partial.Content = append(partial.Content, ai.TextContent{Type: "text"})
				textIdx = len(partial.Content) - 1
				events <- ai.StreamEvent{Type: ai.StreamEventTextStart, Partial: snapshotMsg(partial)}
			}
			tb := partial.Content[textIdx].(ai.TextContent)
			tb.Text += part.Text
			partial.Content[textIdx] = tb
			events <- ai.StreamEvent{Type: ai.StreamEventTextDelta, Partial: snapshotMsg(partial), Delta: part.Text}
		}
	}

	if textIdx >= 0 {
		events <- ai.StreamEvent{Type: ai.StreamEventTextEnd, Partial: snapshotMsg(partial)}
	}
	if partial.StopReason == "" {
		partial.StopReason = ai.StopReasonStop
	}

	events <- ai.StreamEvent{Type: ai.StreamEventDone, Partial: snapshotMsg(partial)}
	return partial, nil
}

// ---------------------------------------------------------------------------
// Request building
// ---------------------------------------------------------------------------

func buildRequest(llmCtx ai.Context, opts ai.StreamOptions) wireRequest {
	req := wireRequest{}

	if llmCtx.SystemPrompt != "" {
		req.SystemInstruction = &wireSystemInstruction{
			Parts: []wirePart{{Text: llmCtx.SystemPrompt}},
		}
	}
	req.GenerationConfig.Temperature = opts.Temperature
	if opts.MaxTokens > 0 {
		req.GenerationConfig.MaxOutputTokens = opts.MaxTokens
	}

	for _, m := range llmCtx.Messages {
		text := ai.Text(m)
		if strings.TrimSpace(text) == "" {
			continue
		}
		role := "user"
		if m.GetRole() == ai.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, wireContent{Role: role, Parts: []wirePart{{Text: text}}})
	}
	return req
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func snapshotMsg(msg *ai.AssistantMessage) *ai.AssistantMessage {
	cp := *msg
	cp.Content = make([]ai.ContentBlock, len(msg.Content))
	copy(cp.Content, msg.Content)
	return &cp
}

func mapStopReason(r string) ai.StopReason {
	switch r {
	case "MAX_TOKENS":
		return ai.StopReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return ai.StopReasonSafety
	default:
		return ai.StopReasonStop
	}
}
