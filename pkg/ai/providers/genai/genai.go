// Package genai implements ai.Provider on top of the official Google GenAI SDK.
// The SDK call is unary; the provider emits a single text delta once the
// response arrives.
package genai

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/bitop-dev/relay/pkg/ai"
)

// contentGenerator is the subset of *genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider is the SDK-backed Gemini provider.
type Provider struct {
	models contentGenerator
}

// New creates a Gemini API client for apiKey.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return &Provider{models: client.Models}, nil
}

func (p *Provider) Name() string { return "genai" }

func (p *Provider) Stream(
	ctx context.Context,
	model string,
	llmCtx ai.Context,
	opts ai.StreamOptions,
) (<-chan ai.StreamEvent, func() (*ai.AssistantMessage, error)) {
	events := make(chan ai.StreamEvent, 8)
	var finalMsg *ai.AssistantMessage
	var finalErr error
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(events)
		finalMsg, finalErr = p.generate(ctx, model, llmCtx, opts, events)
		if finalErr != nil {
			events <- ai.StreamEvent{Type: ai.StreamEventError, Error: finalErr}
		}
	}()

	return events, func() (*ai.AssistantMessage, error) {
		<-done
		return finalMsg, finalErr
	}
}

func (p *Provider) generate(
	ctx context.Context,
	model string,
	llmCtx ai.Context,
	opts ai.StreamOptions,
	events chan<- ai.StreamEvent,
) (*ai.AssistantMessage, error) {
	contents := make([]*genai.Content, 0, len(llmCtx.Messages))
	for _, m := range llmCtx.Messages {
		text := ai.Text(m)
		if text == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.GetRole() == ai.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if llmCtx.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(llmCtx.SystemPrompt, genai.RoleUser)
	}
	if opts.Temperature != nil {
		t := float32(*opts.Temperature)
		cfg.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	resp, err := p.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai: generate content: %w", err)
	}

	msg := &ai.AssistantMessage{
		Role:       ai.RoleAssistant,
		Model:      model,
		Provider:   "genai",
		StopReason: ai.StopReasonStop,
		Timestamp:  time.Now().UnixMilli(),
	}
	events <- ai.StreamEvent{Type: ai.StreamEventStart, Partial: msg}

	if u := resp.UsageMetadata; u != nil {
		msg.Usage = ai.Usage{
			Input:       int(u.PromptTokenCount),
			Output:      int(u.CandidatesTokenCount + u.ThoughtsTokenCount),
			CacheRead:   int(u.CachedContentTokenCount),
			TotalTokens: int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) > 0 {
		msg.StopReason = mapFinishReason(resp.Candidates[0].FinishReason)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		msg.StopReason = ai.StopReasonError
		msg.ErrorMessage = "prompt blocked: " + string(fb.BlockReason)
	}

	if text := resp.Text(); text != "" {
		msg.Content = []ai.ContentBlock{ai.TextContent{Type: "text", Text: text}}
		events <- ai.StreamEvent{Type: ai.StreamEventTextDelta, Partial: msg, Delta: text}
	}
	events <- ai.StreamEvent{Type: ai.StreamEventDone, Partial: msg}
	return msg, nil
}

func mapFinishReason(r genai.FinishReason) ai.StopReason {
	switch r {
	case genai.FinishReasonMaxTokens:
		return ai.StopReasonLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
		return ai.StopReasonSafety
	default:
		return ai.StopReasonStop
	}
}
