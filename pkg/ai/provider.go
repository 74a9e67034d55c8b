package ai

import (
	"context"
	"errors"
	"fmt"
)

// Provider streams a model response for a given context.
// Events are sent to the returned channel; it is closed when the stream ends.
//
// Implementations must close the channel (and not panic) even when ctx is
// cancelled, so callers can always range over it safely.
type Provider interface {
	// Name returns the provider identifier, e.g. "google", "genai".
	Name() string

	// Stream starts a model call. It returns:
	//   - a channel of incremental events
	//   - a function that blocks until the stream is complete and returns the
	//     final AssistantMessage (or error)
	Stream(
		ctx context.Context,
		model string,
		llmCtx Context,
		opts StreamOptions,
	) (<-chan StreamEvent, func() (*AssistantMessage, error))
}

// ErrEmptyResponse is returned by Complete when the model produced no text.
var ErrEmptyResponse = errors.New("ai: empty response")

// Complete runs one provider call to completion and returns the concatenated
// text of the final message. Stream events are drained and discarded.
// Over-long input is reported as ErrContextOverflow.
func Complete(ctx context.Context, p Provider, model string, llmCtx Context, opts StreamOptions) (string, error) {
	events, wait := p.Stream(ctx, model, llmCtx, opts)
	for range events {
	}
	msg, err := wait()
	if err != nil {
		if isOverflowText(err.Error()) {
			return "", fmt.Errorf("%s: %w: %w", p.Name(), ErrContextOverflow, err)
		}
		return "", fmt.Errorf("%s: %w", p.Name(), err)
	}
	if msg == nil {
		return "", fmt.Errorf("%s: %w", p.Name(), ErrEmptyResponse)
	}
	if IsContextOverflow(msg) {
		return "", fmt.Errorf("%s: %w: %s", p.Name(), ErrContextOverflow, msg.ErrorMessage)
	}
	if msg.StopReason == StopReasonError {
		return "", fmt.Errorf("%s: %s", p.Name(), msg.ErrorMessage)
	}
	text := Text(msg)
	if text == "" {
		return "", fmt.Errorf("%s: %w (stop_reason=%s)", p.Name(), ErrEmptyResponse, msg.StopReason)
	}
	return text, nil
}
