// Package reply sequences outbound messages for one inbound chat message.
//
// A chat platform hands out a single-use acknowledgment handle (a reply token)
// with each inbound message. The first outbound message may use it; every
// later message for the same interaction must be pushed to the user
// directly. Sequencer enforces that ordering.
package reply

import (
	"context"
	"fmt"
)

// Transport delivers text to a chat platform.
type Transport interface {
	// Reply answers an inbound message using its acknowledgment token.
	Reply(ctx context.Context, token, text string) error
	// Push sends text to userID without a token.
	Push(ctx context.Context, userID, text string) error
}

// Sequencer tracks whether the acknowledgment token of one interaction has
// been spent. It is not safe for concurrent use; an interaction is handled by
// a single goroutine.
type Sequencer struct {
	t        Transport
	userID   string
	token    string
	consumed bool
	sent     int
}

// New returns a Sequencer holding an unspent token.
func New(t Transport, userID, token string) *Sequencer {
	return &Sequencer{t: t, userID: userID, token: token}
}

// Available reports whether the token can still be used.
func (s *Sequencer) Available() bool { return !s.consumed }

// Sent returns how many messages were handed to the transport.
func (s *Sequencer) Sent() int { return s.sent }

// Acknowledge sends text with the token. Calling it after the token has been
// spent is a programming error and panics.
//
// The token counts as spent even if delivery fails: the platform may already
// have invalidated it.
func (s *Sequencer) Acknowledge(ctx context.Context, text string) error {
	if s.consumed {
		panic("reply: acknowledgment token already consumed")
	}
	s.consumed = true
	s.sent++
	if err := s.t.Reply(ctx, s.token, text); err != nil {
		return fmt.Errorf("reply: acknowledge: %w", err)
	}
	return nil
}

// Push sends text addressed to the user. It is legal in any state and never
// touches the token.
func (s *Sequencer) Push(ctx context.Context, text string) error {
	s.sent++
	if err := s.t.Push(ctx, s.userID, text); err != nil {
		return fmt.Errorf("reply: push: %w", err)
	}
	return nil
}

// Deliver acknowledges with text while the token is unspent and pushes it
// otherwise.
func (s *Sequencer) Deliver(ctx context.Context, text string) error {
	if s.consumed {
		return s.Push(ctx, text)
	}
	return s.Acknowledge(ctx, text)
}
