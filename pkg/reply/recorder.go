package reply

import (
	"context"
	"sync"
)

// Kind distinguishes the two delivery primitives.
type Kind string

const (
	KindReply Kind = "reply"
	KindPush  Kind = "push"
)

// Delivery is one message seen by a Recorder.
type Delivery struct {
	Kind Kind
	To   string // token for replies, user id for pushes
	Text string
}

// Recorder is an in-memory Transport. It backs the console front-end and
// tests. Errors set in ReplyErr / PushErr are returned after recording.
type Recorder struct {
	ReplyErr error
	PushErr  error
	// OnDeliver, if set, is called for each delivery after it is recorded.
	OnDeliver func(Delivery)

	mu         sync.Mutex
	deliveries []Delivery
}

func (r *Recorder) Reply(_ context.Context, token, text string) error {
	r.record(Delivery{Kind: KindReply, To: token, Text: text})
	return r.ReplyErr
}

func (r *Recorder) Push(_ context.Context, userID, text string) error {
	r.record(Delivery{Kind: KindPush, To: userID, Text: text})
	return r.PushErr
}

// Deliveries returns a copy of everything recorded so far, in order.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

func (r *Recorder) record(d Delivery) {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, d)
	fn := r.OnDeliver
	r.mu.Unlock()
	if fn != nil {
		fn(d)
	}
}
