package bridge

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("bridge: dispatcher closed")

// Processor handles one inbound message.
type Processor interface {
	Handle(ctx context.Context, in Inbound)
}

// Dispatcher runs messages with at most one worker per user. A user's
// messages are handled in submission order; different users proceed in
// parallel. Workers exit when their user's queue drains.
type Dispatcher struct {
	proc Processor
	log  *zap.Logger
	ctx  context.Context

	mu     sync.Mutex
	queues map[string][]Inbound // present while a worker runs for the user
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher returns a Dispatcher feeding p. Handling runs under ctx with
// its cancellation removed, so a message that has started always finishes.
func NewDispatcher(ctx context.Context, p Processor, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		proc:   p,
		log:    logger,
		ctx:    context.WithoutCancel(ctx),
		queues: make(map[string][]Inbound),
	}
}

// Submit queues in behind any pending messages of the same user.
func (d *Dispatcher) Submit(in Inbound) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	q, running := d.queues[in.UserID]
	d.queues[in.UserID] = append(q, in)
	if !running {
		d.wg.Add(1)
		go d.drain(in.UserID)
	}
	return nil
}

// Pending returns the number of queued messages that have not started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}

// Close stops accepting messages and waits until every queued message has
// been handled or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drain(userID string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[userID]
		if len(q) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		in := q[0]
		q[0] = Inbound{}
		d.queues[userID] = q[1:]
		d.mu.Unlock()

		d.run(in)
	}
}

func (d *Dispatcher) run(in Inbound) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic while handling message",
				zap.String("user", in.UserID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	d.proc.Handle(d.ctx, in)
}
