// Package dispatcher implements the asynchronous fallback path: a durable
// "match requested" signal channel and the worker that retries matching runs
// with at-least-once semantics.
package dispatcher

import (
	"context"
	"errors"
	"sync"

	"commodity-matching/internal/domain"
)

var ErrQueueClosed = errors.New("signal queue closed")

// SignalState is the processing state of a fallback signal
type SignalState string

const (
	SignalRequested  SignalState = "REQUESTED"
	SignalProcessing SignalState = "PROCESSING"
	SignalCompleted  SignalState = "COMPLETED"
	SignalRequeued   SignalState = "REQUEUED"
)

// Signal is one durable "match requested" record
type Signal struct {
	EntityType   domain.EntityType `json:"entity_type"`   // Triggering entity type
	EntityID     string            `json:"entity_id"`     // Triggering entity ID
	AttemptCount int               `json:"attempt_count"` // Completed attempts so far
}

type attemptKey struct{}

// WithAttempt annotates a context with the fallback attempt number of the
// run it carries. Signals re-published from within a fallback run inherit
// this count, so retries stay bounded even when every run defers work.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// Attempt returns the fallback attempt number carried by the context;
// zero for a synchronous run.
func Attempt(ctx context.Context) int {
	if v, ok := ctx.Value(attemptKey{}).(int); ok {
		return v
	}
	return 0
}

// Ack marks a received signal as fully processed. Transports with delivery
// tracking commit the signal here; consuming without acking leaves it
// eligible for redelivery, which keeps the channel at-least-once across
// worker crashes.
type Ack func(ctx context.Context) error

// Queue is the durable fallback signal channel. Publish is called by the
// orchestrator's caller whenever the synchronous run raised, timed out, or
// was skipped; Receive blocks until a signal arrives or the context ends.
type Queue interface {
	Publish(ctx context.Context, sig Signal) error
	Receive(ctx context.Context) (Signal, Ack, error)
}

// MemoryQueue is an in-process Queue for single-binary deployments and tests
type MemoryQueue struct {
	mu     sync.RWMutex
	ch     chan Signal
	closed bool
}

// NewMemoryQueue creates a queue with the given buffer size
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan Signal, size)}
}

// Publish enqueues a signal. The read lock is held across the send so Close
// cannot close the channel under an in-flight publish.
func (q *MemoryQueue) Publish(ctx context.Context, sig Signal) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- sig:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next signal. The channel itself is the delivery
// record, so the returned ack is a no-op.
func (q *MemoryQueue) Receive(ctx context.Context) (Signal, Ack, error) {
	select {
	case sig, ok := <-q.ch:
		if !ok {
			return Signal{}, nil, ErrQueueClosed
		}
		return sig, noopAck, nil
	case <-ctx.Done():
		return Signal{}, nil, ctx.Err()
	}
}

func noopAck(context.Context) error { return nil }

// Close stops the queue; pending signals remain receivable
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Len reports the number of pending signals (for testing)
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
