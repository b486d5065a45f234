// Package queue defines the action-invocation queue abstraction of spec
// §6.3 (enqueueAction/consumeActions) and an in-memory reference
// implementation. Grounded on the teacher's
// internal/infrastructure/publishing.PublishingQueue: a buffered-channel
// job queue with a worker pool, graceful Stop via context-cancel +
// WaitGroup, and Submit's select{chan<-job; ctx.Done; default} pattern —
// simplified here from three priority tiers to spec's single FIFO queue
// since spec §3/§6.3 define no priority concept for ActionMessage.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Enqueue when the queue's buffer is full
// and the context is not yet done; callers should treat this as a
// transient backpressure signal.
var ErrQueueFull = errors.New("queue: full")

// ErrClosed is returned by Enqueue after Close has been called.
var ErrClosed = errors.New("queue: closed")

// ActionMessage is the unit of work handed from internal/trigger's
// runner to internal/action's consumer (spec §4.3/§4.4).
type ActionMessage struct {
	ID                 string
	ActionInvocationID string
	ActionDefinitionID string
	TriggerEventID     string
	ManualInvokerID    string
	Context            json.RawMessage
	Attempt            int
}

// Queue is the enqueueAction/consumeActions contract of spec §6.3.
type Queue interface {
	// Enqueue submits msg, generating an ID if msg.ID is empty. Returns
	// ErrQueueFull if the queue is at capacity, ErrClosed if Close has
	// been called.
	Enqueue(ctx context.Context, msg ActionMessage) error

	// Consume returns a channel of messages; the channel closes once
	// Close has been called and all buffered messages are drained.
	Consume() <-chan ActionMessage

	// Close stops accepting new messages. Buffered messages already in
	// the channel remain consumable until drained.
	Close()
}

// memQueue is the in-memory reference Queue, a single buffered channel.
type memQueue struct {
	ch       chan ActionMessage
	closed   chan struct{}
	closeOne sync.Once
}

// New constructs an in-memory Queue with the given buffer capacity.
func New(capacity int) Queue {
	return &memQueue{
		ch:     make(chan ActionMessage, capacity),
		closed: make(chan struct{}),
	}
}

func (q *memQueue) Enqueue(ctx context.Context, msg ActionMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	select {
	case <-q.closed:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue: enqueue %s: %w", msg.ID, ctx.Err())
	case <-q.closed:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

func (q *memQueue) Consume() <-chan ActionMessage {
	return q.ch
}

func (q *memQueue) Close() {
	q.closeOne.Do(func() {
		close(q.closed)
		close(q.ch)
	})
}
