package memory

import (
	"context"
	"sync"

	"github.com/viant/batchtester/internal/idgen"
	"github.com/viant/batchtester/service/messaging"
)

// Message is an in-memory queue message
type Message[T any] struct {
	id      string
	payload T
}

// ID returns the message id
func (m *Message[T]) ID() string { return m.id }

// T returns the message payload
func (m *Message[T]) T() *T { return &m.payload }

// Queue implements an unbounded in-memory FIFO messaging.Queue
type Queue[T any] struct {
	messages []*Message[T]
	mu       sync.Mutex
}

// NewQueue creates a new in-memory queue
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Publish adds a new item to the queue
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, &Message[T]{id: idgen.New(), payload: *t})
	return nil
}

// Consume removes the oldest item, returning nil when empty
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, nil
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, nil
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
