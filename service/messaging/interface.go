package messaging

import (
	"context"
)

// Queue represents a message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume removes and returns the oldest message, or nil when the queue is empty.
	// It never blocks waiting for messages.
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// ID returns the message identifier
	ID() string

	// T returns the payload of this message
	T() *T
}
