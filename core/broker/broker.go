package broker

import (
	"context"
	"github.com/briefloop/researchcore/core/message"
	"io"
)

type Producer interface {
	// Produce enqueues msgs. A msg carrying message.HeaderDedupKey is a no-op
	// if a message with the same key is already queued or in flight — this is
	// what makes scheduler enqueue idempotent (spec §4.G).
	Produce(ctx context.Context, msgs ...*message.Msg) error
}
type Consumer interface {
	// Consume returns the next message, or (nil, nil, nil) if none is ready.
	Consume(ctx context.Context) (*message.Msg, message.ID, error)
	Ack(ctx context.Context, id message.ID) error
	// Nack returns the message to the queue for retry with backoff determined
	// by the broker's retry policy. Exceeding the retry budget moves the
	// message to the dead letter set instead of requeueing it.
	Nack(ctx context.Context, id message.ID) error
}

type Broker interface {
	Producer
	Consumer
	io.Closer
}
