package broker

import (
	"context"
	"sync"
)

// InProcessBroker satisfies Broker with buffered Go channels, for the
// single-process deployment spec.md §3 item 5 describes ("the same
// interface is satisfied by an in-process channel when run as a single
// process"). Ack is a no-op: once Receive hands back a message it has
// already left the channel, so there is nothing left to acknowledge.
type InProcessBroker struct {
	mu      sync.Mutex
	queues  map[QueueName]chan Message
	bufSize int
}

// NewInProcessBroker constructs an InProcessBroker with the given
// per-queue channel buffer size.
func NewInProcessBroker(bufSize int) *InProcessBroker {
	if bufSize <= 0 {
		bufSize = 1000
	}
	return &InProcessBroker{
		queues:  make(map[QueueName]chan Message),
		bufSize: bufSize,
	}
}

func (b *InProcessBroker) channel(queue QueueName) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.queues[queue]
	if !ok {
		ch = make(chan Message, b.bufSize)
		b.queues[queue] = ch
	}
	return ch
}

// Publish implements Broker.
func (b *InProcessBroker) Publish(ctx context.Context, queue QueueName, ids []string) error {
	ch := b.channel(queue)
	for _, id := range ids {
		select {
		case ch <- Message{ID: id, Queue: queue}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Receive implements Broker, draining up to max already-buffered
// messages without blocking past the first available one.
func (b *InProcessBroker) Receive(ctx context.Context, queue QueueName, max int) ([]Message, error) {
	ch := b.channel(queue)

	var messages []Message
	select {
	case msg := <-ch:
		messages = append(messages, msg)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(messages) < max {
		select {
		case msg := <-ch:
			messages = append(messages, msg)
		default:
			return messages, nil
		}
	}
	return messages, nil
}

// Ack implements Broker as a no-op.
func (b *InProcessBroker) Ack(ctx context.Context, queue QueueName, msgs []Message) error {
	return nil
}

// Close implements Broker as a no-op; there is no underlying connection.
func (b *InProcessBroker) Close() error {
	return nil
}
