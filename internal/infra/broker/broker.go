// Package broker provides the optional inter-stage queue transport for
// LINK_QUEUE and CONTENT_QUEUE (spec.md §3 item 5). It is optional in the
// sense that the RelationalStore's claim-queue pattern already satisfies
// at-least-once handoff on its own; a Broker exists only to let the
// pipeline's stages run as separate processes without polling the
// database as aggressively.
package broker

import "context"

// QueueName identifies one of the pipeline's two inter-stage queues.
type QueueName string

const (
	LinkQueue    QueueName = "link_queue"
	ContentQueue QueueName = "content_queue"
)

// Message is one handoff notification carried on a queue: an opaque id
// (a LinkRecord or ArticleRecord primary key) plus the queue it travels
// on. The payload is intentionally thin — consumers re-read the
// authoritative row from the RelationalStore rather than trusting queue
// contents, so a broker implementation never needs to carry the full
// record.
type Message struct {
	ID    string
	Queue QueueName

	// ackToken is opaque to callers; implementations that need it to
	// acknowledge (e.g. Redis Streams message ids) stash it here.
	ackToken string
}

// Broker is the capability contract satisfied by every inter-stage
// transport: a Redis Streams consumer-group implementation for
// multi-process deployments, an in-process channel implementation for
// single-process deployments, and a RelationalStore-polling
// implementation when no separate broker process is configured.
//
// At-least-once semantics: a message is only removed from visibility
// after Ack. A crash between Receive and Ack redelivers the message.
type Broker interface {
	// Publish enqueues ids onto queue. Used by upstream stages
	// (FreshLinkCollector/HistoricalLinkCollector publish to LinkQueue,
	// PageFetcherDispatcher publishes to ContentQueue) as an
	// optimization so the downstream stage does not need to poll.
	Publish(ctx context.Context, queue QueueName, ids []string) error

	// Receive blocks (bounded by ctx) for up to max messages from queue.
	// Returned messages remain claimed by this consumer until Ack.
	Receive(ctx context.Context, queue QueueName, max int) ([]Message, error)

	// Ack acknowledges successful processing of msgs, making them
	// eligible for removal from the queue's pending-entries list.
	Ack(ctx context.Context, queue QueueName, msgs []Message) error

	// Close releases any underlying connection.
	Close() error
}
