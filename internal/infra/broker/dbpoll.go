package broker

import "context"

// ClaimFunc polls the RelationalStore for up to max pending ids. It is
// supplied by the caller because the claim query differs between the
// link stage (scoped to one source, bounded by MAX_RETRIES) and the
// article stage (unscoped) — DBPollBroker itself stays queue-shaped and
// knows nothing about either schema.
type ClaimFunc func(ctx context.Context, max int) ([]string, error)

// DBPollBroker satisfies Broker by treating the RelationalStore's own
// claim-queue as the queue, per spec.md §3 item 5: "The RelationalStore
// alone can also serve as the queue (polling by status)". It is the
// default broker when BROKER_ADDR is unset: Publish is a no-op because a
// row already becomes claimable the moment its status is PENDING, and
// Ack is a no-op because RecordFetchOutcome/MarkArticlesCompleted is
// itself the acknowledgement, committed in the same transaction as the
// status change.
type DBPollBroker struct {
	claim map[QueueName]ClaimFunc
}

// NewDBPollBroker constructs a DBPollBroker. claimFns maps each queue to
// the claim query that should back it (LinkQueue -> ClaimPendingLinks,
// ContentQueue -> ClaimPendingArticles).
func NewDBPollBroker(claimFns map[QueueName]ClaimFunc) *DBPollBroker {
	return &DBPollBroker{claim: claimFns}
}

// Publish implements Broker as a no-op: rows are already visible to the
// next claim as soon as they are inserted PENDING.
func (b *DBPollBroker) Publish(ctx context.Context, queue QueueName, ids []string) error {
	return nil
}

// Receive implements Broker by delegating to the registered ClaimFunc.
func (b *DBPollBroker) Receive(ctx context.Context, queue QueueName, max int) ([]Message, error) {
	claimFn, ok := b.claim[queue]
	if !ok {
		return nil, nil
	}

	ids, err := claimFn(ctx, max)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, len(ids))
	for i, id := range ids {
		messages[i] = Message{ID: id, Queue: queue}
	}
	return messages, nil
}

// Ack implements Broker as a no-op: the status-changing transaction in
// RecordFetchOutcome/MarkArticlesCompleted already is the acknowledgement.
func (b *DBPollBroker) Ack(ctx context.Context, queue QueueName, msgs []Message) error {
	return nil
}

// Close implements Broker as a no-op; the underlying *sql.DB is owned
// elsewhere.
func (b *DBPollBroker) Close() error {
	return nil
}
