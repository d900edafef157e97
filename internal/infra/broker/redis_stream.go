package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	groupName    = "newsfeed-pipeline"
	consumerName = "worker"
)

// RedisStreamBroker implements Broker using Redis Streams consumer
// groups, grounded on Kaikei-e-Alt/mq-hub's XAdd/pipeline producer side
// and pre-processor's XReadGroup/XAck consumer loop.
type RedisStreamBroker struct {
	client *redis.Client
}

// NewRedisStreamBroker dials addr (a redis:// URL or host:port) and
// returns a ready RedisStreamBroker. Consumer groups are created lazily,
// on first Receive per queue.
func NewRedisStreamBroker(addr string) (*RedisStreamBroker, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("redis stream broker: parse addr: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	return &RedisStreamBroker{client: redis.NewClient(opts)}, nil
}

// Publish implements Broker.
func (b *RedisStreamBroker) Publish(ctx context.Context, queue QueueName, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pipe := b.client.Pipeline()
	for _, id := range ids {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: string(queue),
			Values: map[string]interface{}{"id": id},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stream broker: publish to %s: %w", queue, err)
	}
	return nil
}

// Receive implements Broker, creating the consumer group on first use.
func (b *RedisStreamBroker) Receive(ctx context.Context, queue QueueName, max int) ([]Message, error) {
	if err := b.ensureGroup(ctx, queue); err != nil {
		return nil, err
	}

	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    groupName,
		Consumer: consumerName,
		Streams:  []string{string(queue), ">"},
		Count:    int64(max),
		Block:    5 * time.Second,
	}).Result()

	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis stream broker: receive from %s: %w", queue, err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, m := range stream.Messages {
			id, _ := m.Values["id"].(string)
			messages = append(messages, Message{ID: id, Queue: queue, ackToken: m.ID})
		}
	}
	return messages, nil
}

// Ack implements Broker.
func (b *RedisStreamBroker) Ack(ctx context.Context, queue QueueName, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tokens := make([]string, len(msgs))
	for i, m := range msgs {
		tokens[i] = m.ackToken
	}

	if err := b.client.XAck(ctx, string(queue), groupName, tokens...).Err(); err != nil {
		return fmt.Errorf("redis stream broker: ack on %s: %w", queue, err)
	}
	return nil
}

// Close implements Broker.
func (b *RedisStreamBroker) Close() error {
	return b.client.Close()
}

func (b *RedisStreamBroker) ensureGroup(ctx context.Context, queue QueueName) error {
	err := b.client.XGroupCreateMkStream(ctx, string(queue), groupName, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("redis stream broker: ensure group on %s: %w", queue, err)
	}
	return nil
}

// Ping checks connectivity, used by the worker's health endpoint.
func (b *RedisStreamBroker) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		slog.Error("redis broker ping failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}
