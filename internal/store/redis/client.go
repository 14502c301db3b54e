// Package redis provides the redis-backed relation replicator and the
// pub/sub feed of external user records.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gosuda/tenantgraph/internal/relations"
)

type Client struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("redis.Client.Close: %w", err)
	}
	return nil
}

// Replicate appends the event to the stream for its partition key. One
// stream per partition keeps tuples ordered within a partition; ordering
// across partitions is not promised.
func (c *Client) Replicate(ctx context.Context, event relations.ReplicationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis.Client.Replicate: marshal: %w", err)
	}

	err = c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName(event.PartitionKey),
		Values: map[string]any{
			"type":  event.Type.String(),
			"event": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis.Client.Replicate: xadd: %w", err)
	}

	return nil
}

// Subscribe delivers raw messages from a channel until ctx is done. The
// returned cleanup closes the subscription.
func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := c.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.Client.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// StreamName returns the replication stream for a partition key.
func StreamName(partitionKey string) string {
	return "relations:" + partitionKey
}

// UserUpdatesChannel is the pub/sub channel carrying external user records.
func UserUpdatesChannel() string {
	return "users:updates"
}
