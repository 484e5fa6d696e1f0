package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"yieldctl/config"
)

// DefaultChannel is where every transition is published
const DefaultChannel = "yieldctl:ops"

// RedisMirror copies the latest status of each operation into a redis hash
// and publishes every transition
type RedisMirror struct {
	rdb     *redis.Client
	channel string
}

var _ Subscriber = (*RedisMirror)(nil)

// DialRedis creates a redis client from configuration and checks the connection
func DialRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

// NewRedisMirror creates a mirror writing through rdb
func NewRedisMirror(rdb *redis.Client) *RedisMirror {
	return &RedisMirror{rdb: rdb, channel: DefaultChannel}
}

// operationKey is the hash holding the latest status of name
func operationKey(name string) string {
	return fmt.Sprintf("yieldctl:op:%s", name)
}

// OnTransition writes the status hash and publishes the transition atomically
func (m *RedisMirror) OnTransition(ctx context.Context, status OperationStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	fields := map[string]interface{}{
		"id":         status.ID,
		"phase":      string(status.Phase),
		"loading":    strconv.FormatBool(status.Loading),
		"executed":   strconv.FormatBool(status.Executed),
		"error":      status.Error,
		"started_at": status.StartedAt.Format(time.RFC3339Nano),
		"tx_hash":    "",
	}
	if status.Result != nil {
		fields["tx_hash"] = status.Result.TxHash
	}

	pipe := m.rdb.TxPipeline()
	pipe.HSet(ctx, operationKey(status.Name), fields)
	pipe.Publish(ctx, m.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror operation %s: %w", status.Name, err)
	}
	return nil
}

// Watch calls fn for every transition published by any process until ctx is
// done. Malformed payloads are skipped.
func (m *RedisMirror) Watch(ctx context.Context, fn func(OperationStatus)) error {
	sub := m.rdb.Subscribe(ctx, m.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", m.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var status OperationStatus
			if err := json.Unmarshal([]byte(msg.Payload), &status); err != nil {
				continue
			}
			fn(status)
		}
	}
}
