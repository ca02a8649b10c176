// Package ledger records which ideas a voter device has already voted on.
// A ledger is append-only: entries are never removed.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one set per voter and announces appends on a pub/sub
// channel so other contexts of the same voter can follow along.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "votes:",
	}
}

// For returns the ledger of one voter device.
func (s *RedisStore) For(voterID string) *RedisLedger {
	return &RedisLedger{
		client:  s.client,
		key:     s.prefix + voterID,
		channel: s.prefix + voterID + ":appended",
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type RedisLedger struct {
	client  *redis.Client
	key     string
	channel string
}

func (l *RedisLedger) Has(ctx context.Context, ideaID string) (bool, error) {
	ok, err := l.client.SIsMember(ctx, l.key, ideaID).Result()
	if err != nil {
		return false, fmt.Errorf("check vote ledger: %w", err)
	}
	return ok, nil
}

// Add records ideaID and publishes it to the voter's channel. Adding an
// id twice is a no-op and publishes nothing.
func (l *RedisLedger) Add(ctx context.Context, ideaID string) error {
	added, err := l.client.SAdd(ctx, l.key, ideaID).Result()
	if err != nil {
		return fmt.Errorf("append vote ledger: %w", err)
	}
	if added == 0 {
		return nil
	}
	if err := l.client.Publish(ctx, l.channel, ideaID).Err(); err != nil {
		return fmt.Errorf("publish vote ledger append: %w", err)
	}
	return nil
}

func (l *RedisLedger) Members(ctx context.Context) ([]string, error) {
	ids, err := l.client.SMembers(ctx, l.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read vote ledger: %w", err)
	}
	return ids, nil
}

// Watch streams ids appended after the subscription is established. The
// channel closes when ctx ends.
func (l *RedisLedger) Watch(ctx context.Context) (<-chan string, error) {
	sub := l.client.Subscribe(ctx, l.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe vote ledger: %w", err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
