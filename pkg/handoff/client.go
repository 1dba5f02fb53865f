package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/kasm/pkg/ledger"
	"github.com/redis/go-redis/v9"
)

// Client publishes and fetches ledger snapshots within one namespace.
// The client is safe for concurrent use.
type Client struct {
	rdb       *redis.Client
	namespace string
	now       func() time.Time
}

// NewClient creates a client for namespace. Returns an error if namespace is empty.
func NewClient(redisOpts *redis.Options, namespace string) (*Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
		now:       time.Now,
	}, nil
}

// Dial parses a redis:// URL and creates a client for namespace.
func Dial(redisURL, namespace string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewClient(opts, namespace)
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish stores a snapshot of l under its sheet id, replacing any previous
// snapshot, and announces it on the events channel. It returns the snapshot.
func (c *Client) Publish(ctx context.Context, l *ledger.Ledger) (*Snapshot, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger: %w", err)
	}

	s := NewSnapshot(l, c.now())
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}

	hash, err := SnapshotToHash(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	key := LedgerKey(c.namespace, s.SheetID)
	if _, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, hash)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to write snapshot to Redis: %w", err)
	}

	event, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot for event: %w", err)
	}
	if err := c.rdb.Publish(ctx, LedgerEventsChannel(c.namespace), event).Err(); err != nil {
		return nil, fmt.Errorf("failed to publish ledger event: %w", err)
	}

	return s, nil
}

// Fetch retrieves the latest snapshot of a sheet.
// Returns (nil, redis.Nil) if nothing was published; use IsNotFound to check.
func (c *Client) Fetch(ctx context.Context, sheetID string) (*Snapshot, error) {
	hashData, err := c.rdb.HGetAll(ctx, LedgerKey(c.namespace, sheetID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	s, err := HashToSnapshot(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return s, nil
}

// Subscription delivers snapshots announced on the events channel.
// Call Close when done.
type Subscription struct {
	events <-chan *Snapshot
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of published snapshots. It is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan *Snapshot {
	return s.events
}

// Errors returns malformed-event errors. The subscription continues after them.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe listens for published snapshots in this namespace. Delivery is
// at-most-once; a slow consumer may miss events.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, LedgerEventsChannel(c.namespace))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to ledger events: %w", err)
	}

	eventsChan := make(chan *Snapshot, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var s Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal ledger event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &s:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if err reports a missing snapshot (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
