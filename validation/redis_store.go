package validation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKeyPrefix prefixes every key unless WithKeyPrefix says otherwise.
	DefaultRedisKeyPrefix = "library:validation:"

	fieldNaturalKey     = "naturalKey"
	fieldCorrelationKey = "correlationKey"
	fieldDeadline       = "deadline"
)

// RedisPendingStore keeps outstanding requests in Redis so that any requester replica can
// complete them. Each request is a hash, and a sorted set orders request ids by deadline.
// Removing the id from the sorted set decides which caller owns an entry.
type RedisPendingStore struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption defines a functional option for configuring RedisPendingStore.
type RedisOption func(*RedisPendingStore) error

// WithKeyPrefix sets the prefix of all keys the store writes.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisPendingStore) error {
		if prefix == "" {
			return errors.New("key prefix must not be empty")
		}

		s.prefix = prefix

		return nil
	}
}

// WithEntryTTL sets how long a request hash outlives its deadline before Redis expires it.
func WithEntryTTL(ttl time.Duration) RedisOption {
	return func(s *RedisPendingStore) error {
		if ttl <= 0 {
			return errors.New("entry ttl must be positive")
		}

		s.ttl = ttl

		return nil
	}
}

// NewRedisPendingStore creates a RedisPendingStore on rdb.
func NewRedisPendingStore(rdb goredis.UniversalClient, options ...RedisOption) (*RedisPendingStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client must not be nil")
	}

	s := &RedisPendingStore{rdb: rdb, prefix: DefaultRedisKeyPrefix, ttl: time.Hour}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *RedisPendingStore) deadlinesKey() string {
	return s.prefix + "deadlines"
}

func (s *RedisPendingStore) entryKey(requestID string) string {
	return s.prefix + "pending:" + requestID
}

// Put implements PendingStore.
func (s *RedisPendingStore) Put(ctx context.Context, pending Pending) error {
	key := s.entryKey(pending.RequestID)
	deadline := pending.Deadline.UnixMicro()

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldNaturalKey, pending.NaturalKey,
			fieldCorrelationKey, pending.CorrelationKey,
			fieldDeadline, deadline,
		)
		pipe.ExpireAt(ctx, key, pending.Deadline.Add(s.ttl))
		pipe.ZAdd(ctx, s.deadlinesKey(), goredis.Z{Score: float64(deadline), Member: pending.RequestID})

		return nil
	})

	if err != nil {
		return fmt.Errorf("redis put pending %s: %w", pending.RequestID, err)
	}

	return nil
}

// Take implements PendingStore.
func (s *RedisPendingStore) Take(ctx context.Context, requestID string) (Pending, bool, error) {
	removed, err := s.rdb.ZRem(ctx, s.deadlinesKey(), requestID).Result()
	if err != nil {
		return Pending{}, false, fmt.Errorf("redis take pending %s: %w", requestID, err)
	}

	if removed == 0 {
		return Pending{}, false, nil
	}

	return s.load(ctx, requestID)
}

// TakeOverdue implements PendingStore.
func (s *RedisPendingStore) TakeOverdue(ctx context.Context, now time.Time, limit int) ([]Pending, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, s.deadlinesKey(), &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMicro(), 10),
		Count: int64(limit),
	}).Result()

	if err != nil {
		return nil, fmt.Errorf("redis scan overdue: %w", err)
	}

	overdue := make([]Pending, 0, len(ids))

	for _, id := range ids {
		pending, taken, err := s.Take(ctx, id)
		if err != nil {
			return overdue, err
		}

		if taken {
			overdue = append(overdue, pending)
		}
	}

	return overdue, nil
}

// load reads and deletes the hash of a request whose id the caller removed from the sorted set.
func (s *RedisPendingStore) load(ctx context.Context, requestID string) (Pending, bool, error) {
	key := s.entryKey(requestID)

	var fields *goredis.MapStringStringCmd

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, key)
		pipe.Del(ctx, key)

		return nil
	})

	if err != nil {
		return Pending{}, false, fmt.Errorf("redis load pending %s: %w", requestID, err)
	}

	values := fields.Val()
	if len(values) == 0 {
		return Pending{}, false, nil
	}

	deadline, err := strconv.ParseInt(values[fieldDeadline], 10, 64)
	if err != nil {
		return Pending{}, false, fmt.Errorf("redis pending %s has a malformed deadline: %w", requestID, err)
	}

	return Pending{
		RequestID:      requestID,
		NaturalKey:     values[fieldNaturalKey],
		CorrelationKey: values[fieldCorrelationKey],
		Deadline:       time.UnixMicro(deadline).UTC(),
	}, true, nil
}
