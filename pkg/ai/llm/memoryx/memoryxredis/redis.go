// Package memoryxredis mirrors conversation histories to Redis so a restarted
// process can pick up where it left off. The in-memory log stays
// authoritative; Redis only holds the latest snapshot.
package memoryxredis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "chatkeep:history:"

// SnapshotStore saves whole histories as JSON under one key per identity.
type SnapshotStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

type Option func(*SnapshotStore)

func WithKeyPrefix(prefix string) Option {
	return func(s *SnapshotStore) { s.prefix = prefix }
}

// NewSnapshotStore creates a store whose keys expire ttl after the last save.
// A zero ttl keeps keys forever.
func NewSnapshotStore(rdb redis.Cmdable, ttl time.Duration, opts ...Option) *SnapshotStore {
	s := &SnapshotStore{rdb: rdb, prefix: DefaultKeyPrefix, ttl: ttl}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SnapshotStore) Key(identity string) string { return s.prefix + identity }

// Save replaces identity's snapshot.
func (s *SnapshotStore) Save(ctx context.Context, identity string, messages []llm.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return snapshotErrors.NewWithCause(ErrMarshal, err)
	}
	if err := s.rdb.Set(ctx, s.Key(identity), data, s.ttl).Err(); err != nil {
		return snapshotErrors.NewWithCause(ErrSave, err).WithDetail("identity", identity)
	}
	return nil
}

// Load returns identity's snapshot. found is false when no snapshot exists.
func (s *SnapshotStore) Load(ctx context.Context, identity string) (messages []llm.Message, found bool, err error) {
	data, err := s.rdb.Get(ctx, s.Key(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, snapshotErrors.NewWithCause(ErrLoad, err).WithDetail("identity", identity)
	}
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, false, snapshotErrors.NewWithCause(ErrUnmarshal, err).WithDetail("identity", identity)
	}
	return messages, true, nil
}

// Delete removes identity's snapshot. Deleting a missing key is not an error.
func (s *SnapshotStore) Delete(ctx context.Context, identity string) error {
	if err := s.rdb.Del(ctx, s.Key(identity)).Err(); err != nil {
		return snapshotErrors.NewWithCause(ErrDelete, err).WithDetail("identity", identity)
	}
	return nil
}
