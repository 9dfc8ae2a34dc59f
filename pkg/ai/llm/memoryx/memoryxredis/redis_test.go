package memoryxredis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/ai/llm/memoryx/memoryxredis"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisClient connects to CHATKEEP_TEST_REDIS_ADDR or skips the test.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CHATKEEP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHATKEEP_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestKey(t *testing.T) {
	s := memoryxredis.NewSnapshotStore(nil, time.Hour)
	if got := s.Key("u1"); got != "chatkeep:history:u1" {
		t.Fatalf("unexpected key %q", got)
	}
	s = memoryxredis.NewSnapshotStore(nil, time.Hour, memoryxredis.WithKeyPrefix("test:"))
	if got := s.Key("task:7"); got != "test:task:7" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()
	s := memoryxredis.NewSnapshotStore(rdb, time.Minute, memoryxredis.WithKeyPrefix("chatkeep-test:"))
	identity := uuid.NewString()
	t.Cleanup(func() { _ = s.Delete(ctx, identity) })

	if _, found, err := s.Load(ctx, identity); err != nil || found {
		t.Fatalf("expected miss, found=%v err=%v", found, err)
	}

	msgs := []llm.Message{llm.NewUserMessage("hi"), llm.NewAssistantMessage("hello")}
	if err := s.Save(ctx, identity, msgs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := s.Load(ctx, identity)
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if len(got) != 2 || got[1].Role != llm.RoleAssistant || got[1].Content != "hello" {
		t.Fatalf("unexpected snapshot %+v", got)
	}

	ttl := rdb.TTL(ctx, s.Key(identity)).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected ttl within a minute, got %v", ttl)
	}

	if err := s.Delete(ctx, identity); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := s.Load(ctx, identity); found {
		t.Fatal("expected snapshot to be gone")
	}
}

func TestLoadCorruptSnapshot(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()
	s := memoryxredis.NewSnapshotStore(rdb, time.Minute, memoryxredis.WithKeyPrefix("chatkeep-test:"))
	identity := uuid.NewString()
	t.Cleanup(func() { _ = s.Delete(ctx, identity) })

	rdb.Set(ctx, s.Key(identity), "not json", time.Minute)

	_, _, err := s.Load(ctx, identity)
	if !memoryxredis.ErrUnmarshal.Is(err) {
		t.Fatalf("expected unmarshal error, got %s", errx.CodeOf(err))
	}
}
