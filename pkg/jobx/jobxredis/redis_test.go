package jobxredis_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/Abraxas-365/chatkeep/pkg/jobx/jobxredis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newQueue(t *testing.T) *jobxredis.RedisQueue {
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

	prefix := "chatkeep-test:" + uuid.NewString() + ":"
	return jobxredis.NewRedisQueue(rdb, jobxredis.WithKeyPrefix(prefix), jobxredis.WithResultTTL(time.Minute))
}

func TestRedisQueue_Lifecycle(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, jobx.Job{Type: "chat.task", Queue: "default", Payload: json.RawMessage(`{}`), MaxRetries: 2})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx, []string{"default"}, time.Second)
	if err != nil || job == nil {
		t.Fatalf("Dequeue: job=%v err=%v", job, err)
	}
	if job.ID != id || job.Status != jobx.JobStatusActive || job.Attempts != 1 {
		t.Fatalf("unexpected job %+v", job)
	}

	retry, err := q.Fail(ctx, id, "timeout", false)
	if err != nil || !retry {
		t.Fatalf("first failure should retry: retry=%v err=%v", retry, err)
	}
	if err := q.Retry(ctx, id, 0); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if err := q.PromoteScheduled(ctx, []string{"default"}); err != nil {
		t.Fatalf("PromoteScheduled: %v", err)
	}

	job, err = q.Dequeue(ctx, []string{"default"}, time.Second)
	if err != nil || job == nil || job.Attempts != 2 {
		t.Fatalf("expected second attempt, job=%+v err=%v", job, err)
	}

	if err := q.Complete(ctx, id, json.RawMessage(`{"text":"ok"}`)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, err := q.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != jobx.JobStatusCompleted || string(got.Result) != `{"text":"ok"}` {
		t.Fatalf("unexpected final state %+v", got)
	}
}

func TestRedisQueue_GetJobNotFound(t *testing.T) {
	q := newQueue(t)
	_, err := q.GetJob(context.Background(), "missing")
	if !jobx.ErrJobNotFound.Is(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
