package asyncx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWithTimeout_Completes(t *testing.T) {
	v, err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("expected 42, nil; got %d, %v", v, err)
	}
}

func TestWithTimeout_Deadline(t *testing.T) {
	_, err := WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return "late", nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWithTimeout_ZeroDurationRunsDirectly(t *testing.T) {
	v, err := WithTimeout(context.Background(), 0, func(ctx context.Context) (string, error) {
		if _, ok := ctx.Deadline(); ok {
			t.Fatal("unexpected deadline")
		}
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("unexpected result %q, %v", v, err)
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	Go("panics", func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_ReturnsLastError(t *testing.T) {
	want := errors.New("always")
	err := RetryWithBackoff(context.Background(), 2, time.Millisecond, func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected last error, got %v", err)
	}
}
