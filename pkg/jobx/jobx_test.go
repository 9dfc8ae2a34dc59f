package jobx_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/Abraxas-365/chatkeep/pkg/jobx/jobxmem"
)

func startClient(t *testing.T, c *jobx.Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitTerminal(t *testing.T, c *jobx.Client, id string) *jobx.JobInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := c.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if info.Status.Terminal() {
			return info
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

func newClient(q jobx.Queue) *jobx.Client {
	return jobx.NewClient(q,
		jobx.WithConcurrency(2),
		jobx.WithPollInterval(10*time.Millisecond),
		jobx.WithDequeueTimeout(50*time.Millisecond),
		jobx.WithDefaultRetryDelay(0),
		jobx.WithShutdownTimeout(time.Second),
	)
}

func TestClient_CompletesWithResult(t *testing.T) {
	c := newClient(jobxmem.New())
	c.Register("echo", func(ctx context.Context, job *jobx.JobInfo) (json.RawMessage, error) {
		return job.Payload, nil
	})
	startClient(t, c)

	id, err := c.Enqueue(context.Background(), jobx.Job{Type: "echo", Payload: json.RawMessage(`{"n":1}`)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	info := waitTerminal(t, c, id)
	if info.Status != jobx.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", info.Status, info.Error)
	}
	if string(info.Result) != `{"n":1}` {
		t.Fatalf("unexpected result %s", info.Result)
	}
	if info.Queue != "default" || info.MaxRetries != 3 {
		t.Fatalf("defaults not applied: %+v", info)
	}
}

func TestClient_RetriesThenFails(t *testing.T) {
	c := newClient(jobxmem.New())
	var attempts int32
	c.Register("flaky", func(ctx context.Context, job *jobx.JobInfo) (json.RawMessage, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("upstream timeout")
	})
	startClient(t, c)

	id, _ := c.Enqueue(context.Background(), jobx.Job{Type: "flaky", MaxRetries: 2})
	info := waitTerminal(t, c, id)

	if info.Status != jobx.JobStatusFailed || info.Error != "upstream timeout" {
		t.Fatalf("unexpected final state %+v", info)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestClient_PermanentErrorSkipsRetry(t *testing.T) {
	c := newClient(jobxmem.New())
	var attempts int32
	c.Register("bad", func(ctx context.Context, job *jobx.JobInfo) (json.RawMessage, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, jobx.Permanent(errors.New("invalid payload"))
	})
	startClient(t, c)

	id, _ := c.Enqueue(context.Background(), jobx.Job{Type: "bad", MaxRetries: 5})
	info := waitTerminal(t, c, id)

	if info.Status != jobx.JobStatusFailed || atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("permanent error retried: status=%s attempts=%d", info.Status, attempts)
	}
}

func TestClient_PanicFailsJob(t *testing.T) {
	c := newClient(jobxmem.New())
	c.Register("panics", func(ctx context.Context, job *jobx.JobInfo) (json.RawMessage, error) {
		panic("nil map")
	})
	startClient(t, c)

	id, _ := c.Enqueue(context.Background(), jobx.Job{Type: "panics", MaxRetries: 1})
	info := waitTerminal(t, c, id)
	if info.Status != jobx.JobStatusFailed {
		t.Fatalf("expected failed, got %s", info.Status)
	}
}

func TestClient_UnknownTypeFails(t *testing.T) {
	c := newClient(jobxmem.New())
	startClient(t, c)

	id, _ := c.Enqueue(context.Background(), jobx.Job{Type: "nobody"})
	if info := waitTerminal(t, c, id); info.Status != jobx.JobStatusFailed {
		t.Fatalf("expected failed, got %s", info.Status)
	}
}

func TestClient_EnqueueRequiresType(t *testing.T) {
	c := newClient(jobxmem.New())
	_, err := c.Enqueue(context.Background(), jobx.Job{})
	if !jobx.ErrInvalidJob.Is(err) {
		t.Fatalf("expected invalid job, got %v", err)
	}
}

func TestClient_AlreadyRunning(t *testing.T) {
	c := newClient(jobxmem.New())
	startClient(t, c)
	time.Sleep(20 * time.Millisecond)

	if err := c.Start(context.Background()); !jobx.ErrAlreadyRunning.Is(err) {
		t.Fatalf("expected already running, got %v", err)
	}
}

func TestMemoryQueue_GetJobNotFound(t *testing.T) {
	_, err := jobxmem.New().GetJob(context.Background(), "missing")
	if !jobx.ErrJobNotFound.Is(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryQueue_DelayedJob(t *testing.T) {
	q := jobxmem.New()
	ctx := context.Background()

	id, _ := q.EnqueueDelayed(ctx, jobx.Job{Type: "later", Queue: "default"}, time.Hour)
	if err := q.PromoteScheduled(ctx, []string{"default"}); err != nil {
		t.Fatalf("PromoteScheduled: %v", err)
	}
	if job, _ := q.Dequeue(ctx, []string{"default"}, 10*time.Millisecond); job != nil {
		t.Fatalf("job %s promoted before its time", id)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []jobx.Outcome
}

func (o *recordingObserver) JobFinished(_ string, outcome jobx.Outcome, _ time.Duration) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) snapshot() []jobx.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]jobx.Outcome(nil), o.outcomes...)
}

func TestClient_ReportsOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	c := jobx.NewClient(jobxmem.New(),
		jobx.WithConcurrency(1),
		jobx.WithPollInterval(10*time.Millisecond),
		jobx.WithDequeueTimeout(50*time.Millisecond),
		jobx.WithDefaultRetryDelay(0),
		jobx.WithShutdownTimeout(time.Second),
		jobx.WithObserver(obs),
	)
	var calls int32
	c.Register("second-time-lucky", func(ctx context.Context, job *jobx.JobInfo) (json.RawMessage, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("transient")
		}
		return json.RawMessage(`true`), nil
	})
	startClient(t, c)

	id, _ := c.Enqueue(context.Background(), jobx.Job{Type: "second-time-lucky", MaxRetries: 3})
	info := waitTerminal(t, c, id)
	if info.Status != jobx.JobStatusCompleted {
		t.Fatalf("expected completed, got %+v", info)
	}

	// The observer runs after the backend update, so give it a moment.
	deadline := time.Now().Add(time.Second)
	for len(obs.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got := obs.snapshot()
	if len(got) != 2 || got[0] != jobx.OutcomeRetried || got[1] != jobx.OutcomeCompleted {
		t.Fatalf("unexpected outcomes %v", got)
	}
}
