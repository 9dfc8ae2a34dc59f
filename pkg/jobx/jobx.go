package jobx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/logx"
)

// HandlerFunc processes a job. The returned result is stored on the job when
// err is nil. A non-nil err fails the attempt; wrap it with Permanent to skip
// the remaining retries.
type HandlerFunc func(ctx context.Context, job *JobInfo) (json.RawMessage, error)

// JobEnqueuer enqueues jobs for processing.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error)
}

// JobStatusReader reads job status.
type JobStatusReader interface {
	GetJob(ctx context.Context, jobID string) (*JobInfo, error)
}

// JobProcessor provides backend operations for the worker loop.
type JobProcessor interface {
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*JobInfo, error)
	Complete(ctx context.Context, jobID string, result []byte) error
	// Fail records errMsg on the job. It reports whether the job has attempts
	// left; final forces the job into the failed state regardless.
	Fail(ctx context.Context, jobID string, errMsg string, final bool) (retry bool, err error)
	Retry(ctx context.Context, jobID string, delay time.Duration) error
	PromoteScheduled(ctx context.Context, queues []string) error
}

// Queue combines all backend operations.
type Queue interface {
	JobEnqueuer
	JobStatusReader
	JobProcessor
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Client is the main entry point for enqueuing and processing jobs.
type Client struct {
	queue    Queue
	opts     WorkerOptions
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	running  bool
}

// NewClient creates a new job processing client.
func NewClient(queue Queue, options ...WorkerOption) *Client {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler for a given job type.
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
}

func (c *Client) normalize(job Job) (Job, error) {
	if job.Type == "" {
		return job, jobxErrors.NewWithMessage(ErrInvalidJob, "job type is required")
	}
	if job.Queue == "" {
		job.Queue = c.opts.Queues[0]
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = c.opts.MaxRetries
	}
	return job, nil
}

// Enqueue enqueues a job for immediate processing.
func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	job, err := c.normalize(job)
	if err != nil {
		return "", err
	}
	return c.queue.Enqueue(ctx, job)
}

// EnqueueDelayed enqueues a job with a delay before it becomes available.
func (c *Client) EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error) {
	job, err := c.normalize(job)
	if err != nil {
		return "", err
	}
	return c.queue.EnqueueDelayed(ctx, job, delay)
}

// GetJob returns the current state of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobInfo, error) {
	return c.queue.GetJob(ctx, jobID)
}

// Start begins processing jobs. It blocks until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return jobxErrors.New(ErrAlreadyRunning)
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logx.Infof("jobx: starting %d workers on queues %v", c.opts.Concurrency, c.opts.Queues)

	var wg sync.WaitGroup

	// Scheduler goroutine: promotes delayed jobs to the ready queue.
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.schedulerLoop(ctx)
	}()

	for i := range c.opts.Concurrency {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.workerLoop(ctx, id)
		}(i)
	}

	<-ctx.Done()
	logx.Info("jobx: shutting down workers...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logx.Info("jobx: all workers stopped")
	case <-time.After(c.opts.ShutdownTimeout):
		logx.Warn("jobx: shutdown timed out, some jobs may not have completed")
		return jobxErrors.New(ErrShutdownTimeout)
	}

	return nil
}

func (c *Client) schedulerLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.queue.PromoteScheduled(ctx, c.opts.Queues); err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.WithError(err).Warn("jobx: failed to promote scheduled jobs")
			}
		}
	}
}

func (c *Client) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := c.queue.Dequeue(ctx, c.opts.Queues, c.opts.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithError(err).Warnf("jobx: worker %d dequeue error", id)
			time.Sleep(c.opts.PollInterval)
			continue
		}
		if job == nil {
			continue
		}

		c.processJob(ctx, job)
	}
}

func (c *Client) runHandler(ctx context.Context, handler HandlerFunc, job *JobInfo) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.WithFields(logx.Fields{
				"job_id": job.ID,
				"panic":  fmt.Sprint(r),
				"stack":  string(debug.Stack()),
			}).Error("jobx: handler panicked")
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (c *Client) processJob(ctx context.Context, job *JobInfo) {
	started := time.Now()
	outcome := c.execute(ctx, job)
	if c.opts.Observer != nil {
		c.opts.Observer.JobFinished(job.Type, outcome, time.Since(started))
	}
}

// execute runs one attempt and records its result in the backend.
func (c *Client) execute(ctx context.Context, job *JobInfo) Outcome {
	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()

	if !ok {
		logx.WithFields(logx.Fields{"job_id": job.ID, "type": job.Type}).Warn("jobx: no handler registered")
		if _, err := c.queue.Fail(ctx, job.ID, "no handler registered for job type", true); err != nil {
			logx.WithError(err).Errorf("jobx: failed to mark job %s as failed", job.ID)
		}
		return OutcomeFailed
	}

	result, runErr := c.runHandler(ctx, handler, job)
	if runErr == nil {
		if err := c.queue.Complete(ctx, job.ID, result); err != nil {
			logx.WithError(err).Errorf("jobx: failed to complete job %s", job.ID)
		}
		return OutcomeCompleted
	}

	permanent := IsPermanent(runErr)
	logx.WithError(runErr).WithFields(logx.Fields{
		"job_id":    job.ID,
		"type":      job.Type,
		"attempt":   job.Attempts,
		"permanent": permanent,
	}).Warn("jobx: attempt failed")

	retry, err := c.queue.Fail(ctx, job.ID, runErr.Error(), permanent)
	switch {
	case err != nil:
		logx.WithError(err).Errorf("jobx: failed to mark job %s as failed", job.ID)
		return OutcomeFailed
	case !retry:
		return OutcomeFailed
	}

	if err := c.queue.Retry(ctx, job.ID, c.opts.DefaultRetryDelay); err != nil {
		logx.WithError(err).Errorf("jobx: failed to retry job %s", job.ID)
		return OutcomeFailed
	}
	return OutcomeRetried
}
