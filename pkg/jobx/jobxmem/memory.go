// Package jobxmem is an in-process jobx.Queue for single-instance deployments
// and tests. Jobs do not survive a restart.
package jobxmem

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/clockx"
	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/google/uuid"
)

type scheduled struct {
	id    string
	queue string
	at    time.Time
}

// MemoryQueue implements jobx.Queue with maps and slices guarded by a mutex.
type MemoryQueue struct {
	mu        sync.Mutex
	jobs      map[string]*jobx.JobInfo
	ready     map[string][]string
	scheduled []scheduled
	notify    chan struct{}
	clock     clockx.Clock
}

type Option func(*MemoryQueue)

func WithClock(c clockx.Clock) Option {
	return func(q *MemoryQueue) { q.clock = c }
}

func New(opts ...Option) *MemoryQueue {
	q := &MemoryQueue{
		jobs:   make(map[string]*jobx.JobInfo),
		ready:  make(map[string][]string),
		notify: make(chan struct{}, 1),
		clock:  clockx.Real(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job jobx.Job) (string, error) {
	id := uuid.New().String()
	info := jobx.NewJobInfo(id, job, q.clock.Now().UTC())

	q.mu.Lock()
	q.jobs[id] = &info
	q.ready[job.Queue] = append(q.ready[job.Queue], id)
	q.mu.Unlock()

	q.signal()
	return id, nil
}

func (q *MemoryQueue) EnqueueDelayed(ctx context.Context, job jobx.Job, delay time.Duration) (string, error) {
	id := uuid.New().String()
	now := q.clock.Now().UTC()
	info := jobx.NewJobInfo(id, job, now)

	q.mu.Lock()
	q.jobs[id] = &info
	q.scheduled = append(q.scheduled, scheduled{id: id, queue: job.Queue, at: now.Add(delay)})
	q.mu.Unlock()
	return id, nil
}

func (q *MemoryQueue) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	info, ok := q.jobs[jobID]
	if !ok {
		return nil, jobx.NotFound(jobID)
	}
	cp := *info
	return &cp, nil
}

// Dequeue pops the oldest ready job from the first non-empty queue, waiting
// up to timeout for one to arrive.
func (q *MemoryQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*jobx.JobInfo, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if info := q.pop(queues); info != nil {
			return info, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) pop(queues []string) *jobx.JobInfo {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, name := range queues {
		ids := q.ready[name]
		if len(ids) == 0 {
			continue
		}
		id := ids[0]
		q.ready[name] = ids[1:]

		info, ok := q.jobs[id]
		if !ok {
			continue
		}
		info.Status = jobx.JobStatusActive
		info.Attempts++
		info.UpdatedAt = q.clock.Now().UTC()
		cp := *info
		return &cp
	}
	return nil
}

func (q *MemoryQueue) Complete(ctx context.Context, jobID string, result []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	info, ok := q.jobs[jobID]
	if !ok {
		return jobx.NotFound(jobID)
	}
	info.Status = jobx.JobStatusCompleted
	info.Result = result
	info.Error = ""
	info.UpdatedAt = q.clock.Now().UTC()
	return nil
}

func (q *MemoryQueue) Fail(ctx context.Context, jobID string, errMsg string, final bool) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	info, ok := q.jobs[jobID]
	if !ok {
		return false, jobx.NotFound(jobID)
	}
	retry := !final && info.Attempts < info.MaxRetries
	if retry {
		info.Status = jobx.JobStatusRetrying
	} else {
		info.Status = jobx.JobStatusFailed
	}
	info.Error = errMsg
	info.UpdatedAt = q.clock.Now().UTC()
	return retry, nil
}

func (q *MemoryQueue) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	info, ok := q.jobs[jobID]
	if !ok {
		return jobx.NotFound(jobID)
	}
	q.scheduled = append(q.scheduled, scheduled{id: jobID, queue: info.Queue, at: q.clock.Now().UTC().Add(delay)})
	return nil
}

func (q *MemoryQueue) PromoteScheduled(ctx context.Context, queues []string) error {
	now := q.clock.Now().UTC()
	wanted := make(map[string]bool, len(queues))
	for _, name := range queues {
		wanted[name] = true
	}

	q.mu.Lock()
	promoted := 0
	kept := q.scheduled[:0]
	for _, s := range q.scheduled {
		if wanted[s.queue] && !s.at.After(now) {
			q.ready[s.queue] = append(q.ready[s.queue], s.id)
			promoted++
			continue
		}
		kept = append(kept, s)
	}
	q.scheduled = kept
	q.mu.Unlock()

	if promoted > 0 {
		q.signal()
	}
	return nil
}

var _ jobx.Queue = (*MemoryQueue)(nil)
