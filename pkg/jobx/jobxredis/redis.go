package jobxredis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "chatkeep:jobx:"

// RedisQueue implements jobx.Queue backed by Redis.
type RedisQueue struct {
	rdb       redis.UniversalClient
	prefix    string
	resultTTL time.Duration
}

type Option func(*RedisQueue)

// WithKeyPrefix namespaces every key the queue writes.
func WithKeyPrefix(prefix string) Option {
	return func(q *RedisQueue) { q.prefix = prefix }
}

// WithResultTTL expires job records this long after they reach a terminal
// state. Zero keeps them forever.
func WithResultTTL(ttl time.Duration) Option {
	return func(q *RedisQueue) { q.resultTTL = ttl }
}

// NewRedisQueue creates a new Redis-backed queue.
func NewRedisQueue(rdb redis.UniversalClient, opts ...Option) *RedisQueue {
	q := &RedisQueue{rdb: rdb, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) queueKey(name string) string     { return q.prefix + "queue:" + name }
func (q *RedisQueue) scheduledKey(name string) string { return q.prefix + "scheduled:" + name }
func (q *RedisQueue) jobKey(id string) string         { return q.prefix + "job:" + id }

// Enqueue stores the job and pushes it onto the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, job jobx.Job) (string, error) {
	return q.add(ctx, job, 0)
}

// EnqueueDelayed stores the job and parks it in the scheduled set until
// PromoteScheduled moves it.
func (q *RedisQueue) EnqueueDelayed(ctx context.Context, job jobx.Job, delay time.Duration) (string, error) {
	return q.add(ctx, job, delay)
}

func (q *RedisQueue) add(ctx context.Context, job jobx.Job, delay time.Duration) (string, error) {
	now := time.Now().UTC()
	info := jobx.NewJobInfo(uuid.NewString(), job, now)

	data, err := json.Marshal(info)
	if err != nil {
		return "", redisErrors.NewWithCause(ErrMarshal, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.jobKey(info.ID), data, 0)
	if delay > 0 {
		pipe.ZAdd(ctx, q.scheduledKey(job.Queue), redis.Z{Score: dueScore(now, delay), Member: info.ID})
	} else {
		pipe.LPush(ctx, q.queueKey(job.Queue), info.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", redisErrors.NewWithCause(ErrEnqueue, err).
			WithDetail("queue", job.Queue).
			WithDetail("delay", delay.String())
	}
	return info.ID, nil
}

func dueScore(now time.Time, delay time.Duration) float64 {
	return float64(now.Add(delay).Unix())
}

// GetJob retrieves job info by ID.
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	data, err := q.rdb.Get(ctx, q.jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, jobx.NotFound(jobID)
		}
		return nil, redisErrors.NewWithCause(ErrGetJob, err).WithDetail("job_id", jobID)
	}

	var info jobx.JobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, redisErrors.NewWithCause(ErrUnmarshal, err).WithDetail("job_id", jobID)
	}

	return &info, nil
}

func (q *RedisQueue) save(ctx context.Context, info *jobx.JobInfo, code errCode) error {
	data, err := json.Marshal(info)
	if err != nil {
		return redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", info.ID)
	}

	ttl := time.Duration(0)
	if info.Status.Terminal() {
		ttl = q.resultTTL
	}
	if err := q.rdb.Set(ctx, q.jobKey(info.ID), data, ttl).Err(); err != nil {
		return redisErrors.NewWithCause(code, err).WithDetail("job_id", info.ID)
	}
	return nil
}

// Dequeue blocks until a job is available from one of the given queues or the timeout expires.
func (q *RedisQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*jobx.JobInfo, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = q.queueKey(name)
	}

	result, err := q.rdb.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // timeout, no job
		}
		if ctx.Err() != nil {
			return nil, nil // context cancelled
		}
		return nil, redisErrors.NewWithCause(ErrDequeue, err)
	}

	// BRPOP replies with [key, member].
	return q.update(ctx, result[1], ErrDequeue, func(info *jobx.JobInfo) {
		info.Status = jobx.JobStatusActive
		info.Attempts++
	})
}

// update loads a job, applies fn and writes it back. Only the worker holding
// the job calls this, so the read-modify-write needs no lock.
func (q *RedisQueue) update(ctx context.Context, jobID string, code errCode, fn func(*jobx.JobInfo)) (*jobx.JobInfo, error) {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	fn(info)
	info.UpdatedAt = time.Now().UTC()
	if err := q.save(ctx, info, code); err != nil {
		return nil, err
	}
	return info, nil
}

func (q *RedisQueue) Complete(ctx context.Context, jobID string, result []byte) error {
	_, err := q.update(ctx, jobID, ErrComplete, func(info *jobx.JobInfo) {
		info.Status = jobx.JobStatusCompleted
		info.Result = result
		info.Error = ""
	})
	return err
}

// Fail records errMsg and reports whether attempts remain.
func (q *RedisQueue) Fail(ctx context.Context, jobID string, errMsg string, final bool) (bool, error) {
	var retry bool
	_, err := q.update(ctx, jobID, ErrFail, func(info *jobx.JobInfo) {
		retry = !final && info.Attempts < info.MaxRetries
		info.Status = jobx.JobStatusFailed
		if retry {
			info.Status = jobx.JobStatusRetrying
		}
		info.Error = errMsg
	})
	if err != nil {
		return false, err
	}
	return retry, nil
}

// Retry schedules the job for another attempt after delay.
func (q *RedisQueue) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	member := redis.Z{Score: dueScore(time.Now().UTC(), delay), Member: jobID}
	if err := q.rdb.ZAdd(ctx, q.scheduledKey(info.Queue), member).Err(); err != nil {
		return redisErrors.NewWithCause(ErrRetry, err).WithDetail("job_id", jobID)
	}
	return nil
}

// promoteScript moves due ids from the scheduled set to the ready list atomically.
var promoteScript = redis.NewScript(`
local scheduled_key = KEYS[1]
local queue_key = KEYS[2]
local now = tonumber(ARGV[1])
local ids = redis.call('ZRANGEBYSCORE', scheduled_key, '-inf', now)
if #ids > 0 then
    for _, id in ipairs(ids) do
        redis.call('LPUSH', queue_key, id)
    end
    redis.call('ZREMRANGEBYSCORE', scheduled_key, '-inf', now)
end
return #ids
`)

// PromoteScheduled moves jobs whose scheduled time has passed to the ready queue.
func (q *RedisQueue) PromoteScheduled(ctx context.Context, queues []string) error {
	now := strconv.FormatInt(time.Now().UTC().Unix(), 10)

	for _, name := range queues {
		err := promoteScript.Run(ctx, q.rdb,
			[]string{q.scheduledKey(name), q.queueKey(name)},
			now,
		).Err()

		if err != nil && !errors.Is(err, redis.Nil) {
			return redisErrors.NewWithCause(ErrPromote, err).WithDetail("queue", name)
		}
	}

	return nil
}

var _ jobx.Queue = (*RedisQueue)(nil)
