// Package chattask runs task requests asynchronously on jobx workers.
package chattask

import (
	"context"
	"encoding/json"

	"github.com/Abraxas-365/chatkeep/pkg/chat"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
)

const JobType = "chat.task"

// Payload is the job body stored in the queue.
type Payload struct {
	Identity string `json:"identity"`
	Content  string `json:"content"`
	Variant  string `json:"variant,omitempty"`
}

// Result is stored on the completed job.
type Result struct {
	Text    string `json:"text"`
	Warning string `json:"warning,omitempty"`
}

// Requester answers a single request.
type Requester interface {
	HandleRequest(ctx context.Context, req chat.Request) (chat.Reply, error)
}

func (p Payload) request() chat.Request {
	return chat.Request{
		Identity: p.Identity,
		Content:  p.Content,
		Kind:     chat.KindTask,
		Variant:  p.Variant,
	}
}

// Submit validates p and enqueues it.
func Submit(ctx context.Context, q jobx.JobEnqueuer, p Payload) (string, error) {
	if err := p.request().Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", errx.Wrap(err, "failed to encode task payload", errx.TypeInternal)
	}
	return q.Enqueue(ctx, jobx.Job{Type: JobType, Payload: body})
}

// Register installs the task handler on client.
func Register(client *jobx.Client, svc Requester) {
	client.Register(JobType, Handler(svc))
}

// Handler answers the task with svc. Malformed or invalid tasks fail without
// retries; model failures are retried by jobx.
func Handler(svc Requester) jobx.HandlerFunc {
	return func(ctx context.Context, job *jobx.JobInfo) (json.RawMessage, error) {
		var p Payload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, jobx.Permanent(errx.Wrap(err, "invalid task payload", errx.TypeValidation))
		}

		reply, err := svc.HandleRequest(ctx, p.request())
		if err != nil {
			if isRequestError(err) {
				return nil, jobx.Permanent(err)
			}
			logx.WithError(err).WithFields(logx.Fields{
				"job_id":   job.ID,
				"identity": p.Identity,
				"attempt":  job.Attempts,
			}).Warn("task attempt failed")
			return nil, err
		}

		return json.Marshal(Result{Text: reply.Text, Warning: reply.Warning})
	}
}

func isRequestError(err error) bool {
	return chat.ErrInvalidRequest.Is(err) ||
		chat.ErrUnknownVariant.Is(err) ||
		chat.ErrUnknownKind.Is(err)
}
