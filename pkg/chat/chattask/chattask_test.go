package chattask

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/chat"
	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/Abraxas-365/chatkeep/pkg/jobx/jobxmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requesterFunc func(ctx context.Context, req chat.Request) (chat.Reply, error)

func (f requesterFunc) HandleRequest(ctx context.Context, req chat.Request) (chat.Reply, error) {
	return f(ctx, req)
}

func runClient(t *testing.T, svc Requester) *jobx.Client {
	t.Helper()
	c := jobx.NewClient(jobxmem.New(),
		jobx.WithConcurrency(1),
		jobx.WithPollInterval(10*time.Millisecond),
		jobx.WithDequeueTimeout(50*time.Millisecond),
		jobx.WithDefaultRetryDelay(0),
		jobx.WithMaxRetries(2),
		jobx.WithShutdownTimeout(time.Second),
	)
	Register(c, svc)

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
	return c
}

func waitDone(t *testing.T, c *jobx.Client, id string) *jobx.JobInfo {
	t.Helper()
	var info *jobx.JobInfo
	require.Eventually(t, func() bool {
		var err error
		info, err = c.GetJob(context.Background(), id)
		return err == nil && info.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return info
}

func TestTask_CompletesWithReply(t *testing.T) {
	var got chat.Request
	c := runClient(t, requesterFunc(func(ctx context.Context, req chat.Request) (chat.Reply, error) {
		got = req
		return chat.Reply{Text: "done", Warning: "near limit"}, nil
	}))

	id, err := Submit(context.Background(), c, Payload{Identity: "u1", Content: "summarize", Variant: "qianwen"})
	require.NoError(t, err)

	info := waitDone(t, c, id)
	require.Equal(t, jobx.JobStatusCompleted, info.Status, info.Error)

	var res Result
	require.NoError(t, json.Unmarshal(info.Result, &res))
	assert.Equal(t, Result{Text: "done", Warning: "near limit"}, res)
	assert.Equal(t, chat.KindTask, got.Kind)
	assert.Equal(t, "qianwen", got.Variant)
}

func TestSubmit_RejectsInvalidPayload(t *testing.T) {
	q := jobxmem.New()
	_, err := Submit(context.Background(), q, Payload{Identity: "u1", Content: " "})
	assert.True(t, chat.ErrInvalidRequest.Is(err))
}

func TestTask_InvocationFailureIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := runClient(t, requesterFunc(func(ctx context.Context, req chat.Request) (chat.Reply, error) {
		calls.Add(1)
		return chat.Reply{}, chat.InvocationError(errors.New("timeout"), "gpt4")
	}))

	id, err := Submit(context.Background(), c, Payload{Identity: "u1", Content: "x"})
	require.NoError(t, err)

	info := waitDone(t, c, id)
	assert.Equal(t, jobx.JobStatusFailed, info.Status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTask_UnknownVariantIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := runClient(t, requesterFunc(func(ctx context.Context, req chat.Request) (chat.Reply, error) {
		calls.Add(1)
		return chat.Reply{}, chat.ErrRegistry.New(chat.ErrUnknownVariant)
	}))

	id, err := Submit(context.Background(), c, Payload{Identity: "u1", Content: "x", Variant: "nope"})
	require.NoError(t, err)

	info := waitDone(t, c, id)
	assert.Equal(t, jobx.JobStatusFailed, info.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHandler_MalformedPayload(t *testing.T) {
	h := Handler(requesterFunc(func(ctx context.Context, req chat.Request) (chat.Reply, error) {
		t.Fatal("must not be called")
		return chat.Reply{}, nil
	}))

	_, err := h(context.Background(), &jobx.JobInfo{ID: "j1", Payload: json.RawMessage(`{`)})
	require.Error(t, err)
	assert.True(t, jobx.IsPermanent(err))
}
