package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/ai/llm/memoryx"
	"github.com/Abraxas-365/chatkeep/pkg/cachex"
	"github.com/Abraxas-365/chatkeep/pkg/chat"
	"github.com/Abraxas-365/chatkeep/pkg/chat/chatsrv"
	"github.com/Abraxas-365/chatkeep/pkg/chat/chattask"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/Abraxas-365/chatkeep/pkg/iam/auth"
	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/Abraxas-365/chatkeep/pkg/jobx/jobxmem"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandle struct{}

func (echoHandle) Ask(ctx context.Context, history []llm.Message, input string) (string, error) {
	return "re:" + input, nil
}

type stubFactory struct{ err error }

func (f stubFactory) Build(ctx context.Context, kind chat.Kind, variant string) (chat.Handle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return echoHandle{}, nil
}

func (stubFactory) Supports(variant string) bool { return variant == "gpt4" }
func (stubFactory) Variants() []string           { return []string{"gpt4"} }

type testEnv struct {
	app     *fiber.App
	service *chatsrv.ChatService
	jobs    *jobx.Client
}

func newEnv(t *testing.T, factory chat.HandleFactory, tokens auth.TokenService, withTasks bool) *testEnv {
	t.Helper()
	service := chatsrv.NewChatService(
		cachex.New[chat.Handle](),
		memoryx.NewHistoryRegistry(20, 4000),
		factory,
		"gpt4",
	)

	env := &testEnv{service: service}
	var tasks TaskQueue
	if withTasks {
		env.jobs = jobx.NewClient(jobxmem.New(),
			jobx.WithConcurrency(1),
			jobx.WithPollInterval(10*time.Millisecond),
			jobx.WithDequeueTimeout(50*time.Millisecond),
			jobx.WithShutdownTimeout(time.Second),
		)
		chattask.Register(env.jobs, service)
		tasks = env.jobs
	}

	env.app = fiber.New(fiber.Config{ErrorHandler: errx.FiberErrorHandler(false)})
	NewHandlers(service, tasks).RegisterRoutes(env.app, auth.NewIdentityMiddleware(tokens, nil))
	return env
}

func (e *testEnv) startJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.jobs.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

var user1 = map[string]string{"X-User-ID": "u1"}

func TestChat_Success(t *testing.T) {
	env := newEnv(t, stubFactory{}, nil, false)

	status, body := do(t, env.app, http.MethodPost, "/api/v1/chat", `{"question":"hello"}`, user1)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "re:hello", body["response"])
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["request_id"])
	assert.NotContains(t, body, "warning")
}

func TestChat_ValidationErrors(t *testing.T) {
	env := newEnv(t, stubFactory{}, nil, false)

	cases := []struct {
		name    string
		body    string
		headers map[string]string
		code    string
	}{
		{"missing identity", `{"question":"hi"}`, nil, "IAM_MISSING_IDENTITY"},
		{"empty question", `{"question":"  "}`, user1, "CHAT_INVALID_REQUEST"},
		{"unknown model", `{"question":"hi","llm_type":"llama9"}`, user1, "CHAT_UNKNOWN_VARIANT"},
		{"bad json", `{"question":`, user1, "CHAT_API_INVALID_BODY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, env.app, http.MethodPost, "/api/v1/chat", tc.body, tc.headers)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestChat_FallbackOnModelFailure(t *testing.T) {
	env := newEnv(t, stubFactory{err: errors.New("API key not configured")}, nil, false)

	status, body := do(t, env.app, http.MethodPost, "/api/v1/chat", `{"question":"hi"}`, user1)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, FallbackReply, body["response"])
	assert.Contains(t, body["error_message"], "API key not configured")
}

func TestSession_InfoAndDelete(t *testing.T) {
	env := newEnv(t, stubFactory{}, nil, false)

	status, _ := do(t, env.app, http.MethodDelete, "/api/v1/chat/session", "", user1)
	assert.Equal(t, http.StatusNotFound, status)

	do(t, env.app, http.MethodPost, "/api/v1/chat", `{"question":"hi"}`, user1)

	status, body := do(t, env.app, http.MethodGet, "/api/v1/chat/session", "", user1)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["exists"])
	assert.EqualValues(t, 2, body["message_count"])

	status, _ = do(t, env.app, http.MethodDelete, "/api/v1/chat/session", "", user1)
	assert.Equal(t, http.StatusOK, status)

	_, body = do(t, env.app, http.MethodGet, "/api/v1/chat/session", "", user1)
	assert.Equal(t, false, body["exists"])
}

func TestTranscripts_Disabled(t *testing.T) {
	env := newEnv(t, stubFactory{}, nil, false)

	status, body := do(t, env.app, http.MethodGet, "/api/v1/chat/transcripts?limit=5", "", user1)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "CHAT_ARCHIVE_DISABLED", body["code"])
}

func TestTasks_SubmitAndPoll(t *testing.T) {
	env := newEnv(t, stubFactory{}, nil, true)
	env.startJobs(t)

	status, body := do(t, env.app, http.MethodPost, "/api/v1/chat/tasks", `{"content":"plan a trip"}`, user1)
	require.Equal(t, http.StatusAccepted, status)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		_, body = do(t, env.app, http.MethodGet, "/api/v1/chat/tasks/"+jobID, "", user1)
		return body["status"] == string(jobx.JobStatusCompleted)
	}, 5*time.Second, 20*time.Millisecond)

	result, _ := body["result"].(map[string]any)
	assert.Equal(t, "re:plan a trip", result["text"])

	status, body = do(t, env.app, http.MethodGet, "/api/v1/chat/tasks/missing", "", user1)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "JOBX_JOB_NOT_FOUND", body["code"])
}

func TestTasks_Disabled(t *testing.T) {
	env := newEnv(t, stubFactory{}, nil, false)

	status, body := do(t, env.app, http.MethodPost, "/api/v1/chat/tasks", `{"content":"x"}`, user1)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "CHAT_API_TASKS_DISABLED", body["code"])
}

func TestAdminCache(t *testing.T) {
	env := newEnv(t, stubFactory{}, nil, false)
	do(t, env.app, http.MethodPost, "/api/v1/chat", `{"question":"hi"}`, user1)

	status, body := do(t, env.app, http.MethodGet, "/api/v1/admin/cache", "", user1)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
	byKind, _ := body["by_kind"].(map[string]any)
	assert.EqualValues(t, 1, byKind["chat"])

	_, body = do(t, env.app, http.MethodPost, "/api/v1/admin/cache/sweep", "", user1)
	assert.EqualValues(t, 0, body["removed"])

	_, body = do(t, env.app, http.MethodDelete, "/api/v1/admin/cache", "", user1)
	assert.EqualValues(t, 1, body["cleared"])
	assert.Equal(t, 0, env.service.CacheStats().Total)
}

func TestTokenMode(t *testing.T) {
	tokens, err := auth.NewJWTService("test-secret", time.Hour, "chatkeep")
	require.NoError(t, err)
	env := newEnv(t, stubFactory{}, tokens, false)

	userToken, err := tokens.GenerateAccessToken("alice", nil, time.Hour)
	require.NoError(t, err)
	adminToken, err := tokens.GenerateAccessToken("ops", []string{"admin:*"}, time.Hour)
	require.NoError(t, err)

	status, _ := do(t, env.app, http.MethodPost, "/api/v1/chat", `{"question":"hi"}`, user1)
	assert.Equal(t, http.StatusUnauthorized, status, "header identity is not accepted once tokens are required")

	status, body := do(t, env.app, http.MethodPost, "/api/v1/chat", `{"question":"hi"}`,
		map[string]string{"Authorization": "Bearer " + userToken, "X-User-ID": "mallory"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.True(t, env.service.SessionInfo("alice").Exists)
	assert.False(t, env.service.SessionInfo("mallory").Exists)

	status, _ = do(t, env.app, http.MethodGet, "/api/v1/admin/cache", "", map[string]string{"Authorization": "Bearer " + userToken})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, env.app, http.MethodGet, "/api/v1/admin/cache", "", map[string]string{"Authorization": "Bearer " + adminToken})
	assert.Equal(t, http.StatusOK, status)
}
