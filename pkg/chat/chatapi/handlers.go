package chatapi

import (
	"context"
	"strings"

	"github.com/Abraxas-365/chatkeep/pkg/chat"
	"github.com/Abraxas-365/chatkeep/pkg/chat/chatsrv"
	"github.com/Abraxas-365/chatkeep/pkg/chat/chattask"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/Abraxas-365/chatkeep/pkg/iam"
	"github.com/Abraxas-365/chatkeep/pkg/iam/auth"
	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/Abraxas-365/chatkeep/pkg/kernel"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FallbackReply is returned with success=false when the model could not answer.
const FallbackReply = "Sorry, something went wrong while processing your question. Please try again later."

var errRegistry = errx.NewRegistry("CHAT_API")

var (
	errInvalidBody   = errRegistry.Register("INVALID_BODY", errx.TypeValidation, fiber.StatusBadRequest, "Invalid request body")
	errTasksDisabled = errRegistry.Register("TASKS_DISABLED", errx.TypeBusiness, fiber.StatusServiceUnavailable, "Background tasks are disabled")
	errTaskNotFound  = errRegistry.Register("TASK_NOT_FOUND", errx.TypeNotFound, fiber.StatusNotFound, "Task not found")
)

// TaskQueue submits and reads background tasks.
type TaskQueue interface {
	jobx.JobEnqueuer
	jobx.JobStatusReader
}

type Handlers struct {
	service *chatsrv.ChatService
	tasks   TaskQueue
}

// NewHandlers creates the chat handlers. A nil tasks disables the task routes.
func NewHandlers(service *chatsrv.ChatService, tasks TaskQueue) *Handlers {
	return &Handlers{service: service, tasks: tasks}
}

// RegisterRoutes mounts the chat and admin routes under /api/v1.
func (h *Handlers) RegisterRoutes(router fiber.Router, identity *auth.IdentityMiddleware) {
	api := router.Group("/api/v1")

	chatGroup := api.Group("/chat", identity.Authenticate())
	chatGroup.Post("/", h.Chat)
	chatGroup.Post("/tasks", h.SubmitTask)
	chatGroup.Get("/tasks/:id", h.GetTask)
	chatGroup.Get("/session", h.GetSession)
	chatGroup.Delete("/session", h.DeleteSession)
	chatGroup.Get("/transcripts", h.ListTranscripts)

	admin := api.Group("/admin", identity.Authenticate(), identity.RequireAdmin())
	admin.Get("/cache", h.CacheStats)
	admin.Delete("/cache", h.ClearCache)
	admin.Post("/cache/sweep", h.SweepCache)
	admin.Delete("/cache/:identity", h.InvalidateIdentity)
}

func callerIdentity(c *fiber.Ctx) (string, error) {
	ac, ok := auth.FromFiber(c)
	if !ok {
		return "", iam.ErrMissingIdentity()
	}
	return ac.Identity, nil
}

// requestContext carries the request ID into the service layer.
func requestContext(c *fiber.Ctx) (context.Context, string) {
	id := c.GetRespHeader(fiber.HeaderXRequestID)
	if id == "" {
		id = c.Get(fiber.HeaderXRequestID)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return kernel.WithRequestID(c.UserContext(), id), id
}

// Chat answers one question. Model failures are reported in the body with
// success=false; validation failures are HTTP errors.
func (h *Handlers) Chat(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return errRegistry.NewWithCause(errInvalidBody, err)
	}

	ctx, requestID := requestContext(c)
	reply, err := h.service.HandleRequest(ctx, chat.Request{
		Identity: identity,
		Content:  req.Question,
		Kind:     chat.KindChat,
		Variant:  req.LLMType,
	})
	if err != nil {
		if chat.IsFallbackError(err) {
			return c.JSON(ChatResponse{
				Response:     FallbackReply,
				Success:      false,
				ErrorMessage: err.Error(),
				RequestID:    requestID,
			})
		}
		return err
	}

	return c.JSON(ChatResponse{
		Response:  reply.Text,
		Success:   true,
		Warning:   reply.Warning,
		RequestID: requestID,
	})
}

func (h *Handlers) SubmitTask(c *fiber.Ctx) error {
	if h.tasks == nil {
		return errRegistry.New(errTasksDisabled)
	}
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return errRegistry.NewWithCause(errInvalidBody, err)
	}
	if id := strings.TrimSpace(req.TaskID); id != "" {
		identity = id
	}

	ctx, _ := requestContext(c)
	jobID, err := chattask.Submit(ctx, h.tasks, chattask.Payload{
		Identity: identity,
		Content:  req.Content,
		Variant:  req.LLMType,
	})
	if err != nil {
		return err
	}

	logx.WithFields(logx.Fields{
		"identity": identity,
		"job_id":   jobID,
	}).Info("task accepted")
	return c.Status(fiber.StatusAccepted).JSON(TaskAccepted{JobID: jobID})
}

func (h *Handlers) GetTask(c *fiber.Ctx) error {
	if h.tasks == nil {
		return errRegistry.New(errTasksDisabled)
	}
	if _, err := callerIdentity(c); err != nil {
		return err
	}

	jobID := c.Params("id")
	info, err := h.tasks.GetJob(c.UserContext(), jobID)
	if err != nil {
		return err
	}
	if info.Type != chattask.JobType {
		return errRegistry.New(errTaskNotFound).WithDetail("job_id", jobID)
	}

	return c.JSON(TaskStatus{
		JobID:     info.ID,
		Status:    info.Status,
		Result:    info.Result,
		Error:     info.Error,
		Attempts:  info.Attempts,
		CreatedAt: info.CreatedAt,
		UpdatedAt: info.UpdatedAt,
	})
}

func (h *Handlers) GetSession(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	info := h.service.SessionInfo(identity)
	return c.JSON(SessionResponse{
		Identity:     identity,
		Exists:       info.Exists,
		MessageCount: info.MessageCount,
		LastActiveAt: info.LastActiveAt,
		AgeHours:     info.AgeHours,
	})
}

func (h *Handlers) DeleteSession(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	if err := h.service.ClearSession(c.UserContext(), identity); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"identity": identity, "cleared": true})
}

func (h *Handlers) ListTranscripts(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	opts := kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("limit", 0),
	}
	page, err := h.service.Transcripts(c.UserContext(), identity, opts)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *Handlers) CacheStats(c *fiber.Ctx) error {
	stats := h.service.CacheStats()
	return c.JSON(CacheStatsResponse{
		Total:      stats.Total,
		ByKind:     stats.KindCounts(),
		MaxEntries: stats.MaxEntries,
	})
}

func (h *Handlers) ClearCache(c *fiber.Ctx) error {
	cleared := h.service.CacheStats().Total
	h.service.ClearCache()
	return c.JSON(fiber.Map{"cleared": cleared})
}

func (h *Handlers) SweepCache(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"removed": h.service.SweepCache()})
}

func (h *Handlers) InvalidateIdentity(c *fiber.Ctx) error {
	identity := c.Params("identity")
	return c.JSON(fiber.Map{
		"identity": identity,
		"removed":  h.service.InvalidateHandles(identity),
	})
}
