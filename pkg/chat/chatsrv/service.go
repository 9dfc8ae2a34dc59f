package chatsrv

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/ai/llm/memoryx"
	"github.com/Abraxas-365/chatkeep/pkg/asyncx"
	"github.com/Abraxas-365/chatkeep/pkg/cachex"
	"github.com/Abraxas-365/chatkeep/pkg/chat"
	"github.com/Abraxas-365/chatkeep/pkg/clockx"
	"github.com/Abraxas-365/chatkeep/pkg/kernel"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
	"github.com/google/uuid"
)

const (
	backgroundWriteTimeout = 10 * time.Second
	archiveAttempts        = 3
	archiveBackoff         = 200 * time.Millisecond
)

// Metrics receives per-request observations.
type Metrics interface {
	ObserveRequest(kind, outcome string)
	ObserveInvocation(kind, variant string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, string)                   {}
func (noopMetrics) ObserveInvocation(string, string, time.Duration) {}

// Outcome labels reported to Metrics.
const (
	outcomeOK                 = "ok"
	outcomeInvalid            = "invalid"
	outcomeConstructionFailed = "construction_failed"
	outcomeInvocationFailed   = "invocation_failed"
)

// ChatService coordinates the handle cache and the history registry for each
// request.
type ChatService struct {
	cache     *cachex.Cache[chat.Handle]
	histories *memoryx.HistoryRegistry
	factory   chat.HandleFactory

	defaultVariant    string
	invocationTimeout time.Duration

	transcripts chat.TranscriptRepository
	mirror      chat.HistoryMirror
	metrics     Metrics
	clock       clockx.Clock
	locks       *identityLocks
}

type Option func(*ChatService)

// WithTranscripts archives every successful exchange to repo.
func WithTranscripts(repo chat.TranscriptRepository) Option {
	return func(s *ChatService) { s.transcripts = repo }
}

// WithHistoryMirror saves histories after each exchange and restores them
// into empty logs.
func WithHistoryMirror(m chat.HistoryMirror) Option {
	return func(s *ChatService) { s.mirror = m }
}

func WithMetrics(m Metrics) Option {
	return func(s *ChatService) { s.metrics = m }
}

func WithInvocationTimeout(d time.Duration) Option {
	return func(s *ChatService) { s.invocationTimeout = d }
}

func WithClock(c clockx.Clock) Option {
	return func(s *ChatService) { s.clock = c }
}

func NewChatService(
	cache *cachex.Cache[chat.Handle],
	histories *memoryx.HistoryRegistry,
	factory chat.HandleFactory,
	defaultVariant string,
	opts ...Option,
) *ChatService {
	s := &ChatService{
		cache:          cache,
		histories:      histories,
		factory:        factory,
		defaultVariant: normalizeVariant(defaultVariant),
		metrics:        noopMetrics{},
		clock:          clockx.Real(),
		locks:          newIdentityLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeVariant(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// DefaultVariant is the model type used when a request names none.
func (s *ChatService) DefaultVariant() string { return s.defaultVariant }

// HandleRequest answers one message and records it in the caller's history.
//
// Requests for one identity are handled one at a time in arrival order, so
// each sees the exchanges before it and appends land in that order. Model
// calls for different identities run independently. A failed call leaves the
// history untouched.
func (s *ChatService) HandleRequest(ctx context.Context, req chat.Request) (chat.Reply, error) {
	if req.Kind == "" {
		req.Kind = chat.KindChat
	}
	if err := req.Validate(); err != nil {
		s.metrics.ObserveRequest(string(req.Kind), outcomeInvalid)
		return chat.Reply{}, err
	}
	if req.Kind != chat.KindChat && req.Kind != chat.KindTask {
		s.metrics.ObserveRequest(string(req.Kind), outcomeInvalid)
		return chat.Reply{}, chat.ErrRegistry.New(chat.ErrUnknownKind).WithDetail("kind", string(req.Kind))
	}

	variant, err := s.resolveVariant(req.Variant)
	if err != nil {
		s.metrics.ObserveRequest(string(req.Kind), outcomeInvalid)
		return chat.Reply{}, err
	}

	log := logx.WithFields(logx.Fields{
		"identity":   req.Identity,
		"kind":       string(req.Kind),
		"variant":    variant,
		"request_id": kernel.RequestIDFrom(ctx),
	})

	key := cachex.Key{Identity: req.Identity, Kind: req.Kind.CacheKind(), Variant: variant}
	handle, err := s.cache.GetOrCreate(ctx, key, func(ctx context.Context) (chat.Handle, error) {
		return s.factory.Build(ctx, req.Kind, variant)
	})
	if err != nil {
		log.WithError(err).Error("failed to build model handle")
		s.metrics.ObserveRequest(string(req.Kind), outcomeConstructionFailed)
		return chat.Reply{}, chat.ConstructionError(err, variant)
	}
	if named, ok := handle.(interface{ Name() string }); ok && named.Name() != "" {
		log = log.WithField("handle", named.Name())
	}

	logID := req.Kind.LogIdentity(req.Identity)
	unlock, err := s.locks.lock(ctx, logID)
	if err != nil {
		log.WithError(err).Warn("gave up waiting for an earlier request")
		s.metrics.ObserveRequest(string(req.Kind), outcomeInvocationFailed)
		return chat.Reply{}, chat.InvocationError(err, variant)
	}
	defer unlock()

	s.restore(ctx, logID)
	history := s.histories.GetOrCreate(logID).Snapshot()

	started := s.clock.Now()
	text, err := asyncx.WithTimeout(ctx, s.invocationTimeout, func(ctx context.Context) (string, error) {
		return handle.Ask(ctx, history, req.Content)
	})
	s.metrics.ObserveInvocation(string(req.Kind), variant, s.clock.Now().Sub(started))
	if err != nil {
		log.WithError(err).Error("model invocation failed")
		s.metrics.ObserveRequest(string(req.Kind), outcomeInvocationFailed)
		return chat.Reply{}, chat.InvocationError(err, variant)
	}

	s.histories.Append(logID, llm.NewUserMessage(req.Content))
	s.histories.Append(logID, llm.NewAssistantMessage(text))

	reply := chat.Reply{Text: text}
	if warning, ok := s.histories.LimitWarning(logID); ok {
		reply.Warning = warning
	}

	s.persist(logID, chat.Exchange{
		ID:        uuid.NewString(),
		Identity:  req.Identity,
		Kind:      req.Kind,
		Variant:   variant,
		Request:   req.Content,
		Response:  text,
		CreatedAt: s.clock.Now().UTC(),
	})

	s.metrics.ObserveRequest(string(req.Kind), outcomeOK)
	log.WithField("reply_length", len(text)).Info("request handled")
	return reply, nil
}

func (s *ChatService) resolveVariant(v string) (string, error) {
	variant := normalizeVariant(v)
	if variant == "" {
		variant = s.defaultVariant
	}
	if !s.factory.Supports(variant) {
		return "", chat.ErrRegistry.New(chat.ErrUnknownVariant).
			WithDetail("variant", variant).
			WithDetail("supported", s.factory.Variants())
	}
	return variant, nil
}

// restore loads a mirrored history into an empty log.
func (s *ChatService) restore(ctx context.Context, logID string) {
	if s.mirror == nil || s.histories.SessionInfo(logID).Exists {
		return
	}
	messages, found, err := s.mirror.Load(ctx, logID)
	if err != nil {
		logx.WithError(err).WithField("identity", logID).Warn("failed to load mirrored history")
		return
	}
	if found && s.histories.Restore(logID, messages) {
		logx.WithFields(logx.Fields{
			"identity": logID,
			"messages": len(messages),
		}).Info("restored mirrored history")
	}
}

// persist writes the mirror snapshot and transcript in the background.
// Failures are logged and never reach the caller.
func (s *ChatService) persist(logID string, exchange chat.Exchange) {
	if s.mirror != nil {
		snapshot := s.histories.Messages(logID)
		asyncx.Go("history-mirror", func() {
			ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
			defer cancel()
			if err := s.mirror.Save(ctx, logID, snapshot); err != nil {
				logx.WithError(err).WithField("identity", logID).Warn("failed to mirror history")
			}
		})
	}
	if s.transcripts != nil {
		asyncx.Go("transcript-archive", func() {
			ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
			defer cancel()
			// Save is idempotent on exchange.ID, so a retried insert cannot duplicate.
			err := asyncx.RetryWithBackoff(ctx, archiveAttempts, archiveBackoff, func(ctx context.Context) error {
				return s.transcripts.Save(ctx, exchange)
			})
			if err != nil {
				logx.WithError(err).WithField("exchange_id", exchange.ID).Warn("failed to archive exchange")
			}
		})
	}
}

// ClearSession drops identity's chat and task histories, their mirrors, and
// every cached handle for identity.
func (s *ChatService) ClearSession(ctx context.Context, identity string) error {
	if strings.TrimSpace(identity) == "" {
		return chat.ErrRegistry.NewWithMessage(chat.ErrInvalidRequest, "identity is required")
	}

	removed := false
	for _, logID := range []string{chat.KindChat.LogIdentity(identity), chat.KindTask.LogIdentity(identity)} {
		if s.histories.Clear(logID) {
			removed = true
		}
		if s.mirror != nil {
			if err := s.mirror.Delete(ctx, logID); err != nil {
				logx.WithError(err).WithField("identity", logID).Warn("failed to delete mirrored history")
			}
		}
	}
	if s.cache.Invalidate(identity) > 0 {
		removed = true
	}

	if !removed {
		return chat.ErrRegistry.New(chat.ErrSessionNotFound).WithDetail("identity", identity)
	}
	return nil
}

// SessionInfo describes identity's chat history.
func (s *ChatService) SessionInfo(identity string) memoryx.SessionInfo {
	return s.histories.SessionInfo(chat.KindChat.LogIdentity(identity))
}

// InvalidateHandles drops identity's cached handles and reports how many.
func (s *ChatService) InvalidateHandles(identity string) int {
	return s.cache.Invalidate(identity)
}

func (s *ChatService) CacheStats() cachex.Stats {
	return s.cache.Stats()
}

func (s *ChatService) ClearCache() {
	s.cache.Clear()
}

func (s *ChatService) SweepCache() int {
	return s.cache.Sweep()
}

// Transcripts lists identity's archived exchanges, newest first.
func (s *ChatService) Transcripts(ctx context.Context, identity string, opts kernel.PaginationOptions) (kernel.Paginated[chat.Exchange], error) {
	if s.transcripts == nil {
		return kernel.Paginated[chat.Exchange]{}, chat.ErrRegistry.New(chat.ErrArchiveDisabled)
	}
	return s.transcripts.ListByIdentity(ctx, identity, opts.Normalize(20, 100))
}
