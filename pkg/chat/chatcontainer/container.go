package chatcontainer

import (
	"context"
	"sync"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm/memoryx"
	"github.com/Abraxas-365/chatkeep/pkg/ai/llm/memoryx/memoryxredis"
	"github.com/Abraxas-365/chatkeep/pkg/asyncx"
	"github.com/Abraxas-365/chatkeep/pkg/cachex"
	"github.com/Abraxas-365/chatkeep/pkg/chat"
	"github.com/Abraxas-365/chatkeep/pkg/chat/chatapi"
	"github.com/Abraxas-365/chatkeep/pkg/chat/chatinfra"
	"github.com/Abraxas-365/chatkeep/pkg/chat/chatsrv"
	"github.com/Abraxas-365/chatkeep/pkg/chat/chattask"
	"github.com/Abraxas-365/chatkeep/pkg/config"
	"github.com/Abraxas-365/chatkeep/pkg/iam/auth"
	"github.com/Abraxas-365/chatkeep/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/Abraxas-365/chatkeep/pkg/jobx/jobxmem"
	"github.com/Abraxas-365/chatkeep/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
	"github.com/Abraxas-365/chatkeep/pkg/metricsx"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Deps: external dependencies of the chat context. DB and Redis are optional;
// the features that need them are switched off when they are nil.
// ---------------------------------------------------------------------------

type Deps struct {
	DB      *sqlx.DB
	Redis   *redis.Client
	Cfg     *config.Config
	Metrics *metricsx.Metrics
}

// ---------------------------------------------------------------------------
// Container: the public surface of the chat module.
// ---------------------------------------------------------------------------

type Container struct {
	Service  *chatsrv.ChatService
	Handlers *chatapi.Handlers

	IdentityMiddleware *auth.IdentityMiddleware
	TokenService       auth.TokenService

	// Jobs is nil when background tasks are disabled.
	Jobs *jobx.Client

	cacheJanitor   *cachex.Janitor
	historyJanitor *cachex.Janitor
	wg             sync.WaitGroup
}

// New builds the chat dependency graph.
// Order: stores → cache and histories → service → tasks → handlers.
func New(deps Deps) (*Container, error) {
	logx.Info("🔧 Initializing chat container...")

	cfg := deps.Cfg
	c := &Container{}

	// ── Identity ─────────────────────────────────────────────────────────

	audit := authinfra.NewLogxAuditService()
	if cfg.Auth.Enabled() {
		tokens, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
		if err != nil {
			return nil, err
		}
		c.TokenService = tokens
		c.IdentityMiddleware = auth.NewIdentityMiddleware(tokens, audit)
		logx.Info("  ✅ Bearer token authentication enabled")
	} else {
		c.IdentityMiddleware = auth.NewIdentityMiddleware(nil, audit)
		logx.Warn("  ⚠️  AUTH_JWT_SECRET not set, trusting the X-User-ID header")
	}

	// ── Handle cache and histories ──────────────────────────────────────

	cacheOpts := []cachex.Option{
		cachex.WithMaxEntries(cfg.Cache.MaxEntries),
		cachex.WithIdleTTL(cfg.Cache.IdleTTL),
	}
	historyOpts := []memoryx.RegistryOption{
		memoryx.WithSessionTimeout(cfg.Chat.SessionTimeout),
		memoryx.WithCleanupInterval(cfg.Chat.CleanupInterval),
		memoryx.WithLimitWarnings(cfg.Chat.LimitWarnings),
	}
	var serviceOpts []chatsrv.Option
	if deps.Metrics != nil {
		cacheOpts = append(cacheOpts, cachex.WithObserver(deps.Metrics))
		historyOpts = append(historyOpts, memoryx.WithTrimObserver(deps.Metrics))
		serviceOpts = append(serviceOpts, chatsrv.WithMetrics(deps.Metrics))
	}

	cache := cachex.New[chat.Handle](cacheOpts...)
	histories := memoryx.NewHistoryRegistry(cfg.Chat.MaxMessages, cfg.Chat.MaxTokens, historyOpts...)

	c.cacheJanitor = cachex.NewJanitor("handle-cache", cache, cfg.Cache.SweepInterval)
	c.historyJanitor = cachex.NewJanitor("history-sessions", histories, cfg.Chat.CleanupInterval)

	// ── Optional stores ─────────────────────────────────────────────────

	if deps.Redis != nil {
		serviceOpts = append(serviceOpts, chatsrv.WithHistoryMirror(
			memoryxredis.NewSnapshotStore(deps.Redis, cfg.Chat.SessionTimeout),
		))
		logx.Info("  ✅ Redis history mirror enabled")
	}
	if deps.DB != nil && cfg.Database.TranscriptsEnabled {
		serviceOpts = append(serviceOpts, chatsrv.WithTranscripts(
			chatinfra.NewPostgresTranscriptRepository(deps.DB),
		))
		logx.Info("  ✅ Postgres transcript archive enabled")
	}

	// ── Service ─────────────────────────────────────────────────────────

	factory := chatinfra.NewModelFactory(cfg.LLM, cfg.Chat)
	if !factory.Supports(cfg.Chat.DefaultVariant) {
		return nil, chat.ErrRegistry.New(chat.ErrUnknownVariant).
			WithDetail("variant", cfg.Chat.DefaultVariant).
			WithDetail("supported", factory.Variants())
	}

	serviceOpts = append(serviceOpts, chatsrv.WithInvocationTimeout(cfg.Chat.InvocationTimeout))
	c.Service = chatsrv.NewChatService(cache, histories, factory, cfg.Chat.DefaultVariant, serviceOpts...)

	// ── Background tasks ────────────────────────────────────────────────

	var tasks chatapi.TaskQueue
	if cfg.Jobs.Enabled {
		var queue jobx.Queue
		if deps.Redis != nil {
			queue = jobxredis.NewRedisQueue(deps.Redis, jobxredis.WithResultTTL(cfg.Jobs.ResultTTL))
			logx.Info("  ✅ Redis task queue")
		} else {
			queue = jobxmem.New()
			logx.Warn("  ⚠️  In-memory task queue (tasks are lost on restart)")
		}

		jobOpts := []jobx.WorkerOption{
			jobx.WithQueues(cfg.Jobs.Queues...),
			jobx.WithConcurrency(cfg.Jobs.Concurrency),
			jobx.WithPollInterval(cfg.Jobs.PollInterval),
			jobx.WithShutdownTimeout(cfg.Jobs.ShutdownTimeout),
			jobx.WithDequeueTimeout(cfg.Jobs.DequeueTimeout),
			jobx.WithDefaultRetryDelay(cfg.Jobs.DefaultRetryDelay),
			jobx.WithMaxRetries(cfg.Jobs.MaxRetries),
		}
		if deps.Metrics != nil {
			jobOpts = append(jobOpts, jobx.WithObserver(deps.Metrics))
		}
		c.Jobs = jobx.NewClient(queue, jobOpts...)
		chattask.Register(c.Jobs, c.Service)
		tasks = c.Jobs
	}

	// ── Handlers ────────────────────────────────────────────────────────

	c.Handlers = chatapi.NewHandlers(c.Service, tasks)

	logx.Info("✅ Chat container initialized")
	return c, nil
}

// StartBackgroundServices starts the janitors and task workers. They stop
// when ctx is cancelled; Wait blocks until they have.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	c.run("handle-cache-janitor", func() error { return c.cacheJanitor.Start(ctx) })
	c.run("history-janitor", func() error { return c.historyJanitor.Start(ctx) })
	if c.Jobs != nil {
		c.run("task-workers", func() error { return c.Jobs.Start(ctx) })
	}
	logx.Info("  ✅ Chat background services started")
}

func (c *Container) run(name string, fn func() error) {
	c.wg.Add(1)
	asyncx.Go(name, func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			logx.WithError(err).WithField("service", name).Error("background service stopped with error")
		}
	})
}

// Wait blocks until every background service has returned.
func (c *Container) Wait() {
	c.wg.Wait()
}
