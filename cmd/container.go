// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, metrics) and
// composes bounded-context containers.
package main

import (
	"context"

	"github.com/Abraxas-365/chatkeep/pkg/chat/chatcontainer"
	"github.com/Abraxas-365/chatkeep/pkg/chat/chatinfra"
	"github.com/Abraxas-365/chatkeep/pkg/config"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
	"github.com/Abraxas-365/chatkeep/pkg/metricsx"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and composed module containers.
type Container struct {
	Config *config.Config

	// Infrastructure (optional, enabled by config)
	DB      *sqlx.DB
	Redis   *redis.Client
	Metrics *metricsx.Metrics

	// Bounded-context containers
	Chat *chatcontainer.Container
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg, Metrics: metricsx.New()}

	if err := c.initInfrastructure(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}
	if err := c.initModules(); err != nil {
		c.Cleanup()
		return nil, err
	}

	logx.Info("✅ Application container initialized")
	return c, nil
}

// ---------------------------------------------------------------------------
// Infrastructure
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure(ctx context.Context) error {
	logx.Info("🏗️ Initializing infrastructure...")

	if c.Config.Database.TranscriptsEnabled {
		db, err := chatinfra.OpenPostgres(ctx, c.Config.Database.DSN())
		if err != nil {
			return err
		}
		c.DB = db
		logx.Info("  ✅ Database connected")
	}

	if c.Config.Redis.Enabled {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Address(),
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
		logx.Info("  ✅ Redis connected")
	}

	logx.Info("✅ Infrastructure initialized")
	return nil
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() error {
	logx.Info("📦 Initializing modules...")

	chat, err := chatcontainer.New(chatcontainer.Deps{
		DB:      c.DB,
		Redis:   c.Redis,
		Cfg:     c.Config,
		Metrics: c.Metrics,
	})
	if err != nil {
		return err
	}
	c.Chat = chat
	return nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting background services...")
	c.Chat.StartBackgroundServices(ctx)
}

// Health reports the state of each optional dependency.
func (c *Container) Health(ctx context.Context) map[string]string {
	health := map[string]string{}
	if c.DB != nil {
		health["db"] = "healthy"
		if err := c.DB.PingContext(ctx); err != nil {
			health["db"] = "unhealthy: " + err.Error()
		}
	}
	if c.Redis != nil {
		health["redis"] = "healthy"
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			health["redis"] = "unhealthy: " + err.Error()
		}
	}
	return health
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
