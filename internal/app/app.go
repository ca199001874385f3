// Package app builds the stores and services shared by the server and the seed CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"huntcurator/internal/cache"
	"huntcurator/internal/config"
	"huntcurator/internal/repository"
	"huntcurator/internal/service"
)

type App struct {
	Store    cache.SessionStore
	Repo     repository.CurationRepo
	Auth     *service.AuthService
	Curation *service.CurationService

	mongo *mongo.Client
	redis *redis.Client
}

// New connects to MongoDB and, when configured, Redis. Without a Redis
// address sessions live in an in-process LRU.
func New(ctx context.Context, cfg *config.Config, aiCfg *config.AIConfig) (*App, error) {
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	slog.Info("connected to MongoDB", "db", cfg.MongoDB)

	a := &App{mongo: mongoClient}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			rdb.Close()
			mongoClient.Disconnect(ctx)
			return nil, fmt.Errorf("failed to ping Redis: %w", err)
		}
		slog.Info("connected to Redis", "addr", cfg.RedisAddr)
		a.redis = rdb
		a.Store = cache.NewRedisSessionStore(rdb, cfg.SessionTTL)
	} else {
		slog.Warn("REDIS_URI not set, sessions kept in process", "size", cfg.SessionCacheSize)
		a.Store = cache.NewMemorySessionStore(cfg.SessionCacheSize, cfg.SessionTTL)
	}

	a.Repo = repository.NewCurationRepo(mongoClient.Database(cfg.MongoDB))
	a.Auth = service.NewAuthService(cfg.CuratorUsername, cfg.CuratorPassword, cfg.JWTSecret)
	a.Curation = service.NewCurationService(a.Store, a.Repo, service.NewJudgeService(aiCfg))

	if aiCfg.IsEnabled() {
		slog.Info("reference judge configured", "model", aiCfg.JudgeModel)
	} else {
		slog.Warn("GEMINI_API_KEY not set, using mock reference judge")
	}
	return a, nil
}

// Close releases the database connections
func (a *App) Close(ctx context.Context) {
	if a.redis != nil {
		a.redis.Close()
	}
	if err := a.mongo.Disconnect(ctx); err != nil {
		slog.Error("disconnect MongoDB", "error", err)
	}
}
