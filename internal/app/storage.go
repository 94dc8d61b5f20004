package app

import (
	"context"
	"fmt"
	"github.com/iamvkosarev/whatsapp-ai-bridge/config"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/storage"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/storage/file"
	in_memory "github.com/iamvkosarev/whatsapp-ai-bridge/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/whatsapp-ai-bridge/internal/storage/key-value"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"time"
)

const (
	SinkFile   = "file"
	SinkMemory = "memory"

	SourceFile  = "file"
	SourceRedis = "redis"
)

type EventReader interface {
	ListEvents(ctx context.Context, limit int) ([]model.ChatEvent, error)
}

func newRedisClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(
		&redis.Options{
			Addr:     cfg.Endpoint,
			Password: cfg.Password,
			DB:       cfg.DB,
		},
	)
}

// NewEventStorage builds the primary sink and, when REDIS_ADDR is set, a
// Redis mirror next to it.
func NewEventStorage(cfg *config.Config, logger *slog.Logger) (storage.EventAppender, func() error, error) {
	var primary storage.EventAppender
	switch cfg.Storage.Sink {
	case SinkMemory:
		primary = in_memory.NewEventStorage()
	case SinkFile, "":
		primary = file.NewEventStorage(cfg.Storage.LogFile())
	default:
		return nil, nil, fmt.Errorf("unknown event sink %q", cfg.Storage.Sink)
	}

	noop := func() error { return nil }
	if !cfg.Redis.Enabled() {
		return primary, noop, nil
	}

	rdb := newRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis mirror is unreachable, events will still go to the primary sink", "addr", cfg.Redis.Endpoint, "err", err)
	}

	mirror, err := key_value.NewEventStorage(rdb, cfg.Redis.EventsKey, cfg.Redis.MaxEvents)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	multi, err := storage.NewMultiEventStorage(logger, primary, mirror)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return multi, rdb.Close, nil
}

// NewEventReader opens the chat history for reading from the JSONL log or
// from the Redis mirror.
func NewEventReader(cfg *config.Config, source string) (EventReader, func() error, error) {
	switch source {
	case SourceFile, "":
		return file.NewEventStorage(cfg.Storage.LogFile()), func() error { return nil }, nil
	case SourceRedis:
		if !cfg.Redis.Enabled() {
			return nil, nil, fmt.Errorf("redis source requested but REDIS_ADDR is not set")
		}
		rdb := newRedisClient(cfg.Redis)
		reader, err := key_value.NewEventStorage(rdb, cfg.Redis.EventsKey, cfg.Redis.MaxEvents)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return reader, rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown event source %q", source)
	}
}
