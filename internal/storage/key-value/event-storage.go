package key_value

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	"github.com/redis/go-redis/v9"
	"strings"
)

const DefaultEventsKey = "chat_events"

// redisList is the part of *redis.Client used by EventStorage.
type redisList interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// EventStorage mirrors chat events into a Redis list, oldest first. When
// maxEvents is positive the list is trimmed to the newest maxEvents entries.
type EventStorage struct {
	rdb       redisList
	key       string
	maxEvents int64
}

func NewEventStorage(rdb redisList, key string, maxEvents int64) (*EventStorage, error) {
	if rdb == nil {
		return nil, errors.New("key_value: redis client must not be nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultEventsKey
	}
	return &EventStorage{
		rdb:       rdb,
		key:       key,
		maxEvents: maxEvents,
	}, nil
}

func (s *EventStorage) AppendEvent(ctx context.Context, event model.ChatEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal chat event: %w", err)
	}
	if err = s.rdb.RPush(ctx, s.key, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to push chat event to %s: %w", s.key, err)
	}
	if s.maxEvents > 0 {
		if err = s.rdb.LTrim(ctx, s.key, -s.maxEvents, -1).Err(); err != nil {
			return fmt.Errorf("failed to trim %s: %w", s.key, err)
		}
	}
	return nil
}

func (s *EventStorage) ListEvents(ctx context.Context, limit int) ([]model.ChatEvent, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raws, err := s.rdb.LRange(ctx, s.key, start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.ChatEvent{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.key, err)
	}
	events := make([]model.ChatEvent, 0, len(raws))
	for i, raw := range raws {
		var event model.ChatEvent
		if err = json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat event %d from %s: %w", i, s.key, err)
		}
		events = append(events, event)
	}
	return events, nil
}
