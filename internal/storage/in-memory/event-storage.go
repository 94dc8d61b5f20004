package in_memory

import (
	"context"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	"sync"
)

// EventStorage keeps chat events in process memory. It backs EVENT_SINK=memory
// dry runs and tests.
type EventStorage struct {
	mu     sync.RWMutex
	events []model.ChatEvent
}

func NewEventStorage() *EventStorage {
	return &EventStorage{
		events: make([]model.ChatEvent, 0),
	}
}

func (e *EventStorage) AppendEvent(_ context.Context, event model.ChatEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *EventStorage) ListEvents(_ context.Context, limit int) ([]model.ChatEvent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	start := 0
	if limit > 0 && len(e.events) > limit {
		start = len(e.events) - limit
	}
	events := make([]model.ChatEvent, len(e.events)-start)
	copy(events, e.events[start:])
	return events, nil
}
