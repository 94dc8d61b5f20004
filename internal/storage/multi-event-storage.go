package storage

import (
	"context"
	"errors"
	"fmt"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	"github.com/sourcegraph/conc/pool"
	"log/slog"
)

type EventAppender interface {
	AppendEvent(ctx context.Context, event model.ChatEvent) error
}

// MultiEventStorage writes every event to the primary storage and to each
// mirror concurrently. Only a primary failure is returned; mirror failures
// are logged.
type MultiEventStorage struct {
	primary EventAppender
	mirrors []EventAppender
	logger  *slog.Logger
}

func NewMultiEventStorage(logger *slog.Logger, primary EventAppender, mirrors ...EventAppender) (*MultiEventStorage, error) {
	if primary == nil {
		return nil, errors.New("storage: primary event storage must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	for i, mirror := range mirrors {
		if mirror == nil {
			return nil, fmt.Errorf("storage: mirror %d must not be nil", i)
		}
	}
	return &MultiEventStorage{
		primary: primary,
		mirrors: mirrors,
		logger:  logger,
	}, nil
}

func (m *MultiEventStorage) AppendEvent(ctx context.Context, event model.ChatEvent) error {
	if len(m.mirrors) == 0 {
		return m.primary.AppendEvent(ctx, event)
	}

	var primaryErr error
	p := pool.New().WithErrors()
	p.Go(func() error {
		primaryErr = m.primary.AppendEvent(ctx, event)
		return nil
	})
	for i, mirror := range m.mirrors {
		p.Go(func() error {
			if err := mirror.AppendEvent(ctx, event); err != nil {
				return fmt.Errorf("mirror %d: %w", i, err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		m.logger.WarnContext(ctx, "failed to mirror chat event", "user_id", event.UserID, "err", err)
	}
	return primaryErr
}
