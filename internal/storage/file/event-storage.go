package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	"io/fs"
	"os"
)

const maxLineSize = 1 << 20

// EventStorage appends chat events to a newline-delimited JSON file. The
// file is opened and closed on every append and each line goes out in a
// single O_APPEND write.
type EventStorage struct {
	path string
}

func NewEventStorage(path string) *EventStorage {
	return &EventStorage{
		path: path,
	}
}

func (s *EventStorage) Path() string {
	return s.path
}

func (s *EventStorage) AppendEvent(_ context.Context, event model.ChatEvent) (err error) {
	line, err := encodeEvent(event)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open chat log %s: %w", s.path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close chat log %s: %w", s.path, closeErr)
		}
	}()
	if _, err = f.Write(line); err != nil {
		return fmt.Errorf("failed to append to chat log %s: %w", s.path, err)
	}
	return nil
}

// ListEvents returns up to limit most recent events in file order. A
// non-positive limit returns every event. A missing file is an empty log.
func (s *EventStorage) ListEvents(_ context.Context, limit int) ([]model.ChatEvent, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.ChatEvent{}, nil
		}
		return nil, fmt.Errorf("failed to open chat log %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	events := make([]model.ChatEvent, 0)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var event model.ChatEvent
		if err = json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("failed to decode chat log line %d: %w", lineNo, err)
		}
		events = append(events, event)
		if limit > 0 && len(events) > limit {
			events = events[1:]
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat log %s: %w", s.path, err)
	}
	return events, nil
}

func encodeEvent(event model.ChatEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(event); err != nil {
		return nil, fmt.Errorf("failed to marshal chat event: %w", err)
	}
	return buf.Bytes(), nil
}
