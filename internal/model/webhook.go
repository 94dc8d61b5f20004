package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyBody     = errors.New("webhook body is empty")
	ErrMissingSender = errors.New("webhook message has no sender")
)

// WebhookPayload mirrors the subset of the WhatsApp Cloud API notification
// that the bridge reads.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []InboundMessage `json:"messages"`
}

type InboundMessage struct {
	From      string       `json:"from"`
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *TextContent `json:"text"`
}

type TextContent struct {
	Body string `json:"body"`
}

type ParseKind int8

const (
	ParseMalformed = ParseKind(iota)
	ParseEmpty
	ParseValid
)

func (k ParseKind) String() string {
	switch k {
	case ParseMalformed:
		return "malformed"
	case ParseEmpty:
		return "empty"
	case ParseValid:
		return "valid"
	default:
		return "unknown"
	}
}

// IncomingText is the message extracted from a valid notification.
type IncomingText struct {
	From      string
	MessageID string
	Text      string
}

type ParseOutcome struct {
	Kind    ParseKind
	Message IncomingText
	Err     error
}

// ParseWebhookPayload walks entry[0].changes[0].value.messages[0]. It never
// fails: anything unexpected is reported through the outcome kind.
func ParseWebhookPayload(raw []byte) ParseOutcome {
	if len(raw) == 0 {
		return ParseOutcome{Kind: ParseMalformed, Err: ErrEmptyBody}
	}
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ParseOutcome{Kind: ParseMalformed, Err: fmt.Errorf("failed to decode webhook payload: %w", err)}
	}
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return ParseOutcome{Kind: ParseEmpty}
	}
	messages := payload.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return ParseOutcome{Kind: ParseEmpty}
	}
	msg := messages[0]
	if msg.From == "" {
		return ParseOutcome{Kind: ParseMalformed, Err: ErrMissingSender}
	}
	// media, reactions and the like carry no text object
	if msg.Text == nil {
		return ParseOutcome{Kind: ParseEmpty}
	}
	return ParseOutcome{
		Kind: ParseValid,
		Message: IncomingText{
			From:      msg.From,
			MessageID: msg.ID,
			Text:      msg.Text.Body,
		},
	}
}
