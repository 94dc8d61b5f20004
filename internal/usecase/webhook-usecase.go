package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"github.com/iamvkosarev/whatsapp-ai-bridge/config"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/whatsapp"
	"github.com/iamvkosarev/whatsapp-ai-bridge/pkg/local"
	"log/slog"
	"time"
)

const ModeSubscribe = "subscribe"

var (
	MessageSystemPrompt = local.NewSet(
		"Eres un asistente de salud que orienta, no diagnostica.",
		local.NewTrans(local.Eng, "You are a health assistant that guides people. You do not diagnose."),
	)
	MessageServerError = local.NewSet(
		"Lo siento, no puedo responder en este momento. Intenta más tarde.",
		local.NewTrans(local.Eng, "Sorry, I can't answer right now. Try later."),
	)
)

type Completer interface {
	Complete(ctx context.Context, messages []model.Message) (string, error)
}

type EventStorage interface {
	AppendEvent(ctx context.Context, event model.ChatEvent) error
}

type MessageSender interface {
	SendText(ctx context.Context, to, body string) error
}

type WebhookUsecaseDeps struct {
	Completion Completer
	Events     EventStorage
	Sender     MessageSender
	Logger     *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type WebhookUsecase struct {
	WebhookUsecaseDeps
	cfg      config.WhatsApp
	language local.Language
}

func NewWebhookUsecase(cfg config.WhatsApp, bot config.Bot, deps WebhookUsecaseDeps) (*WebhookUsecase, error) {
	if deps.Completion == nil || deps.Events == nil || deps.Sender == nil {
		return nil, errors.New("usecase: completion, events and sender are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.MaxMessageRunes <= 0 {
		cfg.MaxMessageRunes = whatsapp.DefaultMaxMessageRunes
	}
	return &WebhookUsecase{
		WebhookUsecaseDeps: deps,
		cfg:                cfg,
		language:           local.ParseLanguage(bot.Language, local.Spa),
	}, nil
}

// Verify answers the subscription handshake. The challenge is returned only
// when mode is "subscribe" and token matches the configured verify token.
// An empty token never matches.
func (w *WebhookUsecase) Verify(mode, token, challenge string) (string, bool) {
	if mode != ModeSubscribe || token == "" || w.cfg.VerifyToken == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(w.cfg.VerifyToken)) != 1 {
		return "", false
	}
	return challenge, true
}

// Receive handles one inbound notification. It never fails: the caller
// acknowledges every delivery, so problems are only logged. The returned
// kind tells how the payload was classified.
func (w *WebhookUsecase) Receive(ctx context.Context, raw []byte) model.ParseKind {
	outcome := model.ParseWebhookPayload(raw)
	switch outcome.Kind {
	case model.ParseMalformed:
		w.Logger.DebugContext(ctx, "ignoring malformed webhook payload", "err", outcome.Err)
		return outcome.Kind
	case model.ParseEmpty:
		w.Logger.DebugContext(ctx, "ignoring webhook payload without text message")
		return outcome.Kind
	}

	msg := outcome.Message
	answer := w.answer(ctx, msg)

	event := model.NewChatEvent(w.Now(), msg.From, model.ChannelWhatsAppCloud, msg.Text, answer)
	if err := w.Events.AppendEvent(ctx, event); err != nil {
		w.Logger.ErrorContext(ctx, "failed to append chat event", "user_id", msg.From, "err", err)
	}

	w.sendMessageAndHandleErr(ctx, msg.From, answer)
	return outcome.Kind
}

func (w *WebhookUsecase) answer(ctx context.Context, msg model.IncomingText) string {
	conversation := model.NewConversation(MessageSystemPrompt.Text(w.language), msg.Text)
	answer, err := w.Completion.Complete(ctx, conversation)
	if err != nil {
		w.Logger.ErrorContext(ctx, "failed to complete chat", "user_id", msg.From, "err", err)
		return MessageServerError.Text(w.language)
	}
	return answer
}

func (w *WebhookUsecase) sendMessageAndHandleErr(ctx context.Context, to, body string) {
	if err := w.Sender.SendText(ctx, to, whatsapp.Truncate(body, w.cfg.MaxMessageRunes)); err != nil {
		attrs := []any{"to", to, "err", err}
		var statusErr *whatsapp.HTTPStatusError
		if errors.As(err, &statusErr) {
			attrs = append(attrs, "status", statusErr.HTTPStatusCode())
		}
		w.Logger.WarnContext(ctx, "failed to deliver reply", attrs...)
	}
}
