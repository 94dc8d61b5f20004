package usecase

import (
	"context"
	"errors"
	"fmt"
	"github.com/iamvkosarev/whatsapp-ai-bridge/config"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	openai_tools "github.com/iamvkosarev/whatsapp-ai-bridge/pkg/openai-tools"
	"github.com/sashabaranov/go-openai"
	"log/slog"
	"net/http"
	"strings"
)

const (
	OpenAIRoleSystem    = "system"
	OpenAIRoleUser      = "user"
	OpenAIRoleAssistant = "assistant"
	OpenAIRoleUnknown   = "unknown"
)

var ErrNoChoices = errors.New("completion returned no choices")

type CompletionUsecaseDeps struct {
	// CountTokens enables prompt budgeting when set.
	CountTokens openai_tools.Counter
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// CompletionUsecase talks to an OpenAI compatible chat completion endpoint
// (Groq by default). One request per call, no streaming, no retries.
type CompletionUsecase struct {
	CompletionUsecaseDeps
	cfg    config.LLM
	client *openai.Client
}

func NewCompletionUsecase(cfg config.LLM, deps CompletionUsecaseDeps) *CompletionUsecase {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if deps.HTTPClient != nil {
		clientConfig.HTTPClient = deps.HTTPClient
	}
	return &CompletionUsecase{
		CompletionUsecaseDeps: deps,
		cfg:                   cfg,
		client:                openai.NewClientWithConfig(clientConfig),
	}
}

// Complete sends messages to the model and returns its reply with
// surrounding whitespace removed.
func (c *CompletionUsecase) Complete(ctx context.Context, messages []model.Message) (string, error) {
	history := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, message := range messages {
		history = append(
			history, openai.ChatCompletionMessage{
				Role:    parseMessageSourceToRole(message.Source),
				Content: message.Body,
			},
		)
	}

	// the timeout bounds token budgeting and the request together
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	if c.CountTokens != nil && c.cfg.MaxPromptTokens > 0 {
		fitted, trimmed, err := openai_tools.FitLastMessage(
			ctx, history, c.cfg.Model, c.cfg.MaxPromptTokens, c.CountTokens,
		)
		switch {
		case errors.Is(err, openai_tools.ErrBudgetTooSmall):
			return "", err
		case ctx.Err() != nil:
			return "", fmt.Errorf("failed to fit prompt to token budget: %w", ctx.Err())
		case err != nil:
			c.Logger.WarnContext(ctx, "token count failed, sending prompt as is", "err", err)
		case trimmed:
			c.Logger.InfoContext(ctx, "user message trimmed to token budget", "budget", c.cfg.MaxPromptTokens)
			history = fitted
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    history,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func parseMessageSourceToRole(source model.MessageSource) string {
	switch source {
	case model.MessageSourceSystem:
		return OpenAIRoleSystem
	case model.MessageSourceUser:
		return OpenAIRoleUser
	case model.MessageSourceAssistant:
		return OpenAIRoleAssistant
	default:
		return OpenAIRoleUnknown
	}
}
