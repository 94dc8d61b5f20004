package app

import (
	"context"
	"fmt"
	"github.com/iamvkosarev/whatsapp-ai-bridge/config"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/server"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/usecase"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/whatsapp"
	openai_tools "github.com/iamvkosarev/whatsapp-ai-bridge/pkg/openai-tools"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Run serves the webhook until ctx is done or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	srv, closeStorage, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.Warn("failed to close event storage", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err = <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err = srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop http server: %w", err)
	}
	logger.Info("server stopped")
	return <-errCh
}

// NewServer wires the clients, storages and usecases behind the HTTP server.
// The returned func releases the event storages.
func NewServer(cfg *config.Config, logger *slog.Logger) (*server.HTTPServer, func() error, error) {
	if cfg.WhatsApp.Token == "" || cfg.WhatsApp.PhoneID == "" {
		logger.Warn("WHATSAPP_TOKEN or WHATSAPP_PHONE_ID is empty, replies will fail to deliver")
	}

	sender := whatsapp.NewClient(
		cfg.WhatsApp.Token, cfg.WhatsApp.PhoneID,
		whatsapp.WithBaseURL(cfg.WhatsApp.GraphBaseURL),
		whatsapp.WithHTTPClient(&http.Client{Timeout: cfg.WhatsApp.SendTimeout}),
		whatsapp.WithMaxMessageRunes(cfg.WhatsApp.MaxMessageRunes),
	)

	var countTokens openai_tools.Counter
	if cfg.LLM.MaxPromptTokens > 0 {
		var err error
		if countTokens, err = openai_tools.NewTokenCounter(cfg.LLM.Model); err != nil {
			logger.Warn("token counter unavailable, prompts are sent untrimmed", "model", cfg.LLM.Model, "err", err)
		}
	}
	completion := usecase.NewCompletionUsecase(
		cfg.LLM, usecase.CompletionUsecaseDeps{
			CountTokens: countTokens,
			HTTPClient:  &http.Client{Timeout: cfg.LLM.Timeout},
			Logger:      logger,
		},
	)

	events, closeStorage, err := NewEventStorage(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	webhookUsecase, err := usecase.NewWebhookUsecase(
		cfg.WhatsApp, cfg.Bot, usecase.WebhookUsecaseDeps{
			Completion: completion,
			Events:     events,
			Sender:     sender,
			Logger:     logger,
		},
	)
	if err != nil {
		_ = closeStorage()
		return nil, nil, fmt.Errorf("failed to create webhook usecase: %w", err)
	}

	logger.Info(
		"bridge configured",
		"model", cfg.LLM.Model,
		"sink", cfg.Storage.Sink,
		"log_file", cfg.Storage.LogFile(),
		"redis_mirror", cfg.Redis.Enabled(),
		"language", cfg.Bot.Language,
	)
	return server.NewHTTPServer(cfg.Server, cfg.WhatsApp.ChannelSlug, webhookUsecase, logger), closeStorage, nil
}
