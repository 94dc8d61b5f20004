package app

import (
	"github.com/iamvkosarev/whatsapp-ai-bridge/config"
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns a text or JSON slog logger at the configured level.
// Unknown levels fall back to info.
func NewLogger(cfg config.Server, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	if cfg.Debug && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
