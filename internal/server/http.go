package server

import (
	"context"
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/iamvkosarev/whatsapp-ai-bridge/config"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const maxBodyBytes = 1 << 20

// Webhook is the channel logic behind /webhook/<channel>.
type Webhook interface {
	Verify(mode, token, challenge string) (string, bool)
	Receive(ctx context.Context, raw []byte) model.ParseKind
}

// HTTPServer serves the health check and the WhatsApp webhook on gin.
type HTTPServer struct {
	cfg     config.Server
	channel string
	webhook Webhook
	logger  *slog.Logger
	now     func() time.Time
	engine  *gin.Engine
	server  *http.Server
}

func NewHTTPServer(cfg config.Server, channel string, webhook Webhook, logger *slog.Logger) *HTTPServer {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{
		cfg:     cfg,
		channel: channel,
		webhook: webhook,
		logger:  logger,
		now:     time.Now,
		engine:  gin.New(),
	}
	s.registerMiddlewares()
	s.registerRoutes()
	s.server = &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *HTTPServer) registerMiddlewares() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(s.loggingMiddleware())
}

func (s *HTTPServer) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	webhook := s.engine.Group("/webhook")
	{
		webhook.GET("/"+s.channel, s.handleVerify)
		webhook.POST("/"+s.channel, s.handleReceive)
	}
}

// Handler exposes the routes, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Start blocks until the server stops. A graceful Stop makes it return nil.
func (s *HTTPServer) Start() error {
	s.logger.Info("starting http server", "addr", s.server.Addr, "channel", s.channel)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
