package server

import (
	"context"
	"github.com/gin-gonic/gin"
	"io"
	"net/http"
)

const (
	queryMode        = "hub.mode"
	queryVerifyToken = "hub.verify_token"
	queryChallenge   = "hub.challenge"

	ackBody = "ok"
)

func (s *HTTPServer) handleHealth(c *gin.Context) {
	now := s.now()
	c.JSON(
		http.StatusOK, gin.H{
			"status": "ok",
			"time":   float64(now.UnixNano()) / 1e9,
		},
	)
}

func (s *HTTPServer) handleVerify(c *gin.Context) {
	challenge, ok := s.webhook.Verify(c.Query(queryMode), c.Query(queryVerifyToken), c.Query(queryChallenge))
	if !ok {
		s.logger.WarnContext(c.Request.Context(), "webhook verification rejected", "request_id", requestID(c))
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.String(http.StatusOK, challenge)
}

// handleReceive always acknowledges. The body is read whatever the
// Content-Type says, and processing outlives a caller that hangs up.
func (s *HTTPServer) handleReceive(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		s.logger.WarnContext(c.Request.Context(), "failed to read webhook body", "request_id", requestID(c), "err", err)
		c.String(http.StatusOK, ackBody)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	kind := s.webhook.Receive(ctx, raw)
	c.Set(ctxKeyParseKind, kind.String())
	c.String(http.StatusOK, ackBody)
}
