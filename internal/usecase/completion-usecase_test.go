package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/iamvkosarev/whatsapp-ai-bridge/config"
	"github.com/iamvkosarev/whatsapp-ai-bridge/internal/model"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type completionRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLLMConfig(baseURL string) config.LLM {
	return config.LLM{
		APIKey:      "test-key",
		Model:       "mixtral-8x7b-32768",
		BaseURL:     baseURL,
		Temperature: 0.2,
		MaxTokens:   500,
		Timeout:     2 * time.Second,
	}
}

func newCompletionServer(t *testing.T, reply string, got *completionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				if got != nil {
					assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(
					openai.ChatCompletionResponse{
						Choices: []openai.ChatCompletionChoice{
							{Message: openai.ChatCompletionMessage{Role: OpenAIRoleAssistant, Content: reply}},
						},
					},
				)
			},
		),
	)
	t.Cleanup(srv.Close)
	return srv
}

func TestCompletionUsecase_Complete(t *testing.T) {
	var got completionRequest
	srv := newCompletionServer(t, "  hola, ¿en qué te ayudo?\n", &got)
	c := NewCompletionUsecase(testLLMConfig(srv.URL), CompletionUsecaseDeps{Logger: quietLogger()})

	answer, err := c.Complete(context.Background(), model.NewConversation("system prompt", "hello"))
	require.NoError(t, err)
	require.Equal(t, "hola, ¿en qué te ayudo?", answer)

	require.Equal(t, "mixtral-8x7b-32768", got.Model)
	require.InDelta(t, 0.2, got.Temperature, 1e-6)
	require.Equal(t, 500, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	require.Equal(t, OpenAIRoleSystem, got.Messages[0].Role)
	require.Equal(t, "system prompt", got.Messages[0].Content)
	require.Equal(t, OpenAIRoleUser, got.Messages[1].Role)
	require.Equal(t, "hello", got.Messages[1].Content)
}

func TestCompletionUsecase_NoChoices(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
		),
	)
	defer srv.Close()
	c := NewCompletionUsecase(testLLMConfig(srv.URL), CompletionUsecaseDeps{Logger: quietLogger()})

	_, err := c.Complete(context.Background(), model.NewConversation("s", "u"))
	require.ErrorIs(t, err, ErrNoChoices)
}

func TestCompletionUsecase_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			},
		),
	)
	defer srv.Close()
	c := NewCompletionUsecase(testLLMConfig(srv.URL), CompletionUsecaseDeps{Logger: quietLogger()})

	_, err := c.Complete(context.Background(), model.NewConversation("s", "u"))
	require.Error(t, err)
	var apiErr *openai.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.HTTPStatusCode)
}

func TestCompletionUsecase_Timeout(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
		),
	)
	defer srv.Close()
	cfg := testLLMConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	c := NewCompletionUsecase(cfg, CompletionUsecaseDeps{Logger: quietLogger()})

	_, err := c.Complete(context.Background(), model.NewConversation("s", "u"))
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompletionUsecase_TrimsToTokenBudget(t *testing.T) {
	var got completionRequest
	srv := newCompletionServer(t, "ok", &got)
	cfg := testLLMConfig(srv.URL)
	cfg.MaxPromptTokens = 20

	var calls atomic.Int32
	countRunes := func(messages []openai.ChatCompletionMessage, _ string) (int, error) {
		calls.Add(1)
		n := 0
		for _, m := range messages {
			n += len([]rune(m.Content))
		}
		return n, nil
	}
	c := NewCompletionUsecase(cfg, CompletionUsecaseDeps{CountTokens: countRunes, Logger: quietLogger()})

	_, err := c.Complete(context.Background(), model.NewConversation("sys", "a very long user message that does not fit"))
	require.NoError(t, err)
	require.Greater(t, calls.Load(), int32(1))
	require.Equal(t, "sys", got.Messages[0].Content)
	require.Less(t, len([]rune(got.Messages[1].Content))+3, 20)
}

func TestCompletionUsecase_BudgetTooSmall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer srv.Close()
	cfg := testLLMConfig(srv.URL)
	cfg.MaxPromptTokens = 2

	alwaysLarge := func([]openai.ChatCompletionMessage, string) (int, error) { return 100, nil }
	c := NewCompletionUsecase(cfg, CompletionUsecaseDeps{CountTokens: alwaysLarge, Logger: quietLogger()})

	_, err := c.Complete(context.Background(), model.NewConversation("s", "u"))
	require.Error(t, err)
	require.Zero(t, hits.Load())
}

func TestCompletionUsecase_TimeoutCoversTokenBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer srv.Close()
	cfg := testLLMConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxPromptTokens = 3500

	slowCount := func([]openai.ChatCompletionMessage, string) (int, error) {
		time.Sleep(400 * time.Millisecond)
		return 10, nil
	}
	c := NewCompletionUsecase(cfg, CompletionUsecaseDeps{CountTokens: slowCount, Logger: quietLogger()})

	start := time.Now()
	_, err := c.Complete(context.Background(), model.NewConversation("s", "u"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 300*time.Millisecond)
	require.Zero(t, hits.Load())
}

type countingTransport struct {
	requests atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.requests.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

func TestCompletionUsecase_UsesInjectedHTTPClient(t *testing.T) {
	srv := newCompletionServer(t, "ok", nil)
	transport := &countingTransport{}
	c := NewCompletionUsecase(
		testLLMConfig(srv.URL), CompletionUsecaseDeps{
			HTTPClient: &http.Client{Transport: transport},
			Logger:     quietLogger(),
		},
	)

	_, err := c.Complete(context.Background(), model.NewConversation("s", "u"))
	require.NoError(t, err)
	require.EqualValues(t, 1, transport.requests.Load())
}

func TestParseMessageSourceToRole(t *testing.T) {
	require.Equal(t, OpenAIRoleSystem, parseMessageSourceToRole(model.MessageSourceSystem))
	require.Equal(t, OpenAIRoleUser, parseMessageSourceToRole(model.MessageSourceUser))
	require.Equal(t, OpenAIRoleAssistant, parseMessageSourceToRole(model.MessageSourceAssistant))
	require.Equal(t, OpenAIRoleUnknown, parseMessageSourceToRole(model.MessageSource("tool")))
}
