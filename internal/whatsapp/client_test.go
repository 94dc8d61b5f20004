package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	}, opts...)
	return NewClient("wa-token", "1234567890", opts...)
}

func TestSendText_HappyPath(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/1234567890/messages", r.URL.Path)
		require.Equal(t, "Bearer wa-token", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.SendText(context.Background(), "5551234", "hola"))
	require.Equal(t, sendRequest{
		MessagingProduct: "whatsapp",
		To:               "5551234",
		Type:             "text",
		Text:             textBody{Body: "hola"},
	}, got)
}

func TestSendText_TruncatesBody(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.SendText(context.Background(), "5551234", strings.Repeat("é", 4500)))
	require.Equal(t, 4000, utf8.RuneCountInString(got.Text.Body))
	require.True(t, utf8.ValidString(got.Text.Body))
}

func TestSendText_CustomLimit(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithMaxMessageRunes(5))
	require.NoError(t, c.SendText(context.Background(), "5551234", "abcdefgh"))
	require.Equal(t, "abcde", got.Text.Body)
}

func TestSendText_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid token"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.SendText(context.Background(), "5551234", "hola")
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusUnauthorized, statusErr.HTTPStatusCode())
	require.Contains(t, err.Error(), "invalid token")
}

func TestSendText_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	err := c.SendText(context.Background(), "5551234", "hola")
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestSendText_EmptyRecipient(t *testing.T) {
	c := NewClient("wa-token", "1234567890")
	err := c.SendText(context.Background(), " ", "hola")
	require.Error(t, err)
	require.Contains(t, err.Error(), "recipient")
}

func TestMessagesURL(t *testing.T) {
	require.Equal(t, "https://graph.facebook.com/v19.0/42/messages", NewClient("t", "42").messagesURL())
	require.Equal(t, "http://localhost:9000/42/messages", NewClient("t", "42", WithBaseURL("http://localhost:9000/")).messagesURL())
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "ab", Truncate("abc", 2))
	require.Equal(t, "abc", Truncate("abc", 3))
	require.Equal(t, "abc", Truncate("abc", 10))
	require.Equal(t, "ñá", Truncate("ñáé", 2))
	require.Equal(t, "", Truncate("", 5))
	require.Equal(t, "abc", Truncate("abc", 0))
}
