package openai_tools

import (
	"context"
	"errors"
	"fmt"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/sashabaranov/go-openai"
	"sync"
)

const (
	fallbackEncoding = "cl100k_base"
	tokensPerMessage = 3
	tokensPerName    = 1
	replyPriming     = 3
)

var ErrBudgetTooSmall = errors.New("token budget cannot fit the conversation")

type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// Counter returns the prompt token count of messages for model.
type Counter func(messages []openai.ChatCompletionMessage, model string) (int, error)

var useOfflineLoader sync.Once

// encodingForModel never touches the network: the BPE ranks are embedded.
var encodingForModel = func(model string) (Encoder, error) {
	useOfflineLoader.Do(
		func() {
			tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		},
	)
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return enc, nil
	}
	// non-OpenAI models (mixtral, llama) are approximated with cl100k
	enc, err = tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", fallbackEncoding, err)
	}
	return enc, nil
}

// NewTokenCounter resolves the encoding for model once. The returned Counter
// reuses it and ignores its model argument.
func NewTokenCounter(model string) (Counter, error) {
	enc, err := encodingForModel(model)
	if err != nil {
		return nil, err
	}
	return func(messages []openai.ChatCompletionMessage, _ string) (int, error) {
		return countWith(enc, messages), nil
	}, nil
}

func countWith(enc Encoder, messages []openai.ChatCompletionMessage) int {
	tokens := 0
	for _, message := range messages {
		tokens += tokensPerMessage
		tokens += len(enc.Encode(message.Role, nil, nil))
		tokens += len(enc.Encode(message.Content, nil, nil))
		if message.Name != "" {
			tokens += len(enc.Encode(message.Name, nil, nil)) + tokensPerName
		}
	}
	return tokens + replyPriming
}

// FitLastMessage shortens the content of the last message until the whole
// conversation counts fewer than budget tokens. The returned bool reports
// whether anything was cut. Earlier messages are never touched. It stops with
// ctx.Err() once ctx is done, even if count is still running.
func FitLastMessage(
	ctx context.Context, messages []openai.ChatCompletionMessage, model string, budget int, count Counter,
) ([]openai.ChatCompletionMessage, bool, error) {
	if len(messages) == 0 || budget <= 0 {
		return messages, false, nil
	}

	type result struct {
		fitted  []openai.ChatCompletionMessage
		trimmed bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		fitted, trimmed, err := fitLastMessage(ctx, messages, model, budget, count)
		done <- result{fitted: fitted, trimmed: trimmed, err: err}
	}()

	select {
	case <-ctx.Done():
		return messages, false, ctx.Err()
	case r := <-done:
		return r.fitted, r.trimmed, r.err
	}
}

func fitLastMessage(
	ctx context.Context, messages []openai.ChatCompletionMessage, model string, budget int, count Counter,
) ([]openai.ChatCompletionMessage, bool, error) {
	fitted := make([]openai.ChatCompletionMessage, len(messages))
	copy(fitted, messages)
	last := len(fitted) - 1

	trimmed := false
	for {
		if err := ctx.Err(); err != nil {
			return messages, false, err
		}
		tokenCount, err := count(fitted, model)
		if err != nil {
			return messages, false, fmt.Errorf("failed to count tokens: %w", err)
		}
		if tokenCount < budget {
			return fitted, trimmed, nil
		}
		content := []rune(fitted[last].Content)
		if len(content) == 0 {
			return messages, false, ErrBudgetTooSmall
		}
		cut := len(content) / 10
		if cut == 0 {
			cut = 1
		}
		fitted[last].Content = string(content[:len(content)-cut])
		trimmed = true
	}
}
