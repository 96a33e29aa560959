// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/pdiddy/verity/internal/httputil"
	"github.com/pdiddy/verity/pkg/types"
)

// OpenAIClient calls an OpenAI-compatible chat completions endpoint and
// requests JSON-object output.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewOpenAIClient builds a client from cfg. A non-empty cfg.BaseURL points
// it at a compatible server. Throttling and gateway errors are retried up to
// cfg.MaxRetries times with the same backoff as the Anthropic client.
func NewOpenAIClient(cfg types.LLMConfig, httpClient *http.Client, logger *slog.Logger) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &httputil.RetryClient{Client: httpClient, MaxRetries: cfg.MaxRetries}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Complete sends the system and user messages and returns the first choice.
func (o *OpenAIClient) Complete(ctx context.Context, r Request) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.System},
			{Role: openai.ChatMessageRoleUser, Content: r.Prompt},
		},
		MaxCompletionTokens: maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &httputil.StatusError{Service: "OpenAI API", Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return "", httputil.WrapTimeout(fmt.Errorf("calling OpenAI API: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	o.logger.Debug("openai completion",
		"model", o.model,
		"finish_reason", resp.Choices[0].FinishReason,
		"total_tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
