// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the text-completion capability every AI-assisted
// stage depends on. A Client turns a system prompt plus a user prompt into
// raw text; callers decode that text into their own response structs with
// DecodeJSON and validate it themselves.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pdiddy/verity/pkg/types"
)

// Request is one completion call.
type Request struct {
	// System carries the instructions and the expected JSON shape.
	System string

	// Prompt carries the per-call content.
	Prompt string

	// MaxTokens caps the response; zero uses the client default.
	MaxTokens int
}

// Client abstracts the language model so tests can supply a mock.
// Implementations bound each call by their configured timeout and wrap
// deadline failures with types.ErrTimeout.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New builds the client selected by cfg.Provider.
func New(cfg types.LLMConfig, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case types.ProviderAnthropic, "":
		return &AnthropicClient{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			MaxTokens:  cfg.MaxTokens,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
			Client:     httpClient,
			Logger:     logger,
		}, nil
	case types.ProviderOpenAI:
		return NewOpenAIClient(cfg, httpClient, logger), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
}

// DecodeJSON unmarshals a model response into v. Markdown code fences and
// any prose before the first '{' or after the last '}' are ignored.
func DecodeJSON(text string, v any) error {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in model response")
	}

	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("parsing model response JSON: %w", err)
	}
	return nil
}
