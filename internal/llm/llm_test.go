// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/verity/internal/httputil"
	"github.com/pdiddy/verity/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason"`
	}

	tests := []struct {
		name    string
		text    string
		want    payload
		wantErr bool
	}{
		{"bare object", `{"valid": true, "reason": "ok"}`, payload{true, "ok"}, false},
		{"fenced json", "```json\n{\"valid\": false, \"reason\": \"vague\"}\n```", payload{false, "vague"}, false},
		{"fenced no lang", "```\n{\"valid\": true}\n```", payload{Valid: true}, false},
		{"leading prose", "Here you go:\n{\"reason\": \"x\"} thanks", payload{Reason: "x"}, false},
		{"no object", "I cannot help with that.", payload{}, true},
		{"broken object", `{"valid": tru}`, payload{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			err := DecodeJSON(tt.text, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	cfg := types.DefaultConfig().LLM

	_, err := New(cfg, nil)
	assert.Error(t, err, "missing key")

	cfg.APIKey = "k"
	c, err := New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	cfg.Provider = types.ProviderOpenAI
	c, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	cfg.Provider = "bard"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestAnthropicClient_Complete(t *testing.T) {
	var got anthropicRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"content":[{"type":"text","text":"{\"valid\":true}"}],"stop_reason":"end_turn"}`)
	}))
	defer ts.Close()

	old := anthropicAPIURL
	anthropicAPIURL = ts.URL
	defer func() { anthropicAPIURL = old }()

	c := &AnthropicClient{APIKey: "test-key", Model: "test-model", Client: ts.Client()}
	text, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "hello"})
	require.NoError(t, err)

	assert.Equal(t, `{"valid":true}`, text)
	assert.Equal(t, "sys", got.System)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestAnthropicClient_Errors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		timeout     time.Duration
		wantTimeout bool
		wantStatus  int
	}{
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"error":"bad"}`)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "overloaded after retries",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "slow server",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout:     50 * time.Millisecond,
			wantTimeout: true,
		},
		{
			name: "no text block",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				io.WriteString(w, `{"content":[{"type":"tool_use"}]}`)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			old := anthropicAPIURL
			anthropicAPIURL = ts.URL
			defer func() { anthropicAPIURL = old }()

			c := &AnthropicClient{APIKey: "k", Model: "m", MaxRetries: 1, Timeout: tt.timeout, Client: ts.Client()}
			_, err := c.Complete(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			assert.Equal(t, tt.wantTimeout, types.IsTimeout(err), err.Error())
			if tt.wantStatus != 0 {
				var se *httputil.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantStatus, se.Code)
			}
		})
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"queries\":[\"a\"]}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
		}`)
	}))
	defer ts.Close()

	cfg := types.LLMConfig{Provider: types.ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "sk-test", BaseURL: ts.URL + "/v1", MaxTokens: 512}
	c := NewOpenAIClient(cfg, ts.Client(), nil)

	text, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "claim"})
	require.NoError(t, err)
	assert.Equal(t, `{"queries":["a"]}`, text)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	format, ok := got["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAIClient_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer ts.Close()

	cfg := types.LLMConfig{Model: "m", APIKey: "k", BaseURL: ts.URL + "/v1"}
	c := NewOpenAIClient(cfg, ts.Client(), nil)

	_, err := c.Complete(context.Background(), Request{Prompt: "p"})
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.True(t, httputil.IsTransient(err))
}

func TestOpenAIClient_RetriesThrottling(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got), "body is resent on retry")
		assert.Equal(t, "m", got["model"])

		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
			return
		}
		io.WriteString(w, `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "{}"}, "finish_reason": "stop"}]}`)
	}))
	defer ts.Close()

	cfg := types.LLMConfig{Model: "m", APIKey: "k", BaseURL: ts.URL + "/v1", MaxRetries: 2}
	c := NewOpenAIClient(cfg, ts.Client(), nil)

	text, err := c.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "{}", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
