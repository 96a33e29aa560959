// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/verity/internal/metrics"
	"github.com/pdiddy/verity/internal/pipeline"
	"github.com/pdiddy/verity/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockVerifier struct {
	out      pipeline.Outcome
	err      error
	lastRaw  string
	lastOpts pipeline.Options
	calls    int
}

func (m *mockVerifier) Run(_ context.Context, raw string, opts pipeline.Options) (pipeline.Outcome, error) {
	m.calls++
	m.lastRaw = raw
	m.lastOpts = opts
	return m.out, m.err
}

func okOutcome() pipeline.Outcome {
	return pipeline.Outcome{
		Result: &types.PipelineResult{
			RunID:           "run-1",
			Claim:           "Does creatine improve strength?",
			NormalizedClaim: "does creatine improve strength",
			Verdict:         types.NewVerdict(types.LabelSupported, types.Synthesis{Headline: "Yes."}),
		},
		CacheHit: true,
	}
}

func post(t *testing.T, h http.Handler, body, remote string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/verify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func noLimit() types.ServerConfig {
	return types.ServerConfig{}
}

func TestVerify_OK(t *testing.T) {
	v := &mockVerifier{out: okOutcome()}
	s := New(v, noLimit(), nil, nil, nil)

	w := post(t, s.Handler(), `{"claim": "Does creatine improve strength?", "refresh": true}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, true, got["cache_hit"])
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "does creatine improve strength", got["normalized_claim"])
	verdict := got["verdict"].(map[string]any)
	assert.Equal(t, "supported", verdict["label"])

	assert.Equal(t, "Does creatine improve strength?", v.lastRaw)
	assert.True(t, v.lastOpts.Refresh)
}

func TestVerify_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		wantCode  int
		wantError string
		wantCalls int
	}{
		{
			name:      "malformed json",
			body:      `{"claim": `,
			wantCode:  http.StatusBadRequest,
			wantError: "bad_request",
		},
		{
			name:      "missing claim",
			body:      `{"refresh": true}`,
			wantCode:  http.StatusBadRequest,
			wantError: "bad_request",
		},
		{
			name:      "validation error",
			body:      `{"claim": "pls help"}`,
			err:       &types.ValidationError{Reason: "claim is too short", Suggestions: []string{"Does creatine improve strength?"}},
			wantCode:  http.StatusBadRequest,
			wantError: "invalid_claim",
			wantCalls: 1,
		},
		{
			name:      "timeout",
			body:      `{"claim": "Does creatine improve strength?"}`,
			err:       types.NewStageError(types.StageSynthesis, fmt.Errorf("%w: writer", types.ErrTimeout)),
			wantCode:  http.StatusGatewayTimeout,
			wantError: "timeout",
			wantCalls: 1,
		},
		{
			name:      "stage failure",
			body:      `{"claim": "Does creatine improve strength?"}`,
			err:       types.NewStageError(types.StageRetrieval, errors.New("all 3 queries failed")),
			wantCode:  http.StatusBadGateway,
			wantError: "verification_failed",
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockVerifier{err: tt.err}
			s := New(v, noLimit(), nil, nil, nil)

			w := post(t, s.Handler(), tt.body, "")
			assert.Equal(t, tt.wantCode, w.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body.Error)
			assert.NotEmpty(t, body.Message)
			assert.NotContains(t, body.Message, "queries failed", "internal detail is not leaked")
			assert.Equal(t, tt.wantCalls, v.calls)
		})
	}
}

func TestVerify_ValidationSuggestions(t *testing.T) {
	v := &mockVerifier{err: &types.ValidationError{Reason: "too vague", Suggestions: []string{"a", "b"}}}
	s := New(v, noLimit(), nil, nil, nil)

	w := post(t, s.Handler(), `{"claim": "is food good"}`, "")
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "too vague", body.Message)
	assert.Equal(t, []string{"a", "b"}, body.Suggestions)
}

func TestVerify_RateLimitPerIP(t *testing.T) {
	v := &mockVerifier{out: okOutcome()}
	s := New(v, types.ServerConfig{RateLimit: 2, RateWindow: time.Minute}, nil, nil, nil)
	h := s.Handler()
	body := `{"claim": "Does creatine improve strength?"}`

	assert.Equal(t, http.StatusOK, post(t, h, body, "192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusOK, post(t, h, body, "192.0.2.1:1001").Code)

	w := post(t, h, body, "192.0.2.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 2, v.calls, "limited request never reaches the pipeline")

	assert.Equal(t, http.StatusOK, post(t, h, body, "192.0.2.2:1000").Code, "other clients are unaffected")
}

func TestIPLimiter_Refills(t *testing.T) {
	l := newIPLimiter(5, time.Minute)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for range 5 {
		require.Zero(t, l.reserve("a", now))
	}
	wait := l.reserve("a", now)
	assert.InDelta(t, float64(12*time.Second), float64(wait), float64(time.Millisecond))

	assert.Zero(t, l.reserve("a", now.Add(wait+time.Millisecond)))
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	s := New(&mockVerifier{out: okOutcome()}, noLimit(), rec, reg, nil)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	post(t, h, `{"claim": "Does creatine improve strength?"}`, "")
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.HTTPRequests.WithLabelValues("/api/verify", "200")))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "verity_http_requests_total")
}
