// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig controls the slog handler built at startup.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=text json"`
}

// PubMedConfig holds settings for the PubMed E-utilities search provider.
type PubMedConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Email identifies the caller to NCBI. NCBI asks every client to send one.
	Email string `json:"email" yaml:"email" mapstructure:"email"`

	// APIKey raises the NCBI rate limit from 3 to 10 requests per second.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Tool is the tool name reported to NCBI.
	Tool string `json:"tool" yaml:"tool" mapstructure:"tool"`

	// PerQueryLimit caps the records fetched for each query (default 6).
	PerQueryLimit int `json:"per_query_limit" yaml:"per_query_limit" mapstructure:"per_query_limit" validate:"min=1,max=100"`

	// RequestsPerSecond is the client-side rate limit (default 3).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`

	// MaxAttempts bounds the attempts per query on transient failure (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts" validate:"min=1,max=10"`
}

// LLMProvider selects the language model backend.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
)

// LLMConfig holds shared settings for components that call a language model.
type LLMConfig struct {
	// Provider is "anthropic" or "openai".
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider" validate:"oneof=anthropic openai"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model" validate:"required"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Timeout bounds a single model call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// MaxRetries is the number of retries on HTTP 429 from the provider (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"min=0"`

	// MaxTokens caps the response length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=256"`
}

// ClaimConfig holds the claim validation bounds.
type ClaimConfig struct {
	// MinLength and MaxLength bound the claim length in characters (defaults 10 and 500).
	MinLength int `json:"min_length" yaml:"min_length" mapstructure:"min_length" validate:"min=1"`
	MaxLength int `json:"max_length" yaml:"max_length" mapstructure:"max_length" validate:"gtfield=MinLength"`

	// Judge enables the model-backed checkability judgment after the length checks.
	Judge bool `json:"judge" yaml:"judge" mapstructure:"judge"`
}

// PipelineConfig holds the stage sequencing parameters.
type PipelineConfig struct {
	// TopN is the number of studies kept after scoring (default 5).
	TopN int `json:"top_n" yaml:"top_n" mapstructure:"top_n" validate:"min=1"`

	// MinStudies is the minimum number of top studies needed to attempt a
	// verdict; below it the result is "insufficient evidence" (default 1).
	MinStudies int `json:"min_studies" yaml:"min_studies" mapstructure:"min_studies" validate:"min=0"`

	// MaxQueries caps the number of generated search queries (default 3).
	MaxQueries int `json:"max_queries" yaml:"max_queries" mapstructure:"max_queries" validate:"min=1,max=3"`

	// StageRetries is how many times a failed stage is re-run (default 1).
	StageRetries int `json:"stage_retries" yaml:"stage_retries" mapstructure:"stage_retries" validate:"min=0,max=5"`

	// StageTimeout bounds a single stage attempt.
	StageTimeout time.Duration `json:"stage_timeout" yaml:"stage_timeout" mapstructure:"stage_timeout" validate:"gt=0"`

	// QueryTimeout bounds a single search call.
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout" mapstructure:"query_timeout" validate:"gt=0"`
}

// CacheBackend selects the result cache implementation.
type CacheBackend string

const (
	CacheSQLite CacheBackend = "sqlite"
	CacheBadger CacheBackend = "badger"
	CacheNone   CacheBackend = "none"
)

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Backend CacheBackend `json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=sqlite badger none"`

	// Path is the SQLite file or Badger directory.
	Path string `json:"path" yaml:"path" mapstructure:"path" validate:"required_unless=Backend none"`

	// TTL is the validity window of an entry (default 30 days).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl" validate:"gt=0"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr" validate:"required"`

	// RateLimit is the number of verify requests allowed per client per RateWindow.
	RateLimit  int           `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit" validate:"min=1"`
	RateWindow time.Duration `json:"rate_window" yaml:"rate_window" mapstructure:"rate_window" validate:"gt=0"`
}

// Config is the complete configuration object built once at startup and
// passed to every component.
type Config struct {
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
	PubMed   PubMedConfig   `json:"pubmed" yaml:"pubmed" mapstructure:"pubmed"`
	LLM      LLMConfig      `json:"llm" yaml:"llm" mapstructure:"llm"`
	Claim    ClaimConfig    `json:"claim" yaml:"claim" mapstructure:"claim"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Cache    CacheConfig    `json:"cache" yaml:"cache" mapstructure:"cache"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		PubMed: PubMedConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   15 * time.Second,
				UserAgent: "verity/0.1",
			},
			Tool:              "verity",
			PerQueryLimit:     6,
			RequestsPerSecond: 3,
			MaxAttempts:       3,
		},
		LLM: LLMConfig{
			Provider:   ProviderAnthropic,
			Model:      "claude-sonnet-4-5-20250929",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
			MaxTokens:  2048,
		},
		Claim: ClaimConfig{
			MinLength: 10,
			MaxLength: 500,
			Judge:     true,
		},
		Pipeline: PipelineConfig{
			TopN:         5,
			MinStudies:   1,
			MaxQueries:   3,
			StageRetries: 1,
			StageTimeout: 90 * time.Second,
			QueryTimeout: 20 * time.Second,
		},
		Cache: CacheConfig{
			Backend: CacheSQLite,
			Path:    "data/verity.db",
			TTL:     30 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:       ":8080",
			RateLimit:  5,
			RateWindow: time.Minute,
		},
	}
}

var configValidate = validator.New()

// Validate checks field constraints and returns one error listing every
// offending field.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
}
