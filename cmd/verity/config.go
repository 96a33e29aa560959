// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/verity/internal/secrets"
	"github.com/pdiddy/verity/pkg/types"
)

const envPrefix = "VERITY"

// loadConfig builds the configuration from defaults, the config file,
// VERITY_* environment variables and bound flags, then fills credentials
// from secrets and validates the result.
func loadConfig(v *viper.Viper, s map[string]string) (types.Config, error) {
	if err := registerDefaults(v, types.DefaultConfig()); err != nil {
		return types.Config{}, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Optional credentials have no default, so AutomaticEnv alone would
	// not surface them to Unmarshal.
	for _, key := range []string{"llm.api_key", "llm.base_url", "pubmed.api_key"} {
		_ = v.BindEnv(key)
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	secrets.Apply(&cfg, s)

	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// registerDefaults sets a viper default for every leaf of def so that
// environment variables can override keys absent from the config file.
func registerDefaults(v *viper.Viper, def types.Config) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decoding defaults: %w", err)
	}
	setLeaves(v, "", tree)
	return nil
}

func setLeaves(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setLeaves(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// newLogger returns a slog logger writing to w in the configured format.
func newLogger(cfg types.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
