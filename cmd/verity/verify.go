// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/verity/internal/cache"
	"github.com/pdiddy/verity/internal/pipeline"
	"github.com/pdiddy/verity/pkg/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [claim]",
	Short: "Verify a health claim against PubMed",
	Long: `Verify validates the claim, checks the result cache, and on a miss runs
retrieval, quality scoring and synthesis. The verdict is printed with its
supporting sections and the top studies.

Use --refresh to bypass the cache and --json for machine-readable output.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	store, err := cache.Open(cfg.Cache, logger.With("component", "cache"))
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := pipeline.New(cfg, store, nil, logger)
	if err != nil {
		return err
	}

	out, err := p.Run(context.Background(), strings.Join(args, " "), pipeline.Options{Refresh: refresh})
	if err != nil {
		var ve *types.ValidationError
		if errors.As(err, &ve) {
			printRejection(os.Stdout, ve)
		}
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(verifyOutput{PipelineResult: out.Result, CacheHit: out.CacheHit})
	}
	printResult(os.Stdout, out.Result, out.CacheHit)
	return nil
}

type verifyOutput struct {
	*types.PipelineResult
	CacheHit bool `json:"cache_hit"`
}

// setup loads the configuration and installs the default logger. Logs go
// to stderr so stdout carries only command output.
func setup() (types.Config, *slog.Logger, error) {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return types.Config{}, nil, err
	}
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func printRejection(w io.Writer, ve *types.ValidationError) {
	fmt.Fprintf(w, "%s %s\n", warn("Claim rejected:"), ve.Reason)
	if len(ve.Suggestions) == 0 {
		return
	}
	fmt.Fprintln(w, "\nTry one of:")
	for _, s := range ve.Suggestions {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

func init() {
	verifyCmd.Flags().Bool("refresh", false, "ignore any cached result and re-run the pipeline")
	verifyCmd.Flags().Bool("json", false, "output the result as JSON")

	rootCmd.AddCommand(verifyCmd)
}
