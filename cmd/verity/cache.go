// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/verity/internal/cache"
	"github.com/pdiddy/verity/internal/claim"
	"github.com/pdiddy/verity/pkg/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the result cache (lookup, list, purge, export)",
	Long: `Cache operates on the result store configured under cache: in the config
file. Entries are keyed by normalized claim and expire after cache.ttl.`,
}

// --- lookup subcommand ---

var cacheLookupCmd = &cobra.Command{
	Use:   "lookup [claim]",
	Short: "Show the cached result for a claim, if any",
	Long: `Lookup normalizes the claim the same way verify does and prints the
stored result. Expired entries are reported as missing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCacheLookup,
}

func runCacheLookup(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	key := claim.Normalize(strings.Join(args, " "))
	if key == "" {
		return fmt.Errorf("claim contains no searchable words")
	}

	result, hit, err := store.Lookup(context.Background(), key)
	if err != nil {
		return err
	}
	if !hit {
		fmt.Printf("No cached result for %q\n", key)
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(os.Stdout, result, true)
	return nil
}

// --- list subcommand ---

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached results, newest first",
	RunE:  runCacheList,
}

func runCacheList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(context.Background())
	if err != nil {
		return err
	}
	printEntries(os.Stdout, entries)
	return nil
}

func printEntries(w io.Writer, entries []types.CacheEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Cache is empty.")
		return
	}

	fmt.Fprintf(w, "%-50s  %-22s  %-10s  %-10s  %s\n",
		"Claim", "Verdict", "Created", "Accessed", "Ver")
	fmt.Fprintln(w, strings.Repeat("-", 104))

	for _, e := range entries {
		label := types.LabelInconclusive
		if e.Result != nil {
			label = e.Result.Verdict.Label
		}
		fmt.Fprintf(w, "%-50s  %-22s  %-10s  %-10s  %d\n",
			truncate(e.Key, 50), label, e.CreatedAt.Format("2006-01-02"),
			e.LastAccessed.Format("2006-01-02"), e.Version)
	}

	fmt.Fprintf(w, "\n%d entries\n", len(entries))
}

// --- purge subcommand ---

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired entries",
	RunE:  runCachePurge,
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Purge(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d expired entries\n", n)
	return nil
}

// --- export subcommand ---

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every cached entry to YAML or JSON",
	Long: `Export writes all cache entries, including their full results, to stdout
or to the file named by --output.`,
	RunE: runCacheExport,
}

func runCacheExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if err := cache.Export(context.Background(), store, w, cache.Format(format)); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
	}
	return nil
}

// --- shared helpers ---

func openStore() (cache.Store, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}
	return cache.Open(cfg.Cache, logger.With("component", "cache"))
}

func init() {
	cacheLookupCmd.Flags().Bool("json", false, "output the result as JSON")

	cacheExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	cacheExportCmd.Flags().String("output", "", "write to this file instead of stdout")

	cacheCmd.AddCommand(cacheLookupCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheExportCmd)

	rootCmd.AddCommand(cacheCmd)
}
