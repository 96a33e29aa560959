// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed searches PubMed through the NCBI E-utilities API. A search
// is an esearch call returning identifiers in relevance order followed by an
// efetch call returning the article records, which are parsed into
// types.Study values.
package pubmed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/verity/internal/httputil"
	"github.com/pdiddy/verity/pkg/types"
)

// eutilsBase is the E-utilities base URL. Package-level var for test substitution.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// keyedRate is the request rate NCBI allows callers that send an API key.
const keyedRate = 10

// Client queries PubMed. It is safe for concurrent use; all calls share one
// rate limiter so concurrent queries stay within the NCBI allowance.
type Client struct {
	HTTP       *http.Client
	Email      string
	APIKey     string
	Tool       string
	UserAgent  string
	MaxRetries int
	Limiter    *rate.Limiter
	Logger     *slog.Logger
}

// New builds a Client from cfg. Without an API key the limiter allows
// cfg.RequestsPerSecond; with one it allows at least 10 per second.
func New(cfg types.PubMedConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	if cfg.APIKey != "" && rps < keyedRate {
		rps = keyedRate
	}
	if cfg.Email == "" {
		logger.Warn("no PubMed contact email configured; NCBI may throttle anonymous clients")
	}
	return &Client{
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		Email:      cfg.Email,
		APIKey:     cfg.APIKey,
		Tool:       cfg.Tool,
		UserAgent:  cfg.UserAgent,
		MaxRetries: 2,
		Limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		Logger:     logger,
	}
}

// esearchResponse is the JSON body returned by esearch.fcgi.
type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
	Error string `json:"error"`
}

// Search returns up to limit studies for query in PubMed relevance order.
// Records that fail to parse are skipped.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]types.Study, error) {
	ids, err := c.esearch(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.efetch(ctx, ids)
}

func (c *Client) esearch(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", fmt.Sprint(limit))
	params.Set("retmode", "json")
	params.Set("sort", "relevance")

	resp, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("esearch %q: %w", query, err)
	}
	defer resp.Body.Close()

	var er esearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, httputil.WrapTimeout(fmt.Errorf("decoding esearch response: %w", err))
	}
	if msg := firstNonEmpty(er.Error, er.Result.Error); msg != "" {
		return nil, fmt.Errorf("esearch %q: %s", query, msg)
	}

	ids := er.Result.IDList
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (c *Client) efetch(ctx context.Context, ids []string) ([]types.Study, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("rettype", "abstract")
	params.Set("retmode", "xml")

	resp, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}
	defer resp.Body.Close()

	studies, skipped, err := ParseArticles(resp.Body)
	if err != nil {
		return nil, httputil.WrapTimeout(fmt.Errorf("parsing efetch response: %w", err))
	}
	if skipped > 0 {
		c.Logger.Warn("skipped unparseable PubMed records", "skipped", skipped)
	}

	return orderByIDs(studies, ids), nil
}

// get waits for the rate limiter, then issues a GET with retry on
// throttling and gateway errors. The caller closes the body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			// Wait also fails early when the next token lies past the deadline.
			return nil, fmt.Errorf("%w: waiting for rate limiter: %v", types.ErrTimeout, err)
		}
	}

	if c.Tool != "" {
		params.Set("tool", c.Tool)
	}
	if c.Email != "" {
		params.Set("email", c.Email)
	}
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, eutilsBase+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return nil, httputil.WrapTimeout(err)
	}
	if err := httputil.CheckResponse("PubMed", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// orderByIDs returns studies in the order of ids, dropping any record whose
// identifier was not requested.
func orderByIDs(studies []types.Study, ids []string) []types.Study {
	byID := make(map[string]types.Study, len(studies))
	for _, s := range studies {
		if _, dup := byID[s.ID]; !dup {
			byID[s.ID] = s
		}
	}
	out := make([]types.Study, 0, len(studies))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
