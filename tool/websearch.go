package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/writermesh/core"
)

// WebSearchToolName is the tool name the Researcher instruction refers to.
const WebSearchToolName = "web_search"

// SearchResult is a single hit returned by a Searcher.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher is a web search backend.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, limit int) ([]SearchResult, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return f(ctx, query, limit)
}

const defaultSearchLimit = 5

type webSearchArgs struct {
	Query      string `json:"query" validate:"required" description:"The search query"`
	MaxResults *int   `json:"max_results,omitempty" validate:"omitempty,min=1,max=20" description:"Maximum number of results (default 5)"`
}

// NewWebSearchTool exposes searcher as the web_search tool.
func NewWebSearchTool(searcher Searcher) *FunctionTool {
	return NewTypedTool(
		WebSearchToolName,
		"Search the web and return the most relevant results (title, url, snippet) for a query.",
		func(tc *core.ToolContext, args webSearchArgs) (any, error) {
			query := strings.TrimSpace(args.Query)
			if query == "" {
				return nil, NewToolError(WebSearchToolName, "query must not be empty", "INVALID_QUERY")
			}

			limit := defaultSearchLimit
			if args.MaxResults != nil {
				limit = *args.MaxResults
			}

			results, err := searcher.Search(tc.Context(), query, limit)
			if err != nil {
				return nil, fmt.Errorf("search %q: %w", query, err)
			}

			tc.Logger().Debug("tool.web_search.results", "query", query, "count", len(results))

			return results, nil
		},
	)
}

// SearxOptions configures a SearxSearcher.
type SearxOptions struct {
	HTTPClient *http.Client
	Language   string
}

// SearxSearcher queries a SearxNG-compatible JSON search endpoint.
type SearxSearcher struct {
	baseURL string
	opts    SearxOptions
}

// NewSearxSearcher creates a searcher for the instance at baseURL.
func NewSearxSearcher(baseURL string, optFns ...func(o *SearxOptions)) *SearxSearcher {
	opts := SearxOptions{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &SearxSearcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
	}
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search implements Searcher.
func (s *SearxSearcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")

	if s.opts.Language != "" {
		params.Set("language", s.opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		if limit > 0 && len(results) == limit {
			break
		}

		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}

	return results, nil
}
