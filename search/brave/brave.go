// Package brave implements mask.WebSearcher over the Brave Search API.
package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	mask "github.com/maskagent/mask"
)

const endpoint = "https://api.search.brave.com/res/v1/web/search"

// Searcher queries the Brave web search API.
type Searcher struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithHTTPClient overrides the HTTP client (mainly for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Searcher) { s.client = c }
}

// WithEndpoint overrides the API endpoint (mainly for tests).
func WithEndpoint(u string) Option {
	return func(s *Searcher) { s.endpoint = u }
}

// New creates a Searcher with the given subscription token.
func New(apiKey string, opts ...Option) *Searcher {
	s := &Searcher{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TextSearch runs one query and returns up to maxResults hits in engine
// ranking order.
func (s *Searcher) TextSearch(ctx context.Context, query string, maxResults int) ([]mask.SearchResult, error) {
	u := fmt.Sprintf("%s?q=%s&count=%d", s.endpoint, url.QueryEscape(query), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &mask.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
	}

	var data struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("brave parse: %w", err)
	}

	results := make([]mask.SearchResult, 0, len(data.Web.Results))
	for _, r := range data.Web.Results {
		results = append(results, mask.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
		})
		if len(results) == maxResults {
			break
		}
	}
	return results, nil
}

var _ mask.WebSearcher = (*Searcher)(nil)
