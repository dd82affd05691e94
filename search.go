package mask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

const (
	// maxExpandedQueries bounds LLM query expansion.
	maxExpandedQueries = 3
	// resultsPerQuery bounds hits requested per expanded query.
	resultsPerQuery = 3
	// maxScrapeURLs bounds how many hits proceed to the scrape stage.
	maxScrapeURLs = 3
)

// SearchStage turns a user query into 1–3 keyword queries, executes them, and
// yields a deduplicated, ranked URL list for scraping.
type SearchStage struct {
	llm      Provider
	searcher WebSearcher
	logger   *slog.Logger
	now      func() time.Time // injectable for tests
}

// NewSearchStage creates a SearchStage. A nil logger disables logging.
func NewSearchStage(llm Provider, searcher WebSearcher, logger *slog.Logger) *SearchStage {
	if logger == nil {
		logger = nopLogger
	}
	return &SearchStage{llm: llm, searcher: searcher, logger: logger, now: time.Now}
}

const expandSystemPrompt = "You are a search query optimization expert."

const expandPromptTemplate = `Generate 1-3 simple, keyword-based search queries to find info for this question.

Question: "%s"
Current Date: %s

Instructions:
1. Return ONLY a numbered list of queries
2. Do NOT use placeholders like [date] - insert the actual date %s
3. Do NOT use markdown bolding (**) or quotes
4. Keep queries simple and effective for a search engine

Example:
1. tech news headlines %s
2. major technology updates today

Search queries:`

// Search runs the stage: expansion, execution, dedup, truncation.
// SearchPerformed is set unconditionally on entry so synthesis can tell
// "searched, found nothing" apart from "didn't search".
func (st *SearchStage) Search(ctx context.Context, s State) (State, error) {
	s.SearchPerformed = true

	queries := st.ExpandQueries(ctx, s.UserQuery)
	s.SearchQueries = queries
	st.logger.Info("search: expanded queries", "count", len(queries))

	s.SearchResults = st.searchAll(ctx, queries)

	n := min(len(s.SearchResults), maxScrapeURLs)
	urls := make([]string, 0, n)
	for _, r := range s.SearchResults[:n] {
		urls = append(urls, r.URL)
	}
	s.URLsToScrape = urls

	st.logger.Info("search: done", "results", len(s.SearchResults), "to_scrape", len(urls))
	return s, nil
}

// ExpandQueries asks the model for 1–3 keyword queries, parsing numbered or
// bulleted lines. Parse or call failures fall back to the original query.
func (st *SearchStage) ExpandQueries(ctx context.Context, userQuery string) []string {
	date := st.now().Format("2006-01-02")
	reply, err := st.llm.Chat(ctx, []ChatMessage{
		SystemMessage(expandSystemPrompt),
		UserMessage(fmt.Sprintf(expandPromptTemplate, userQuery, date, date, date)),
	}, nil)
	if err != nil {
		st.logger.Warn("search: query expansion failed, using original query", "error", err)
		return []string{userQuery}
	}

	queries := ParseQueryList(reply)
	if len(queries) == 0 {
		return []string{userQuery}
	}
	if len(queries) > maxExpandedQueries {
		queries = queries[:maxExpandedQueries]
	}
	return queries
}

// ParseQueryList extracts queries from numbered ("1.") or bulleted ("-")
// lines, stripping ordinal markers and decorative punctuation. Lines that are
// neither are ignored.
func ParseQueryList(reply string) []string {
	var queries []string
	for _, line := range strings.Split(reply, "\n") {
		clean := strings.TrimSpace(strings.NewReplacer("*", "", `"`, "").Replace(line))
		if clean == "" {
			continue
		}
		switch {
		case unicode.IsDigit(rune(clean[0])):
			// "1. query" or "2) query"
			if i := strings.IndexAny(clean, ".)"); i >= 0 {
				clean = clean[i+1:]
			} else {
				continue
			}
		case strings.HasPrefix(clean, "-"):
			clean = clean[1:]
		default:
			continue
		}
		if q := strings.TrimSpace(clean); q != "" {
			queries = append(queries, q)
		}
	}
	return queries
}

// searchAll executes each query in sequence, accumulating results in
// first-seen order with strict URL dedup. A failed query logs and contributes
// zero results; it never aborts the batch.
func (st *SearchStage) searchAll(ctx context.Context, queries []string) []SearchResult {
	var all []SearchResult
	seen := make(map[string]bool)
	for _, q := range queries {
		results, err := st.searcher.TextSearch(ctx, q, resultsPerQuery)
		if err != nil {
			st.logger.Warn("search: query failed", "query", q, "error", err)
			continue
		}
		for _, r := range results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			all = append(all, r)
		}
	}
	return all
}
