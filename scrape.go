package mask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// RelevanceSentinel is the phrase the model must return verbatim when a page
// contains nothing relevant. Matching is by case-insensitive containment of
// the leading "no relevant", so minor model paraphrases still register.
const RelevanceSentinel = "No relevant information found"

// ScrapeConfig tunes the scrape stage. The documentation keyword list and the
// crawl-on-first-URL rule are policy, not contract; adjust per deployment.
type ScrapeConfig struct {
	MaxURLs     int
	DocKeywords []string
	Crawl       CrawlConfig
	// RelevanceInputChars bounds how much page text is shown to the model
	// during relevance filtering.
	RelevanceInputChars int
}

// DefaultScrapeConfig returns the stock policy.
func DefaultScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		MaxURLs: maxScrapeURLs,
		DocKeywords: []string{
			"docs", "documentation", "wiki", "manual", "guide", "readthedocs.io",
		},
		Crawl:               DefaultCrawlConfig(),
		RelevanceInputChars: 3000,
	}
}

// ScrapeStage fetches and cleans page content for a bounded URL set,
// crawling documentation-like sites, then keeps only query-relevant excerpts.
type ScrapeStage struct {
	llm     Provider
	fetcher Fetcher
	cfg     ScrapeConfig
	logger  *slog.Logger
}

// NewScrapeStage creates a ScrapeStage. A nil logger disables logging.
func NewScrapeStage(llm Provider, fetcher Fetcher, cfg ScrapeConfig, logger *slog.Logger) *ScrapeStage {
	if logger == nil {
		logger = nopLogger
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = maxScrapeURLs
	}
	return &ScrapeStage{llm: llm, fetcher: fetcher, cfg: cfg, logger: logger}
}

// Scrape runs the stage. With no URLs to scrape it is a strict no-op: all
// outputs empty and no fetch is issued.
func (st *ScrapeStage) Scrape(ctx context.Context, s State) (State, error) {
	s.ScrapedContent = nil
	s.WebContext = ""
	s.Sources = nil

	urls := dedupeURLs(s.URLsToScrape, st.cfg.MaxURLs)
	if len(urls) == 0 {
		return s, nil
	}

	s.ScrapedContent = st.fetchAll(ctx, urls, s.DirectScrape)

	var parts []string
	var sources []Source
	for _, page := range s.ScrapedContent {
		if page.Err != "" {
			st.logger.Warn("scrape: page unusable", "url", page.URL, "error", page.Err)
			continue
		}
		relevant := st.extractRelevant(ctx, page, s.UserQuery)
		if relevant == "" || strings.Contains(strings.ToLower(relevant), "no relevant") {
			continue
		}
		parts = append(parts, fmt.Sprintf("From %s:\n%s", page.Title, relevant))
		sources = append(sources, Source{Title: page.Title, URL: page.URL})
	}

	s.WebContext = strings.Join(parts, "\n\n---\n\n")
	s.Sources = sources
	st.logger.Info("scrape: done", "pages", len(s.ScrapedContent), "relevant", len(sources))
	return s, nil
}

// fetchAll fetches every URL concurrently, flattening results back into URL
// order. A documentation-like URL triggers a bounded crawl instead of a
// single fetch when it is first in the batch, or whenever the turn entered
// via direct URL routing.
func (st *ScrapeStage) fetchAll(ctx context.Context, urls []string, directScrape bool) []ScrapedPage {
	batches := make([][]ScrapedPage, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, u
		docLike := st.isDocumentationURL(u)
		crawl := docLike && (i == 0 || directScrape)
		g.Go(func() error {
			if crawl {
				batches[i] = Crawl(gctx, st.fetcher, u, st.cfg.Crawl, st.logger)
				if len(batches[i]) == 0 {
					// Crawl drops error pages; keep one record so the
					// failure stays visible in the state.
					batches[i] = []ScrapedPage{st.fetcher.Fetch(gctx, u)}
				}
			} else {
				batches[i] = []ScrapedPage{st.fetcher.Fetch(gctx, u)}
			}
			return nil
		})
	}
	_ = g.Wait()

	var pages []ScrapedPage
	for _, b := range batches {
		pages = append(pages, b...)
	}
	return pages
}

// isDocumentationURL applies the keyword heuristic for doc-like URLs.
func (st *ScrapeStage) isDocumentationURL(u string) bool {
	lower := strings.ToLower(u)
	for _, kw := range st.cfg.DocKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

const relevanceSystemPrompt = "You are an expert at extracting relevant information from articles."

const relevancePromptTemplate = `Extract and summarize ONLY the information relevant to this question from the article.

Question: "%s"

Article Title: %s
Article Content:
%s

Instructions:
- Extract only facts relevant to the question
- Keep it concise (2-4 paragraphs max)
- Include key details and numbers
- CRITICAL: If the article content does NOT contain any information directly relevant to the question, you MUST return exactly: "%s"
- Do NOT try to summarize the article if it's off-topic.

Relevant summary:`

// extractRelevant asks the model for the query-relevant excerpt of one page.
// On model failure it falls back to the leading slice of the raw content
// rather than losing the page entirely.
func (st *ScrapeStage) extractRelevant(ctx context.Context, page ScrapedPage, query string) string {
	content := page.Content
	if len(content) > st.cfg.RelevanceInputChars {
		content = content[:st.cfg.RelevanceInputChars]
	}
	reply, err := st.llm.Chat(ctx, []ChatMessage{
		SystemMessage(relevanceSystemPrompt),
		UserMessage(fmt.Sprintf(relevancePromptTemplate, query, page.Title, content, RelevanceSentinel)),
	}, nil)
	if err != nil {
		st.logger.Warn("scrape: relevance extraction failed, using raw content", "url", page.URL, "error", err)
		if len(page.Content) > 1000 {
			return page.Content[:1000]
		}
		return page.Content
	}
	return strings.TrimSpace(reply)
}

// dedupeURLs keeps the first occurrence of each URL, capped at limit.
func dedupeURLs(urls []string, limit int) []string {
	seen := make(map[string]bool, len(urls))
	var out []string
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out
}
