package mask

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// urlPattern matches well-formed absolute http(s) URLs embedded in a query.
// Trailing sentence punctuation is trimmed after matching.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// Router decides, per incoming query, one of three paths: direct answer,
// search-then-scrape, or scrape-only when the query embeds literal URLs.
type Router struct {
	llm    Provider
	logger *slog.Logger
}

// NewRouter creates a Router. A nil logger disables logging.
func NewRouter(llm Provider, logger *slog.Logger) *Router {
	if logger == nil {
		logger = nopLogger
	}
	return &Router{llm: llm, logger: logger}
}

const routerSystemPrompt = "You are a decision making assistant. Answer only YES or NO."

const routerPromptTemplate = `Analyze if this question requires current web information or if you can answer from general knowledge.

User question: "%s"

Instructions:
1. If the query contains UNKNOWN technical terms, acronyms (e.g., "p8s", "k9s", specific library names), or names you are not 100%% sure about -> Return YES
2. If the query asks for recent events, news, or current prices -> Return YES
3. If the query is about general programming concepts (e.g., "what is a loop") -> Return NO
4. If you are unsure -> Return YES (Better to search than hallucinate)

Return ONLY "YES" or "NO".

Examples:
- "What is Python?" → NO
- "Who won the latest Super Bowl?" → YES
- "What happened in tech news today?" → YES
- "Explain machine learning" → NO

Answer (YES/NO):`

// Route inspects the query and sets NeedsSearch/DirectScrape. A query with
// literal URLs always short-circuits the classifier: the user told us what to
// read. Classifier failures are non-fatal and default to no search.
func (r *Router) Route(ctx context.Context, s State) (State, error) {
	if urls := ExtractURLs(s.UserQuery); len(urls) > 0 {
		s.DirectScrape = true
		s.NeedsSearch = false
		s.URLsToScrape = urls
		r.logger.Info("router: direct scrape", "urls", len(urls))
		return s, nil
	}

	s.NeedsSearch = r.shouldSearch(ctx, s.UserQuery)
	s.DirectScrape = false
	r.logger.Info("router: decision", "needs_search", s.NeedsSearch)
	return s, nil
}

// shouldSearch asks the model for a binary decision. Any reply containing
// "YES" (case-insensitive) means search; anything else, including errors and
// malformed replies, means answer directly — failing open toward no search
// avoids paying search latency on classifier errors.
func (r *Router) shouldSearch(ctx context.Context, query string) bool {
	reply, err := r.llm.Chat(ctx, []ChatMessage{
		SystemMessage(routerSystemPrompt),
		UserMessage(fmt.Sprintf(routerPromptTemplate, query)),
	}, nil)
	if err != nil {
		r.logger.Warn("router: classifier failed, defaulting to no search", "error", err)
		return false
	}
	return strings.Contains(strings.ToUpper(reply), "YES")
}

// ExtractURLs returns the absolute http(s) URLs in text, in order of first
// appearance, with trailing punctuation trimmed.
func ExtractURLs(text string) []string {
	var urls []string
	for _, m := range urlPattern.FindAllString(text, -1) {
		urls = append(urls, strings.TrimRight(m, ".,;:!?"))
	}
	return urls
}
