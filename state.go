package mask

import "slices"

// State is the record threaded through every node of one turn's workflow.
// Nodes receive a value copy and return a new value; a node never observes a
// later node's writes. A State lives for exactly one turn and is discarded
// once the final response has been persisted.
type State struct {
	// Required at creation. ProjectID is optional and scopes memory recall.
	SessionID string        `json:"session_id"`
	ProjectID string        `json:"project_id,omitempty"`
	UserQuery string        `json:"user_query"`
	Messages  []ChatMessage `json:"messages"` // full history, oldest first

	// Set by the router. At most one of NeedsSearch/DirectScrape is true;
	// DirectScrape wins when the query embeds literal URLs.
	NeedsSearch  bool `json:"needs_search"`
	DirectScrape bool `json:"direct_scrape"`

	// Set by the search stage. SearchPerformed is true once the stage has
	// run, regardless of result count — synthesis uses it to distinguish
	// "didn't search" from "searched, found nothing".
	SearchPerformed bool           `json:"search_performed"`
	SearchQueries   []string       `json:"search_queries,omitempty"`
	SearchResults   []SearchResult `json:"search_results,omitempty"`
	URLsToScrape    []string       `json:"urls_to_scrape,omitempty"`

	// Set by the scrape stage. WebContext == "" means no usable web content.
	ScrapedContent []ScrapedPage `json:"scraped_content,omitempty"`
	WebContext     string        `json:"web_context,omitempty"`
	Sources        []Source      `json:"sources,omitempty"`

	// Set by the retrieve node.
	MemoryContext string `json:"memory_context,omitempty"`

	// Set by the coordinator. FinalMessages always starts with exactly one
	// system message; its presence signals streaming may begin.
	FinalMessages []ChatMessage `json:"final_messages,omitempty"`
	FinalResponse string        `json:"final_response,omitempty"`
}

// NewState creates the initial state for one turn.
func NewState(sessionID, userQuery string, messages []ChatMessage) State {
	return State{
		SessionID: sessionID,
		UserQuery: userQuery,
		Messages:  messages,
	}
}

// clone returns a deep-enough copy: slices are copied so a node mutating its
// own copy can never alias a snapshot already yielded to a streaming caller.
func (s State) clone() State {
	s.Messages = slices.Clone(s.Messages)
	s.SearchQueries = slices.Clone(s.SearchQueries)
	s.SearchResults = slices.Clone(s.SearchResults)
	s.URLsToScrape = slices.Clone(s.URLsToScrape)
	s.ScrapedContent = slices.Clone(s.ScrapedContent)
	s.Sources = slices.Clone(s.Sources)
	s.FinalMessages = slices.Clone(s.FinalMessages)
	return s
}
