package mask

import "encoding/json"

// --- Conversation types ---

// ChatMessage is a single entry in a conversation, oldest first.
// Role is one of "system", "user", or "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage builds a system-role chat message.
func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

// UserMessage builds a user-role chat message.
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

// AssistantMessage builds an assistant-role chat message.
func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

// --- Web types ---

// SearchResult is one hit returned by a WebSearcher.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ScrapedPage is the outcome of fetching and extracting one URL.
// A non-empty Err means the page yielded no usable content.
type ScrapedPage struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Links   []string `json:"links,omitempty"` // same-domain outbound links, normalized
	Err     string   `json:"error,omitempty"`
}

// Source is a citation entry aligned with a contributor to the web context.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// --- Tool types ---

// ToolDefinition describes a tool for the catalogue handed to the model.
// InputSchema is a JSON Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolResult is the outcome of a tool execution. A non-empty Error means the
// call failed in a way the model should be told about.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// --- Session store records ---

// Project groups related chat sessions and carries a rolling context summary.
type Project struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ContextSummary string `json:"context_summary,omitempty"`
	Color          string `json:"color"`
	Icon           string `json:"icon"`
	CreatedAt      int64  `json:"created_at"`
}

// Session is one chat thread.
type Session struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// StoredMessage is a persisted conversation message.
type StoredMessage struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// --- Vector and graph records ---

// ScoredPoint is a vector search hit. Payload keys are store-defined;
// the memory layer uses "content", "role", "session_id", and "project_id".
type ScoredPoint struct {
	Payload map[string]string `json:"payload"`
	Score   float32           `json:"score"`
}

// GraphRecord is one row returned by a GraphDB query, keyed by the
// projection names of the query.
type GraphRecord map[string]any
