package mask

import "context"

// ChatOptions tunes a single model invocation. A nil *ChatOptions means
// provider defaults.
type ChatOptions struct {
	// Temperature overrides the provider's sampling temperature when non-nil.
	Temperature *float64
	// JSONMode asks the provider for a JSON-formatted reply when supported.
	JSONMode bool
}

// Temp is a convenience constructor for ChatOptions with a temperature.
func Temp(t float64) *ChatOptions {
	return &ChatOptions{Temperature: &t}
}

// Provider abstracts the LLM backend.
type Provider interface {
	// Chat sends a conversation and returns the assistant's complete reply.
	Chat(ctx context.Context, messages []ChatMessage, opts *ChatOptions) (string, error)
	// ChatStream streams reply deltas into ch, closing it when done, and
	// returns the accumulated reply.
	ChatStream(ctx context.Context, messages []ChatMessage, opts *ChatOptions, ch chan<- string) (string, error)
	// Generate runs a single-prompt completion with an optional system prompt.
	Generate(ctx context.Context, prompt, system string, opts *ChatOptions) (string, error)
	// Name returns the provider name (e.g. "ollama").
	Name() string
}

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns the embedding vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name returns the provider name.
	Name() string
}

// WebSearcher abstracts a web search engine.
type WebSearcher interface {
	// TextSearch runs one query and returns up to maxResults hits.
	TextSearch(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// VectorIndex abstracts a content-addressed vector store.
type VectorIndex interface {
	// EnsureCollection creates the named collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, dim int) error
	// Upsert writes one point with its payload.
	Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]string) error
	// Search returns up to limit points scoring at or above threshold,
	// best first.
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float32) ([]ScoredPoint, error)
}

// GraphDB abstracts a knowledge graph with a parameterized query language.
// Each call is one transaction.
type GraphDB interface {
	Read(ctx context.Context, query string, params map[string]any) ([]GraphRecord, error)
	Write(ctx context.Context, query string, params map[string]any) ([]GraphRecord, error)
}

// SessionStore is the external relational store for projects, sessions, and
// messages. The core only needs CRUD; implementations must tolerate
// concurrent turns.
type SessionStore interface {
	CreateProject(ctx context.Context, name, description string) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	UpdateProjectContext(ctx context.Context, id, contextSummary string) error
	DeleteProject(ctx context.Context, id string) error

	CreateSession(ctx context.Context, title, projectID string) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	RenameSession(ctx context.Context, id, title string) error
	AssignSessionToProject(ctx context.Context, id, projectID string) error
	DeleteSession(ctx context.Context, id string) error

	AddMessage(ctx context.Context, sessionID, role, content string) (StoredMessage, error)
	GetMessages(ctx context.Context, sessionID string) ([]StoredMessage, error)
	// ReplaceMessages swaps a session's history for a new one (used after
	// summarization collapses a long history).
	ReplaceMessages(ctx context.Context, sessionID string, messages []ChatMessage) error
}
