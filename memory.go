package mask

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// memoryCollection is the vector collection holding embedded messages.
	memoryCollection = "chat_history"
	// minGraphTokenLen filters query tokens before graph lookup.
	minGraphTokenLen = 4
	// graphHitsPerToken bounds triples returned per query token.
	graphHitsPerToken = 5
)

// Memory combines vector-similarity recall over past messages with a
// knowledge-graph lookup. Either backend may be nil; each sub-lookup swallows
// its own errors and degrades to an empty string, so recall never fails a
// turn.
type Memory struct {
	llm       Provider
	embedder  EmbeddingProvider
	vectors   VectorIndex
	graph     GraphDB
	topK      int
	threshold float32
	logger    *slog.Logger
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithRecallLimit sets the vector recall result count (default 5).
func WithRecallLimit(k int) MemoryOption {
	return func(m *Memory) { m.topK = k }
}

// WithRecallThreshold sets the minimum similarity score (default 0.7).
func WithRecallThreshold(t float32) MemoryOption {
	return func(m *Memory) { m.threshold = t }
}

// WithMemoryLogger sets the structured logger.
func WithMemoryLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) { m.logger = l }
}

// NewMemory creates a Memory over the given backends.
func NewMemory(llm Provider, embedder EmbeddingProvider, vectors VectorIndex, graph GraphDB, opts ...MemoryOption) *Memory {
	m := &Memory{
		llm:       llm,
		embedder:  embedder,
		vectors:   vectors,
		graph:     graph,
		topK:      5,
		threshold: 0.7,
		logger:    nopLogger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Recall returns the memory context for a query: vector recall and graph
// recall blocks, concatenated when both are non-empty. projectID, when set,
// scopes vector recall to one project.
func (m *Memory) Recall(ctx context.Context, query, projectID string) string {
	var blocks []string
	if v := m.vectorRecall(ctx, query, projectID); v != "" {
		blocks = append(blocks, v)
	}
	if g := m.graphRecall(ctx, query); g != "" {
		blocks = append(blocks, g)
	}
	return strings.Join(blocks, "\n\n")
}

// vectorRecall embeds the query and searches past messages, formatting hits
// as "[role]: content" lines.
func (m *Memory) vectorRecall(ctx context.Context, query, projectID string) string {
	if m.embedder == nil || m.vectors == nil {
		return ""
	}
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		m.logger.Warn("memory: query embedding failed", "error", err)
		return ""
	}
	hits, err := m.vectors.Search(ctx, memoryCollection, vec, m.topK, m.threshold)
	if err != nil {
		m.logger.Warn("memory: vector search failed", "error", err)
		return ""
	}

	var lines []string
	for _, hit := range hits {
		if projectID != "" && hit.Payload["project_id"] != projectID {
			continue
		}
		role := hit.Payload["role"]
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", role, hit.Payload["content"]))
	}
	if len(lines) == 0 {
		return ""
	}
	return "RELEVANT PAST CONVERSATION:\n" + strings.Join(lines, "\n")
}

// graphRecall tokenizes the query and looks up 1-hop relationship triples for
// any node whose id contains a token, case-insensitively.
func (m *Memory) graphRecall(ctx context.Context, query string) string {
	if m.graph == nil {
		return ""
	}

	const cypher = `MATCH (n)-[r]-(m)
WHERE toLower(n.id) CONTAINS toLower($word)
RETURN n.id AS subject, type(r) AS relation, m.id AS object
LIMIT $limit`

	var facts []string
	seen := make(map[string]bool)
	for _, word := range strings.Fields(query) {
		word = strings.Trim(word, `.,!?"'`)
		if len(word) < minGraphTokenLen {
			continue
		}
		records, err := m.graph.Read(ctx, cypher, map[string]any{
			"word":  word,
			"limit": graphHitsPerToken,
		})
		if err != nil {
			m.logger.Warn("memory: graph lookup failed", "word", word, "error", err)
			continue
		}
		for _, rec := range records {
			fact := fmt.Sprintf("%v --[%v]--> %v", rec["subject"], rec["relation"], rec["object"])
			if !seen[fact] {
				seen[fact] = true
				facts = append(facts, fact)
			}
		}
	}
	if len(facts) == 0 {
		return ""
	}
	return "GRAPH KNOWLEDGE:\n" + strings.Join(facts, "\n")
}

// Remember embeds one message and upserts it into the vector index.
// Best-effort: duplicate or lost writes are tolerable, so failures only log.
func (m *Memory) Remember(ctx context.Context, sessionID, projectID, role, content string) {
	if m.embedder == nil || m.vectors == nil {
		return
	}
	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		m.logger.Warn("memory: message embedding failed", "error", err)
		return
	}
	if err := m.vectors.EnsureCollection(ctx, memoryCollection, len(vec)); err != nil {
		m.logger.Warn("memory: ensure collection failed", "error", err)
		return
	}
	payload := map[string]string{
		"content":    content,
		"role":       role,
		"session_id": sessionID,
		"project_id": projectID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.vectors.Upsert(ctx, memoryCollection, uuid.NewString(), vec, payload); err != nil {
		m.logger.Warn("memory: vector upsert failed", "error", err)
	}
}

// --- Graph extraction (write path) ---

const graphExtractSystemPrompt = "You are a Knowledge Graph extraction expert. Output JSON only."

const graphExtractPromptTemplate = `Analyze the following text and extract entities (Person, Technology, Company, Project, Concept) and relationships between them.
Return a JSON object with "nodes" and "edges".

Text: "%s"

Rules:
1. Nodes must have "id", "label" (Person, Technology, etc), and optional "properties".
2. Edges must have "source", "target", "type" (relationship name), and "properties".
3. Keep relationship types uppercase (e.g., USES, WORKS_ON, INTERESTED_IN).
4. Return ONLY valid JSON.

Example:
{"nodes": [{"id": "John", "label": "Person"}, {"id": "Python", "label": "Technology"}],
 "edges": [{"source": "John", "target": "Python", "type": "KNOWS"}]}`

type subgraph struct {
	Nodes []graphNode `json:"nodes"`
	Edges []graphEdge `json:"edges"`
}

type graphNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

type graphEdge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// ExtractGraph asks the model for an entity/relationship subgraph of text and
// merges it into the knowledge graph. Parse failures reject the update;
// storage failures log per statement. Writes are idempotent MERGEs.
func (m *Memory) ExtractGraph(ctx context.Context, text string) {
	if m.graph == nil {
		return
	}
	reply, err := m.llm.Chat(ctx, []ChatMessage{
		SystemMessage(graphExtractSystemPrompt),
		UserMessage(fmt.Sprintf(graphExtractPromptTemplate, text)),
	}, &ChatOptions{JSONMode: true})
	if err != nil {
		m.logger.Warn("memory: graph extraction failed", "error", err)
		return
	}

	cleaned := strings.TrimSpace(strings.NewReplacer("```json", "", "```", "").Replace(reply))
	var sg subgraph
	if err := json.Unmarshal([]byte(cleaned), &sg); err != nil {
		m.logger.Warn("memory: graph extraction returned unparseable JSON", "error", err)
		return
	}

	for _, node := range sg.Nodes {
		label := sanitizeGraphIdent(node.Label)
		if node.ID == "" || label == "" {
			continue
		}
		cypher := fmt.Sprintf("MERGE (n:%s {id: $id})\nSET n += $props", label)
		props := node.Properties
		if props == nil {
			props = map[string]any{}
		}
		if _, err := m.graph.Write(ctx, cypher, map[string]any{"id": node.ID, "props": props}); err != nil {
			m.logger.Warn("memory: node merge failed", "node", node.ID, "error", err)
		}
	}
	for _, edge := range sg.Edges {
		relType := sanitizeGraphIdent(strings.ToUpper(edge.Type))
		if edge.Source == "" || edge.Target == "" || relType == "" {
			continue
		}
		cypher := fmt.Sprintf("MATCH (a {id: $source}), (b {id: $target})\nMERGE (a)-[r:%s]->(b)\nSET r += $props", relType)
		props := edge.Properties
		if props == nil {
			props = map[string]any{}
		}
		if _, err := m.graph.Write(ctx, cypher, map[string]any{
			"source": edge.Source,
			"target": edge.Target,
			"props":  props,
		}); err != nil {
			m.logger.Warn("memory: edge merge failed", "type", relType, "error", err)
		}
	}
}

// sanitizeGraphIdent keeps only characters legal in an unquoted Cypher label
// or relationship type. Labels come from model output and are interpolated
// into the query text, so everything else is dropped.
func sanitizeGraphIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
