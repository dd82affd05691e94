// Package ollama implements mask.Provider and mask.EmbeddingProvider against
// a local Ollama server's native REST API (/api/chat, /api/generate,
// /api/embeddings). Streaming uses Ollama's NDJSON chat stream.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mask "github.com/maskagent/mask"
)

const defaultTimeout = 60 * time.Second

// Provider talks to one Ollama server with a fixed chat model.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client (mainly for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New creates an Ollama provider. baseURL is the server root
// (e.g. "http://localhost:11434"); model is the chat model name.
func New(baseURL, model string, opts ...Option) *Provider {
	p := &Provider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns "ollama".
func (p *Provider) Name() string { return "ollama" }

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []mask.ChatMessage `json:"messages"`
	Stream   bool               `json:"stream"`
	Format   string             `json:"format,omitempty"`
	Options  map[string]any     `json:"options,omitempty"`
}

type chatResponse struct {
	Message mask.ChatMessage `json:"message"`
	Done    bool             `json:"done"`
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Chat sends a buffered chat request and returns the assistant reply.
func (p *Provider) Chat(ctx context.Context, messages []mask.ChatMessage, opts *mask.ChatOptions) (string, error) {
	body := chatRequest{Model: p.model, Messages: messages, Stream: false}
	applyOptions(&body.Format, &body.Options, opts)

	resp, err := p.post(ctx, "/api/chat", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", p.httpErr(resp)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &mask.ErrLLM{Provider: "ollama", Message: fmt.Sprintf("decode response: %v", err)}
	}
	return out.Message.Content, nil
}

// ChatStream streams NDJSON reply deltas into ch, closing it when done, and
// returns the accumulated reply.
func (p *Provider) ChatStream(ctx context.Context, messages []mask.ChatMessage, opts *mask.ChatOptions, ch chan<- string) (string, error) {
	defer close(ch)

	body := chatRequest{Model: p.model, Messages: messages, Stream: true}
	applyOptions(&body.Format, &body.Options, opts)

	resp, err := p.post(ctx, "/api/chat", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", p.httpErr(resp)
	}

	var acc bytes.Buffer
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Malformed lines are skipped, matching the server's contract of
			// one JSON object per line.
			continue
		}
		if chunk.Message.Content != "" {
			acc.WriteString(chunk.Message.Content)
			select {
			case ch <- chunk.Message.Content:
			case <-ctx.Done():
				return acc.String(), ctx.Err()
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return acc.String(), &mask.ErrLLM{Provider: "ollama", Message: fmt.Sprintf("stream read: %v", err)}
	}
	return acc.String(), nil
}

// Generate runs a single-prompt completion with an optional system prompt.
func (p *Provider) Generate(ctx context.Context, prompt, system string, opts *mask.ChatOptions) (string, error) {
	body := generateRequest{Model: p.model, Prompt: prompt, System: system, Stream: false}
	applyOptions(&body.Format, &body.Options, opts)

	resp, err := p.post(ctx, "/api/generate", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", p.httpErr(resp)
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &mask.ErrLLM{Provider: "ollama", Message: fmt.Sprintf("decode response: %v", err)}
	}
	return out.Response, nil
}

// Embedder wraps a Provider with an embedding model name.
type Embedder struct {
	provider *Provider
	model    string
}

// NewEmbedder creates an embedding client sharing the provider's server.
func NewEmbedder(p *Provider, model string) *Embedder {
	return &Embedder{provider: p, model: model}
}

// Name returns "ollama".
func (e *Embedder) Name() string { return "ollama" }

// Embed returns the embedding vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.provider.post(ctx, "/api/embeddings", embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.provider.httpErr(resp)
	}
	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &mask.ErrLLM{Provider: "ollama", Message: fmt.Sprintf("decode embedding: %v", err)}
	}
	return out.Embedding, nil
}

// applyOptions maps mask.ChatOptions onto Ollama's request fields.
func applyOptions(format *string, options *map[string]any, opts *mask.ChatOptions) {
	if opts == nil {
		return
	}
	if opts.JSONMode {
		*format = "json"
	}
	if opts.Temperature != nil {
		if *options == nil {
			*options = map[string]any{}
		}
		(*options)["temperature"] = *opts.Temperature
	}
}

func (p *Provider) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &mask.ErrLLM{Provider: "ollama", Message: fmt.Sprintf("marshal request: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &mask.ErrLLM{Provider: "ollama", Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	return p.client.Do(req)
}

func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &mask.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
}

var (
	_ mask.Provider          = (*Provider)(nil)
	_ mask.EmbeddingProvider = (*Embedder)(nil)
)
