// Package qdrant implements mask.VectorIndex over Qdrant's REST API.
// Collections use cosine distance.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mask "github.com/maskagent/mask"
)

// Index is a Qdrant REST client.
type Index struct {
	baseURL string
	client  *http.Client
}

// Option configures an Index.
type Option func(*Index)

// WithHTTPClient overrides the HTTP client (mainly for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(ix *Index) { ix.client = c }
}

// New creates an Index for the server at baseURL
// (e.g. "http://localhost:6333").
func New(baseURL string, opts ...Option) *Index {
	ix := &Index{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// EnsureCollection creates the named collection with cosine distance if it
// does not already exist.
func (ix *Index) EnsureCollection(ctx context.Context, name string, dim int) error {
	resp, err := ix.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode != http.StatusNotFound {
		return &mask.ErrHTTP{Status: resp.StatusCode, Body: "get collection " + name}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	resp, err = ix.do(ctx, http.MethodPut, "/collections/"+name, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return ix.checkStatus(resp)
}

// Upsert writes one point with its payload.
func (ix *Index) Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]string) error {
	body := map[string]any{
		"points": []map[string]any{{
			"id":      id,
			"vector":  vector,
			"payload": payload,
		}},
	}
	resp, err := ix.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return ix.checkStatus(resp)
}

// Search returns up to limit points scoring at or above threshold, best first.
func (ix *Index) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float32) ([]mask.ScoredPoint, error) {
	body := map[string]any{
		"vector":          vector,
		"limit":           limit,
		"score_threshold": threshold,
		"with_payload":    true,
	}
	resp, err := ix.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := ix.checkStatus(resp); err != nil {
		return nil, err
	}

	var out struct {
		Result []struct {
			Score   float32                    `json:"score"`
			Payload map[string]json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("qdrant decode: %w", err)
	}

	points := make([]mask.ScoredPoint, 0, len(out.Result))
	for _, r := range out.Result {
		payload := make(map[string]string, len(r.Payload))
		for k, raw := range r.Payload {
			// Payloads are written as strings; non-string values keep their
			// raw JSON text.
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				s = string(raw)
			}
			payload[k] = s
		}
		points = append(points, mask.ScoredPoint{Payload: payload, Score: r.Score})
	}
	return points, nil
}

func (ix *Index) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("qdrant marshal: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, ix.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ix.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant request: %w", err)
	}
	return resp, nil
}

func (ix *Index) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &mask.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
}

var _ mask.VectorIndex = (*Index)(nil)
