package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	mask "github.com/maskagent/mask"
)

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test-model" || req.Stream {
			t.Errorf("request = %+v", req)
		}
		fmt.Fprint(w, `{"message": {"role": "assistant", "content": "hello"}, "done": true}`)
	}))
	defer srv.Close()

	p := New(srv.URL, "test-model")
	got, err := p.Chat(context.Background(), []mask.ChatMessage{mask.UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello" {
		t.Errorf("Chat = %q, want hello", got)
	}
}

func TestChatOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Format != "json" {
			t.Errorf("format = %q, want json", req.Format)
		}
		if temp, ok := req.Options["temperature"].(float64); !ok || temp != 0.3 {
			t.Errorf("options = %v, want temperature 0.3", req.Options)
		}
		fmt.Fprint(w, `{"message": {"content": "{}"}, "done": true}`)
	}))
	defer srv.Close()

	p := New(srv.URL, "m")
	_, err := p.Chat(context.Background(), nil, &mask.ChatOptions{JSONMode: true, Temperature: mask.Temp(0.3).Temperature})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("stream = false, want true")
		}
		fmt.Fprint(w, `{"message": {"content": "Hel"}, "done": false}
not json, skipped
{"message": {"content": "lo"}, "done": false}
{"message": {"content": ""}, "done": true}
`)
	}))
	defer srv.Close()

	p := New(srv.URL, "m")
	ch := make(chan string, 8)
	got, err := p.ChatStream(context.Background(), nil, nil, ch)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if got != "Hello" {
		t.Errorf("accumulated = %q, want Hello", got)
	}

	var deltas []string
	for d := range ch {
		deltas = append(deltas, d)
	}
	if len(deltas) != 2 || deltas[0] != "Hel" || deltas[1] != "lo" {
		t.Errorf("deltas = %v, want [Hel lo]", deltas)
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt != "summarize" || req.System != "sys" {
			t.Errorf("request = %+v", req)
		}
		fmt.Fprint(w, `{"response": "a summary"}`)
	}))
	defer srv.Close()

	got, err := New(srv.URL, "m").Generate(context.Background(), "summarize", "sys", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "a summary" {
		t.Errorf("Generate = %q", got)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "embed-model" {
			t.Errorf("model = %q", req.Model)
		}
		fmt.Fprint(w, `{"embedding": [0.1, 0.2]}`)
	}))
	defer srv.Close()

	e := NewEmbedder(New(srv.URL, "m"), "embed-model")
	vec, err := e.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.1 {
		t.Errorf("vec = %v", vec)
	}
}

func TestChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "missing").Chat(context.Background(), nil, nil)
	var httpErr *mask.ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want ErrHTTP 404", err)
	}
}
