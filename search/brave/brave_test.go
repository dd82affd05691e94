package brave

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	mask "github.com/maskagent/mask"
)

func TestTextSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "key123" {
			t.Errorf("token header = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "go release" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("count"); got != "3" {
			t.Errorf("count = %q", got)
		}
		fmt.Fprint(w, `{"web": {"results": [
			{"title": "Go Blog", "url": "https://go.dev/blog", "description": "release notes"},
			{"title": "HN", "url": "https://news.test/go", "description": "discussion"}
		]}}`)
	}))
	defer srv.Close()

	s := New("key123", WithEndpoint(srv.URL))
	results, err := s.TextSearch(context.Background(), "go release", 3)
	if err != nil {
		t.Fatalf("TextSearch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	want := mask.SearchResult{Title: "Go Blog", URL: "https://go.dev/blog", Snippet: "release notes"}
	if results[0] != want {
		t.Errorf("results[0] = %+v, want %+v", results[0], want)
	}
}

func TestTextSearchCapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"web": {"results": [
			{"title": "a", "url": "https://a.test/"},
			{"title": "b", "url": "https://b.test/"},
			{"title": "c", "url": "https://c.test/"}
		]}}`)
	}))
	defer srv.Close()

	results, err := New("k", WithEndpoint(srv.URL)).TextSearch(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("TextSearch: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestTextSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New("k", WithEndpoint(srv.URL)).TextSearch(context.Background(), "q", 3)
	var httpErr *mask.ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want ErrHTTP 429", err)
	}
}
