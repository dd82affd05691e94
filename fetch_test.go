package mask

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchExtractsTitleAndContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Go FAQ</title></head>
<body><article><p>Goroutines are lightweight.</p></article></body></html>`)
	}))
	defer srv.Close()

	page := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	if page.Err != "" {
		t.Fatalf("Err = %q, want empty", page.Err)
	}
	if page.Title != "Go FAQ" {
		t.Errorf("Title = %q, want Go FAQ", page.Title)
	}
	if !strings.Contains(page.Content, "Goroutines are lightweight.") {
		t.Errorf("Content = %q, missing article text", page.Content)
	}
}

func TestFetchTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("a", maxPageChars+500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Long</title></head><body><article><p>%s</p></article></body></html>`, long)
	}))
	defer srv.Close()

	page := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	if page.Err != "" {
		t.Fatalf("Err = %q, want empty", page.Err)
	}
	if !strings.HasSuffix(page.Content, truncationMark) {
		t.Errorf("Content does not end with truncation marker: ...%q", page.Content[len(page.Content)-30:])
	}
	if got, want := len(page.Content), maxPageChars+len(truncationMark); got != want {
		t.Errorf("len(Content) = %d, want %d", got, want)
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	page := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	if page.Err != "HTTP 404" {
		t.Errorf("Err = %q, want HTTP 404", page.Err)
	}
	if page.Title != "Error" {
		t.Errorf("Title = %q, want Error", page.Title)
	}
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	page := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	if page.Err != "no content received" {
		t.Errorf("Err = %q, want %q", page.Err, "no content received")
	}
}

func TestFetchInvalidURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com/file", "not a url at all", "javascript:alert(1)"} {
		page := NewHTTPFetcher().Fetch(context.Background(), raw)
		if page.Err == "" {
			t.Errorf("Fetch(%q): Err empty, want invalid URL error", raw)
		}
	}
}

func TestFetchTitleFallsBackToURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>bare page with enough text to extract something useful</p></body></html>`)
	}))
	defer srv.Close()

	page := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	if page.Err != "" {
		t.Fatalf("Err = %q, want empty", page.Err)
	}
	if page.Title != srv.URL {
		t.Errorf("Title = %q, want the URL %q", page.Title, srv.URL)
	}
}
