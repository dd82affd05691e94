package mask

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestParseQueryList(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{
			"numbered",
			"1. go 1.24 release notes\n2. golang new features 2026",
			[]string{"go 1.24 release notes", "golang new features 2026"},
		},
		{
			"parenthesized numbers",
			"1) first query\n2) second query",
			[]string{"first query", "second query"},
		},
		{
			"bulleted",
			"- alpha\n- beta",
			[]string{"alpha", "beta"},
		},
		{
			"decoration stripped",
			`1. **"quoted query"**`,
			[]string{"quoted query"},
		},
		{
			"prose ignored",
			"Here are the queries:\n1. real query\nHope that helps!",
			[]string{"real query"},
		},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQueryList(tt.reply)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseQueryList(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestExpandQueriesFallback(t *testing.T) {
	st := NewSearchStage(&fakeProvider{err: errors.New("model down")}, &fakeSearcher{}, nil)
	got := st.ExpandQueries(context.Background(), "original question")
	want := []string{"original question"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandQueries = %v, want %v", got, want)
	}

	// Unparseable reply also falls back.
	st = NewSearchStage(&fakeProvider{replies: []string{"no list here"}}, &fakeSearcher{}, nil)
	got = st.ExpandQueries(context.Background(), "original question")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandQueries = %v, want %v", got, want)
	}
}

func TestSearchDedupFirstSeen(t *testing.T) {
	shared := SearchResult{Title: "Shared", URL: "https://shared.test/", Snippet: "s"}
	searcher := &fakeSearcher{results: map[string][]SearchResult{
		"q one": {
			{Title: "A", URL: "https://a.test/", Snippet: "a"},
			shared,
		},
		"q two": {
			shared,
			{Title: "B", URL: "https://b.test/", Snippet: "b"},
		},
	}}
	st := NewSearchStage(&fakeProvider{replies: []string{"1. q one\n2. q two"}}, searcher, nil)

	s, err := st.Search(context.Background(), NewState("s1", "question", nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !s.SearchPerformed {
		t.Error("SearchPerformed = false, want true")
	}

	wantURLs := []string{"https://a.test/", "https://shared.test/", "https://b.test/"}
	var gotURLs []string
	for _, r := range s.SearchResults {
		gotURLs = append(gotURLs, r.URL)
	}
	if !reflect.DeepEqual(gotURLs, wantURLs) {
		t.Errorf("result URLs = %v, want %v", gotURLs, wantURLs)
	}
	if !reflect.DeepEqual(s.URLsToScrape, wantURLs) {
		t.Errorf("URLsToScrape = %v, want %v", s.URLsToScrape, wantURLs)
	}
}

func TestSearchCapsScrapeURLs(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]SearchResult{
		"big": {
			{URL: "https://1.test/"}, {URL: "https://2.test/"},
			{URL: "https://3.test/"}, {URL: "https://4.test/"},
		},
	}}
	st := NewSearchStage(&fakeProvider{replies: []string{"1. big"}}, searcher, nil)

	s, err := st.Search(context.Background(), NewState("s1", "question", nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(s.SearchResults) != 4 {
		t.Errorf("got %d results, want 4", len(s.SearchResults))
	}
	if len(s.URLsToScrape) != 3 {
		t.Errorf("got %d scrape URLs, want 3", len(s.URLsToScrape))
	}
}

func TestSearchPerformedSetEvenOnFailure(t *testing.T) {
	st := NewSearchStage(
		&fakeProvider{err: errors.New("down")},
		&fakeSearcher{err: errors.New("engine down")},
		nil)

	s, err := st.Search(context.Background(), NewState("s1", "question", nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !s.SearchPerformed {
		t.Error("SearchPerformed = false, want true")
	}
	if len(s.SearchResults) != 0 || len(s.URLsToScrape) != 0 {
		t.Errorf("got results=%d urls=%d, want 0/0", len(s.SearchResults), len(s.URLsToScrape))
	}
}
