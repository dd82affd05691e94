package mask

import (
	"context"
	"strings"
	"sync"
)

// fakeProvider returns scripted replies in order, or errors. A reply function
// may inspect the request to branch on prompt content.
type fakeProvider struct {
	mu      sync.Mutex
	replies []string
	err     error
	// replyFn, when set, wins over replies.
	replyFn func(messages []ChatMessage) (string, error)
	calls   [][]ChatMessage
}

func (f *fakeProvider) next(messages []ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.replyFn != nil {
		return f.replyFn(messages)
	}
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeProvider) Chat(_ context.Context, messages []ChatMessage, _ *ChatOptions) (string, error) {
	return f.next(messages)
}

func (f *fakeProvider) ChatStream(ctx context.Context, messages []ChatMessage, opts *ChatOptions, ch chan<- string) (string, error) {
	defer close(ch)
	reply, err := f.next(messages)
	if err != nil {
		return "", err
	}
	for _, word := range strings.SplitAfter(reply, " ") {
		select {
		case ch <- word:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, nil
}

func (f *fakeProvider) Generate(_ context.Context, prompt, system string, _ *ChatOptions) (string, error) {
	return f.next([]ChatMessage{SystemMessage(system), UserMessage(prompt)})
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeSearcher returns canned results per query.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) TextSearch(_ context.Context, query string, _ int) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

// fakeFetcher serves pages from a map; missing URLs yield an error record.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]ScrapedPage
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ScrapedPage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, rawURL)
	if page, ok := f.pages[rawURL]; ok {
		page.URL = rawURL
		return page
	}
	return ScrapedPage{URL: rawURL, Title: "Error", Err: "HTTP 404"}
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

// fakeVectorIndex records upserts and serves canned search hits.
type fakeVectorIndex struct {
	mu      sync.Mutex
	hits    []ScoredPoint
	err     error
	upserts []string
}

func (f *fakeVectorIndex) EnsureCollection(context.Context, string, int) error { return nil }

func (f *fakeVectorIndex) Upsert(_ context.Context, _, id string, _ []float32, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, id)
	return nil
}

func (f *fakeVectorIndex) Search(context.Context, string, []float32, int, float32) ([]ScoredPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

// fakeGraphDB serves the same records for every read and records writes.
type fakeGraphDB struct {
	mu      sync.Mutex
	records []GraphRecord
	err     error
	reads   []map[string]any
	writes  []string
}

func (f *fakeGraphDB) Read(_ context.Context, _ string, params map[string]any) ([]GraphRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeGraphDB) Write(_ context.Context, query string, _ map[string]any) ([]GraphRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, query)
	return nil, nil
}

// fakeEmbedder returns a constant vector.
type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

// memStore is an in-memory SessionStore for assistant tests.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	projects map[string]Project
	messages map[string][]StoredMessage
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]Session),
		projects: make(map[string]Project),
		messages: make(map[string][]StoredMessage),
	}
}

func (s *memStore) CreateProject(_ context.Context, name, description string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Project{ID: "p-" + name, Name: name, Description: description}
	s.projects[p.ID] = p
	return p, nil
}

func (s *memStore) GetProject(_ context.Context, id string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, context.Canceled
	}
	return p, nil
}

func (s *memStore) ListProjects(context.Context) ([]Project, error) { return nil, nil }

func (s *memStore) UpdateProjectContext(_ context.Context, id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.projects[id]
	p.ContextSummary = summary
	s.projects[id] = p
	return nil
}

func (s *memStore) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	return nil
}

func (s *memStore) CreateSession(_ context.Context, title, projectID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := Session{ID: "s1", Title: title, ProjectID: projectID}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *memStore) GetSession(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, context.Canceled
	}
	return sess, nil
}

func (s *memStore) ListSessions(context.Context) ([]Session, error) { return nil, nil }

func (s *memStore) RenameSession(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	sess.Title = title
	s.sessions[id] = sess
	return nil
}

func (s *memStore) AssignSessionToProject(_ context.Context, id, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	sess.ProjectID = projectID
	s.sessions[id] = sess
	return nil
}

func (s *memStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *memStore) AddMessage(_ context.Context, sessionID, role, content string) (StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m := StoredMessage{ID: s.nextID, SessionID: sessionID, Role: role, Content: content}
	s.messages[sessionID] = append(s.messages[sessionID], m)
	return m, nil
}

func (s *memStore) GetMessages(_ context.Context, sessionID string) ([]StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoredMessage, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

func (s *memStore) ReplaceMessages(_ context.Context, sessionID string, messages []ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StoredMessage
	for _, m := range messages {
		s.nextID++
		out = append(out, StoredMessage{ID: s.nextID, SessionID: sessionID, Role: m.Role, Content: m.Content})
	}
	s.messages[sessionID] = out
	return nil
}

var _ SessionStore = (*memStore)(nil)
