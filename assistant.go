package mask

import (
	"context"
	"fmt"
	"log/slog"
)

// maxHistoryTokens is the approximate token budget for conversation history
// before it is collapsed into a summary. Tokens are approximated as len/4.
const maxHistoryTokens = 4000

// Stream event types emitted by Assistant.ChatStream.
const (
	// EventStatus is a short progress note ("Searching the web...").
	EventStatus = "status"
	// EventToken is one chunk of the final answer.
	EventToken = "token"
)

// StreamEvent is one item of an assistant turn's output stream.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Assistant is the application layer around the turn workflow: it loads and
// persists conversation history, injects project and user-profile context,
// collapses overlong history, and runs the workflow buffered or streamed.
type Assistant struct {
	llm      Provider
	workflow *Workflow
	store    SessionStore
	memory   *Memory
	summer   *Summarizer
	profiles *ProfileManager
	worker   *ProfileWorker
	logger   *slog.Logger
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithAssistantMemory enables long-term memory writes and recall context.
func WithAssistantMemory(m *Memory) AssistantOption {
	return func(a *Assistant) { a.memory = m }
}

// WithAssistantProfile enables the user-profile context block and its
// background update worker.
func WithAssistantProfile(p *ProfileManager, w *ProfileWorker) AssistantOption {
	return func(a *Assistant) { a.profiles = p; a.worker = w }
}

// WithAssistantLogger sets the structured logger.
func WithAssistantLogger(l *slog.Logger) AssistantOption {
	return func(a *Assistant) { a.logger = l }
}

// NewAssistant creates an Assistant. store is required; memory and profile
// support are optional.
func NewAssistant(llm Provider, workflow *Workflow, store SessionStore, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		llm:      llm,
		workflow: workflow,
		store:    store,
		summer:   NewSummarizer(llm, nil),
		logger:   nopLogger,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.summer = NewSummarizer(llm, a.logger)
	return a
}

// Chat runs one buffered turn: full pipeline, final response returned as one
// string with citations appended.
func (a *Assistant) Chat(ctx context.Context, sessionID, userInput string) (string, error) {
	initial, err := a.prepareTurn(ctx, sessionID, userInput)
	if err != nil {
		return "", err
	}

	state, err := a.workflow.RunState(ctx, initial)
	if err != nil {
		return "", err
	}

	a.persistAssistantTurn(ctx, sessionID, initial.ProjectID, userInput, state.FinalResponse)
	return state.FinalResponse, nil
}

// ChatStream runs one streamed turn, emitting status events as pipeline
// stages complete and token events while the answer streams. ch is closed
// when the turn ends. The returned string is the full persisted answer.
func (a *Assistant) ChatStream(ctx context.Context, sessionID, userInput string, ch chan<- StreamEvent) (string, error) {
	defer close(ch)

	initial, err := a.prepareTurn(ctx, sessionID, userInput)
	if err != nil {
		return "", err
	}

	updates := make(chan Update, 8)
	errc := make(chan error, 1)
	go func() {
		_, err := a.workflow.Stream(ctx, initial, updates)
		errc <- err
	}()

	var answer string
	var sources []Source
	for u := range updates {
		switch u.Node {
		case NodeRouter:
			if u.State.NeedsSearch {
				a.emit(ctx, ch, StreamEvent{Type: EventStatus, Content: "Searching the web..."})
			}
		case NodeSearch:
			a.emit(ctx, ch, StreamEvent{Type: EventStatus,
				Content: fmt.Sprintf("Found %d sources", len(u.State.SearchResults))})
		case NodeScrape:
			ok := 0
			for _, p := range u.State.ScrapedContent {
				if p.Err == "" {
					ok++
				}
			}
			a.emit(ctx, ch, StreamEvent{Type: EventStatus,
				Content: fmt.Sprintf("Reading %d articles...", ok)})
		case NodeCoordinator:
			sources = u.State.Sources
			answer, err = a.streamAnswer(ctx, u.State.FinalMessages, ch)
			if err != nil {
				return "", err
			}
		}
	}
	if err := <-errc; err != nil {
		return "", err
	}

	// Citations were not part of the token stream; emit them as a trailing
	// block so the live view matches the persisted answer.
	answer = appendCitations(answer, sources)
	if len(sources) > 0 {
		a.emit(ctx, ch, StreamEvent{Type: EventToken, Content: appendCitations("", sources)})
	}

	a.persistAssistantTurn(ctx, sessionID, initial.ProjectID, userInput, answer)
	return answer, nil
}

// streamAnswer performs the token-streamed model call over the prepared
// messages, forwarding each delta as a token event.
func (a *Assistant) streamAnswer(ctx context.Context, msgs []ChatMessage, ch chan<- StreamEvent) (string, error) {
	deltas := make(chan string, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range deltas {
			a.emit(ctx, ch, StreamEvent{Type: EventToken, Content: d})
		}
	}()
	answer, err := a.llm.ChatStream(ctx, msgs, nil, deltas)
	<-done
	return answer, err
}

// prepareTurn assembles the initial workflow state for one turn: stored
// history with project and profile context prepended, summarized if too
// long, plus the new user message persisted and appended.
func (a *Assistant) prepareTurn(ctx context.Context, sessionID, userInput string) (State, error) {
	var projectID, projectContext string
	if session, err := a.store.GetSession(ctx, sessionID); err == nil && session.ProjectID != "" {
		projectID = session.ProjectID
		if project, err := a.store.GetProject(ctx, projectID); err == nil && project.ContextSummary != "" {
			projectContext = fmt.Sprintf(
				"PROJECT CONTEXT (Summary of other related chats):\n%s", project.ContextSummary)
		}
	}

	stored, err := a.store.GetMessages(ctx, sessionID)
	if err != nil {
		return State{}, fmt.Errorf("load history: %w", err)
	}
	history := make([]ChatMessage, 0, len(stored)+3)
	for _, m := range stored {
		history = append(history, ChatMessage{Role: m.Role, Content: m.Content})
	}

	history = a.compactHistory(ctx, sessionID, history)

	if projectContext != "" {
		history = append([]ChatMessage{SystemMessage(projectContext)}, history...)
	}
	if a.profiles != nil {
		if profile := a.profiles.Profile(); profile != "" {
			block := fmt.Sprintf(
				"USER PROFILE (WHO.md - Always strictly follow this context about the user):\n%s", profile)
			history = append([]ChatMessage{SystemMessage(block)}, history...)
		}
		if a.worker != nil {
			a.worker.Enqueue(userInput)
		}
	}

	if len(stored) == 0 {
		a.maybeTitleSession(ctx, sessionID, userInput)
	}

	if _, err := a.store.AddMessage(ctx, sessionID, "user", userInput); err != nil {
		a.logger.Warn("persist user message failed", "error", err)
	}
	if a.memory != nil {
		a.memory.Remember(ctx, sessionID, projectID, "user", userInput)
	}
	history = append(history, UserMessage(userInput))

	state := NewState(sessionID, userInput, history)
	state.ProjectID = projectID
	return state, nil
}

// compactHistory replaces an overlong history with a single summary message,
// both in the store and in the returned slice. On summarizer failure the
// original history is kept.
func (a *Assistant) compactHistory(ctx context.Context, sessionID string, history []ChatMessage) []ChatMessage {
	total := 0
	for _, m := range history {
		total += len(m.Content)
	}
	if total/4 <= maxHistoryTokens {
		return history
	}

	a.logger.Info("history too long, summarizing", "session", sessionID, "approx_tokens", total/4)
	summary, err := a.summer.Summarize(ctx, history)
	if err != nil {
		a.logger.Warn("history summarization failed, keeping full history", "error", err)
		return history
	}
	compacted := []ChatMessage{SystemMessage("Previous conversation summary: " + summary)}
	if err := a.store.ReplaceMessages(ctx, sessionID, compacted); err != nil {
		a.logger.Warn("history replacement failed", "error", err)
	}
	return compacted
}

// maybeTitleSession titles an untitled session from its first user message.
func (a *Assistant) maybeTitleSession(ctx context.Context, sessionID, firstMessage string) {
	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil || session.Title != "" {
		return
	}
	title := GenerateTitle(ctx, a.llm, firstMessage, a.logger)
	if err := a.store.RenameSession(ctx, sessionID, title); err != nil {
		a.logger.Warn("session rename failed", "error", err)
	}
}

// persistAssistantTurn stores the final answer and feeds long-term memory.
// Graph extraction runs here, after streaming has finished, so its model call
// never delays visible tokens.
func (a *Assistant) persistAssistantTurn(ctx context.Context, sessionID, projectID, userInput, answer string) {
	if answer == "" {
		a.logger.Warn("no response generated to persist", "session", sessionID)
		return
	}
	if _, err := a.store.AddMessage(ctx, sessionID, "assistant", answer); err != nil {
		a.logger.Warn("persist assistant message failed", "error", err)
	}
	if a.memory != nil {
		a.memory.Remember(ctx, sessionID, projectID, "assistant", answer)
		a.memory.ExtractGraph(ctx, userInput)
	}
}

// emit delivers one event unless the caller has gone away.
func (a *Assistant) emit(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
