package mask

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	// profileNoUpdate is the sentinel the model returns when the user's
	// message carries no durable personal information.
	profileNoUpdate = "NO_UPDATE"
	// profileMarker must appear in a model reply for it to be accepted as a
	// rewritten profile. Guards against the model answering in prose.
	profileMarker = "# User Profile"
)

const defaultProfile = `# User Profile

## Personal Information
- Name: unknown

## Interests
- unknown

## Notes
- None
`

const profileSystemPrompt = `You are a Profile Manager. Your job is to update the User Profile (Markdown) based on the User's latest message.
Rules:
1. ONLY extract permanent attributes: Name, Email, Phone, Interests, Skills, Preferences.
2. DO NOT extract temporary states (e.g., "I am hungry", "I am going to the shop").
3. Update the existing Markdown structure sensibly.
4. If the user input contains NO relevant personal info, return "NO_UPDATE".
5. Output the FULL updated Markdown content if there is an update.`

const profilePromptTemplate = `Current Profile:
%s

User Input:
"%s"

Return updated Markdown or "NO_UPDATE".`

// ProfileManager maintains a persistent markdown profile of the user,
// extracted from their messages over time. The profile file is plain
// markdown so the user can read and edit it by hand.
type ProfileManager struct {
	llm    Provider
	path   string
	logger *slog.Logger

	mu sync.Mutex // serializes read-modify-write of the file
}

// NewProfileManager creates a ProfileManager over path, writing a skeleton
// profile when the file does not exist yet.
func NewProfileManager(llm Provider, path string, logger *slog.Logger) (*ProfileManager, error) {
	if logger == nil {
		logger = nopLogger
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(defaultProfile), 0o644); err != nil {
			return nil, fmt.Errorf("create profile file: %w", err)
		}
	}
	return &ProfileManager{llm: llm, path: path, logger: logger}, nil
}

// Profile returns the current profile text. A read failure degrades to an
// empty profile rather than failing the turn.
func (p *ProfileManager) Profile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := os.ReadFile(p.path)
	if err != nil {
		p.logger.Warn("profile read failed", "path", p.path, "error", err)
		return ""
	}
	return string(data)
}

// Update asks the model whether userInput carries durable personal facts and,
// if so, rewrites the profile file. A NO_UPDATE reply or any reply without
// the profile heading rejects the update.
func (p *ProfileManager) Update(ctx context.Context, userInput string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}

	reply, err := p.llm.Chat(ctx, []ChatMessage{
		SystemMessage(profileSystemPrompt),
		UserMessage(fmt.Sprintf(profilePromptTemplate, current, userInput)),
	}, nil)
	if err != nil {
		return fmt.Errorf("profile extraction: %w", err)
	}

	updated := strings.TrimSpace(reply)
	if updated == profileNoUpdate {
		return nil
	}
	if !strings.Contains(updated, profileMarker) {
		p.logger.Debug("profile update rejected: reply is not a profile document")
		return nil
	}
	if err := os.WriteFile(p.path, []byte(updated+"\n"), 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	p.logger.Info("profile updated", "path", p.path)
	return nil
}

// ProfileWorker runs profile updates off the turn's critical path. Updates
// are queued per user message; a full queue drops the update (the next
// message will carry the same durable facts), and a failed update only logs.
type ProfileWorker struct {
	manager *ProfileManager
	queue   chan string
	logger  *slog.Logger
	done    chan struct{}
}

// NewProfileWorker creates and starts a worker draining a bounded queue.
func NewProfileWorker(manager *ProfileManager, logger *slog.Logger) *ProfileWorker {
	if logger == nil {
		logger = nopLogger
	}
	w := &ProfileWorker{
		manager: manager,
		queue:   make(chan string, 16),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

// Enqueue schedules a profile update for one user message. Never blocks.
func (w *ProfileWorker) Enqueue(userInput string) {
	select {
	case w.queue <- userInput:
	default:
		w.logger.Warn("profile queue full, dropping update")
	}
}

// Close stops the worker after draining queued updates.
func (w *ProfileWorker) Close() {
	close(w.queue)
	<-w.done
}

func (w *ProfileWorker) loop() {
	defer close(w.done)
	for input := range w.queue {
		if err := w.manager.Update(context.Background(), input); err != nil {
			w.logger.Warn("background profile update failed", "error", err)
		}
	}
}
