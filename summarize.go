package mask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const summarizerSystemPrompt = `You are a helpful assistant that summarizes conversation history.
Your goal is to create a concise summary of the previous conversation while retaining critical information.
Output ONLY the summary text.`

// Summarizer compresses a long conversation into one summary message so the
// history stays under the model's context budget.
type Summarizer struct {
	llm    Provider
	logger *slog.Logger
}

// NewSummarizer creates a Summarizer. A nil logger disables logging.
func NewSummarizer(llm Provider, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = nopLogger
	}
	return &Summarizer{llm: llm, logger: logger}
}

// Summarize renders the history as "role: content" lines and asks the model
// for a summary.
func (s *Summarizer) Summarize(ctx context.Context, history []ChatMessage) (string, error) {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return s.llm.Generate(ctx, "Summarize the following conversation:\n\n"+b.String(),
		summarizerSystemPrompt, Temp(0.3))
}

const (
	titleSystemPrompt = "You are a title generator. Generate short, descriptive titles."
	maxTitleLen       = 50
)

const titlePromptTemplate = `Generate a concise, descriptive title (3-5 words maximum) for a chat conversation that starts with this message:

"%s"

Return ONLY the title, nothing else. No quotes, no extra explanation.`

// GenerateTitle asks the model for a 3-5 word session title based on the
// first user message. Model failures and overlong replies fall back to the
// truncated message itself, so this never returns an error.
func GenerateTitle(ctx context.Context, llm Provider, firstMessage string, logger *slog.Logger) string {
	if logger == nil {
		logger = nopLogger
	}
	reply, err := llm.Chat(ctx, []ChatMessage{
		SystemMessage(titleSystemPrompt),
		UserMessage(fmt.Sprintf(titlePromptTemplate, firstMessage)),
	}, Temp(0.5))
	if err != nil {
		logger.Warn("title generation failed, using truncated message", "error", err)
		return truncateTitle(firstMessage)
	}
	title := strings.Trim(strings.TrimSpace(reply), `"'`)
	if title == "" || len(title) > maxTitleLen {
		return truncateTitle(firstMessage)
	}
	return title
}

func truncateTitle(msg string) string {
	if len(msg) > maxTitleLen {
		return msg[:maxTitleLen-3] + "..."
	}
	return msg
}
