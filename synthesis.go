package mask

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// maxToolSteps bounds the tool-call loop in buffered synthesis so a model
// that keeps requesting tools cannot spin forever.
const maxToolSteps = 5

const synthesisBasePrompt = "You are a helpful AI assistant with access to web search."

const webContextInstructions = `IMPORTANT:
- Use the information from the sources above to answer accurately
- Be accurate and cite when using specific facts
- If sources don't fully answer the question, say so
- DO NOT hallucinate or use internal knowledge that contradicts the sources`

const searchEmptyInstructions = `IMPORTANT:
- I searched the web for your query but found no relevant or recent information.
- DO NOT answer based on old internal knowledge if it might be outdated.
- Explicitly tell the user that no relevant information was found on the web.
- Be honest about the lack of information rather than providing a generic or off-topic answer.`

const scrapeFailedInstructions = `IMPORTANT:
- The user provided a URL but its content could not be read.
- Apologize and say the page could not be accessed.
- DO NOT fabricate or guess what the page might contain.`

const toolUsageInstructions = `If you need to use a tool, output a JSON object in this format ONLY:
{
    "tool": "tool_name",
    "arguments": {
        "arg1": "value1"
    }
}

Tool usage rules:
- Only call a tool when the user's request matches its purpose exactly.
- The weather tool takes a city name, never a URL or a question.
- Otherwise, answer in plain text.`

// Synthesizer assembles the final prompt from everything the earlier stages
// gathered and, in buffered mode, runs the model to produce the answer.
type Synthesizer struct {
	llm    Provider
	tools  *ToolRegistry
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer. tools may be nil when no tool
// catalogue should be offered to the model.
func NewSynthesizer(llm Provider, tools *ToolRegistry, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = nopLogger
	}
	return &Synthesizer{llm: llm, tools: tools, logger: logger}
}

// Prepare builds FinalMessages: one system message assembled from the state,
// followed by the sanitized conversation history. It never calls the model,
// so a streaming caller can take FinalMessages and stream the completion
// itself.
func (sy *Synthesizer) Prepare(ctx context.Context, s State) (State, error) {
	system := sy.systemPrompt(s)
	msgs := make([]ChatMessage, 0, len(s.Messages)+1)
	msgs = append(msgs, SystemMessage(system))
	msgs = append(msgs, sanitizeMessages(s.Messages)...)
	s.FinalMessages = msgs
	sy.logger.Debug("synthesis: prompt assembled", "messages", len(msgs),
		"web_context", s.WebContext != "", "memory", s.MemoryContext != "")
	return s, nil
}

// Synthesize runs buffered synthesis: prompt assembly, the model call, a
// bounded tool-call loop, and citation footnotes. A model failure here is the
// one error allowed to escape the pipeline.
func (sy *Synthesizer) Synthesize(ctx context.Context, s State) (State, error) {
	s, err := sy.Prepare(ctx, s)
	if err != nil {
		return s, err
	}
	return sy.Complete(ctx, s)
}

// Complete performs the model call over an already-prepared FinalMessages,
// resolving any tool calls the model emits and appending citations.
func (sy *Synthesizer) Complete(ctx context.Context, s State) (State, error) {
	msgs := s.FinalMessages
	for step := 0; step < maxToolSteps; step++ {
		reply, err := sy.llm.Chat(ctx, msgs, nil)
		if err != nil {
			return s, err
		}

		name, args, ok := parseToolCall(reply)
		if !ok {
			s.FinalResponse = appendCitations(reply, s.Sources)
			return s, nil
		}

		sy.logger.Info("synthesis: tool call", "tool", name)
		feedback := sy.callTool(ctx, name, args)
		msgs = append(msgs,
			AssistantMessage(reply),
			UserMessage(fmt.Sprintf("Tool '%s' output: %s", name, feedback)),
		)
	}

	s.FinalResponse = "I could not complete the request: too many tool calls."
	return s, nil
}

// callTool dispatches one model-suggested tool call and renders the outcome
// as conversation text. Failures, including unknown tool names, are reported
// back to the model instead of aborting the turn.
func (sy *Synthesizer) callTool(ctx context.Context, name string, args map[string]any) string {
	if sy.tools == nil {
		return fmt.Sprintf("Error calling tool: %v", &ErrToolNotFound{Name: name})
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("Error calling tool: %v", err)
	}
	result, err := sy.tools.Call(ctx, name, raw)
	if err != nil {
		return fmt.Sprintf("Error calling tool: %v", err)
	}
	if result.Error != "" {
		return fmt.Sprintf("Error calling tool: %s", result.Error)
	}
	return result.Content
}

// systemPrompt assembles the system message. The three contextual blocks
// (web context, searched-but-empty, direct-scrape-failed) are mutually
// exclusive; memory and tool sections append independently.
func (sy *Synthesizer) systemPrompt(s State) string {
	var b strings.Builder
	b.WriteString(synthesisBasePrompt)

	switch {
	case s.WebContext != "":
		b.WriteString("\n\n")
		b.WriteString(s.WebContext)
		b.WriteString("\n\n")
		b.WriteString(webContextInstructions)
	case s.SearchPerformed:
		b.WriteString("\n\n")
		b.WriteString(searchEmptyInstructions)
	case s.DirectScrape:
		b.WriteString("\n\n")
		b.WriteString(scrapeFailedInstructions)
	}

	if s.MemoryContext != "" {
		b.WriteString("\n\n")
		b.WriteString(s.MemoryContext)
	}

	if sy.tools != nil {
		if defs := sy.tools.List(); len(defs) > 0 {
			catalogue, err := json.MarshalIndent(defs, "", "  ")
			if err == nil {
				b.WriteString("\n\nAvailable Tools:\n")
				b.Write(catalogue)
				b.WriteString("\n\n")
				b.WriteString(toolUsageInstructions)
			}
		}
	}
	return b.String()
}

// sanitizeMessages normalizes the conversation history to the three known
// roles. Alternate role spellings map over; anything unrecognized becomes a
// user message rather than being dropped.
func sanitizeMessages(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system", "user", "assistant":
			out = append(out, m)
		case "human":
			out = append(out, UserMessage(m.Content))
		case "ai":
			out = append(out, AssistantMessage(m.Content))
		default:
			out = append(out, UserMessage(m.Content))
		}
	}
	return out
}

// parseToolCall reports whether reply is a structured tool invocation. Any
// parse failure means "plain text answer", never an error.
func parseToolCall(reply string) (name string, args map[string]any, ok bool) {
	trimmed := strings.TrimSpace(reply)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if !strings.HasPrefix(trimmed, "{") {
		return "", nil, false
	}
	var call struct {
		Tool      string         `json:"tool"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(trimmed), &call); err != nil || call.Tool == "" {
		return "", nil, false
	}
	return call.Tool, call.Arguments, true
}

// appendCitations appends one markdown footnote per source.
func appendCitations(response string, sources []Source) string {
	if len(sources) == 0 {
		return response
	}
	var b strings.Builder
	b.WriteString(response)
	b.WriteString("\n\n**Sources:**\n")
	for i, src := range sources {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s](%s)", src.Title, src.URL)
	}
	return b.String()
}
