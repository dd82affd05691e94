package mask

import (
	"context"
	"log/slog"
)

// Node names of the turn workflow.
const (
	NodeRetrieve    = "retrieve"
	NodeRouter      = "router"
	NodeSearch      = "search"
	NodeScrape      = "scrape"
	NodeCoordinator = "coordinator"
)

// Workflow wires the stages into one turn pipeline:
//
//	retrieve → router → {search → scrape | scrape | —} → coordinator → END
//
// The coordinator node only assembles FinalMessages. Run performs the final
// model call itself; Stream leaves it to the caller, which owns the token
// stream.
type Workflow struct {
	graph  *Graph
	synth  *Synthesizer
	logger *slog.Logger
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow) []GraphOption

// WithWorkflowLogger sets the structured logger, shared with the graph.
func WithWorkflowLogger(l *slog.Logger) WorkflowOption {
	return func(w *Workflow) []GraphOption {
		w.logger = l
		return []GraphOption{WithGraphLogger(l)}
	}
}

// WithWorkflowTracer sets the span tracer on the underlying graph.
func WithWorkflowTracer(t Tracer) WorkflowOption {
	return func(w *Workflow) []GraphOption {
		return []GraphOption{WithGraphTracer(t)}
	}
}

// NewWorkflow builds and validates the turn graph. memory may be nil, in
// which case the retrieve node is a pass-through.
func NewWorkflow(memory *Memory, router *Router, search *SearchStage, scrape *ScrapeStage, synth *Synthesizer, opts ...WorkflowOption) (*Workflow, error) {
	w := &Workflow{synth: synth, logger: nopLogger}
	var gopts []GraphOption
	for _, opt := range opts {
		gopts = append(gopts, opt(w)...)
	}

	g := NewGraph(gopts...)
	g.AddNode(NodeRetrieve, func(ctx context.Context, s State) (State, error) {
		if memory != nil {
			s.MemoryContext = memory.Recall(ctx, s.UserQuery, s.ProjectID)
		}
		return s, nil
	})
	g.AddNode(NodeRouter, router.Route)
	g.AddNode(NodeSearch, search.Search)
	g.AddNode(NodeScrape, scrape.Scrape)
	g.AddNode(NodeCoordinator, synth.Prepare)

	g.SetEntryPoint(NodeRetrieve)
	g.AddEdge(NodeRetrieve, NodeRouter)
	g.AddConditionalEdges(NodeRouter, routeAfterRouter, map[string]string{
		NodeScrape:      NodeScrape,
		NodeSearch:      NodeSearch,
		NodeCoordinator: NodeCoordinator,
	})
	g.AddEdge(NodeSearch, NodeScrape)
	g.AddEdge(NodeScrape, NodeCoordinator)
	g.AddEdge(NodeCoordinator, END)

	if err := g.Compile(); err != nil {
		return nil, err
	}
	w.graph = g
	return w, nil
}

// routeAfterRouter implements the branch table: literal URLs skip search,
// a search-worthy query goes through search then scrape, anything else goes
// straight to the coordinator.
func routeAfterRouter(s State) string {
	switch {
	case s.DirectScrape:
		return NodeScrape
	case s.NeedsSearch:
		return NodeSearch
	default:
		return NodeCoordinator
	}
}

// Run executes one turn buffered and returns the final response text.
func (w *Workflow) Run(ctx context.Context, sessionID, userQuery string, messages []ChatMessage) (string, error) {
	state, err := w.graph.Invoke(ctx, NewState(sessionID, userQuery, messages))
	if err != nil {
		return "", err
	}
	state, err = w.synth.Complete(ctx, state)
	if err != nil {
		return "", err
	}
	return state.FinalResponse, nil
}

// RunState is Run for callers that need the whole terminal state.
func (w *Workflow) RunState(ctx context.Context, initial State) (State, error) {
	state, err := w.graph.Invoke(ctx, initial)
	if err != nil {
		return state, err
	}
	return w.synth.Complete(ctx, state)
}

// Stream executes one turn, sending an Update after each node completes. The
// coordinator's update carries FinalMessages; the caller performs the
// streamed model call and appends citations itself. ch is closed when the
// run ends.
func (w *Workflow) Stream(ctx context.Context, initial State, ch chan<- Update) (State, error) {
	return w.graph.Stream(ctx, initial, ch)
}
