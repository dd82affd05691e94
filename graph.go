package mask

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// END is the terminal pseudo-node. An edge to END stops execution.
const END = "__end__"

// NodeFunc is one stage of the workflow. It receives a value copy of the
// state and returns the next state. Errors abort the run; stages are expected
// to capture external failures internally and degrade instead.
type NodeFunc func(ctx context.Context, s State) (State, error)

// RouteFunc picks the next node name after a conditional node, based on the
// state that node produced.
type RouteFunc func(s State) string

// Update is one streamed snapshot: the state as it stood after Node ran.
type Update struct {
	Node  string
	State State
}

// Graph is a directed graph of named nodes threading a State from an entry
// node to END. Edges are either static or conditional (a RouteFunc choosing
// among declared targets). Execution is strictly sequential per turn; fan-out
// happens only inside nodes.
type Graph struct {
	nodes      map[string]NodeFunc
	order      []string // declaration order, for deterministic validation output
	edges      map[string]string
	conditions map[string]condition
	entry      string
	logger     *slog.Logger
	tracer     Tracer
}

type condition struct {
	route   RouteFunc
	targets map[string]string // label -> node name (or END)
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithGraphLogger sets the structured logger. Defaults to a no-op logger.
func WithGraphLogger(l *slog.Logger) GraphOption {
	return func(g *Graph) { g.logger = l }
}

// WithGraphTracer sets the span tracer. When nil, span creation is skipped.
func WithGraphTracer(t Tracer) GraphOption {
	return func(g *Graph) { g.tracer = t }
}

// NewGraph creates an empty graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		nodes:      make(map[string]NodeFunc),
		edges:      make(map[string]string),
		conditions: make(map[string]condition),
		logger:     nopLogger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode registers a named node. Duplicate names are rejected at Compile.
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	// Duplicates stay in order so Compile can reject them.
	g.order = append(g.order, name)
	g.nodes[name] = fn
	return g
}

// AddEdge declares a static transition from one node to another (or END).
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// AddConditionalEdges declares that after from runs, route picks a label and
// execution continues at targets[label]. The label itself may also be a node
// name when no mapping entry exists.
func (g *Graph) AddConditionalEdges(from string, route RouteFunc, targets map[string]string) *Graph {
	g.conditions[from] = condition{route: route, targets: targets}
	return g
}

// SetEntryPoint declares the first node to run.
func (g *Graph) SetEntryPoint(name string) *Graph {
	g.entry = name
	return g
}

// Compile validates the graph: an entry point must be set, every node needs
// an outgoing edge or conditional, all edge targets must exist, and every
// node must be reachable from the entry.
func (g *Graph) Compile() error {
	if g.entry == "" {
		return fmt.Errorf("graph: no entry point set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("graph: entry point %q is not a node", g.entry)
	}
	seen := make(map[string]bool, len(g.order))
	for _, name := range g.order {
		if seen[name] {
			return fmt.Errorf("graph: duplicate node name %q", name)
		}
		seen[name] = true
	}
	checkTarget := func(from, to string) error {
		if to == END {
			return nil
		}
		if _, ok := g.nodes[to]; !ok {
			return fmt.Errorf("graph: node %q routes to unknown node %q", from, to)
		}
		return nil
	}
	for name := range g.nodes {
		_, hasEdge := g.edges[name]
		_, hasCond := g.conditions[name]
		if !hasEdge && !hasCond {
			return fmt.Errorf("graph: node %q has no outgoing edge", name)
		}
		if hasEdge && hasCond {
			return fmt.Errorf("graph: node %q has both a static edge and conditional edges", name)
		}
	}
	for from, to := range g.edges {
		if err := checkTarget(from, to); err != nil {
			return err
		}
	}
	for from, cond := range g.conditions {
		for _, to := range cond.targets {
			if err := checkTarget(from, to); err != nil {
				return err
			}
		}
	}
	reach := g.reachable()
	for _, name := range g.order {
		if !reach[name] {
			g.logger.Warn("node is unreachable from entry point", "node", name)
		}
	}
	return nil
}

// reachable returns the set of nodes reachable from the entry point.
func (g *Graph) reachable() map[string]bool {
	out := make(map[string]bool, len(g.nodes))
	var visit func(string)
	visit = func(name string) {
		if name == END || out[name] {
			return
		}
		out[name] = true
		if to, ok := g.edges[name]; ok {
			visit(to)
		}
		if cond, ok := g.conditions[name]; ok {
			for _, to := range cond.targets {
				visit(to)
			}
		}
	}
	visit(g.entry)
	return out
}

// Invoke runs the graph to completion and returns the terminal state.
func (g *Graph) Invoke(ctx context.Context, initial State) (State, error) {
	return g.run(ctx, initial, nil)
}

// Stream runs the graph, sending one Update into ch after each node
// completes. The channel is closed when the run ends, successfully or not.
func (g *Graph) Stream(ctx context.Context, initial State, ch chan<- Update) (State, error) {
	defer close(ch)
	return g.run(ctx, initial, ch)
}

// run is the shared sequential executor. Conditional routing means the path
// is not known up front, so a step budget guards against a miswired cycle.
func (g *Graph) run(ctx context.Context, state State, ch chan<- Update) (State, error) {
	var span Span
	if g.tracer != nil {
		ctx, span = g.tracer.Start(ctx, "graph.run",
			StringAttr("entry", g.entry),
			IntAttr("node_count", len(g.nodes)))
		defer span.End()
	}

	maxSteps := 2*len(g.nodes) + 1
	current := g.entry
	for step := 0; current != END; step++ {
		if step >= maxSteps {
			err := fmt.Errorf("graph: exceeded %d steps at node %q (cycle?)", maxSteps, current)
			if span != nil {
				span.Error(err)
			}
			return state, err
		}
		if err := ctx.Err(); err != nil {
			return state, err
		}

		next, err := g.runNode(ctx, current, &state, ch)
		if err != nil {
			if span != nil {
				span.Error(err)
			}
			return state, err
		}
		current = next
	}
	return state, nil
}

// runNode executes one node, emits its update, and resolves the next node.
func (g *Graph) runNode(ctx context.Context, name string, state *State, ch chan<- Update) (string, error) {
	fn := g.nodes[name]
	start := time.Now()

	var span Span
	if g.tracer != nil {
		ctx, span = g.tracer.Start(ctx, "graph.node", StringAttr("node", name))
		defer span.End()
	}

	out, err := fn(ctx, state.clone())
	if err != nil {
		g.logger.Error("node failed", "node", name, "error", err)
		if span != nil {
			span.Error(err)
		}
		return "", fmt.Errorf("node %s: %w", name, err)
	}
	*state = out
	g.logger.Debug("node completed", "node", name, "duration", time.Since(start))

	if ch != nil {
		select {
		case ch <- Update{Node: name, State: out.clone()}:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if to, ok := g.edges[name]; ok {
		return to, nil
	}
	cond := g.conditions[name]
	label := cond.route(out)
	if to, ok := cond.targets[label]; ok {
		return to, nil
	}
	if label == END {
		return END, nil
	}
	if _, ok := g.nodes[label]; ok {
		return label, nil
	}
	return "", fmt.Errorf("graph: node %q routed to unknown target %q", name, label)
}
