// Command mask runs an interactive chat session against the mask workflow:
// memory recall, routing, web search and scraping, and a streamed answer.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	mask "github.com/maskagent/mask"
	neo4jdb "github.com/maskagent/mask/graphdb/neo4j"
	"github.com/maskagent/mask/internal/config"
	"github.com/maskagent/mask/observer"
	"github.com/maskagent/mask/provider/ollama"
	"github.com/maskagent/mask/search/brave"
	"github.com/maskagent/mask/store/postgres"
	"github.com/maskagent/mask/store/sqlite"
	"github.com/maskagent/mask/tools/weather"
	"github.com/maskagent/mask/vector/qdrant"
)

func main() {
	ctx := context.Background()
	cfg := config.Load(os.Getenv("MASK_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var tracer mask.Tracer
	if cfg.Observer.Enabled {
		shutdown, err := observer.Init(ctx)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer shutdown(ctx)
		tracer = observer.NewTracer()
	}

	// Providers
	llm := ollama.New(cfg.LLM.BaseURL, cfg.LLM.Model)
	embedder := ollama.NewEmbedder(llm, cfg.Embedding.Model)

	// Session store
	var store mask.SessionStore
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("postgres connect: %v", err)
		}
		defer pool.Close()
		pg := postgres.New(pool)
		if err := pg.Init(ctx); err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		store = pg
	default:
		sq, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			log.Fatalf("sqlite open: %v", err)
		}
		defer sq.Close()
		store = sq
	}

	// Long-term memory backends (both optional)
	var vectors mask.VectorIndex = qdrant.New(cfg.Qdrant.URL)
	var graph mask.GraphDB
	if cfg.Neo4j.Password != "" {
		db, err := neo4jdb.New(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
		if err != nil {
			logger.Warn("neo4j unavailable, graph memory disabled", "error", err)
		} else {
			defer db.Close(ctx)
			graph = db
		}
	}
	memory := mask.NewMemory(llm, embedder, vectors, graph,
		mask.WithRecallLimit(cfg.Memory.RecallLimit),
		mask.WithRecallThreshold(float32(cfg.Memory.RecallThreshold)),
		mask.WithMemoryLogger(logger))

	// Search
	var searcher mask.WebSearcher
	if cfg.Search.BraveAPIKey != "" {
		searcher = brave.New(cfg.Search.BraveAPIKey)
	} else {
		logger.Warn("no search API key configured, web search disabled")
		searcher = noSearch{}
	}

	// Tools
	tools := mask.NewToolRegistry(weather.New())

	// Pipeline
	router := mask.NewRouter(llm, logger)
	search := mask.NewSearchStage(llm, searcher, logger)
	scrape := mask.NewScrapeStage(llm, mask.NewHTTPFetcher(), mask.DefaultScrapeConfig(), logger)
	synth := mask.NewSynthesizer(llm, tools, logger)

	workflow, err := mask.NewWorkflow(memory, router, search, scrape, synth,
		mask.WithWorkflowLogger(logger), mask.WithWorkflowTracer(tracer))
	if err != nil {
		log.Fatalf("workflow: %v", err)
	}

	// Profile
	profiles, err := mask.NewProfileManager(llm, cfg.Profile.Path, logger)
	if err != nil {
		log.Fatalf("profile: %v", err)
	}
	worker := mask.NewProfileWorker(profiles, logger)
	defer worker.Close()

	assistant := mask.NewAssistant(llm, workflow, store,
		mask.WithAssistantMemory(memory),
		mask.WithAssistantProfile(profiles, worker),
		mask.WithAssistantLogger(logger))

	session, err := store.CreateSession(ctx, "", "")
	if err != nil {
		log.Fatalf("create session: %v", err)
	}
	fmt.Printf("session %s (type a message, ctrl-d to quit)\n", session.ID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		events := make(chan mask.StreamEvent, 8)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range events {
				switch ev.Type {
				case mask.EventStatus:
					fmt.Printf("[%s]\n", ev.Content)
				case mask.EventToken:
					fmt.Print(ev.Content)
				}
			}
		}()
		if _, err := assistant.ChatStream(ctx, session.ID, input, events); err != nil {
			fmt.Printf("\nerror: %v\n", err)
		}
		<-done
		fmt.Println()
	}
}

// noSearch stands in when no search backend is configured; the scrape stage
// then simply has nothing to read.
type noSearch struct{}

func (noSearch) TextSearch(context.Context, string, int) ([]mask.SearchResult, error) {
	return nil, nil
}
