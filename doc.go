// Package mask is a conversational agent orchestrator.
//
// Given a user message it decides whether external web knowledge is needed,
// optionally searches and scrapes the web, merges the findings with long-term
// memory (vector recall and a knowledge graph), and streams a final answer
// from a language model, optionally invoking registered tools.
//
// The core is a directed graph of nodes operating on a shared, incrementally
// built [State]:
//
//	retrieve → router → {search → scrape | scrape | —} → coordinator → END
//
// Each node receives a value copy of the state and returns a new one, so the
// pipeline is testable stage by stage. [Graph.Invoke] runs the full graph and
// returns the terminal state; [Graph.Stream] additionally yields one [Update]
// per visited node so callers can emit incremental status ("searching",
// "found N sources") before final tokens arrive.
//
// External capabilities are narrow interfaces defined in this package and
// implemented by subpackages:
//
//   - [Provider] / [EmbeddingProvider] — LLM backend (provider/ollama)
//   - [WebSearcher] — web search (search/brave)
//   - [VectorIndex] — vector similarity store (vector/qdrant)
//   - [GraphDB] — knowledge graph (graph/neo4j)
//   - [SessionStore] — sessions/messages/projects (store/postgres, store/sqlite)
//   - [Tool] — pluggable capabilities registered at startup (tools/weather)
//
// Every external call degrades gracefully: classification errors route to a
// direct answer, failed fetches become per-page error records, and empty web
// findings produce an honest "nothing found" instruction instead of a stale
// answer.
package mask
