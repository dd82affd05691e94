// Package config loads mask configuration from defaults, a TOML file, and
// environment variables, in that order (env wins).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Database  DatabaseConfig  `toml:"database"`
	Qdrant    QdrantConfig    `toml:"qdrant"`
	Neo4j     Neo4jConfig     `toml:"neo4j"`
	Search    SearchConfig    `toml:"search"`
	Memory    MemoryConfig    `toml:"memory"`
	Profile   ProfileConfig   `toml:"profile"`
	Observer  ObserverConfig  `toml:"observer"`
}

type LLMConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

type EmbeddingConfig struct {
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

// DatabaseConfig selects the session store: "postgres" uses URL, "sqlite"
// uses Path.
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	URL    string `toml:"url"`
	Path   string `toml:"path"`
}

type QdrantConfig struct {
	URL string `toml:"url"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type SearchConfig struct {
	BraveAPIKey string `toml:"brave_api_key"`
}

type MemoryConfig struct {
	RecallLimit     int     `toml:"recall_limit"`
	RecallThreshold float64 `toml:"recall_threshold"`
}

type ProfileConfig struct {
	Path string `toml:"path"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM:       LLMConfig{BaseURL: "http://localhost:11434", Model: "qwen2.5:14b"},
		Embedding: EmbeddingConfig{Model: "nomic-embed-text", Dimensions: 768},
		Database:  DatabaseConfig{Driver: "sqlite", Path: "mask.db"},
		Qdrant:    QdrantConfig{URL: "http://localhost:6333"},
		Neo4j:     Neo4jConfig{URI: "bolt://localhost:7687", User: "neo4j"},
		Memory:    MemoryConfig{RecallLimit: 5, RecallThreshold: 0.7},
		Profile:   ProfileConfig{Path: "WHO.md"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "mask.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("MASK_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("MASK_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MASK_DATABASE_URL"); v != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.URL = v
	}
	if v := os.Getenv("MASK_QDRANT_URL"); v != "" {
		cfg.Qdrant.URL = v
	}
	if v := os.Getenv("MASK_NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := os.Getenv("MASK_NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("MASK_BRAVE_API_KEY"); v != "" {
		cfg.Search.BraveAPIKey = v
	}
	if v := os.Getenv("MASK_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
