// Package config loads and validates Kenny's runtime configuration: a YAML
// file with environment-variable overrides, following the same
// Load/Save/applyEnvOverrides shape the rest of the stack uses for its own
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kenny/internal/logging"
)

// Config holds all of Kenny's runtime configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Env selects the logging default level when logging.level is empty
	// (development, testing, staging, production). See internal/logging.
	Env string `yaml:"env"`

	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig locates the SQLite database file.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig mirrors internal/embedding.Config; kept as a plain struct
// here (rather than importing internal/embedding) to avoid a config→engine
// import cycle when the engine facade builds an embedding.Config from this.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider" json:"provider"`
	OllamaEndpoint string `yaml:"ollama_endpoint" json:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model" json:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key" json:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model" json:"genai_model"`
	TaskType       string `yaml:"task_type" json:"task_type"`
}

// LLMConfig configures the optional Anthropic-backed planner (internal/llmplanner).
// Empty APIKey means Kenny falls back to the rule-based planner.
type LLMConfig struct {
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// SearchConfig tunes hybrid search fusion and fallback behavior.
type SearchConfig struct {
	BM25Weight      float64       `yaml:"bm25_weight"`
	EmbeddingWeight float64       `yaml:"embedding_weight"`
	Budget          time.Duration `yaml:"budget"`
	FallbackTiers   []float64     `yaml:"fallback_tiers"`
}

// JobsConfig bounds the background processor.
type JobsConfig struct {
	MaxConcurrentWorkers int           `yaml:"max_concurrent_workers"`
	HistorySize          int           `yaml:"history_size"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval"`
	CleanupRetention      time.Duration `yaml:"cleanup_retention"`
}

// AuditConfig tunes the NDJSON audit sink.
type AuditConfig struct {
	Path      string        `yaml:"path"`
	MaxBytes  int64         `yaml:"max_bytes"`
	Retention time.Duration `yaml:"retention"`
}

// MetricsConfig configures the optional OpenTelemetry metrics exporter.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig configures the category logger (internal/logging).
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns Kenny's default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Name:    "kenny",
		Version: "0.1.0",
		Env:     "development",

		Store: StoreConfig{Path: filepath.Join(home, ".kenny", "kenny.db")},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
		},

		LLM: LLMConfig{
			Model:   "claude-opus-4-5",
			Timeout: "60s",
		},

		Search: SearchConfig{
			BM25Weight:      0.5,
			EmbeddingWeight: 0.5,
			Budget:          2 * time.Second,
			FallbackTiers:   []float64{0.40, 0.25, 0.15, 0.05, 0.01},
		},

		Jobs: JobsConfig{
			MaxConcurrentWorkers: 4,
			HistorySize:          1000,
			CleanupInterval:      5 * time.Minute,
			CleanupRetention:     time.Hour,
		},

		Audit: AuditConfig{
			Path:      filepath.Join(home, ".kenny", "logs", "audit.ndjson"),
			MaxBytes:  50 * 1024 * 1024,
			Retention: 30 * 24 * time.Hour,
		},

		Metrics: MetricsConfig{Enabled: false},

		Logging: LoggingConfig{Level: "", JSON: false},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if
// the file does not exist, then applies environment overrides. It also
// loads a .env file from the same directory if present (godotenv), so a
// developer's local secrets never need to live in the YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !os.IsNotExist(err) {
		logging.BootDebug("no .env file loaded: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: env=%s store=%s", cfg.Env, cfg.Store.Path)
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides applies the KENNY_* and provider env vars that take
// precedence over the YAML config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KENNY_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("KENNY_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("OLLAMA_EMBEDDING_MODEL"); v != "" {
		c.Embedding.OllamaModel = v
	}
	if v := os.Getenv("GENAI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
		if c.Embedding.Provider == "" || c.Embedding.Provider == "ollama" {
			c.Embedding.Provider = "genai"
		}
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("METRICS_ENDPOINT"); v != "" {
		c.Metrics.Endpoint = v
		c.Metrics.Enabled = true
	}
}

// GetLLMTimeout returns the LLM planner timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// Validate checks the configuration is usable for startup.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Jobs.MaxConcurrentWorkers < 1 {
		return fmt.Errorf("jobs.max_concurrent_workers must be >= 1")
	}
	if c.Embedding.Provider != "ollama" && c.Embedding.Provider != "genai" {
		return fmt.Errorf("embedding.provider must be ollama or genai, got %q", c.Embedding.Provider)
	}
	return nil
}
