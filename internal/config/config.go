// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/hybridqa/internal/intent"
	"github.com/jeranaias/hybridqa/internal/logging"
	"github.com/jeranaias/hybridqa/internal/ollama"
	"github.com/jeranaias/hybridqa/internal/router"
	"github.com/jeranaias/hybridqa/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete hybridqa configuration.
type Config struct {
	Ollama    OllamaConfig    `toml:"ollama" json:"ollama"`
	Data      DataConfig      `toml:"data" json:"data"`
	Routing   RoutingConfig   `toml:"routing" json:"routing"`
	Retrieval RetrievalConfig `toml:"retrieval" json:"retrieval"`
	Server    ServerConfig    `toml:"server" json:"server"`
	Log       LogConfig       `toml:"log" json:"log"`
}

// OllamaConfig points at the generation and embedding backend.
type OllamaConfig struct {
	URL         string  `toml:"url" json:"url"`
	Model       string  `toml:"model" json:"model"`
	EmbedModel  string  `toml:"embed_model" json:"embed_model"`
	TimeoutSecs int     `toml:"timeout_secs" json:"timeout_secs"`
	Temperature float64 `toml:"temperature" json:"temperature"`
	NumCtx      int     `toml:"num_ctx" json:"num_ctx"`
}

// Timeout returns TimeoutSecs as a duration.
func (o OllamaConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSecs) * time.Second
}

// DataConfig holds the on-disk locations of every store.
type DataConfig struct {
	// DBPath is the SQLite file holding university_info.
	DBPath string `toml:"db_path" json:"db_path"`
	// VectorDir is the directory holding the vector index.
	VectorDir string `toml:"vector_dir" json:"vector_dir"`
	// DocsDir is scanned by the indexer.
	DocsDir string `toml:"docs_dir" json:"docs_dir"`
	// CSVPath is the seed dataset read by ingest.
	CSVPath string `toml:"csv_path" json:"csv_path"`
	// ChatLogPath is the SQLite file for the audit log. Empty disables it.
	ChatLogPath string `toml:"chatlog_path" json:"chatlog_path"`
}

// RoutingConfig controls the hybrid router.
type RoutingConfig struct {
	// Strategy for ambiguous queries: "classify" (default) or "retrieval".
	Strategy string `toml:"strategy" json:"strategy"`
	// StructuredKeywords and RetrievalKeywords replace the built-in sets
	// when non-empty. The two sets must be disjoint.
	StructuredKeywords []string `toml:"structured_keywords" json:"structured_keywords"`
	RetrievalKeywords  []string `toml:"retrieval_keywords" json:"retrieval_keywords"`
}

// RetrievalConfig controls passage retrieval and indexing.
type RetrievalConfig struct {
	K            int `toml:"k" json:"k"`
	ChunkSize    int `toml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap" json:"chunk_overlap"`
	Workers      int `toml:"workers" json:"workers"`
	SQLTopK      int `toml:"sql_top_k" json:"sql_top_k"`
	SampleRows   int `toml:"sample_rows" json:"sample_rows"`
}

// ServerConfig controls the HTTP transport.
type ServerConfig struct {
	Host                string  `toml:"host" json:"host"`
	Port                int     `toml:"port" json:"port"`
	RateLimit           float64 `toml:"rate_limit" json:"rate_limit"` // requests per second per client
	RateBurst           int     `toml:"rate_burst" json:"rate_burst"`
	RequestTimeoutSecs  int     `toml:"request_timeout_secs" json:"request_timeout_secs"`
	ShutdownTimeoutSecs int     `toml:"shutdown_timeout_secs" json:"shutdown_timeout_secs"`
	MaxBodyBytes        int64   `toml:"max_body_bytes" json:"max_body_bytes"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"` // "console" or "json"
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with every field set to its built-in value.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:         ollama.DefaultBaseURL,
			Model:       ollama.DefaultModel,
			EmbedModel:  ollama.DefaultEmbedModel,
			TimeoutSecs: int(ollama.DefaultTimeout / time.Second),
			Temperature: 0.2,
			NumCtx:      4096,
		},
		Data: DataConfig{
			DBPath:      "data/db/univ.db",
			VectorDir:   "data/vector",
			DocsDir:     "data/docs",
			CSVPath:     "data/db_seed/대학주요정보.csv",
			ChatLogPath: "data/logs/chatlog.db",
		},
		Routing: RoutingConfig{
			Strategy: router.StrategyClassify.String(),
		},
		Retrieval: RetrievalConfig{
			K:            3,
			ChunkSize:    500,
			ChunkOverlap: 50,
			Workers:      4,
			SQLTopK:      5,
			SampleRows:   3,
		},
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8000,
			RateLimit:           5,
			RateBurst:           10,
			RequestTimeoutSecs:  180,
			ShutdownTimeoutSecs: 10,
			MaxBodyBytes:        64 << 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

const (
	// DefaultPathTOML is looked up in the working directory.
	DefaultPathTOML = "hybridqa.toml"
	// DefaultPathJSON is the fallback when no TOML file exists.
	DefaultPathJSON = "hybridqa.json"
)

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads hybridqa.toml, else hybridqa.json, else the defaults.
// Environment overrides are applied last, then the result is validated.
func Load() (*Config, error) {
	for _, path := range []string{DefaultPathTOML, DefaultPathJSON} {
		if _, err := os.Stat(path); err == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default())
}

// LoadFromPath loads configuration from a specific file path with full validation.
// Files ending in .json are decoded as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg and fills unset fields.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file into cfg and fills unset fields.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults fills in any missing values with defaults. ChatLogPath is
// left alone: empty is a valid setting that disables the audit log, so
// only a config without a [data] section at all gets the default.
func fillDefaults(cfg *Config) {
	d := Default()

	// Ollama
	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = d.Ollama.URL
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = d.Ollama.Model
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = d.Ollama.EmbedModel
	}
	if cfg.Ollama.TimeoutSecs == 0 {
		cfg.Ollama.TimeoutSecs = d.Ollama.TimeoutSecs
	}
	if cfg.Ollama.Temperature == 0 {
		cfg.Ollama.Temperature = d.Ollama.Temperature
	}
	if cfg.Ollama.NumCtx == 0 {
		cfg.Ollama.NumCtx = d.Ollama.NumCtx
	}

	// Data
	if cfg.Data == (DataConfig{}) {
		cfg.Data = d.Data
	}
	if cfg.Data.DBPath == "" {
		cfg.Data.DBPath = d.Data.DBPath
	}
	if cfg.Data.VectorDir == "" {
		cfg.Data.VectorDir = d.Data.VectorDir
	}
	if cfg.Data.DocsDir == "" {
		cfg.Data.DocsDir = d.Data.DocsDir
	}
	if cfg.Data.CSVPath == "" {
		cfg.Data.CSVPath = d.Data.CSVPath
	}

	// Routing
	if cfg.Routing.Strategy == "" {
		cfg.Routing.Strategy = d.Routing.Strategy
	}

	// Retrieval
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = d.Retrieval.K
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = d.Retrieval.ChunkSize
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = d.Retrieval.ChunkOverlap
	}
	if cfg.Retrieval.Workers == 0 {
		cfg.Retrieval.Workers = d.Retrieval.Workers
	}
	if cfg.Retrieval.SQLTopK == 0 {
		cfg.Retrieval.SQLTopK = d.Retrieval.SQLTopK
	}
	if cfg.Retrieval.SampleRows == 0 {
		cfg.Retrieval.SampleRows = d.Retrieval.SampleRows
	}

	// Server
	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = d.Server.RateLimit
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = d.Server.RateBurst
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = d.Server.RequestTimeoutSecs
	}
	if cfg.Server.ShutdownTimeoutSecs == 0 {
		cfg.Server.ShutdownTimeoutSecs = d.Server.ShutdownTimeoutSecs
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// TOML renders the configuration as a commented TOML document.
func (c *Config) TOML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# hybridqa configuration file\n")
	buf.WriteString("# Environment variables (HYBRIDQA_*) take precedence over these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveTOML writes the configuration to path atomically.
func SaveTOML(cfg *Config, path string) error {
	data, err := cfg.TOML()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors listing all problems.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Ollama
	if u, err := url.Parse(c.Ollama.URL); err != nil || u.Scheme == "" || u.Host == "" {
		add("ollama.url", "invalid URL %q", c.Ollama.URL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("ollama.url", "scheme must be http or https, got %q", u.Scheme)
	}
	if c.Ollama.TimeoutSecs < 1 {
		add("ollama.timeout_secs", "must be at least 1, got %d", c.Ollama.TimeoutSecs)
	}
	if c.Ollama.Temperature < 0 || c.Ollama.Temperature > 2 {
		add("ollama.temperature", "must be between 0 and 2, got %g", c.Ollama.Temperature)
	}
	if c.Ollama.NumCtx < 0 {
		add("ollama.num_ctx", "must not be negative, got %d", c.Ollama.NumCtx)
	}

	// Data
	if c.Data.DBPath == "" {
		add("data.db_path", "must not be empty")
	}
	if c.Data.VectorDir == "" {
		add("data.vector_dir", "must not be empty")
	}

	// Routing
	if _, err := router.ParseStrategy(c.Routing.Strategy); err != nil {
		add("routing.strategy", "%v", err)
	}
	if _, err := c.Keywords(); err != nil {
		add("routing.keywords", "%v", err)
	}

	// Retrieval
	if c.Retrieval.K < 1 || c.Retrieval.K > 20 {
		add("retrieval.k", "must be between 1 and 20, got %d", c.Retrieval.K)
	}
	if c.Retrieval.ChunkSize < 50 {
		add("retrieval.chunk_size", "must be at least 50, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		add("retrieval.chunk_overlap", "must be in [0, chunk_size), got %d", c.Retrieval.ChunkOverlap)
	}
	if c.Retrieval.Workers < 1 || c.Retrieval.Workers > 64 {
		add("retrieval.workers", "must be between 1 and 64, got %d", c.Retrieval.Workers)
	}
	if c.Retrieval.SQLTopK < 1 {
		add("retrieval.sql_top_k", "must be at least 1, got %d", c.Retrieval.SQLTopK)
	}
	if c.Retrieval.SampleRows < 0 {
		add("retrieval.sample_rows", "must not be negative, got %d", c.Retrieval.SampleRows)
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative, got %g", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1 when rate limiting, got %d", c.Server.RateBurst)
	}
	if c.Server.RequestTimeoutSecs < 1 {
		add("server.request_timeout_secs", "must be at least 1, got %d", c.Server.RequestTimeoutSecs)
	}
	if c.Server.MaxBodyBytes < 1 {
		add("server.max_body_bytes", "must be positive, got %d", c.Server.MaxBodyBytes)
	}

	// Log
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "%v", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "console" && f != "json" {
		add("log.format", "must be console or json, got %q", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Strategy returns the parsed routing strategy.
func (c *Config) Strategy() (router.Strategy, error) {
	return router.ParseStrategy(c.Routing.Strategy)
}

// Keywords returns the configured keyword sets, falling back to the
// built-in set for any list left empty.
func (c *Config) Keywords() (*intent.Keywords, error) {
	structured := intent.DefaultStructuredKeywords
	if len(c.Routing.StructuredKeywords) > 0 {
		structured = intent.KeywordSet(c.Routing.StructuredKeywords)
	}
	retrieval := intent.DefaultRetrievalKeywords
	if len(c.Routing.RetrievalKeywords) > 0 {
		retrieval = intent.KeywordSet(c.Routing.RetrievalKeywords)
	}
	return intent.NewKeywords(structured, retrieval)
}

// LogOptions converts the [log] section for logging.New.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}

// OllamaClientConfig converts the [ollama] section for ollama.NewClientWithConfig.
func (c *Config) OllamaClientConfig() *ollama.ClientConfig {
	return &ollama.ClientConfig{
		BaseURL:      c.Ollama.URL,
		Timeout:      c.Ollama.Timeout(),
		DefaultModel: c.Ollama.Model,
		EmbedModel:   c.Ollama.EmbedModel,
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - HYBRIDQA_OLLAMA_URL: overrides ollama.url
//   - HYBRIDQA_MODEL: overrides ollama.model
//   - HYBRIDQA_EMBED_MODEL: overrides ollama.embed_model
//   - HYBRIDQA_DB_PATH: overrides data.db_path
//   - HYBRIDQA_VECTOR_DIR: overrides data.vector_dir
//   - HYBRIDQA_DOCS_DIR: overrides data.docs_dir
//   - HYBRIDQA_STRATEGY: overrides routing.strategy
//   - HYBRIDQA_PORT: overrides server.port (ignored if not a number)
//   - HYBRIDQA_LOG_LEVEL: overrides log.level
//   - HYBRIDQA_LOG_FORMAT: overrides log.format
func (c *Config) ApplyEnvOverrides() {
	strs := []struct {
		env string
		dst *string
	}{
		{"HYBRIDQA_OLLAMA_URL", &c.Ollama.URL},
		{"HYBRIDQA_MODEL", &c.Ollama.Model},
		{"HYBRIDQA_EMBED_MODEL", &c.Ollama.EmbedModel},
		{"HYBRIDQA_DB_PATH", &c.Data.DBPath},
		{"HYBRIDQA_VECTOR_DIR", &c.Data.VectorDir},
		{"HYBRIDQA_DOCS_DIR", &c.Data.DocsDir},
		{"HYBRIDQA_STRATEGY", &c.Routing.Strategy},
		{"HYBRIDQA_LOG_LEVEL", &c.Log.Level},
		{"HYBRIDQA_LOG_FORMAT", &c.Log.Format},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	if port := os.Getenv("HYBRIDQA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}
