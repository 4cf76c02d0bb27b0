package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"medrag/internal/prompt"
)

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the query embedder. It must match the
// embedder the index was built with.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// LocalConfig points at a directory of persisted collections.
type LocalConfig struct {
	PersistDir string `yaml:"persist_dir"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PgvectorConfig contains connection details for a Postgres table with a vector column.
type PgvectorConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type              string          `yaml:"type"`
	Collection        string          `yaml:"collection"`
	SearchTimeoutSecs int             `yaml:"search_timeout_secs"`
	Local             *LocalConfig    `yaml:"local,omitempty"`
	Qdrant            *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pgvector          *PgvectorConfig `yaml:"pgvector,omitempty"`
}

// RetrievalConfig bounds how much retrieved text reaches the prompt.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
}

// DefaultMaxInputTokens is the input window of the default model, gpt-4o.
const DefaultMaxInputTokens = 128000

// CompletionConfig selects the language model provider.
type CompletionConfig struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
	MaxInputTokens int     `yaml:"max_input_tokens"`
	BytesPerToken  int     `yaml:"bytes_per_token"`
	Temperature    float32 `yaml:"temperature"`
}

// PromptConfig picks the active template. Templates are merged over the built-ins.
type PromptConfig struct {
	Template  string                         `yaml:"template"`
	Templates map[string]prompt.TemplateSpec `yaml:"templates,omitempty"`
}

// ServerConfig configures the HTTP ask endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Completion  CompletionConfig  `yaml:"completion"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Server      ServerConfig      `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFrom loads path when given, otherwise falls back to LoadDefault.
func LoadFrom(path string) (*AppConfig, string, error) {
	if path == "" {
		return LoadDefault()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, "", fmt.Errorf("config %s: %w", path, err)
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// LoadDefault tries ./config.yaml first, then ~/.config/medrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/medrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxContextChars < 0 {
		return fmt.Errorf("retrieval.max_context_chars must not be negative")
	}
	switch c.Embedder.Type {
	case "tfidf", "openai":
	default:
		return fmt.Errorf("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "local", "qdrant", "pgvector":
	default:
		return fmt.Errorf("unknown vector_store type %q", c.VectorStore.Type)
	}
	if c.VectorStore.Collection == "" {
		return errors.New("vector_store.collection is required")
	}
	switch c.Completion.Provider {
	case "openai", "openai-sdk", "mock":
	default:
		return fmt.Errorf("unknown completion provider %q", c.Completion.Provider)
	}
	if c.Completion.Model == "" {
		return errors.New("completion.model is required")
	}
	templates, err := c.ParseTemplates()
	if err != nil {
		return err
	}
	if _, ok := templates[c.Prompt.Template]; !ok {
		return fmt.Errorf("prompt.template %q is not defined (have %v)", c.Prompt.Template, sortedKeys(templates))
	}
	return nil
}

// ParseTemplates parses the built-in templates overlaid with the configured ones.
func (c *AppConfig) ParseTemplates() (map[string]*prompt.Template, error) {
	specs := prompt.Builtins()
	for name, spec := range c.Prompt.Templates {
		spec.Name = name
		specs[name] = spec
	}
	out := make(map[string]*prompt.Template, len(specs))
	for name, spec := range specs {
		t, err := prompt.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("prompt template %q: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// Template returns the parsed template called name, or the configured one when name is empty.
func (c *AppConfig) Template(name string) (*prompt.Template, error) {
	if name == "" {
		name = c.Prompt.Template
	}
	templates, err := c.ParseTemplates()
	if err != nil {
		return nil, err
	}
	t, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("prompt template %q is not defined (have %v)", name, sortedKeys(templates))
	}
	return t, nil
}

// SearchTimeout bounds embedding plus index search.
func (c *AppConfig) SearchTimeout() time.Duration {
	return time.Duration(c.VectorStore.SearchTimeoutSecs) * time.Second
}

// Timeout bounds a single model call.
func (c CompletionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func sortedKeys(m map[string]*prompt.Template) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "medrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Log:      LogConfig{Level: "info", Format: "json"},
		Embedder: EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{
			Type:       "local",
			Collection: "medicine-research",
			Local:      &LocalConfig{PersistDir: "chroma"},
		},
		Retrieval:  RetrievalConfig{TopK: 5},
		Completion: CompletionConfig{Provider: "openai", Model: "gpt-4o"},
		Prompt:     PromptConfig{Template: prompt.StrictMedical},
		Server:     ServerConfig{Addr: ":8080"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}

	vs := &cfg.VectorStore
	if vs.Type == "" {
		vs.Type = "local"
	}
	if vs.Collection == "" {
		vs.Collection = "medicine-research"
	}
	if vs.SearchTimeoutSecs == 0 {
		vs.SearchTimeoutSecs = 10
	}
	switch vs.Type {
	case "local":
		if vs.Local == nil {
			vs.Local = &LocalConfig{}
		}
		if vs.Local.PersistDir == "" {
			vs.Local.PersistDir = "chroma"
		}
	case "qdrant":
		if vs.Qdrant == nil {
			vs.Qdrant = &QdrantConfig{}
		}
		if vs.Qdrant.URL == "" {
			vs.Qdrant.URL = "http://localhost:6333"
		}
		if vs.Qdrant.TimeoutSecs == 0 {
			vs.Qdrant.TimeoutSecs = vs.SearchTimeoutSecs
		}
	case "pgvector":
		if vs.Pgvector == nil {
			vs.Pgvector = &PgvectorConfig{}
		}
		if vs.Pgvector.Table == "" {
			vs.Pgvector.Table = "chunks"
		}
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}

	c := &cfg.Completion
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 60
	}
	if c.MaxInputTokens == 0 {
		c.MaxInputTokens = DefaultMaxInputTokens
	}
	if c.BytesPerToken == 0 {
		c.BytesPerToken = 4
	}

	if cfg.Prompt.Template == "" {
		cfg.Prompt.Template = prompt.StrictMedical
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}
