// Package config loads and validates lingobot configuration from a YAML
// file with environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the bot.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Provider  ProviderConfig  `yaml:"provider"`
	Store     StoreConfig     `yaml:"store"`
	Batch     BatchConfig     `yaml:"batch"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Documents DocumentsConfig `yaml:"documents"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	// Token is the bot API token. Overridden by TELEGRAM_BOT_TOKEN.
	Token string `yaml:"token"`
}

// ProviderConfig configures the OpenAI-compatible model provider.
type ProviderConfig struct {
	// APIKey is overridden by OPENAI_API_KEY.
	APIKey         string  `yaml:"api_key"`
	APIBase        string  `yaml:"api_base"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float64 `yaml:"temperature"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	// Path is the SQLite database file. Overridden by LINGOBOT_DB_PATH.
	Path string `yaml:"path"`
}

// BatchConfig controls per-user message batching.
type BatchConfig struct {
	// WaitMs is how long a pass waits for additional messages before
	// claiming the batch. 0 disables the wait (useful in tests).
	WaitMs int `yaml:"wait_ms"`

	// MaxMessages is the maximum number of messages claimed per pass.
	MaxMessages int `yaml:"max_messages"`
}

// DeliveryConfig controls outbound message splitting.
type DeliveryConfig struct {
	// MaxLength is the per-message character budget. Telegram's hard
	// limit is 4096; 4000 leaves headroom for the part marker.
	MaxLength int `yaml:"max_length"`

	// SendDelayMs is the pacing delay between multi-part sends.
	SendDelayMs int `yaml:"send_delay_ms"`
}

// DocumentsConfig controls document ingestion.
type DocumentsConfig struct {
	UploadDir    string `yaml:"upload_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// RetrievalConfig controls context retrieval for replies.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.7,
		},
		Store: StoreConfig{
			Path: "lingobot.db",
		},
		Batch: BatchConfig{
			WaitMs:      15000,
			MaxMessages: 10,
		},
		Delivery: DeliveryConfig{
			MaxLength:   4000,
			SendDelayMs: 500,
		},
		Documents: DocumentsConfig{
			UploadDir:    "uploads",
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:     6,
			MinScore: 0.2,
		},
	}
}

// Load reads the config file at path, applies defaults for missing fields,
// then applies environment overrides. A missing file is not an error: the
// defaults plus environment are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults + env only.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("LINGOBOT_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// normalize fills zero values back to defaults so a partially written
// config file can't zero out operational knobs.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Provider.APIBase == "" {
		c.Provider.APIBase = def.Provider.APIBase
	}
	if c.Provider.Model == "" {
		c.Provider.Model = def.Provider.Model
	}
	if c.Provider.EmbeddingModel == "" {
		c.Provider.EmbeddingModel = def.Provider.EmbeddingModel
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Batch.MaxMessages <= 0 {
		c.Batch.MaxMessages = def.Batch.MaxMessages
	}
	if c.Delivery.MaxLength <= 0 {
		c.Delivery.MaxLength = def.Delivery.MaxLength
	}
	if c.Delivery.SendDelayMs < 0 {
		c.Delivery.SendDelayMs = def.Delivery.SendDelayMs
	}
	if c.Documents.UploadDir == "" {
		c.Documents.UploadDir = def.Documents.UploadDir
	}
	if c.Documents.ChunkSize <= 0 {
		c.Documents.ChunkSize = def.Documents.ChunkSize
	}
	if c.Documents.ChunkOverlap < 0 || c.Documents.ChunkOverlap >= c.Documents.ChunkSize {
		c.Documents.ChunkOverlap = def.Documents.ChunkOverlap
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = def.Retrieval.TopK
	}
}

// Validate checks invariants that would make the bot misbehave at runtime.
func (c *Config) Validate() error {
	if c.Delivery.MaxLength > 4096 {
		return fmt.Errorf("delivery.max_length %d exceeds the Telegram hard limit of 4096", c.Delivery.MaxLength)
	}
	if c.Batch.WaitMs < 0 {
		return fmt.Errorf("batch.wait_ms must not be negative, got %d", c.Batch.WaitMs)
	}
	return nil
}

// BatchWait returns the debounce window as a duration.
func (c *Config) BatchWait() time.Duration {
	return time.Duration(c.Batch.WaitMs) * time.Millisecond
}

// SendDelay returns the inter-part delivery pacing as a duration.
func (c *Config) SendDelay() time.Duration {
	return time.Duration(c.Delivery.SendDelayMs) * time.Millisecond
}

// DefaultPath returns the default config file location:
// $LINGOBOT_CONFIG, or lingobot.yaml next to the working directory.
func DefaultPath() string {
	if v := os.Getenv("LINGOBOT_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(".", "lingobot.yaml")
}
