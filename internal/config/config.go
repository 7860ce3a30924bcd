// Package config loads the config.yml that sits next to the rail files.
package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aretw0/railyard/pkg/domain"
)

// Config is the runtime configuration of a rails directory.
type Config struct {
	Models       ModelsConfig       `yaml:"models"`
	Matcher      MatcherConfig      `yaml:"matcher"`
	Guards       []domain.GuardSpec `yaml:"guards"`
	Rails        RailsConfig        `yaml:"rails"`
	Messages     MessagesConfig     `yaml:"messages"`
	Instructions string             `yaml:"instructions"`
	Session      SessionConfig      `yaml:"session"`
	Knowledge    KnowledgeConfig    `yaml:"knowledge"`
	Redis        RedisConfig        `yaml:"redis"`
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ModelsConfig selects the language-model provider.
type ModelsConfig struct {
	// Provider is one of "openai", "langchain" or "offline".
	Provider        string  `yaml:"provider"`
	CompletionModel string  `yaml:"completion_model"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
}

// MatcherConfig tunes canonical form matching.
type MatcherConfig struct {
	Threshold float64 `yaml:"threshold"`
	TopK      int     `yaml:"top_k"`
}

// RailsConfig lists the guards run at each checkpoint, in order.
// Entries name a guard from Guards or a built-in guard kind.
type RailsConfig struct {
	Input     []string `yaml:"input"`
	Retrieval []string `yaml:"retrieval"`
	Output    []string `yaml:"output"`
}

// MessagesConfig names the bot messages used for rejections.
type MessagesConfig struct {
	Reject      string `yaml:"reject"`
	Unavailable string `yaml:"unavailable"`
}

// SessionConfig bounds turn latency and session lifetime.
type SessionConfig struct {
	TurnTimeout     time.Duration `yaml:"turn_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	SweepSchedule   string        `yaml:"sweep_schedule"`
	// EncryptionKey is a base64 AES-256 key. When set, sessions are sealed at rest.
	EncryptionKey   string        `yaml:"encryption_key"`
	// FallbackKeys are older keys still accepted for decryption.
	FallbackKeys    []string      `yaml:"fallback_keys"`
	// MaskKeys are regular expressions; matching context keys are masked before saving.
	MaskKeys        []string      `yaml:"mask_keys"`
	// Dir keeps sessions as JSON files when redis.addr is empty.
	// Relative paths are resolved against the rails directory.
	Dir             string        `yaml:"dir"`
	// MaxInputSize limits user messages in bytes. Zero keeps the runner default.
	MaxInputSize    int           `yaml:"max_input_size"`
	// KeepFormatChars stops zero-width and bidi characters from being stripped.
	KeepFormatChars bool          `yaml:"keep_format_chars"`
}

// KnowledgeConfig describes the documents behind generated answers.
type KnowledgeConfig struct {
	Paths        []string     `yaml:"paths"`
	// Repository is a loam document repository whose markdown notes are ingested.
	Repository   string       `yaml:"repository"`
	ChunkSize    int          `yaml:"chunk_size"`
	ChunkOverlap int          `yaml:"chunk_overlap"`
	TopK         int          `yaml:"top_k"`
	Store        string       `yaml:"store"`
	Qdrant       QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig points at a Qdrant instance (gRPC port).
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// RedisConfig enables the Redis session store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SessionKeys decodes the active and fallback encryption keys.
// It returns nil keys when encryption is disabled.
func (c *Config) SessionKeys() (active []byte, fallback [][]byte, err error) {
	if c.Session.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(c.Session.EncryptionKey); err != nil {
		return nil, nil, err
	}
	for _, k := range c.Session.FallbackKeys {
		b, err := decodeKey(k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, b)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is not valid base64: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(b))
	}
	return b, nil
}

// Checkpoints returns the configured guard names per checkpoint.
func (c *Config) Checkpoints() map[domain.Checkpoint][]string {
	return map[domain.Checkpoint][]string{
		domain.CheckpointInput:     c.Rails.Input,
		domain.CheckpointRetrieval: c.Rails.Retrieval,
		domain.CheckpointOutput:    c.Rails.Output,
	}
}
