package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileNames are the accepted configuration file names inside a rails directory.
var FileNames = []string{"config.yml", "config.yaml"}

// Load reads the configuration of a rails directory. A missing file is not an error:
// defaults apply. Environment overrides are applied before validation.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat configuration file %q: %w", path, err)
		}
	}
	return finish(&Config{})
}

// LoadFile reads a single configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, then applies defaults and environment overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies RAILYARD_SECTION_FIELD variables. Malformed numbers
// and durations are ignored.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}

	setString("RAILYARD_MODELS_PROVIDER", &cfg.Models.Provider)
	setString("RAILYARD_MODELS_COMPLETION_MODEL", &cfg.Models.CompletionModel)
	setString("RAILYARD_MODELS_EMBEDDING_MODEL", &cfg.Models.EmbeddingModel)
	setString("RAILYARD_MODELS_BASE_URL", &cfg.Models.BaseURL)
	if cfg.Models.APIKey == "" {
		setString("OPENAI_API_KEY", &cfg.Models.APIKey)
	}
	setString("RAILYARD_MODELS_API_KEY", &cfg.Models.APIKey)

	if val := os.Getenv("RAILYARD_MATCHER_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Matcher.Threshold = f
		}
	}
	if val := os.Getenv("RAILYARD_SESSION_TURN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Session.TurnTimeout = d
		}
	}
	if val := os.Getenv("RAILYARD_SESSION_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Session.IdleTimeout = d
		}
	}

	setString("RAILYARD_SESSION_ENCRYPTION_KEY", &cfg.Session.EncryptionKey)

	setString("RAILYARD_KNOWLEDGE_STORE", &cfg.Knowledge.Store)
	setString("RAILYARD_QDRANT_HOST", &cfg.Knowledge.Qdrant.Host)
	setString("RAILYARD_QDRANT_API_KEY", &cfg.Knowledge.Qdrant.APIKey)
	if val := os.Getenv("RAILYARD_QDRANT_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Knowledge.Qdrant.Port = i
		}
	}

	setString("RAILYARD_REDIS_ADDR", &cfg.Redis.Addr)
	setString("RAILYARD_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("RAILYARD_SERVER_ADDR", &cfg.Server.Addr)
	setString("RAILYARD_LOG_LEVEL", &cfg.Logging.Level)
	setString("RAILYARD_LOG_FORMAT", &cfg.Logging.Format)
}
