package config

import "time"

// Default values for configuration fields.
const (
	DefaultProvider        = "openai"
	DefaultCompletionModel = "gpt-3.5-turbo"
	DefaultEmbeddingModel  = "text-embedding-ada-002"

	DefaultThreshold = 0.75
	DefaultTopK      = 5

	DefaultRejectMessage      = "refuse to respond"
	DefaultUnavailableMessage = "inform service unavailable"

	DefaultTurnTimeout   = 30 * time.Second
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepSchedule = "@every 1m"

	DefaultChunkSize        = 1000
	DefaultChunkOverlap     = 200
	DefaultKnowledgeTopK    = 2
	DefaultKnowledgeStore   = "memory"
	DefaultQdrantPort       = 6334
	DefaultQdrantCollection = "railyard"

	DefaultRedisPrefix = "railyard:session:"
	DefaultServerAddr  = ":8080"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Models.Provider == "" {
		cfg.Models.Provider = DefaultProvider
	}
	if cfg.Models.CompletionModel == "" {
		cfg.Models.CompletionModel = DefaultCompletionModel
	}
	if cfg.Models.EmbeddingModel == "" {
		cfg.Models.EmbeddingModel = DefaultEmbeddingModel
	}

	if cfg.Matcher.Threshold == 0 {
		cfg.Matcher.Threshold = DefaultThreshold
	}
	if cfg.Matcher.TopK == 0 {
		cfg.Matcher.TopK = DefaultTopK
	}

	if cfg.Messages.Reject == "" {
		cfg.Messages.Reject = DefaultRejectMessage
	}
	if cfg.Messages.Unavailable == "" {
		cfg.Messages.Unavailable = DefaultUnavailableMessage
	}

	if cfg.Session.TurnTimeout == 0 {
		cfg.Session.TurnTimeout = DefaultTurnTimeout
	}
	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Session.SweepSchedule == "" {
		cfg.Session.SweepSchedule = DefaultSweepSchedule
	}

	if cfg.Knowledge.ChunkSize == 0 {
		cfg.Knowledge.ChunkSize = DefaultChunkSize
	}
	if cfg.Knowledge.ChunkOverlap == 0 {
		cfg.Knowledge.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.Knowledge.TopK == 0 {
		cfg.Knowledge.TopK = DefaultKnowledgeTopK
	}
	if cfg.Knowledge.Store == "" {
		cfg.Knowledge.Store = DefaultKnowledgeStore
	}
	if cfg.Knowledge.Qdrant.Port == 0 {
		cfg.Knowledge.Qdrant.Port = DefaultQdrantPort
	}
	if cfg.Knowledge.Qdrant.Collection == "" {
		cfg.Knowledge.Qdrant.Collection = DefaultQdrantCollection
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = DefaultRedisPrefix
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}
