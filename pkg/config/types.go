// Package config holds the contextd configuration surface: typed config
// sections, defaults, viper initialization, and the CLI flag registry.
package config

// Config represents the full contextd configuration. Sections group the
// settings by concern and mirror the dotted viper key layout.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Blocks    BlocksConfig    `mapstructure:"blocks"`
	Twins     TwinsConfig     `mapstructure:"twins"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Window    WindowConfig    `mapstructure:"window"`
	Stage     StageConfig     `mapstructure:"stage"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Events    EventsConfig    `mapstructure:"events"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

// BlocksConfig holds block store settings. Provider selects the backend:
// "inmemory", "sqlite", "postgres", or "dynamo".
type BlocksConfig struct {
	Provider    string `mapstructure:"provider"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	DynamoTable string `mapstructure:"dynamo_table"`
}

// TwinsConfig holds twin store settings. Provider selects the backend:
// "static" or "dynamo". SeedPath points at the JSON seed file used by the
// static provider.
type TwinsConfig struct {
	Provider           string `mapstructure:"provider"`
	SeedPath           string `mapstructure:"seed_path"`
	TwinsTable         string `mapstructure:"twins_table"`
	RelationshipsTable string `mapstructure:"relationships_table"`
}

// LLMConfig holds the chat completion provider settings. The API key is
// only read from the environment.
type LLMConfig struct {
	Target               string `mapstructure:"target"`
	APIKey               string `mapstructure:"api_key"`
	SummaryModel         string `mapstructure:"summary_model"`
	SummaryMaxTokens     int    `mapstructure:"summary_max_tokens"`
	ProgressionModel     string `mapstructure:"progression_model"`
	ProgressionMaxTokens int    `mapstructure:"progression_max_tokens"`
	QuestionsModel       string `mapstructure:"questions_model"`
	QuestionsMaxTokens   int    `mapstructure:"questions_max_tokens"`
}

// WindowConfig holds flat-mode context window settings.
type WindowConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

// StageConfig holds staged-mode settings.
type StageConfig struct {
	IdentificationFrequency int `mapstructure:"identification_frequency"`
}

// RetrievalConfig holds vector retrieval settings. Provider selects the
// backend: "pinecone" or "qdrant".
type RetrievalConfig struct {
	Provider string  `mapstructure:"provider"`
	Target   string  `mapstructure:"target"`
	APIKey   string  `mapstructure:"api_key"`
	TopN     int     `mapstructure:"top_n"`
	K        int     `mapstructure:"k"`
	Lambda   float64 `mapstructure:"lambda"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Target string `mapstructure:"target"`
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// EventsConfig holds event stream settings. Provider selects the backend:
// "nop" or "kafka".
type EventsConfig struct {
	Provider  string   `mapstructure:"provider"`
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	Workers   int      `mapstructure:"workers"`
	QueueSize int      `mapstructure:"queue_size"`
}
