package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config file
// (an explicit path, or contextd.yaml in the working directory), and
// binds environment variables with the CONTEXTD_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CONTEXTD_API_LISTEN, CONTEXTD_LLM_API_KEY, etc.)
//  3. Config file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery.
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("contextd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CONTEXTD_API_LISTEN, CONTEXTD_BLOCKS_PROVIDER, etc.
	v.SetEnvPrefix("CONTEXTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper decodes the full Config out of viper. Defaults registered in
// InitViper guarantee every field has a value.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Blocks
	v.SetDefault("blocks.provider", d.Blocks.Provider)
	v.SetDefault("blocks.sqlite_path", d.Blocks.SQLitePath)
	v.SetDefault("blocks.postgres_dsn", d.Blocks.PostgresDSN)
	v.SetDefault("blocks.dynamo_table", d.Blocks.DynamoTable)

	// Twins
	v.SetDefault("twins.provider", d.Twins.Provider)
	v.SetDefault("twins.seed_path", d.Twins.SeedPath)
	v.SetDefault("twins.twins_table", d.Twins.TwinsTable)
	v.SetDefault("twins.relationships_table", d.Twins.RelationshipsTable)

	// LLM
	v.SetDefault("llm.target", d.LLM.Target)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.summary_model", d.LLM.SummaryModel)
	v.SetDefault("llm.summary_max_tokens", d.LLM.SummaryMaxTokens)
	v.SetDefault("llm.progression_model", d.LLM.ProgressionModel)
	v.SetDefault("llm.progression_max_tokens", d.LLM.ProgressionMaxTokens)
	v.SetDefault("llm.questions_model", d.LLM.QuestionsModel)
	v.SetDefault("llm.questions_max_tokens", d.LLM.QuestionsMaxTokens)

	// Window
	v.SetDefault("window.max_tokens", d.Window.MaxTokens)

	// Stage
	v.SetDefault("stage.identification_frequency", d.Stage.IdentificationFrequency)

	// Retrieval
	v.SetDefault("retrieval.provider", d.Retrieval.Provider)
	v.SetDefault("retrieval.target", d.Retrieval.Target)
	v.SetDefault("retrieval.api_key", d.Retrieval.APIKey)
	v.SetDefault("retrieval.top_n", d.Retrieval.TopN)
	v.SetDefault("retrieval.k", d.Retrieval.K)
	v.SetDefault("retrieval.lambda", d.Retrieval.Lambda)

	// Embedding
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.model", d.Embedding.Model)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
	v.SetDefault("events.workers", d.Events.Workers)
	v.SetDefault("events.queue_size", d.Events.QueueSize)
}
