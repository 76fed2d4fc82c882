package config

const (
	defaultAPIListen = ":8080"

	defaultBlocksProvider = "sqlite"
	defaultSQLitePath     = "contextd.db"

	defaultTwinsProvider = "static"

	defaultLLMTarget            = "https://api.openai.com"
	defaultSummaryModel         = "gpt-4o-mini"
	defaultSummaryMaxTokens     = 512
	defaultProgressionModel     = "gpt-4o-mini"
	defaultProgressionMaxTokens = 512
	defaultQuestionsModel       = "gpt-4o-mini"
	defaultQuestionsMaxTokens   = 256

	defaultWindowMaxTokens = 4096

	defaultIdentificationFrequency = 5

	defaultRetrievalProvider = "qdrant"
	defaultRetrievalTopN     = 10
	defaultRetrievalK        = 5
	defaultRetrievalLambda   = 0.5

	defaultEmbeddingTarget = "https://api.openai.com"
	defaultEmbeddingModel  = "text-embedding-3-small"

	defaultEventsProvider  = "nop"
	defaultEventsTopic     = "contextd.blocks"
	defaultEventsWorkers   = 2
	defaultEventsQueueSize = 256
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Blocks: BlocksConfig{
			Provider:   defaultBlocksProvider,
			SQLitePath: defaultSQLitePath,
		},
		Twins: TwinsConfig{
			Provider: defaultTwinsProvider,
		},
		LLM: LLMConfig{
			Target:               defaultLLMTarget,
			SummaryModel:         defaultSummaryModel,
			SummaryMaxTokens:     defaultSummaryMaxTokens,
			ProgressionModel:     defaultProgressionModel,
			ProgressionMaxTokens: defaultProgressionMaxTokens,
			QuestionsModel:       defaultQuestionsModel,
			QuestionsMaxTokens:   defaultQuestionsMaxTokens,
		},
		Window: WindowConfig{
			MaxTokens: defaultWindowMaxTokens,
		},
		Stage: StageConfig{
			IdentificationFrequency: defaultIdentificationFrequency,
		},
		Retrieval: RetrievalConfig{
			Provider: defaultRetrievalProvider,
			TopN:     defaultRetrievalTopN,
			K:        defaultRetrievalK,
			Lambda:   defaultRetrievalLambda,
		},
		Embedding: EmbeddingConfig{
			Target: defaultEmbeddingTarget,
			Model:  defaultEmbeddingModel,
		},
		Events: EventsConfig{
			Provider:  defaultEventsProvider,
			Topic:     defaultEventsTopic,
			Workers:   defaultEventsWorkers,
			QueueSize: defaultEventsQueueSize,
		},
	}
}
