// Package servecmder provides the serve command for running the context API server.
package servecmder

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/twinfold/contextd/api"
	"github.com/twinfold/contextd/pkg/block"
	blockdynamo "github.com/twinfold/contextd/pkg/block/dynamo"
	blockinmemory "github.com/twinfold/contextd/pkg/block/inmemory"
	blockpostgres "github.com/twinfold/contextd/pkg/block/postgres"
	blocksqlite "github.com/twinfold/contextd/pkg/block/sqlite"
	completionopenai "github.com/twinfold/contextd/pkg/completion/openai"
	"github.com/twinfold/contextd/pkg/config"
	embeddingsopenai "github.com/twinfold/contextd/pkg/embeddings/openai"
	"github.com/twinfold/contextd/pkg/eventstream"
	eventkafka "github.com/twinfold/contextd/pkg/eventstream/kafka"
	eventnop "github.com/twinfold/contextd/pkg/eventstream/nop"
	"github.com/twinfold/contextd/pkg/eventstream/worker"
	"github.com/twinfold/contextd/pkg/logger"
	"github.com/twinfold/contextd/pkg/rerank"
	"github.com/twinfold/contextd/pkg/retrieval"
	"github.com/twinfold/contextd/pkg/retrieval/pinecone"
	"github.com/twinfold/contextd/pkg/retrieval/qdrant"
	"github.com/twinfold/contextd/pkg/stage"
	"github.com/twinfold/contextd/pkg/tokens/tiktoken"
	"github.com/twinfold/contextd/pkg/twin"
	twindynamo "github.com/twinfold/contextd/pkg/twin/dynamo"
	twinstatic "github.com/twinfold/contextd/pkg/twin/static"
	"github.com/twinfold/contextd/pkg/window"
)

type ServeCommander struct {
	apiListen         string
	blocksProvider    string
	sqlitePath        string
	twinsProvider     string
	llmTarget         string
	windowMaxTokens   int
	stageFrequency    int
	retrievalProvider string
	retrievalTarget   string
	eventsProvider    string
	debug             bool
	logger            *zap.Logger
}

const serveLongDesc string = `Run the contextd API server.

The server exposes flat and staged conversation turns plus standalone
retrieval reranking. Backends for block storage, twin records, retrieval,
and the event stream are selected via configuration.`

const serveShortDesc string = "Run the contextd API server"

// flagKeys are the registry keys this command registers and binds.
var flagKeys = []string{
	config.FlagAPIListen,
	config.FlagBlocksProvider,
	config.FlagSQLite,
	config.FlagTwinsProvider,
	config.FlagLLMTarget,
	config.FlagWindowMaxTokens,
	config.FlagStageFrequency,
	config.FlagRetrievalProvider,
	config.FlagRetrievalTarget,
	config.FlagEventsProvider,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %v", err)
			}

			v, err := config.InitViper(configPath)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, flagKeys)

			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context(), cfg)
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagBlocksProvider, &cmder.blocksProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagTwinsProvider, &cmder.twinsProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLLMTarget, &cmder.llmTarget)
	config.AddIntFlag(cmd, config.ServeFlags, config.FlagWindowMaxTokens, &cmder.windowMaxTokens)
	config.AddIntFlag(cmd, config.ServeFlags, config.FlagStageFrequency, &cmder.stageFrequency)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagRetrievalProvider, &cmder.retrievalProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagRetrievalTarget, &cmder.retrievalTarget)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventsProvider, &cmder.eventsProvider)

	return cmd
}

func (c *ServeCommander) run(ctx context.Context, cfg *config.Config) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	blocks, err := c.createBlockStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer blocks.Close()

	twins, err := c.createTwinStore(ctx, cfg)
	if err != nil {
		return err
	}

	counter, err := tiktoken.NewCounter("")
	if err != nil {
		return fmt.Errorf("creating token counter: %w", err)
	}

	completer, err := completionopenai.NewClient(completionopenai.Config{
		BaseURL: cfg.LLM.Target,
		APIKey:  cfg.LLM.APIKey,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating completion client: %w", err)
	}

	embedder, err := embeddingsopenai.NewEmbedder(embeddingsopenai.Config{
		BaseURL: cfg.Embedding.Target,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	driver, err := c.createRetrievalDriver(cfg, embedder)
	if err != nil {
		return err
	}
	defer driver.Close()

	reranker, err := rerank.NewReranker(rerank.Config{
		Lambda: cfg.Retrieval.Lambda,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating reranker: %w", err)
	}

	publisher, err := c.createPublisher(cfg)
	if err != nil {
		return err
	}

	pool, err := worker.NewPool(&worker.Config{
		Publisher:  publisher,
		NumWorkers: uint(cfg.Events.Workers),
		QueueSize:  uint(cfg.Events.QueueSize),
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event worker pool: %w", err)
	}

	flat, err := window.NewManager(window.Config{
		MaxTokens:        cfg.Window.MaxTokens,
		SummaryModel:     cfg.LLM.SummaryModel,
		SummaryMaxTokens: cfg.LLM.SummaryMaxTokens,
	}, blocks, twins, counter, completer, pool, c.logger)
	if err != nil {
		return fmt.Errorf("creating window manager: %w", err)
	}

	staged, err := stage.NewEngine(stage.Config{
		IdentificationFrequency: cfg.Stage.IdentificationFrequency,
		ProgressionModel:        cfg.LLM.ProgressionModel,
		ProgressionMaxTokens:    cfg.LLM.ProgressionMaxTokens,
		QuestionsModel:          cfg.LLM.QuestionsModel,
		QuestionsMaxTokens:      cfg.LLM.QuestionsMaxTokens,
		RetrievalTopN:           cfg.Retrieval.TopN,
		RetrievalK:              cfg.Retrieval.K,
	}, blocks, twins, completer, reranker, pool, c.logger)
	if err != nil {
		return fmt.Errorf("creating stage engine: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
	}, flat, staged, reranker, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		pool.Close()
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	if err := apiServer.Shutdown(); err != nil {
		c.logger.Error("shutting down API server", zap.Error(err))
	}

	// Drain queued events after the server stops accepting turns.
	pool.Close()

	return nil
}

func (c *ServeCommander) createBlockStore(ctx context.Context, cfg *config.Config) (block.Store, error) {
	switch cfg.Blocks.Provider {
	case "inmemory":
		c.logger.Info("using in-memory block store")
		return blockinmemory.NewStore(), nil

	case "sqlite":
		store, err := blocksqlite.NewStore(cfg.Blocks.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite block store: %w", err)
		}
		c.logger.Info("using sqlite block store", zap.String("path", cfg.Blocks.SQLitePath))
		return store, nil

	case "postgres":
		store, err := blockpostgres.NewStore(ctx, cfg.Blocks.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres block store: %w", err)
		}
		c.logger.Info("using postgres block store")
		return store, nil

	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		store, err := blockdynamo.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.Blocks.DynamoTable)
		if err != nil {
			return nil, fmt.Errorf("creating dynamo block store: %w", err)
		}
		c.logger.Info("using dynamo block store", zap.String("table", cfg.Blocks.DynamoTable))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown block store provider: %q", cfg.Blocks.Provider)
	}
}

func (c *ServeCommander) createTwinStore(ctx context.Context, cfg *config.Config) (twin.Store, error) {
	switch cfg.Twins.Provider {
	case "static":
		if cfg.Twins.SeedPath == "" {
			return nil, fmt.Errorf("static twin store requires twins.seed_path")
		}
		store, err := twinstatic.NewStoreFromFile(cfg.Twins.SeedPath)
		if err != nil {
			return nil, err
		}
		c.logger.Info("using static twin store", zap.String("seed", cfg.Twins.SeedPath))
		return store, nil

	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		store, err := twindynamo.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.Twins.TwinsTable, cfg.Twins.RelationshipsTable)
		if err != nil {
			return nil, fmt.Errorf("creating dynamo twin store: %w", err)
		}
		c.logger.Info("using dynamo twin store",
			zap.String("twins_table", cfg.Twins.TwinsTable),
			zap.String("relationships_table", cfg.Twins.RelationshipsTable),
		)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown twin store provider: %q", cfg.Twins.Provider)
	}
}

func (c *ServeCommander) createRetrievalDriver(cfg *config.Config, embedder *embeddingsopenai.Embedder) (retrieval.Driver, error) {
	switch cfg.Retrieval.Provider {
	case "pinecone":
		driver, err := pinecone.NewDriver(pinecone.Config{
			URL:    cfg.Retrieval.Target,
			APIKey: cfg.Retrieval.APIKey,
		}, embedder, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating pinecone driver: %w", err)
		}
		c.logger.Info("using pinecone retrieval", zap.String("target", cfg.Retrieval.Target))
		return driver, nil

	case "qdrant":
		host, port, err := splitHostPort(cfg.Retrieval.Target)
		if err != nil {
			return nil, fmt.Errorf("parsing qdrant target: %w", err)
		}
		driver, err := qdrant.NewDriver(qdrant.Config{
			Host:   host,
			Port:   port,
			APIKey: cfg.Retrieval.APIKey,
		}, embedder, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating qdrant driver: %w", err)
		}
		c.logger.Info("using qdrant retrieval", zap.String("target", cfg.Retrieval.Target))
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown retrieval provider: %q", cfg.Retrieval.Provider)
	}
}

func (c *ServeCommander) createPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "nop", "":
		return eventnop.NewPublisher(), nil

	case "kafka":
		publisher, err := eventkafka.NewPublisher(eventkafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("using kafka event stream",
			zap.Strings("brokers", cfg.Events.Brokers),
			zap.String("topic", cfg.Events.Topic),
		)
		return publisher, nil

	default:
		return nil, fmt.Errorf("unknown event stream provider: %q", cfg.Events.Provider)
	}
}

func splitHostPort(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
