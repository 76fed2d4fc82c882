package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/rerank"
	"github.com/twinfold/contextd/pkg/stage"
	"github.com/twinfold/contextd/pkg/window"
)

// Server is the HTTP API server. The flat manager, staged engine, and
// reranker are injected so they can be shared with other components.
type Server struct {
	config   Config
	flat     *window.Manager
	staged   *stage.Engine
	reranker *rerank.Reranker
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
func NewServer(config Config, flat *window.Manager, staged *stage.Engine, reranker *rerank.Reranker, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		flat:     flat,
		staged:   staged,
		reranker: reranker,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/conversations/flat", s.handleFlat)
	app.Post("/v1/conversations/staged", s.handleStaged)
	app.Post("/v1/rerank", s.handleRerank)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
