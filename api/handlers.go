package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/block"
	"github.com/twinfold/contextd/pkg/completion"
	"github.com/twinfold/contextd/pkg/llm"
	"github.com/twinfold/contextd/pkg/prompt"
	"github.com/twinfold/contextd/pkg/rerank"
	"github.com/twinfold/contextd/pkg/retrieval"
	"github.com/twinfold/contextd/pkg/stage"
	"github.com/twinfold/contextd/pkg/twin"
	"github.com/twinfold/contextd/pkg/window"
)

// handlePing handles GET /ping requests.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleFlat handles POST /v1/conversations/flat requests.
func (s *Server) handleFlat(c *fiber.Ctx) error {
	var req window.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body: " + err.Error(),
		})
	}
	if err := validateTurn(req.ConversationID, req.TwinID, req.UserID, req.Messages); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	result, err := s.flat.Advance(c.Context(), req)
	if err != nil {
		return s.handleAdvanceError(c, err)
	}

	return c.JSON(result)
}

// handleStaged handles POST /v1/conversations/staged requests.
func (s *Server) handleStaged(c *fiber.Ctx) error {
	var req stage.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body: " + err.Error(),
		})
	}
	if err := validateTurn(req.ConversationID, req.TwinID, req.UserID, req.Messages); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	result, err := s.staged.Advance(c.Context(), req)
	if err != nil {
		return s.handleAdvanceError(c, err)
	}

	return c.JSON(result)
}

// handleRerank handles POST /v1/rerank requests.
func (s *Server) handleRerank(c *fiber.Ctx) error {
	var input rerank.Input
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body: " + err.Error(),
		})
	}
	if len(input.Queries) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "queries are required",
		})
	}

	matches, err := s.reranker.Rerank(c.Context(), input)
	if err != nil {
		if errors.Is(err, rerank.ErrFinalSetTooLarge) || errors.Is(err, rerank.ErrLambdaOutOfRange) {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
				Error: err.Error(),
			})
		}
		if errors.Is(err, retrieval.ErrBackend) {
			return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
				Error: err.Error(),
			})
		}
		s.logger.Error("rerank failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(fiber.Map{"matches": matches})
}

// handleAdvanceError maps a turn failure onto an HTTP status. A turn that
// fails leaves no partial state, so conflict and upstream failures are
// safe to resubmit.
func (s *Server) handleAdvanceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, twin.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	case errors.Is(err, block.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	case isValidationError(err):
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	case errors.Is(err, completion.ErrCompletion),
		errors.Is(err, completion.ErrSchema),
		errors.Is(err, completion.ErrEmptyResponse),
		errors.Is(err, retrieval.ErrBackend):
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	default:
		s.logger.Error("advance failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}
}

func isValidationError(err error) bool {
	var unknown prompt.UnknownKeyError
	var missing prompt.MissingKeyError
	return errors.As(err, &unknown) || errors.As(err, &missing)
}

func validateTurn(conversationID, twinID, userID string, messages []llm.Message) error {
	switch {
	case conversationID == "":
		return errors.New("conversationId is required")
	case twinID == "":
		return errors.New("twinId is required")
	case userID == "":
		return errors.New("userId is required")
	case len(messages) == 0:
		return errors.New("messages are required")
	}
	return nil
}
