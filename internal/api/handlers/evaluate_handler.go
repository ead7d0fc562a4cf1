package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/evaluation"
	"github.com/relay-agent/backend/pkg/logger"
)

type EvaluateHandler struct {
	evaluator *evaluation.Evaluator
}

func NewEvaluateHandler(evaluator *evaluation.Evaluator) *EvaluateHandler {
	return &EvaluateHandler{evaluator: evaluator}
}

// EvaluatePair scores one (query, response) pair on demand, without
// running the pipeline.
func (h *EvaluateHandler) EvaluatePair(c *fiber.Ctx) error {
	var req struct {
		Query    string `json:"query"`
		Response string `json:"response"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	return c.JSON(h.evaluator.Evaluate(req.Query, req.Response))
}

// EvaluateBatch scores a list of pairs and returns per-item results plus
// aggregate summary statistics.
func (h *EvaluateHandler) EvaluateBatch(c *fiber.Ctx) error {
	var req struct {
		Items []evaluation.Item `json:"items"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "items must be non-empty",
		})
	}

	results, summary := h.evaluator.EvaluateBatch(req.Items)
	return c.JSON(fiber.Map{
		"results": results,
		"summary": summary,
	})
}
