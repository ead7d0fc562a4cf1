package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/metrics"
	"github.com/relay-agent/backend/internal/storage/models"
	"github.com/relay-agent/backend/internal/storage/sqlite"
	"github.com/relay-agent/backend/pkg/logger"
)

type FeedbackHandler struct {
	db *sqlite.Client
}

func NewFeedbackHandler(db *sqlite.Client) *FeedbackHandler {
	return &FeedbackHandler{db: db}
}

func (h *FeedbackHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		InteractionID string `json:"interaction_id"`
		Helpful       *bool  `json:"helpful"`
		IssueCategory string `json:"issue_category"`
		Comment       string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.InteractionID == "" || req.Helpful == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "interaction_id and helpful are required",
		})
	}

	err := h.db.StoreFeedback(&models.Feedback{
		InteractionID: req.InteractionID,
		Helpful:       *req.Helpful,
		IssueCategory: req.IssueCategory,
		Comment:       req.Comment,
	})
	if err != nil {
		logger.Error("Failed to store feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	label := "false"
	if *req.Helpful {
		label = "true"
	}
	metrics.UserSatisfaction.WithLabelValues(label).Inc()

	return c.JSON(fiber.Map{
		"message": "Feedback recorded",
	})
}
