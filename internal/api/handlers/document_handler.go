package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/ingestion"
	"github.com/relay-agent/backend/internal/metrics"
	"github.com/relay-agent/backend/internal/storage/sqlite"
	"github.com/relay-agent/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
}

func NewDocumentHandler(processor *ingestion.Processor, db *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		db:        db,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		Source  string `json:"source"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Source == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Source and content are required",
		})
	}

	docID, chunks, err := h.processor.ProcessDocument(c.Context(), ingestion.Document{
		Source:  req.Source,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		logger.Error("Failed to process document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	metrics.DocumentsProcessed.Inc()
	metrics.ChunksIndexed.Add(float64(chunks))

	return c.JSON(fiber.Map{
		"message": "Document processed successfully",
		"doc_id":  docID,
		"chunks":  chunks,
		"source":  req.Source,
	})
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document id is required",
		})
	}

	doc, err := h.db.GetDocument(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		}
		logger.Error("Failed to load document", zap.String("doc_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load document",
		})
	}

	return c.JSON(fiber.Map{
		"id":           doc.ID,
		"source":       doc.Source,
		"title":        doc.Title,
		"content_type": doc.ContentType,
		"summary":      doc.Summary,
		"created_at":   doc.CreatedAt.Unix(),
		"updated_at":   doc.UpdatedAt.Unix(),
	})
}
