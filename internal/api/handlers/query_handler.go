package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/classify"
	"github.com/relay-agent/backend/internal/metrics"
	"github.com/relay-agent/backend/internal/pipeline"
	"github.com/relay-agent/backend/internal/storage/sqlite"
	"github.com/relay-agent/backend/pkg/logger"
	"github.com/relay-agent/backend/pkg/utils"
)

const responseCacheTTL = 5 * time.Minute

// ResponseCache short-circuits repeat queries whose answers do not depend
// on live data. Optional, nil disables caching.
type ResponseCache interface {
	GetResponse(ctx context.Context, queryHash string, response interface{}) (bool, error)
	SetResponse(ctx context.Context, queryHash string, response interface{}, ttl time.Duration) error
}

type queryResponse struct {
	ID             string                `json:"id"`
	Query          string                `json:"query"`
	Response       string                `json:"response"`
	Classification string                `json:"classification"`
	Evaluation     interface{}           `json:"evaluation"`
	Stored         bool                  `json:"stored"`
	Degradations   pipeline.Degradations `json:"degradations"`
	LatencyMS      int                   `json:"latency_ms"`
	Cached         bool                  `json:"cached"`
	Error          *string               `json:"error"`
}

type QueryHandler struct {
	pipe  *pipeline.Pipeline
	db    *sqlite.Client
	cache ResponseCache
}

func NewQueryHandler(pipe *pipeline.Pipeline, db *sqlite.Client, cache ResponseCache) *QueryHandler {
	return &QueryHandler{
		pipe:  pipe,
		db:    db,
		cache: cache,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query  string `json:"query"`
		UserID string `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	queryHash := utils.HashString(req.Query)
	if h.cache != nil {
		var cached queryResponse
		hit, err := h.cache.GetResponse(c.Context(), queryHash, &cached)
		if err != nil {
			logger.Warn("Response cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("response").Inc()
			cached.Cached = true
			return c.JSON(cached)
		}
		metrics.CacheMisses.WithLabelValues("response").Inc()
	}

	start := time.Now()
	result := h.pipe.Process(c.Context(), pipeline.Request{
		Query:  req.Query,
		UserID: req.UserID,
	})
	recordQueryMetrics(result, time.Since(start))

	if result.Err != nil {
		code := pipeline.ErrorCode(result.Err)
		logger.Error("Failed to process query",
			zap.String("pipeline_id", result.ID),
			zap.String("code", code),
			zap.Error(result.Err),
		)
		return c.Status(statusForCode(code)).JSON(fiber.Map{
			"id":             result.ID,
			"classification": result.Classification,
			"response":       "",
			"stored":         false,
			"error":          code + ": " + result.Err.Error(),
		})
	}

	resp := queryResponse{
		ID:             result.ID,
		Query:          result.Query,
		Response:       result.Response,
		Classification: string(result.Classification),
		Evaluation:     result.Evaluation,
		Stored:         result.Stored,
		Degradations:   result.Degradations,
		LatencyMS:      result.LatencyMS,
	}

	// Live data goes stale too fast to cache; everything else is stable
	// until the next ingestion invalidates it.
	if h.cache != nil && !result.LiveDataUsed && !result.Degradations.LiveDataFailed {
		if err := h.cache.SetResponse(c.Context(), queryHash, resp, responseCacheTTL); err != nil {
			logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return c.JSON(resp)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be an integer between 1 and 100",
			})
		}
		limit = parsed
	}

	records, err := h.db.GetInteractionHistory(userID, limit)
	if err != nil {
		logger.Error("Failed to load interaction history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		history = append(history, fiber.Map{
			"id":             r.ID,
			"query":          r.QueryText,
			"response":       r.Response,
			"classification": r.Classification,
			"model":          r.Model,
			"context_count":  r.ContextCount,
			"created_at":     r.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}

func recordQueryMetrics(result pipeline.Result, elapsed time.Duration) {
	class := string(result.Classification)
	metrics.QueryDuration.WithLabelValues(class).Observe(elapsed.Seconds())

	status := "ok"
	if result.Err != nil {
		status = "error"
	}
	metrics.QueryTotal.WithLabelValues(class, status).Inc()

	if result.Err == nil {
		metrics.ContextWindowSize.Observe(float64(result.ContextCount))
	}
	if result.LiveDataUsed {
		metrics.LiveFetchTotal.WithLabelValues("ok").Inc()
	} else if result.Degradations.LiveDataFailed ||
		(result.Err != nil && result.Classification == classify.LiveData) {
		metrics.LiveFetchTotal.WithLabelValues("error").Inc()
	}

	if result.Degradations.EmptyEvidence {
		metrics.DegradationTotal.WithLabelValues("empty_evidence").Inc()
	}
	if result.Degradations.LiveDataFailed {
		metrics.DegradationTotal.WithLabelValues("live_data_failed").Inc()
	}
	if result.Degradations.EnhancementFailed {
		metrics.DegradationTotal.WithLabelValues("enhancement_failed").Inc()
	}

	if result.Evaluation != nil {
		for _, criterion := range result.Evaluation.Criteria {
			metrics.EvaluationScore.WithLabelValues(criterion.Criterion).Observe(criterion.Score)
		}
	}
}

func statusForCode(code string) int {
	switch code {
	case "not_found":
		return fiber.StatusNotFound
	case "upstream_unavailable", "engine_unavailable":
		return fiber.StatusBadGateway
	case "malformed_response", "empty_completion":
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
