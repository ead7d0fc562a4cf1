package writer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/storage/models"
	"github.com/relay-agent/backend/internal/vector"
	"github.com/relay-agent/backend/pkg/logger"
)

// Embedder produces the vector persisted alongside each response.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HistoryStore is the relational side of persistence. The SQLite client
// satisfies this.
type HistoryStore interface {
	InsertInteraction(record *models.InteractionRecord) error
	StoreEvaluation(record *models.EvaluationRecord) error
}

// Interaction is everything the writer needs to persist one processed
// response. The writer never mutates it.
type Interaction struct {
	ID             string
	UserID         string
	Query          string
	Response       string
	Classification string
	Model          string
	ContextCount   int
	LiveDataUsed   bool
	Enhanced       bool
	LatencyMS      int
	Evaluation     *models.EvaluationRecord
}

// Writer persists processed responses off the request path. Schedule returns
// immediately; embedding, vector upsert, and history inserts run in a
// goroutine whose failures are logged and counted but never surfaced to the
// caller. Close drains all in-flight writes.
type Writer struct {
	embedder Embedder
	store    vector.Store
	history  HistoryStore
	timeout  time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool

	onResult func(ok bool)
}

// Config tunes the writer. All fields are optional.
type Config struct {
	// Timeout bounds each background write. Zero means 30 seconds.
	Timeout time.Duration
	// OnResult is invoked after each write attempt, for metrics.
	OnResult func(ok bool)
}

func New(embedder Embedder, store vector.Store, history HistoryStore, cfg Config) *Writer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Writer{
		embedder: embedder,
		store:    store,
		history:  history,
		timeout:  cfg.Timeout,
		onResult: cfg.OnResult,
	}
}

// Schedule queues one interaction for persistence. It reports whether the
// write was accepted; false only after Close. Acceptance does not guarantee
// the write succeeded, only that it was attempted.
func (w *Writer) Schedule(interaction Interaction) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		logger.Warn("Storage writer closed, dropping interaction",
			zap.String("interaction_id", interaction.ID))
		return false
	}
	w.wg.Add(1)
	w.mu.Unlock()

	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}

	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		ok := w.persist(ctx, interaction)
		if w.onResult != nil {
			w.onResult(ok)
		}
	}()

	return true
}

// Close waits for every scheduled write to finish. Schedule calls after
// Close are rejected.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Writer) persist(ctx context.Context, interaction Interaction) bool {
	ok := true

	embedding, err := w.embedder.Embed(ctx, interaction.Response)
	if err != nil {
		logger.Error("Failed to embed response for storage",
			zap.String("interaction_id", interaction.ID),
			zap.Error(err))
		ok = false
	} else {
		item := vector.Item{
			ID:        interaction.ID,
			Text:      interaction.Response,
			Embedding: embedding,
			Metadata: vector.Metadata{
				Source:         "ai_response",
				Provenance:     vector.ProvenanceProcessedResponse,
				Query:          interaction.Query,
				Classification: interaction.Classification,
				Model:          interaction.Model,
				Timestamp:      time.Now().Unix(),
			},
		}
		if err := w.store.Upsert(ctx, []vector.Item{item}); err != nil {
			logger.Error("Failed to upsert response vector",
				zap.String("interaction_id", interaction.ID),
				zap.Error(err))
			ok = false
		}
	}

	if w.history != nil {
		record := &models.InteractionRecord{
			ID:             interaction.ID,
			UserID:         interaction.UserID,
			QueryText:      interaction.Query,
			Response:       interaction.Response,
			Classification: interaction.Classification,
			Model:          interaction.Model,
			ContextCount:   interaction.ContextCount,
			LiveDataUsed:   interaction.LiveDataUsed,
			Enhanced:       interaction.Enhanced,
			Stored:         ok,
			LatencyMS:      interaction.LatencyMS,
			CreatedAt:      time.Now(),
		}
		if err := w.history.InsertInteraction(record); err != nil {
			logger.Error("Failed to record interaction history",
				zap.String("interaction_id", interaction.ID),
				zap.Error(err))
			ok = false
		} else if interaction.Evaluation != nil {
			eval := *interaction.Evaluation
			eval.InteractionID = interaction.ID
			if err := w.history.StoreEvaluation(&eval); err != nil {
				logger.Error("Failed to record evaluation result",
					zap.String("interaction_id", interaction.ID),
					zap.Error(err))
			}
		}
	}

	if ok {
		logger.Debug("Interaction persisted",
			zap.String("interaction_id", interaction.ID),
			zap.String("classification", interaction.Classification))
	}
	return ok
}
