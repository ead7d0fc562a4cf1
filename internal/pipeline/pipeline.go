package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/classify"
	"github.com/relay-agent/backend/internal/evaluation"
	"github.com/relay-agent/backend/internal/llm"
	"github.com/relay-agent/backend/internal/retrieval"
	"github.com/relay-agent/backend/internal/storage/models"
	"github.com/relay-agent/backend/internal/storage/writer"
	"github.com/relay-agent/backend/internal/synthesis"
	"github.com/relay-agent/backend/internal/weather"
	"github.com/relay-agent/backend/pkg/logger"
)

// Request is one query entering the pipeline.
type Request struct {
	Query  string
	UserID string
}

// Degradations are the non-fatal fallbacks taken while producing a
// response. They never hide the answer, only flag reduced confidence.
type Degradations struct {
	EmptyEvidence     bool `json:"empty_evidence"`
	LiveDataFailed    bool `json:"live_data_failed"`
	EnhancementFailed bool `json:"enhancement_failed"`
}

// Result is the caller-facing outcome of one pipeline run. On a fatal
// error Response is empty, Err is set, and Stored is false. Stored means
// persistence was scheduled, not that it already completed.
type Result struct {
	ID             string
	Query          string
	Response       string
	Classification classify.Classification
	Evaluation     *evaluation.Result
	Stored         bool
	Degradations   Degradations
	ContextCount   int
	LiveDataUsed   bool
	LatencyMS      int
	Err            error
}

// Pipeline sequences classification, evidence acquisition, synthesis,
// enhancement, evaluation, and background persistence. It holds no
// cross-request mutable state, so one instance serves concurrent queries.
type Pipeline struct {
	classifier *classify.Classifier
	provider   weather.Provider
	retriever  *retrieval.Branch
	synth      *synthesis.Synthesizer
	enhancer   *synthesis.Enhancer
	writer     *writer.Writer
	evaluator  *evaluation.Evaluator
	model      string
}

func New(
	classifier *classify.Classifier,
	provider weather.Provider,
	retriever *retrieval.Branch,
	synth *synthesis.Synthesizer,
	enhancer *synthesis.Enhancer,
	w *writer.Writer,
	evaluator *evaluation.Evaluator,
	model string,
) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		provider:   provider,
		retriever:  retriever,
		synth:      synth,
		enhancer:   enhancer,
		writer:     w,
		evaluator:  evaluator,
		model:      model,
	}
}

// Process runs the full pipeline for one query. Branch and enhancement
// failures degrade gracefully where an answer can still be produced;
// synthesis failures and a failed live fetch on a pure live_data query are
// fatal. Storage runs in the background and never fails the request.
func (p *Pipeline) Process(ctx context.Context, req Request) Result {
	start := time.Now()
	result := Result{
		ID:    uuid.New().String(),
		Query: req.Query,
	}

	result.Classification = p.classifier.Classify(req.Query)
	logger.Info("Query classified",
		zap.String("pipeline_id", result.ID),
		zap.String("classification", string(result.Classification)),
	)

	evidence, fatal := p.acquireEvidence(ctx, req.Query, result.Classification, &result.Degradations)
	if fatal != nil {
		result.Err = fatal
		result.LatencyMS = int(time.Since(start).Milliseconds())
		logger.Error("Evidence acquisition failed",
			zap.String("pipeline_id", result.ID),
			zap.Error(fatal),
		)
		return result
	}
	result.Degradations.EmptyEvidence = evidence.Empty()

	draft, err := p.synth.Synthesize(ctx, req.Query, evidence)
	if err != nil {
		result.Err = err
		result.LatencyMS = int(time.Since(start).Milliseconds())
		logger.Error("Synthesis failed",
			zap.String("pipeline_id", result.ID),
			zap.Error(err),
		)
		return result
	}

	result.Response = draft
	if p.enhancer != nil {
		enhanced, err := p.enhancer.Enhance(ctx, req.Query, draft)
		if err != nil {
			result.Degradations.EnhancementFailed = true
			logger.Warn("Enhancement failed, keeping draft",
				zap.String("pipeline_id", result.ID),
				zap.Error(err),
			)
		} else {
			result.Response = enhanced
		}
	}

	eval := p.evaluator.Evaluate(req.Query, result.Response)
	result.Evaluation = &eval
	result.ContextCount = len(evidence.Window)
	result.LiveDataUsed = evidence.LiveData != ""

	result.LatencyMS = int(time.Since(start).Milliseconds())
	result.Stored = p.writer.Schedule(writer.Interaction{
		ID:             result.ID,
		UserID:         req.UserID,
		Query:          req.Query,
		Response:       result.Response,
		Classification: string(result.Classification),
		Model:          p.model,
		ContextCount:   len(evidence.Window),
		LiveDataUsed:   evidence.LiveData != "",
		Enhanced:       !result.Degradations.EnhancementFailed,
		LatencyMS:      result.LatencyMS,
		Evaluation:     evaluationRecord(eval),
	})

	logger.Info("Query processed",
		zap.String("pipeline_id", result.ID),
		zap.String("classification", string(result.Classification)),
		zap.Float64("aggregate_score", eval.Aggregate),
		zap.Bool("stored", result.Stored),
		zap.Int("latency_ms", result.LatencyMS),
	)

	return result
}

// Close drains in-flight background writes.
func (p *Pipeline) Close() {
	p.writer.Close()
}

// acquireEvidence dispatches on the classification. live_data uses the
// provider alone and its failure is fatal; retrieval and unclassified use
// the vector store; mixed tries both, degrading to retrieval-only when the
// live fetch fails.
func (p *Pipeline) acquireEvidence(ctx context.Context, query string, class classify.Classification, deg *Degradations) (synthesis.Evidence, error) {
	var evidence synthesis.Evidence

	switch class {
	case classify.LiveData:
		text, err := p.fetchLive(ctx, query)
		if err != nil {
			return evidence, err
		}
		evidence.LiveData = text
		return evidence, nil

	case classify.Mixed:
		text, err := p.fetchLive(ctx, query)
		if err != nil {
			deg.LiveDataFailed = true
			logger.Warn("Live fetch failed on mixed query, continuing with retrieval", zap.Error(err))
		} else {
			evidence.LiveData = text
		}
		window, err := p.retriever.Retrieve(ctx, query, 0)
		if err != nil {
			if evidence.LiveData == "" {
				return evidence, err
			}
			logger.Warn("Retrieval failed on mixed query, continuing with live data", zap.Error(err))
		} else {
			evidence.Window = window
		}
		return evidence, nil

	default:
		// retrieval and unclassified both go to the store; an
		// unclassifiable query may still match prior responses.
		window, err := p.retriever.Retrieve(ctx, query, 0)
		if err != nil {
			return evidence, err
		}
		evidence.Window = window
		return evidence, nil
	}
}

func (p *Pipeline) fetchLive(ctx context.Context, query string) (string, error) {
	location, ok := weather.ExtractLocation(query)
	if !ok {
		return "", weather.ErrNotFound
	}

	obs, err := p.provider.Fetch(ctx, weather.Request{Location: location})
	if err != nil {
		return "", err
	}

	return weather.FormatObservation(obs), nil
}

// ErrorCode maps a pipeline error to the stable code surfaced in API
// responses. Unknown errors report as internal_error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, weather.ErrNotFound):
		return "not_found"
	case errors.Is(err, weather.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, weather.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, llm.ErrEngineUnavailable):
		return "engine_unavailable"
	case errors.Is(err, llm.ErrEmptyCompletion):
		return "empty_completion"
	default:
		return "internal_error"
	}
}

func evaluationRecord(eval evaluation.Result) *models.EvaluationRecord {
	record := &models.EvaluationRecord{AggregateScore: eval.Aggregate}
	for _, c := range eval.Criteria {
		switch c.Criterion {
		case evaluation.CriterionRelevance:
			record.RelevanceScore = c.Score
		case evaluation.CriterionAccuracy:
			record.AccuracyScore = c.Score
		case evaluation.CriterionHelpfulness:
			record.HelpfulnessScore = c.Score
		}
		if record.Reasoning != "" {
			record.Reasoning += "; "
		}
		record.Reasoning += c.Criterion + ": " + c.Reasoning
	}
	return record
}
