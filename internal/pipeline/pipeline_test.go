package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-agent/backend/internal/classify"
	"github.com/relay-agent/backend/internal/evaluation"
	"github.com/relay-agent/backend/internal/llm"
	"github.com/relay-agent/backend/internal/retrieval"
	"github.com/relay-agent/backend/internal/storage/models"
	"github.com/relay-agent/backend/internal/storage/writer"
	"github.com/relay-agent/backend/internal/synthesis"
	"github.com/relay-agent/backend/internal/vector/memory"
	"github.com/relay-agent/backend/internal/weather"
)

// stubProvider returns a canned observation or error.
type stubProvider struct {
	obs weather.Observation
	err error
}

func (s stubProvider) Fetch(ctx context.Context, req weather.Request) (weather.Observation, error) {
	if s.err != nil {
		return weather.Observation{}, s.err
	}
	obs := s.obs
	obs.Location = req.Location
	return obs, nil
}

// echoEngine answers by echoing the question so responses stay assertable.
type echoEngine struct {
	enhanceErr error
	enhanced   string
}

func (e *echoEngine) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	if strings.Contains(p.System, "editor") {
		if e.enhanceErr != nil {
			return "", e.enhanceErr
		}
		if e.enhanced != "" {
			return e.enhanced, nil
		}
	}
	// reuse the question line from the synthesis prompt as the draft
	for _, line := range strings.Split(p.User, "\n") {
		if strings.HasPrefix(line, "Question: ") {
			return "Answering: " + strings.TrimPrefix(line, "Question: "), nil
		}
		if strings.HasPrefix(line, "Original response: ") {
			return strings.TrimPrefix(line, "Original response: "), nil
		}
	}
	return "generic answer", nil
}

// fakeEmbedder maps text to a crude bag-of-letters vector so similar
// strings land near each other in the memory store.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

type nopHistory struct{}

func (nopHistory) InsertInteraction(*models.InteractionRecord) error { return nil }
func (nopHistory) StoreEvaluation(*models.EvaluationRecord) error    { return nil }

func newTestPipeline(provider weather.Provider, engine synthesis.Engine, store *memory.Store) *Pipeline {
	retriever := retrieval.NewBranch(fakeEmbedder{}, store, nil, 5, 0.25)
	w := writer.New(fakeEmbedder{}, store, nopHistory{}, writer.Config{})

	return New(
		classify.New(),
		provider,
		retriever,
		synthesis.NewSynthesizer(engine),
		synthesis.NewEnhancer(engine),
		w,
		evaluation.New(),
		"test-model",
	)
}

func TestProcessLiveDataQuery(t *testing.T) {
	provider := stubProvider{obs: weather.Observation{
		Temperature: 18.0,
		Description: "clear sky",
	}}
	p := newTestPipeline(provider, &echoEngine{}, memory.NewStore())
	defer p.Close()

	result := p.Process(context.Background(), Request{Query: "What's the weather in Paris?"})

	require.NoError(t, result.Err)
	assert.Equal(t, classify.LiveData, result.Classification)
	assert.Contains(t, result.Response, "Paris")
	assert.True(t, result.Stored)
	require.NotNil(t, result.Evaluation)
	assert.GreaterOrEqual(t, result.Evaluation.Aggregate, 0.0)
	assert.LessOrEqual(t, result.Evaluation.Aggregate, 1.0)
}

func TestProcessRetrievalQueryWithEmptyStore(t *testing.T) {
	p := newTestPipeline(stubProvider{}, &echoEngine{}, memory.NewStore())
	defer p.Close()

	result := p.Process(context.Background(), Request{Query: "Summarize the uploaded report"})

	require.NoError(t, result.Err)
	assert.Equal(t, classify.Retrieval, result.Classification)
	assert.Contains(t, result.Response, "don't have enough information")
	assert.True(t, result.Degradations.EmptyEvidence)
	assert.True(t, result.Stored)
}

func TestProcessLiveProviderFailureIsFatal(t *testing.T) {
	provider := stubProvider{err: weather.ErrUpstreamUnavailable}
	p := newTestPipeline(provider, &echoEngine{}, memory.NewStore())
	defer p.Close()

	result := p.Process(context.Background(), Request{Query: "What's the weather in Paris?"})

	require.Error(t, result.Err)
	assert.Equal(t, "upstream_unavailable", ErrorCode(result.Err))
	assert.Empty(t, result.Response)
	assert.False(t, result.Stored)
}

func TestProcessEnhancerFailureFallsBackToDraft(t *testing.T) {
	provider := stubProvider{obs: weather.Observation{Temperature: 5}}
	engine := &echoEngine{enhanceErr: llm.ErrEngineUnavailable}
	p := newTestPipeline(provider, engine, memory.NewStore())
	defer p.Close()

	result := p.Process(context.Background(), Request{Query: "What's the weather in Oslo?"})

	require.NoError(t, result.Err)
	assert.True(t, result.Degradations.EnhancementFailed)
	assert.Contains(t, result.Response, "Answering:", "response must be the unmodified draft")
	assert.True(t, result.Stored)
}

func TestProcessMixedDegradesWhenLiveFails(t *testing.T) {
	provider := stubProvider{err: weather.ErrUpstreamUnavailable}
	p := newTestPipeline(provider, &echoEngine{}, memory.NewStore())
	defer p.Close()

	result := p.Process(context.Background(), Request{Query: "Explain the forecast in the report for Berlin"})

	require.NoError(t, result.Err)
	assert.Equal(t, classify.Mixed, result.Classification)
	assert.True(t, result.Degradations.LiveDataFailed)
	assert.NotEmpty(t, result.Response)
}

func TestRoundTripStoredResponseIsRetrievable(t *testing.T) {
	store := memory.NewStore()
	provider := stubProvider{obs: weather.Observation{Temperature: 18}}
	p := newTestPipeline(provider, &echoEngine{}, store)

	first := p.Process(context.Background(), Request{Query: "What's the weather in Paris?"})
	require.NoError(t, first.Err)
	require.True(t, first.Stored)

	// drain the background write before searching
	p.Close()
	require.Equal(t, 1, store.Len())

	retriever := retrieval.NewBranch(fakeEmbedder{}, store, nil, 5, 0.1)
	window, err := retriever.Retrieve(context.Background(), first.Response, 5)
	require.NoError(t, err)
	require.NotEmpty(t, window)
	assert.Equal(t, retrieval.ProvenancePriorResponse, window[0].Provenance)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "not_found", ErrorCode(weather.ErrNotFound))
	assert.Equal(t, "upstream_unavailable", ErrorCode(weather.ErrUpstreamUnavailable))
	assert.Equal(t, "malformed_response", ErrorCode(weather.ErrMalformedResponse))
	assert.Equal(t, "engine_unavailable", ErrorCode(llm.ErrEngineUnavailable))
	assert.Equal(t, "empty_completion", ErrorCode(llm.ErrEmptyCompletion))
}
