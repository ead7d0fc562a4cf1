package synthesis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-agent/backend/internal/llm"
	"github.com/relay-agent/backend/internal/retrieval"
)

type stubEngine struct {
	reply   string
	err     error
	calls   int
	prompts []llm.Prompt
}

func (s *stubEngine) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, p)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func TestSynthesizeEmptyEvidenceShortCircuits(t *testing.T) {
	engine := &stubEngine{reply: "should not be used"}
	s := NewSynthesizer(engine)

	answer, err := s.Synthesize(context.Background(), "Summarize the uploaded report", Evidence{})

	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, answer)
	assert.Zero(t, engine.calls, "engine must not be called without evidence")
}

func TestSynthesizeEmbedsEvidenceInPrompt(t *testing.T) {
	engine := &stubEngine{reply: "It is 18.0 degrees in Paris."}
	s := NewSynthesizer(engine)

	evidence := Evidence{
		LiveData: "Current weather in Paris:\n- Temperature: 18.0°C",
		Window: []retrieval.ContextItem{
			{Text: "Paris climate notes", Source: "doc-1", Score: 0.8, Provenance: retrieval.ProvenanceDocument},
		},
	}

	answer, err := s.Synthesize(context.Background(), "What's the weather in Paris?", evidence)

	require.NoError(t, err)
	assert.Equal(t, "It is 18.0 degrees in Paris.", answer)
	require.Equal(t, 1, engine.calls)

	prompt := engine.prompts[0].User
	assert.Contains(t, prompt, "What's the weather in Paris?")
	assert.Contains(t, prompt, "[live data]")
	assert.Contains(t, prompt, "Paris climate notes")
	assert.Contains(t, prompt, "document 1")
}

func TestSynthesizeEngineErrorPropagates(t *testing.T) {
	engine := &stubEngine{err: llm.ErrEngineUnavailable}
	s := NewSynthesizer(engine)

	_, err := s.Synthesize(context.Background(), "query", Evidence{LiveData: "facts"})

	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrEngineUnavailable)
}

func TestEnhanceRejectsEmptyDraft(t *testing.T) {
	e := NewEnhancer(&stubEngine{reply: "polished"})

	_, err := e.Enhance(context.Background(), "query", "   ")
	assert.Error(t, err)
}

func TestEnhancePassesDraftThroughEngine(t *testing.T) {
	engine := &stubEngine{reply: "Polished answer."}
	e := NewEnhancer(engine)

	enhanced, err := e.Enhance(context.Background(), "query", "raw draft")

	require.NoError(t, err)
	assert.Equal(t, "Polished answer.", enhanced)
	require.Equal(t, 1, engine.calls)
	assert.True(t, strings.Contains(engine.prompts[0].User, "raw draft"))
}

func TestEvidenceEmpty(t *testing.T) {
	assert.True(t, Evidence{}.Empty())
	assert.True(t, Evidence{LiveData: "  "}.Empty())
	assert.False(t, Evidence{LiveData: "facts"}.Empty())
	assert.False(t, Evidence{Window: []retrieval.ContextItem{{Text: "x"}}}.Empty())
}
