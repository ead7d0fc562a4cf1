package synthesis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/llm"
	"github.com/relay-agent/backend/internal/retrieval"
	"github.com/relay-agent/backend/pkg/logger"
)

// NoInformationAnswer is returned verbatim when neither branch produced
// evidence. The synthesizer must say so rather than fabricate content.
const NoInformationAnswer = "I don't have enough information to answer your question. " +
	"No live data or relevant documents were found. " +
	"Please try rephrasing your question or ask about something else."

// Engine is the inference capability the synthesizer and enhancer consume.
// The LLM client satisfies this.
type Engine interface {
	Generate(ctx context.Context, p llm.Prompt) (string, error)
}

// Evidence carries branch output into synthesis: normalized live-data text,
// a retrieval context window, or both (live data first for mixed queries).
type Evidence struct {
	LiveData string
	Window   []retrieval.ContextItem
}

func (e Evidence) Empty() bool {
	return strings.TrimSpace(e.LiveData) == "" && len(e.Window) == 0
}

type Synthesizer struct {
	engine Engine
}

func NewSynthesizer(engine Engine) *Synthesizer {
	return &Synthesizer{engine: engine}
}

const synthesizerSystemPrompt = `You are a helpful assistant that answers questions using ONLY the provided evidence.

Your responses must:
1. Be grounded strictly in the evidence blocks below the question
2. Acknowledge limitations when the evidence is insufficient
3. Never invent facts that are not present in the evidence

Be clear, concise and direct.`

// Synthesize builds a bounded prompt around the query and evidence and
// obtains one draft completion. Empty evidence short-circuits to the
// explicit no-information answer without calling the engine.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, evidence Evidence) (string, error) {
	if evidence.Empty() {
		logger.Info("Synthesizing without evidence", zap.String("query", query))
		return NoInformationAnswer, nil
	}

	userPrompt := fmt.Sprintf(`Question: %s

Evidence:
%s

Answer the question using only the evidence above. If the evidence does not cover part of the question, say so.`, query, formatEvidence(evidence))

	draft, err := s.engine.Generate(ctx, llm.Prompt{
		System:      synthesizerSystemPrompt,
		User:        userPrompt,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}

	logger.Info("Draft synthesized",
		zap.String("query", query),
		zap.Int("draft_length", len(draft)),
	)

	return draft, nil
}

func formatEvidence(evidence Evidence) string {
	var builder strings.Builder

	if strings.TrimSpace(evidence.LiveData) != "" {
		builder.WriteString("[live data]\n")
		builder.WriteString(evidence.LiveData)
		builder.WriteString("\n")
	}

	for i, item := range evidence.Window {
		builder.WriteString(fmt.Sprintf("\n[%s %d | source: %s | score: %.2f]\n%s\n",
			item.Provenance,
			i+1,
			item.Source,
			item.Score,
			item.Text,
		))
	}

	return builder.String()
}
