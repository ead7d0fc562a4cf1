package synthesis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/llm"
	"github.com/relay-agent/backend/pkg/logger"
)

// Enhancer runs the second inference pass that polishes the draft for tone
// and structure. It must never add claims that are not in the draft; the
// orchestrator falls back to the draft when this pass fails.
type Enhancer struct {
	engine Engine
}

func NewEnhancer(engine Engine) *Enhancer {
	return &Enhancer{engine: engine}
}

const enhancerSystemPrompt = `You are an editor. Improve the structure and tone of the given response.

Rules:
1. Preserve every factual statement exactly; do NOT add new claims
2. Use bullet points where they aid readability
3. Keep the result professional yet conversational
4. Do not pad the response`

func (e *Enhancer) Enhance(ctx context.Context, query, draft string) (string, error) {
	if strings.TrimSpace(draft) == "" {
		return "", fmt.Errorf("enhancement failed: empty draft")
	}

	userPrompt := fmt.Sprintf(`Original response: %s

Question it answers: %s

Rewrite the response following the rules. Output only the rewritten response.`, draft, query)

	enhanced, err := e.engine.Generate(ctx, llm.Prompt{
		System:      enhancerSystemPrompt,
		User:        userPrompt,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("enhancement failed: %w", err)
	}

	logger.Debug("Response enhanced",
		zap.Int("draft_length", len(draft)),
		zap.Int("enhanced_length", len(enhanced)),
	)

	return enhanced, nil
}
