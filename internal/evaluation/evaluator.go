package evaluation

import (
	"fmt"
	"strings"
)

// Criterion names reported in results.
const (
	CriterionRelevance   = "relevance"
	CriterionAccuracy    = "accuracy"
	CriterionHelpfulness = "helpfulness"
)

// CriterionScore is a single criterion's verdict.
type CriterionScore struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Result is the full scoring of one (query, response) pair. Aggregate is the
// arithmetic mean of the criterion scores.
type Result struct {
	Query     string           `json:"query"`
	Response  string           `json:"response"`
	Criteria  []CriterionScore `json:"criteria"`
	Aggregate float64          `json:"aggregate"`
}

// BatchSummary aggregates a batch of results.
type BatchSummary struct {
	Count         int     `json:"count"`
	MeanAggregate float64 `json:"mean_aggregate"`
	MinAggregate  float64 `json:"min_aggregate"`
	MaxAggregate  float64 `json:"max_aggregate"`
}

// Item is one batch input.
type Item struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// Evaluator scores responses with documented heuristics: word overlap for
// relevance, length buckets as an accuracy proxy, and a marker-word lexicon
// plus length for helpfulness. Scoring is pure — no I/O — so identical
// inputs always produce identical results. The heuristics are intentional
// placeholders for real graded evaluation and are swappable per criterion.
type Evaluator struct{}

func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate scores one pair. It is total for any text input, including empty
// strings.
func (e *Evaluator) Evaluate(query, response string) Result {
	criteria := []CriterionScore{
		gradeRelevance(query, response),
		gradeAccuracy(response),
		gradeHelpfulness(response),
	}

	var sum float64
	for _, c := range criteria {
		sum += c.Score
	}

	return Result{
		Query:     query,
		Response:  response,
		Criteria:  criteria,
		Aggregate: sum / float64(len(criteria)),
	}
}

// EvaluateBatch scores every item and summarizes the aggregates.
func (e *Evaluator) EvaluateBatch(items []Item) ([]Result, BatchSummary) {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, e.Evaluate(item.Query, item.Response))
	}

	summary := BatchSummary{Count: len(results)}
	for i, r := range results {
		if i == 0 || r.Aggregate < summary.MinAggregate {
			summary.MinAggregate = r.Aggregate
		}
		if i == 0 || r.Aggregate > summary.MaxAggregate {
			summary.MaxAggregate = r.Aggregate
		}
		summary.MeanAggregate += r.Aggregate
	}
	if len(results) > 0 {
		summary.MeanAggregate /= float64(len(results))
	}

	return results, summary
}

// gradeRelevance is the ratio of query tokens that also appear in the
// response, case-insensitive, clamped to [0,1].
func gradeRelevance(query, response string) CriterionScore {
	queryWords := tokenSet(query)
	if len(queryWords) == 0 {
		return CriterionScore{
			Criterion: CriterionRelevance,
			Score:     0.5,
			Reasoning: "no query provided",
		}
	}

	responseWords := tokenSet(response)
	overlap := 0
	for word := range queryWords {
		if _, ok := responseWords[word]; ok {
			overlap++
		}
	}

	score := float64(overlap) / float64(len(queryWords))
	if score > 1.0 {
		score = 1.0
	}

	return CriterionScore{
		Criterion: CriterionRelevance,
		Score:     score,
		Reasoning: fmt.Sprintf("word overlap: %d/%d query words matched", overlap, len(queryWords)),
	}
}

// gradeAccuracy is a length-bucket proxy, not a factual check: longer
// responses are assumed to carry more substance.
func gradeAccuracy(response string) CriterionScore {
	if strings.TrimSpace(response) == "" {
		return CriterionScore{
			Criterion: CriterionAccuracy,
			Score:     0.0,
			Reasoning: "empty response",
		}
	}

	words := len(strings.Fields(response))
	switch {
	case words < 5:
		return CriterionScore{
			Criterion: CriterionAccuracy,
			Score:     0.3,
			Reasoning: "very short response, may lack detail",
		}
	case words < 20:
		return CriterionScore{
			Criterion: CriterionAccuracy,
			Score:     0.7,
			Reasoning: "moderate length response",
		}
	default:
		return CriterionScore{
			Criterion: CriterionAccuracy,
			Score:     0.9,
			Reasoning: "detailed response with substantial content",
		}
	}
}

// helpfulMarkers are explanatory words whose presence nudges the
// helpfulness score up.
var helpfulMarkers = []string{
	"here", "this", "information", "details", "explanation",
	"because", "therefore", "however", "additionally", "furthermore",
}

// gradeHelpfulness combines marker-word hits with response length,
// clamped to [0,1].
func gradeHelpfulness(response string) CriterionScore {
	if strings.TrimSpace(response) == "" {
		return CriterionScore{
			Criterion: CriterionHelpfulness,
			Score:     0.0,
			Reasoning: "empty response is not helpful",
		}
	}

	lower := strings.ToLower(response)
	hits := 0
	for _, marker := range helpfulMarkers {
		if strings.Contains(lower, marker) {
			hits++
		}
	}

	score := float64(hits)*0.1 + 0.3
	if score > 0.8 {
		score = 0.8
	}

	words := len(strings.Fields(response))
	if words > 50 {
		score += 0.2
		if score > 1.0 {
			score = 1.0
		}
	} else if words < 10 {
		score -= 0.2
		if score < 0.2 {
			score = 0.2
		}
	}

	return CriterionScore{
		Criterion: CriterionHelpfulness,
		Score:     score,
		Reasoning: fmt.Sprintf("%d marker words, %d words total", hits, words),
	}
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
