package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateEmptyQueryAndResponse(t *testing.T) {
	e := New()

	result := e.Evaluate("", "")

	require.Len(t, result.Criteria, 3)

	byName := map[string]CriterionScore{}
	for _, c := range result.Criteria {
		byName[c.Criterion] = c
	}

	assert.Equal(t, 0.5, byName[CriterionRelevance].Score)
	assert.Equal(t, "no query provided", byName[CriterionRelevance].Reasoning)
	assert.Equal(t, 0.0, byName[CriterionAccuracy].Score)
	assert.Equal(t, 0.0, byName[CriterionHelpfulness].Score)

	// mean of 0.5, 0.0, 0.0
	assert.InDelta(t, 0.1667, result.Aggregate, 0.001)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := New()

	first := e.Evaluate("what is a vector store", "A vector store holds embeddings for similarity search.")
	second := e.Evaluate("what is a vector store", "A vector store holds embeddings for similarity search.")

	assert.Equal(t, first, second)
}

func TestRelevanceOverlap(t *testing.T) {
	e := New()

	// all five query words appear in the response
	full := e.Evaluate("the cache stores recent embeddings", "the cache stores recent embeddings for reuse")
	assert.Equal(t, 1.0, full.Criteria[0].Score)

	none := e.Evaluate("alpha beta", "gamma delta")
	assert.Equal(t, 0.0, none.Criteria[0].Score)
}

func TestAccuracyLengthBuckets(t *testing.T) {
	e := New()

	cases := []struct {
		name     string
		response string
		want     float64
	}{
		{"empty", "", 0.0},
		{"very short", "yes", 0.3},
		{"moderate", "the service resolves names before fetching current conditions", 0.7},
		{"detailed", "the service resolves names before fetching current conditions " +
			"and then normalizes the payload into a flat observation that downstream " +
			"stages can embed and persist without any further parsing work at all", 0.9},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := e.Evaluate("q", tc.response)
			assert.Equal(t, tc.want, result.Criteria[1].Score)
		})
	}
}

func TestHelpfulnessBounds(t *testing.T) {
	e := New()

	// every marker word present, medium length, so the base caps at 0.8
	result := e.Evaluate("q", "here is this information with details and an explanation "+
		"because therefore however additionally furthermore too")
	assert.InDelta(t, 0.8, result.Criteria[2].Score, 0.0001)

	// no markers and under ten words floors at 0.2
	short := e.Evaluate("q", "no")
	assert.InDelta(t, 0.2, short.Criteria[2].Score, 0.0001)
}

func TestEvaluateBatchSummary(t *testing.T) {
	e := New()

	results, summary := e.EvaluateBatch([]Item{
		{Query: "", Response: ""},
		{Query: "what is relevance", Response: "relevance is what matters here because it explains the overlap between question and answer in detail"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, 2, summary.Count)
	assert.LessOrEqual(t, summary.MinAggregate, summary.MaxAggregate)
	assert.GreaterOrEqual(t, summary.MeanAggregate, summary.MinAggregate)
	assert.LessOrEqual(t, summary.MeanAggregate, summary.MaxAggregate)
}

func TestEvaluateBatchEmpty(t *testing.T) {
	e := New()

	results, summary := e.EvaluateBatch(nil)

	assert.Empty(t, results)
	assert.Equal(t, 0, summary.Count)
	assert.Equal(t, 0.0, summary.MeanAggregate)
}
