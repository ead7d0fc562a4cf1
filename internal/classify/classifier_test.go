package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTags(t *testing.T) {
	c := New()

	cases := []struct {
		query string
		want  Classification
	}{
		{"What's the weather in Paris?", LiveData},
		{"how hot is it outside", LiveData},
		{"is it raining right now", LiveData},
		{"Summarize the uploaded report", Retrieval},
		{"what is a context window", Retrieval},
		{"tell me about the architecture", Retrieval},
		{"explain the forecast for tomorrow", Mixed},
		{"what is the temperature trend in the report", Mixed},
		{"hello there", Unclassified},
		{"", Unclassified},
		{"   ", Unclassified},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.query))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New()

	query := "what is the forecast according to the report"
	first := c.Classify(query)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(query))
	}
}

func TestClassifyAlwaysReturnsKnownTag(t *testing.T) {
	c := New()

	known := map[Classification]bool{
		LiveData:     true,
		Retrieval:    true,
		Mixed:        true,
		Unclassified: true,
	}

	for _, query := range []string{"", "weather", "document", "weather document", "asdf qwerty", "42"} {
		assert.True(t, known[c.Classify(query)], "query %q", query)
	}
}
