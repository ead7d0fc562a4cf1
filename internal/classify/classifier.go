package classify

import (
	"strings"
)

// Classification is the intent tag that drives branch selection.
type Classification string

const (
	LiveData     Classification = "live_data"
	Retrieval    Classification = "retrieval"
	Mixed        Classification = "mixed"
	Unclassified Classification = "unclassified"
)

// liveDataKeywords mark queries that need current external conditions.
var liveDataKeywords = []string{
	"weather",
	"temperature",
	"forecast",
	"climate",
	"humidity",
	"wind speed",
	"raining",
	"snowing",
	"how hot",
	"how cold",
}

// retrievalKeywords mark queries answerable from the document corpus.
var retrievalKeywords = []string{
	"what is",
	"what are",
	"explain",
	"tell me about",
	"how does",
	"define",
	"describe",
	"summarize",
	"information about",
	"details about",
	"according to",
	"document",
	"report",
	"uploaded",
}

// Classifier assigns an intent tag to raw query text. It is purely
// rule-based: the tag must stay deterministic across repeated calls, which
// an inference call cannot guarantee.
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

// Classify is total: every input, including empty or ambiguous text, maps to
// exactly one of the four tags.
func (c *Classifier) Classify(query string) Classification {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Unclassified
	}

	live := matchesAny(q, liveDataKeywords)
	retr := matchesAny(q, retrievalKeywords)

	switch {
	case live && retr:
		return Mixed
	case live:
		return LiveData
	case retr:
		return Retrieval
	default:
		return Unclassified
	}
}

func matchesAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
