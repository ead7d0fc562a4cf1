package weather

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// Typed live-data failures. Every provider error is normalized into exactly
// one of these before it leaves the branch.
var (
	ErrNotFound            = errors.New("live data not found")
	ErrUpstreamUnavailable = errors.New("live data provider unavailable")
	ErrMalformedResponse   = errors.New("malformed live data response")
)

// Request is the structured form extracted from a natural-language query.
type Request struct {
	Location string
}

// Observation is the normalized weather reading for a location.
type Observation struct {
	Location    string
	Temperature float64
	FeelsLike   float64
	Description string
	Humidity    int
	WindSpeed   float64
	Pressure    int
	Visibility  int
}

// Provider fetches a current observation for a structured request.
type Provider interface {
	Fetch(ctx context.Context, req Request) (Observation, error)
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:weather|temperature|forecast|climate|humidity)\s+(?:in|at|for)\s+([a-zA-Z][a-zA-Z\s]*?)\s*(?:\?|!|\.|$|\s+today|\s+right now|\s+tomorrow)`),
	regexp.MustCompile(`(?i)(?:in|at)\s+([a-zA-Z][a-zA-Z\s]*?)\s*(?:\?|!|\.|$)`),
}

// ExtractLocation pulls a place name out of a query, preferring named-entity
// recognition and falling back to positional patterns around weather words.
func ExtractLocation(query string) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}

	if doc, err := prose.NewDocument(query); err == nil {
		for _, ent := range doc.Entities() {
			if ent.Label == "GPE" && len(ent.Text) > 1 {
				return titleCase(strings.TrimSpace(ent.Text)), true
			}
		}
	}

	for _, pattern := range locationPatterns {
		if match := pattern.FindStringSubmatch(query); match != nil {
			location := strings.TrimSpace(match[1])
			if len(location) > 1 {
				return titleCase(location), true
			}
		}
	}

	return "", false
}

// FormatObservation renders an observation as the plain-text facts handed to
// the synthesizer.
func FormatObservation(o Observation) string {
	return fmt.Sprintf(`Current weather in %s:
- Temperature: %.1f°C (feels like %.1f°C)
- Conditions: %s
- Humidity: %d%%
- Wind Speed: %.1f m/s
- Pressure: %d hPa
- Visibility: %d km`,
		o.Location,
		o.Temperature,
		o.FeelsLike,
		capitalize(o.Description),
		o.Humidity,
		o.WindSpeed,
		o.Pressure,
		o.Visibility,
	)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// titleCase normalizes a place name to one-capital-per-word form.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
