package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLocation(t *testing.T) {
	cases := []struct {
		query string
		want  string
		found bool
	}{
		{"What's the weather in Paris?", "Paris", true},
		{"temperature in new york today", "New York", true},
		{"weather in LONDON?", "London", true},
		{"forecast for London", "London", true},
		{"", "", false},
		{"tell me a joke", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			got, found := ExtractLocation(tc.query)
			assert.Equal(t, tc.found, found)
			if tc.found {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Paris", titleCase("paris"))
	assert.Equal(t, "New York", titleCase("NEW YORK"))
	assert.Equal(t, "San Francisco", titleCase("san  francisco"))
}

func TestFormatObservation(t *testing.T) {
	text := FormatObservation(Observation{
		Location:    "Paris",
		Temperature: 18.5,
		FeelsLike:   17.2,
		Description: "scattered clouds",
		Humidity:    60,
		WindSpeed:   3.4,
		Pressure:    1015,
		Visibility:  10,
	})

	assert.Contains(t, text, "Current weather in Paris")
	assert.Contains(t, text, "18.5°C")
	assert.Contains(t, text, "Scattered clouds")
	assert.Contains(t, text, "60%")
}

// newTestClient points both endpoints at one test server. The handler can
// tell the calls apart by path: geocoding hits /geo, conditions hit
// /data/weather.
func newTestClient(server *httptest.Server) *Client {
	return NewClient(server.URL+"/data", server.URL+"/geo", "test-key", "metric", 5)
}

const geocodeBody = `[{"name":"Paris","lat":48.85,"lon":2.35}]`

const conditionsBody = `{
	"weather":[{"description":"clear sky"}],
	"main":{"temp":21.0,"feels_like":20.0,"humidity":40,"pressure":1012},
	"wind":{"speed":2.5},
	"visibility":10000
}`

func TestFetchNormalizesObservation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/geo" {
			w.Write([]byte(geocodeBody))
			return
		}
		w.Write([]byte(conditionsBody))
	}))
	defer server.Close()

	obs, err := newTestClient(server).Fetch(context.Background(), Request{Location: "Paris"})

	require.NoError(t, err)
	assert.Equal(t, "Paris", obs.Location)
	assert.Equal(t, 21.0, obs.Temperature)
	assert.Equal(t, "clear sky", obs.Description)
	assert.Equal(t, 40, obs.Humidity)
	assert.Equal(t, 10, obs.Visibility)
}

func TestFetchUnknownLocationIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Fetch(context.Background(), Request{Location: "Nowhereville"})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchServerErrorIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server).Fetch(context.Background(), Request{Location: "Paris"})

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchMalformedBodyIsMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/geo" {
			w.Write([]byte(geocodeBody))
			return
		}
		w.Write([]byte(`{"weather":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Fetch(context.Background(), Request{Location: "Paris"})

	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFetchEmptyLocationIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	_, err := newTestClient(server).Fetch(context.Background(), Request{})

	assert.ErrorIs(t, err, ErrNotFound)
}
