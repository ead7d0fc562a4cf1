package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/relay-agent/backend/pkg/circuitbreaker"
	"github.com/relay-agent/backend/pkg/logger"
	"github.com/relay-agent/backend/pkg/retry"
)

// Client talks to an OpenWeatherMap-compatible API. Geocoding resolves the
// location name to coordinates, then the current-conditions endpoint is hit.
type Client struct {
	baseURL     string
	geoURL      string
	apiKey      string
	units       string
	httpClient  *http.Client
	cb          *circuitbreaker.Breaker
	retryPolicy retry.Policy
}

func NewClient(baseURL, geoURL, apiKey, units string, timeoutSec int) *Client {
	timeout := 10 * time.Second
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}

	cb := circuitbreaker.New("weather", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryPolicy := retry.DefaultPolicy()
	retryPolicy.MaxAttempts = 2
	retryPolicy.InitialDelay = 200 * time.Millisecond
	retryPolicy.MaxDelay = 2 * time.Second
	retryPolicy.RetryableErrors = []error{ErrUpstreamUnavailable}
	retryPolicy.Logger = logger.GetLogger()

	return &Client{
		baseURL: baseURL,
		geoURL:  geoURL,
		apiKey:  apiKey,
		units:   units,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cb:          cb,
		retryPolicy: retryPolicy,
	}
}

type geocodeEntry struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type conditionsResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility int `json:"visibility"`
}

// Fetch resolves the request location and returns a normalized observation.
func (c *Client) Fetch(ctx context.Context, req Request) (Observation, error) {
	if req.Location == "" {
		return Observation{}, fmt.Errorf("%w: no location in request", ErrNotFound)
	}

	logger.Info("Fetching weather", zap.String("location", req.Location))

	var obs Observation
	err := c.cb.Execute(ctx, func() error {
		var err error
		obs, err = retry.DoWithResult(ctx, c.retryPolicy, func() (Observation, error) {
			lat, lon, err := c.geocode(ctx, req.Location)
			if err != nil {
				return Observation{}, err
			}
			return c.currentConditions(ctx, req.Location, lat, lon)
		})
		return err
	})
	if err != nil {
		if isTyped(err) {
			return Observation{}, err
		}
		return Observation{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return obs, nil
}

func (c *Client) geocode(ctx context.Context, location string) (float64, float64, error) {
	params := url.Values{}
	params.Add("q", location)
	params.Add("limit", "1")
	params.Add("appid", c.apiKey)

	body, err := c.get(ctx, fmt.Sprintf("%s?%s", c.geoURL, params.Encode()))
	if err != nil {
		return 0, 0, err
	}

	var entries []geocodeEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, 0, fmt.Errorf("%w: geocoding: %v", ErrMalformedResponse, err)
	}

	if len(entries) == 0 {
		return 0, 0, fmt.Errorf("%w: location %q", ErrNotFound, location)
	}

	return entries[0].Lat, entries[0].Lon, nil
}

func (c *Client) currentConditions(ctx context.Context, location string, lat, lon float64) (Observation, error) {
	params := url.Values{}
	params.Add("lat", fmt.Sprintf("%f", lat))
	params.Add("lon", fmt.Sprintf("%f", lon))
	params.Add("appid", c.apiKey)
	params.Add("units", c.units)

	body, err := c.get(ctx, fmt.Sprintf("%s/weather?%s", c.baseURL, params.Encode()))
	if err != nil {
		return Observation{}, err
	}

	var resp conditionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Observation{}, fmt.Errorf("%w: conditions: %v", ErrMalformedResponse, err)
	}

	if resp.Main == nil || len(resp.Weather) == 0 {
		return Observation{}, fmt.Errorf("%w: missing required fields", ErrMalformedResponse)
	}

	return Observation{
		Location:    location,
		Temperature: resp.Main.Temp,
		FeelsLike:   resp.Main.FeelsLike,
		Description: resp.Weather[0].Description,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		Pressure:    resp.Main.Pressure,
		Visibility:  resp.Visibility / 1000,
	}, nil
}

func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: provider returned 404", ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return body, nil
}

func isTyped(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrMalformedResponse)
}
