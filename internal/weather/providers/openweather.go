package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-ingestion/internal/weather"
)

const (
	DefaultOpenWeatherURL = "http://api.openweathermap.org/data/2.5/weather"
	DefaultTimeout        = 10 * time.Second
)

var errMalformedBody = errors.New("malformed openweather response")

// OpenWeatherClient implements weather.Client for the OpenWeatherMap current-weather endpoint.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	lang    string
	timeout time.Duration
	client  *http.Client
	clock   clock.Clock
	circuit *gobreaker.CircuitBreaker
}

type Option func(*OpenWeatherClient)

func WithBaseURL(u string) Option {
	return func(c *OpenWeatherClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithLang(lang string) Option {
	return func(c *OpenWeatherClient) {
		if lang != "" {
			c.lang = lang
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *OpenWeatherClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *OpenWeatherClient) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func NewOpenWeatherClient(client *http.Client, apiKey string, opts ...Option) *OpenWeatherClient {
	c := &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: DefaultOpenWeatherURL,
		lang:    "en",
		timeout: DefaultTimeout,
		client:  client,
		clock:   clock.NewClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.circuit = newCircuitBreaker("openweather", 2*time.Minute)
	return c
}

// FetchCurrent performs one request for city. The observation is stamped with
// today's local date regardless of what the caller intends to store it under.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, city string) (weather.Observation, error) {
	if c.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("%w: openweather api key is not configured", weather.ErrNotAttempted)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", city)
		values.Set("appid", c.apiKey)
		values.Set("units", "metric")
		values.Set("lang", c.lang)

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, c.client, c.circuit, buildRequest)
	if err != nil {
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Main *struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if payload.Main == nil || payload.Main.Temp == nil {
		return weather.Observation{}, fmt.Errorf("%w: missing main.temp", errMalformedBody)
	}
	if len(payload.Weather) == 0 || payload.Weather[0].Description == "" {
		return weather.Observation{}, fmt.Errorf("%w: missing weather description", errMalformedBody)
	}

	return weather.Observation{
		Date:        weather.Day(c.clock.Now()),
		City:        city,
		Temperature: *payload.Main.Temp,
		Condition:   payload.Weather[0].Description,
	}, nil
}

var _ weather.Client = (*OpenWeatherClient)(nil)
