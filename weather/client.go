// Package weather fetches daily forecasts from weatherapi.com.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxDays is the longest forecast the service returns.
const MaxDays = 14

const defaultTimeout = 10 * time.Second

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("weather API key not configured")

// Kind classifies a weather service failure.
type Kind int

const (
	// Transport covers connection failures and timeouts.
	Transport Kind = iota
	// Status covers non-200 answers, including unknown locations.
	Status
	// Parse covers bodies that are not a forecast document.
	Parse
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Status:
		return "status"
	default:
		return "parse"
	}
}

// Error is returned by Forecast for every service failure.
type Error struct {
	Kind       Kind
	City       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Status:
		if e.Message != "" {
			return fmt.Sprintf("weather service error for %s (status %d): %s", e.City, e.StatusCode, e.Message)
		}
		return fmt.Sprintf("weather service error for %s (status %d)", e.City, e.StatusCode)
	case Transport:
		return fmt.Sprintf("error fetching weather data for %s: %v", e.City, e.Err)
	default:
		return fmt.Sprintf("error processing weather data for %s: %v", e.City, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Day is one forecast day. Temperatures are in both scales as the service reports them.
type Day struct {
	Date      string
	MaxC      float64
	MinC      float64
	AvgC      float64
	MaxF      float64
	MinF      float64
	AvgF      float64
	Condition string
}

// Forecast is the result of a forecast query.
type Forecast struct {
	Location string
	Country  string
	Days     []Day
}

// Client queries the forecast endpoint and caches answers per city and day count.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *forecastCache
}

// NewClient creates a client. A zero timeout selects 10 seconds; a zero
// cacheTTL disables caching.
func NewClient(baseURL, apiKey string, timeout, cacheTTL time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
	if cacheTTL > 0 {
		c.cache = newForecastCache(cacheTTL)
	}
	return c
}

// Close stops the cache expiration loop.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// Forecast returns up to days days of forecast for city. days is clamped to [1, MaxDays].
func (c *Client) Forecast(ctx context.Context, city string, days int) (*Forecast, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	days = min(max(days, 1), MaxDays)

	if f := c.cache.get(city, days); f != nil {
		slog.Debug("weather cache hit", "city", city, "days", days)
		return f, nil
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", city)
	q.Set("days", strconv.Itoa(days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast.json?"+q.Encode(), nil)
	if err != nil {
		return nil, &Error{Kind: Transport, City: city, Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: Transport, City: city, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Kind: Transport, City: city, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return nil, &Error{Kind: Status, City: city, StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
	}

	f, err := parseForecast(body)
	if err != nil {
		return nil, &Error{Kind: Parse, City: city, Err: err}
	}
	c.cache.set(city, days, f)
	return f, nil
}

type forecastResponse struct {
	Location *struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"location"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC  float64 `json:"maxtemp_c"`
				MaxTempF  float64 `json:"maxtemp_f"`
				MinTempC  float64 `json:"mintemp_c"`
				MinTempF  float64 `json:"mintemp_f"`
				AvgTempC  float64 `json:"avgtemp_c"`
				AvgTempF  float64 `json:"avgtemp_f"`
				Condition struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func parseForecast(body []byte) (*Forecast, error) {
	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, err
	}
	if fr.Location == nil || fr.Location.Name == "" {
		return nil, errors.New("response has no location")
	}
	f := &Forecast{Location: fr.Location.Name, Country: fr.Location.Country}
	for _, fd := range fr.Forecast.ForecastDay {
		f.Days = append(f.Days, Day{
			Date:      fd.Date,
			MaxC:      fd.Day.MaxTempC,
			MinC:      fd.Day.MinTempC,
			AvgC:      fd.Day.AvgTempC,
			MaxF:      fd.Day.MaxTempF,
			MinF:      fd.Day.MinTempF,
			AvgF:      fd.Day.AvgTempF,
			Condition: fd.Day.Condition.Text,
		})
	}
	return f, nil
}
