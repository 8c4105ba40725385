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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gometeo/citypage/internal/weather"

// Bodies past this size are cut off and fail to parse.
const maxBodyBytes = 1 << 20

// ErrMissingFields is returned when the upstream answered but the body lacks
// the description, icon or temperature.
var ErrMissingFields = errors.New("weather response is missing expected fields")

// StatusError is returned for any non-2xx answer from the weather API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather API error (status %d): %s", e.Code, e.Body)
}

// NotFound reports whether the upstream did not recognise the city.
func (e *StatusError) NotFound() bool {
	return e.Code == http.StatusNotFound
}

// Conditions is the subset of the current-weather answer the page shows.
type Conditions struct {
	Description string
	Icon        string
	Temperature float64
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer: otel.Tracer(tracerName),
	}
}

type currentResponse struct {
	Weather []struct {
		Description *string `json:"description"`
		Icon        *string `json:"icon"`
	} `json:"weather"`
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
}

// Current fetches the current conditions for city in metric units.
func (c *Client) Current(ctx context.Context, city string) (Conditions, error) {
	ctx, span := c.tracer.Start(ctx, "weather.current",
		trace.WithAttributes(attribute.String("weather.city", city)))
	defer span.End()

	cond, err := c.current(ctx, city)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Conditions{}, err
	}
	return cond, nil
}

func (c *Client) current(ctx context.Context, city string) (Conditions, error) {
	params := url.Values{}
	params.Add("q", city)
	params.Add("units", "metric")
	params.Add("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Conditions{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Conditions{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Conditions{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Conditions{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var parsed currentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Conditions{}, fmt.Errorf("%w: field %q: %v", ErrMissingFields, typeErr.Field, err)
		}
		return Conditions{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(parsed.Weather) == 0 {
		return Conditions{}, fmt.Errorf("%w: weather", ErrMissingFields)
	}
	first := parsed.Weather[0]
	if first.Description == nil || first.Icon == nil {
		return Conditions{}, fmt.Errorf("%w: weather[0]", ErrMissingFields)
	}
	if parsed.Main == nil || parsed.Main.Temp == nil {
		return Conditions{}, fmt.Errorf("%w: main.temp", ErrMissingFields)
	}

	return Conditions{
		Description: *first.Description,
		Icon:        *first.Icon,
		Temperature: *parsed.Main.Temp,
	}, nil
}
