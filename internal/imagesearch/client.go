// Package imagesearch looks up a representative photo of a city through the
// Google Custom Search JSON API in image mode.
package imagesearch

import (
	"context"
	"encoding/json"
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

const tracerName = "github.com/gometeo/citypage/internal/imagesearch"

// Bodies past this size are cut off and fail to parse.
const maxBodyBytes = 1 << 20

// CandidateFields are tried in order on the chosen item; the first non-empty
// string wins.
var CandidateFields = []string{"link", "url", "thumbnail"}

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("image search returned non-200 status: %d", e.Code)
}

type Client struct {
	apiKey     string
	engineID   string
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewClient(apiKey, engineID, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:   apiKey,
		engineID: engineID,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer: otel.Tracer(tracerName),
	}
}

// Enabled reports whether both the API key and the search engine id are set.
// A nil client is disabled.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != "" && c.engineID != ""
}

// Find returns an image URL for city, or "" when the search has no usable
// item. Errors are returned for transport failures, non-200 answers and
// undecodable bodies.
func (c *Client) Find(ctx context.Context, city string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "imagesearch.find",
		trace.WithAttributes(attribute.String("imagesearch.city", city)))
	defer span.End()

	link, err := c.find(ctx, city)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Bool("imagesearch.found", link != ""))
	return link, nil
}

func (c *Client) find(ctx context.Context, city string) (string, error) {
	params := url.Values{}
	params.Add("key", c.apiKey)
	params.Add("cx", c.engineID)
	params.Add("q", city+" 1920x1080")
	params.Add("start", "1")
	params.Add("searchType", "image")
	params.Add("imgSize", "xlarge")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return pick(doc), nil
}

// pick walks the decoded body loosely: anything that is not the expected
// shape yields "".
func pick(doc any) string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return ""
	}
	items, ok := obj["items"].([]any)
	if !ok || len(items) == 0 {
		return ""
	}

	idx := 0
	if len(items) > 1 {
		idx = 1
	}
	item, ok := items[idx].(map[string]any)
	if !ok {
		return ""
	}

	for _, field := range CandidateFields {
		if v, ok := item[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
