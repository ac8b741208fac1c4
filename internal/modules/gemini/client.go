package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAPIKeyMissing means the provider key is not configured. Fatal for the
// request, never retried.
var ErrAPIKeyMissing = errors.New("gemini api key is not configured")

// ModelUnavailableError means the upstream reported the model/version pair as
// not found. The caller should advance to the next candidate.
type ModelUnavailableError struct {
	Endpoint string
	Detail   string
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable at %s: %s", e.Endpoint, e.Detail)
}

// RequestError is any non-retriable upstream failure: transport errors,
// timeouts, auth and quota rejections. It aborts the whole analysis attempt.
type RequestError struct {
	Endpoint string
	Status   int
	Detail   string
}

func (e *RequestError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("gemini request failed at %s (status %d): %s", e.Endpoint, e.Status, e.Detail)
	}
	return fmt.Sprintf("gemini request failed at %s: %s", e.Endpoint, e.Detail)
}

// ExhaustedError means every candidate endpoint answered "not found". It
// carries the last endpoint and upstream detail so an operator can fix the
// model override.
type ExhaustedError struct {
	Endpoint string
	Detail   string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all gemini endpoints exhausted, last %s: %s", e.Endpoint, e.Detail)
}

// Client posts generateContent requests to one candidate endpoint at a time.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Send posts the request body to the candidate endpoint. A 404 is classified
// as ModelUnavailableError; every other failure is a RequestError. The API
// key never appears in returned errors.
func (c *Client) Send(ctx context.Context, cand Candidate, body *generateRequest) (*generateResponse, json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, nil, ErrAPIKeyMissing
	}

	endpoint := c.baseURL + cand.Path()
	reqURL := endpoint + "?key=" + url.QueryEscape(c.apiKey)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, &RequestError{Endpoint: endpoint, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, &RequestError{Endpoint: endpoint, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &RequestError{Endpoint: endpoint, Detail: scrubKey(err.Error(), c.apiKey)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &RequestError{Endpoint: endpoint, Status: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, &ModelUnavailableError{
			Endpoint: endpoint,
			Detail:   compactDetail(respBody),
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil, &RequestError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Detail:   compactDetail(respBody),
		}
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, nil, &RequestError{Endpoint: endpoint, Status: resp.StatusCode, Detail: "malformed response body"}
	}
	return &out, json.RawMessage(respBody), nil
}

func compactDetail(body []byte) string {
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return "model not found"
	}
	const maxDetail = 512
	if len(detail) > maxDetail {
		detail = detail[:maxDetail]
	}
	return detail
}

// scrubKey removes the API key from transport error text; net/http errors
// echo the full request URL including query parameters.
func scrubKey(s, key string) string {
	if key == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(key), "[redacted]")
	return strings.ReplaceAll(s, key, "[redacted]")
}
