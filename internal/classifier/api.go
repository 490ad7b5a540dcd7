package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"inbox2itsm/internal/config"
)

// ErrQuotaExceeded signals that the classification API's daily quota
// is exhausted. Non-fatal; the caller falls back to the safe default.
var ErrQuotaExceeded = errors.New("classification quota exceeded")

// HTTPClient calls the external text-classification service.
type HTTPClient struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPClient creates an API client from configuration
func NewHTTPClient(cfg *config.ClassifierConfig) *HTTPClient {
	return &HTTPClient{
		url:    cfg.APIURL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classify submits text and returns the service's label. HTTP 429 is
// reported as ErrQuotaExceeded.
func (c *HTTPClient) Classify(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrQuotaExceeded
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("classification API returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var decoded classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode classify response: %w", err)
	}

	return decoded.Label, nil
}
