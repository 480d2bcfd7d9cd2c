// internal/ocr/extractor.go
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/models"
)

// FileRef identifies one uploaded transcript file to extract scores from.
type FileRef struct {
	FileID string `json:"fileId"`
	URL    string `json:"url"`
}

// Extractor abstracts the external score-extraction service so services can
// be tested against a fake.
type Extractor interface {
	ExtractBatch(ctx context.Context, files []FileRef) (models.BatchScoreExtractionResult, error)
	HealthCheck(ctx context.Context) error
}

// Client handles communication with the score-extraction service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// ClientOptions configure the extraction client.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a score-extraction client. An empty base URL falls back
// to OCR_SERVICE_URL, then to localhost.
func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OCR_SERVICE_URL")
	}
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8081"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		// extraction can take time for large scans
		timeout = 5 * time.Minute
	}

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ExtractBatch submits a batch of file references and returns per-file
// subject/score extraction outcomes.
func (c *Client) ExtractBatch(ctx context.Context, files []FileRef) (models.BatchScoreExtractionResult, error) {
	var out models.BatchScoreExtractionResult

	payload := map[string]interface{}{"files": files}
	body, err := json.Marshal(payload)
	if err != nil {
		return out, errors.NewOcrExtractionFailedError(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/extract/batch", bytes.NewReader(body))
	if err != nil {
		return out, errors.NewOcrExtractionFailedError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return out, errors.NewOcrExtractionFailedError(fmt.Errorf("extraction service request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return out, errors.NewOcrExtractionFailedError(
			fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, errors.NewOcrExtractionFailedError(fmt.Errorf("decode response: %w", err))
	}

	return out, nil
}

// HealthCheck checks if the extraction service is healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extraction service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}
