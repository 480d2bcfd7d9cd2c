// internal/predictor/client.go
package predictor

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
)

// Client handles communication with the remote prediction service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// ClientOptions configure the prediction service client.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a prediction service client. An empty base URL falls back
// to PREDICTION_SERVICE_URL, then to localhost.
func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("PREDICTION_SERVICE_URL")
	}
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// validationDetail mirrors the predictor's 422 response body:
// {"detail": [{"loc": [...], "msg": "..."}]}
type validationDetail struct {
	Detail []struct {
		Loc []interface{} `json:"loc"`
		Msg string        `json:"msg"`
	} `json:"detail"`
}

// Post sends a JSON payload to a stage-specific path and decodes the JSON
// response into out. Errors are classified per retry policy: transport
// failures and 5xx are retryable, 422 schema rejections and other 4xx are not.
func (c *Client) Post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return errors.NewPredictionTimeoutError(err)
		}
		return errors.NewPredictionUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return parseValidationError(resp.Body)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewPredictionAPIError(resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewPredictionAPIError(resp.StatusCode, fmt.Sprintf("decode response: %v", err))
	}

	return nil
}

// HealthCheck checks if the prediction service is healthy.
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
		return fmt.Errorf("prediction service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// parseValidationError turns a 422 body into a descriptive non-retryable
// error citing each offending field path and message.
func parseValidationError(body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 16384))

	var detail validationDetail
	if err := json.Unmarshal(raw, &detail); err != nil || len(detail.Detail) == 0 {
		return errors.NewPredictionValidationError(string(raw))
	}

	parts := make([]string, 0, len(detail.Detail))
	for _, d := range detail.Detail {
		parts = append(parts, fmt.Sprintf("%s: %s", formatLoc(d.Loc), d.Msg))
	}
	return errors.NewPredictionValidationError(strings.Join(parts, "; "))
}

// formatLoc renders a field path like body.students[2].gpa from the mixed
// string/number loc array the predictor returns.
func formatLoc(loc []interface{}) string {
	var b strings.Builder
	for _, seg := range loc {
		switch v := seg.(type) {
		case float64:
			fmt.Fprintf(&b, "[%d]", int(v))
		default:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			fmt.Fprintf(&b, "%v", v)
		}
	}
	if b.Len() == 0 {
		return "(unknown field)"
	}
	return b.String()
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeouter); ok && t.Timeout() {
			return true
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := e.(unwrapper)
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}
