package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-labels/internal/ontology"
)

// APIError is a non-2xx response from the platform.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloud request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors and rate limiting. Other client
// errors are permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsConflict reports that the row was saved by someone else since it was
// fetched.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusPreconditionFailed
}

// HTTPClient talks to the annotation platform over its REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	orgSlug    string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token, orgSlug string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		orgSlug: orgSlug,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Heimdex-Request-Id", generateRequestID())
	if c.deviceID != "" {
		req.Header.Set("X-Heimdex-Device-Id", c.deviceID)
	}
	// The platform resolves the org from the Host subdomain.
	if c.orgSlug != "" {
		req.Host = c.orgSlug + ".app.heimdex.local"
	}
	return req, nil
}

// do sends req and returns the response body of a 2xx reply.
func (c *HTTPClient) do(req *http.Request, limit int64) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > 4096 {
			body = body[:4096]
		}
		return resp, nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, body, nil
}

const maxPayloadBytes = 256 << 20

func (c *HTTPClient) ListLabelRows(ctx context.Context) ([]LabelRowSummary, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/label-rows", nil)
	if err != nil {
		return nil, err
	}
	_, body, err := c.do(req, 16<<20)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		LabelRows []LabelRowSummary `json:"label_rows"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("unmarshal label rows response: %w", err)
	}
	return wrapper.LabelRows, nil
}

func (c *HTTPClient) FetchLabelRow(ctx context.Context, labelHash string) (*LabelRowDocument, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/label-rows/"+url.PathEscape(labelHash), nil)
	if err != nil {
		return nil, err
	}
	resp, body, err := c.do(req, maxPayloadBytes)
	if err != nil {
		return nil, err
	}

	version := resp.Header.Get("ETag")
	c.logger.Info("label row fetched",
		"label_hash", labelHash,
		"version", version,
		"body_bytes", len(body),
	)
	return &LabelRowDocument{Payload: body, Version: version}, nil
}

func (c *HTTPClient) SaveLabelRow(ctx context.Context, labelHash string, payload []byte, version string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPut, "/api/label-rows/"+url.PathEscape(labelHash), payload)
	if err != nil {
		return "", err
	}
	if version != "" {
		req.Header.Set("If-Match", version)
	}

	c.logger.Info("saving label row to cloud",
		"label_hash", labelHash,
		"host", req.Host,
		"version", version,
		"body_bytes", len(payload),
	)
	resp, _, err := c.do(req, 4096)
	if err != nil {
		return "", err
	}
	return resp.Header.Get("ETag"), nil
}

func (c *HTTPClient) FetchOntology(ctx context.Context, ontologyHash string) (*ontology.Structure, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/ontologies/"+url.PathEscape(ontologyHash), nil)
	if err != nil {
		return nil, err
	}
	_, body, err := c.do(req, 16<<20)
	if err != nil {
		return nil, err
	}

	var s ontology.Structure
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("unmarshal ontology %s: %w", ontologyHash, err)
	}
	return &s, nil
}

func generateRequestID() string {
	return uuid.NewString()
}
