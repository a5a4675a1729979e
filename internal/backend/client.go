package backend

import (
	"bytes"
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

	"github.com/google/uuid"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
)

// Client provides access to the dispatch endpoints of the backend API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	newID      func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every request. Zero keeps requests unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			clone := *c.httpClient
			clone.Timeout = timeout
			c.httpClient = &clone
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestIDFunc overrides request identifier generation.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New creates a backend client rooted at baseURL (for example http://host/api).
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	client := &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{},
		logger:     logging.NewNop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "backend")
	return client, nil
}

// Validate asks the backend whether raw identifies a known, dispatchable order.
func (c *Client) Validate(ctx context.Context, raw string) (*dispatch.ValidationResult, error) {
	params := url.Values{}
	params.Set("barcode_data", raw)

	var result dispatch.ValidationResult
	if err := c.do(ctx, http.MethodPost, "/dispatch/validate", params, nil, &result); err != nil {
		return nil, dispatch.Wrap(dispatch.ErrValidationRejected, "backend", "validate", "validate barcode", err)
	}
	return &result, nil
}

// Submit records a scan with the given validation mode and action.
func (c *Client) Submit(ctx context.Context, req dispatch.ScanRequest, mode dispatch.ValidationMode, action dispatch.ScanAction) (*dispatch.ScanRecord, error) {
	params := url.Values{}
	params.Set("validation_mode", string(mode))
	params.Set("scan_action", string(action))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, dispatch.Wrap(dispatch.ErrSubmissionFailed, "backend", "submit", "encode scan", err)
	}

	var wire wireRecord
	if err := c.do(ctx, http.MethodPost, "/dispatch/scan", params, body, &wire); err != nil {
		return nil, dispatch.Wrap(dispatch.ErrSubmissionFailed, "backend", "submit", "post scan", err)
	}
	record := wire.record()
	if record.ScanAction == "" {
		record.ScanAction = action
	}
	if record.PlatformOrderID == "" {
		record.PlatformOrderID = req.PlatformOrderID
	}
	if record.PlatformName == "" {
		record.PlatformName = req.PlatformName
	}
	return &record, nil
}

// Summary fetches today's aggregate counters.
func (c *Client) Summary(ctx context.Context) (*dispatch.Summary, error) {
	var wire wireSummary
	if err := c.do(ctx, http.MethodGet, "/dispatch/summary", nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("fetch summary: %w", err)
	}
	summary := wire.summary()
	return &summary, nil
}

// RecentScans lists scans recorded on or after dateFrom, newest first.
func (c *Client) RecentScans(ctx context.Context, dateFrom time.Time, limit int) ([]dispatch.ScanRecord, error) {
	params := url.Values{}
	if !dateFrom.IsZero() {
		params.Set("date_from", dateFrom.Format("2006-01-02"))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/dispatch/scans", params, nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch scans: %w", err)
	}
	wires, err := decodeScanList(raw)
	if err != nil {
		return nil, fmt.Errorf("decode scans: %w", err)
	}
	records := make([]dispatch.ScanRecord, 0, len(wires))
	for _, w := range wires {
		records = append(records, w.record())
	}
	return records, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	requestID, ok := logging.RequestIDFromContext(ctx)
	if !ok {
		requestID = c.newID()
	}
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.logger.Debug("backend request failed",
			logging.String("method", method),
			logging.String("path", path),
			logging.String(logging.FieldRequestID, requestID),
			logging.Duration("latency", latency),
			logging.Error(err),
		)
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		logging.String("method", method),
		logging.String("path", path),
		logging.String(logging.FieldRequestID, requestID),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{StatusCode: resp.StatusCode, Message: extractMessage(data), RequestID: requestID}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
