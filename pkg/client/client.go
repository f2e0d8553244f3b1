package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kerlexov/logcollector/pkg/health"
	"github.com/kerlexov/logcollector/pkg/models"
)

const logsPath = "/api/logs"

// QueryOptions narrows a Query. A zero Limit lets the server apply its default.
type QueryOptions struct {
	StakeUsername string
	Level         string
	Search        string
	Limit         int
	Offset        int
}

func (o QueryOptions) values() url.Values {
	values := url.Values{}
	if o.StakeUsername != "" {
		values.Set("stakeUsername", o.StakeUsername)
	}
	if o.Level != "" {
		values.Set("level", o.Level)
	}
	if o.Search != "" {
		values.Set("q", o.Search)
	}
	if o.Limit > 0 {
		values.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		values.Set("offset", strconv.Itoa(o.Offset))
	}
	return values
}

// Client talks to the log collection API
type Client struct {
	config     Config
	baseURL    *url.URL
	httpClient *http.Client
	retryer    *retryer
	breaker    *health.CircuitBreaker
}

// New creates a Client for config.ServerURL
func New(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(strings.TrimRight(config.ServerURL, "/"))
	if err != nil {
		return nil, ErrInvalidConfig(err.Error())
	}

	return &Client{
		config:     config,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: config.HTTPTimeout},
		retryer:    newRetryer(config.RetryConfig),
		breaker:    health.NewCircuitBreaker(config.BreakerMaxFailures, config.BreakerResetTimeout),
	}, nil
}

// Submit stores one log entry and returns the persisted record.
// Submissions are not idempotent, so they are attempted once.
func (c *Client) Submit(ctx context.Context, submission models.Submission) (*models.LogRecord, error) {
	body, err := json.Marshal(submission)
	if err != nil {
		return nil, &Error{Type: ErrTypeRequestError, Message: "failed to marshal submission", Err: err}
	}

	var record models.LogRecord
	if err := c.call(ctx, http.MethodPost, logsPath, nil, body, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Query lists stored records newest first
func (c *Client) Query(ctx context.Context, opts QueryOptions) ([]models.LogRecord, error) {
	var records []models.LogRecord
	err := c.retryer.Do(ctx, func() error {
		records = nil
		return c.call(ctx, http.MethodGet, logsPath, opts.values(), nil, &records)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Purge deletes every stored record
func (c *Client) Purge(ctx context.Context) (*models.PurgeResult, error) {
	var result models.PurgeResult
	err := c.retryer.Do(ctx, func() error {
		return c.call(ctx, http.MethodDelete, logsPath, nil, nil, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Health fetches the server health report. An unavailable server still
// returns its report together with a SERVER_ERROR.
func (c *Client) Health(ctx context.Context) (*health.Report, error) {
	var report health.Report
	err := c.call(ctx, http.MethodGet, "/health", nil, nil, &report)

	var clientErr *Error
	if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusServiceUnavailable {
		if details, ok := clientErr.Details.(*health.Report); ok {
			return details, err
		}
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// call performs one request behind the circuit breaker. Request errors
// (4xx) are the caller's fault and do not count against the breaker.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	var requestErr error
	err := c.breaker.Execute(func() error {
		err := c.do(ctx, method, path, query, body, out)
		if err != nil && !IsRetryable(err) {
			requestErr = err
			return nil
		}
		return err
	})

	if requestErr != nil {
		return requestErr
	}
	if errors.Is(err, health.ErrCircuitOpen) {
		return &Error{Type: ErrTypeCircuitOpen, Message: "server marked unavailable", Err: err}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	target := c.baseURL.JoinPath(path)
	target.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return &Error{Type: ErrTypeRequestError, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrNetworkError("failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ErrServerError("invalid response body", err)
	}
	return nil
}

// decodeErrorResponse turns an error envelope into an Error
func decodeErrorResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	errType := ErrTypeRequestError
	if resp.StatusCode >= http.StatusInternalServerError {
		errType = ErrTypeServerError
	}

	clientErr := &Error{
		Type:       errType,
		Message:    fmt.Sprintf("server returned status %d", resp.StatusCode),
		StatusCode: resp.StatusCode,
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		var report health.Report
		if json.Unmarshal(data, &report) == nil && report.Status != "" {
			clientErr.Details = &report
			return clientErr
		}
	}

	var envelope struct {
		Error struct {
			Code    string          `json:"code"`
			Message string          `json:"message"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Code != "" {
		clientErr.Code = envelope.Error.Code
		clientErr.Message = envelope.Error.Message
		if len(envelope.Error.Details) > 0 {
			clientErr.Details = envelope.Error.Details
		}
	} else if len(data) > 0 {
		clientErr.Err = fmt.Errorf("response body: %s", strings.TrimSpace(string(data)))
	}

	return clientErr
}
