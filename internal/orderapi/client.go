// Package orderapi is the HTTP client of the backend Order API.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	ordersPath           = "/api/orders"
	idempotencyKeyHeader = "Idempotency-Key"
	maxErrorBody         = 64 << 10
)

type Options struct {
	BaseURL string
	// BreakerFailures consecutive failures open the breaker for BreakerOpenDelay.
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
	HTTPClient       *http.Client
	Metrics          *metrics.Metrics
}

// Receipt is the Order API's acknowledgement. ID is empty when the API
// answered 2xx without a body.
type Receipt struct {
	ID string `json:"id"`
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[Receipt]
	metrics *metrics.Metrics
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[Receipt](gobreaker.Settings{
		Name:        "order-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// a rejected submission says nothing about the health of the API
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		breaker: breaker,
		metrics: opts.Metrics,
	}
}

// Submit posts one order. The idempotency key lets the API recognise a retry
// of a submission it already accepted.
func (c *Client) Submit(ctx context.Context, sub domain.OrderSubmission, idempotencyKey string) (Receipt, error) {
	start := time.Now()

	receipt, err := c.breaker.Execute(func() (Receipt, error) {
		return c.post(ctx, sub, idempotencyKey)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.metrics.ObserveOrderAPI(resultLabel(err), time.Since(start))
	return receipt, err
}

func (c *Client) post(ctx context.Context, sub domain.OrderSubmission, idempotencyKey string) (Receipt, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal order failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ordersPath, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("build order request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("post order failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, &APIError{Status: resp.StatusCode, Detail: errorDetail(raw)}
	}

	var receipt Receipt
	if len(bytes.TrimSpace(raw)) > 0 {
		// the acknowledgement body is optional, an unreadable one is still a success
		_ = json.Unmarshal(raw, &receipt)
	}
	return receipt, nil
}

// errorDetail extracts the human readable reason from an error body.
func errorDetail(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, field := range []json.RawMessage{body.Detail, body.Error, body.Message} {
		if text := rawText(field); text != "" {
			return text
		}
	}
	return ""
}

// rawText renders a JSON string as-is and any other JSON value verbatim,
// e.g. a list of field errors.
func rawText(field json.RawMessage) string {
	if len(field) == 0 || string(field) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return s
	}
	return string(field)
}

func resultLabel(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.As(err, &apiErr):
		return "rejected"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
