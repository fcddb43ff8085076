package platformapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Amund211/coursesync/internal/domain"
	"github.com/Amund211/coursesync/internal/ratelimiting"
	"github.com/Amund211/coursesync/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const userAgent = "coursesync/1.0"

const maxRequestTime = 10 * time.Second

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource hands out the bearer token of the logged in user
type TokenSource interface {
	Token() (string, error)
}

type clientMetricsCollection struct {
	requestCount metric.Int64Counter
	latency      metric.Float64Histogram
}

func setupClientMetrics(meter metric.Meter) (clientMetricsCollection, error) {
	requestCount, err := meter.Int64Counter(
		"platformapi/request_count",
		metric.WithDescription("Requests sent to the platform API"),
	)
	if err != nil {
		return clientMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	latency, err := meter.Float64Histogram(
		"platformapi/request_latency",
		metric.WithDescription("Latency of platform API requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return clientMetricsCollection{}, fmt.Errorf("failed to create latency metric: %w", err)
	}

	return clientMetricsCollection{
		requestCount: requestCount,
		latency:      latency,
	}, nil
}

// Client talks to the education platform REST API on behalf of the logged in user
type Client struct {
	baseURL    string
	httpClient HttpClient
	tokens     TokenSource
	limiter    ratelimiting.RequestLimiter
	nowFunc    func() time.Time

	tracer  trace.Tracer
	metrics clientMetricsCollection
}

func NewClient(baseURL string, httpClient HttpClient, tokens TokenSource, limiter ratelimiting.RequestLimiter, nowFunc func() time.Time) (*Client, error) {
	const name = "coursesync/internal/adapters/platformapi"

	metrics, err := setupClientMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		limiter:    limiter,
		nowFunc:    nowFunc,
		tracer:     otel.Tracer(name),
		metrics:    metrics,
	}, nil
}

// Get fetches path and returns the raw response body
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Delete deletes the resource at path
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// Send writes body to path with the given method and returns the response body
func (c *Client) Send(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	return c.do(ctx, method, path, nil, body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "Client."+method, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("platformapi.path", path),
	))
	defer span.End()

	token, err := c.tokens.Token()
	if err != nil {
		// Nothing is sent without credentials
		span.SetStatus(codes.Error, "unauthenticated")
		return nil, err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var resp *http.Response
	var sendErr error
	startedAt := c.nowFunc()
	ran := c.limiter.Limit(ctx, maxRequestTime, func() {
		resp, sendErr = c.httpClient.Do(req)
	})
	if !ran {
		err := fmt.Errorf("%w: request to platform API was rate limited", domain.ErrTemporarilyUnavailable)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if sendErr != nil {
		err := fmt.Errorf("failed to send request: %w", sendErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		c.record(ctx, method, "error", startedAt)
		if errors.Is(sendErr, context.Canceled) {
			return nil, err
		}
		reporting.Report(ctx, err, map[string]string{"method": method})
		return nil, fmt.Errorf("%w: %w", domain.ErrTemporarilyUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.record(ctx, method, strconv.Itoa(resp.StatusCode), startedAt)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if err := errorFromStatus(method, path, resp.StatusCode); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if expectedError(err) {
			// Pass through error but don't report
			return nil, err
		}
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(resp.StatusCode),
		})
		return nil, err
	}

	return data, nil
}

func (c *Client) record(ctx context.Context, method, status string, startedAt time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status),
	)
	c.metrics.requestCount.Add(ctx, 1, attrs)
	c.metrics.latency.Record(ctx, c.nowFunc().Sub(startedAt).Seconds(), attrs)
}

func errorFromStatus(method, path string, statusCode int) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s returned status code %d", domain.ErrUnauthenticated, method, path, statusCode)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s %s returned status code %d", domain.ErrForbidden, method, path, statusCode)
	case http.StatusNotFound,
		http.StatusGone:
		return fmt.Errorf("%w: %s %s returned status code %d", domain.ErrNotFound, method, path, statusCode)
	case http.StatusBadRequest,
		http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s %s returned status code %d", domain.ErrInvalidParams, method, path, statusCode)
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s %s returned status code %d", domain.ErrTemporarilyUnavailable, method, path, statusCode)
	}

	return fmt.Errorf("%s %s returned unexpected status code %d", method, path, statusCode)
}

func expectedError(err error) bool {
	return errors.Is(err, domain.ErrUnauthenticated) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidParams)
}
