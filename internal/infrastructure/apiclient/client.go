// Package apiclient is the HTTP client for the remote membership API. Every
// response and error body goes through NormalizeBody, and every call carries
// the headers from BuildAuthHeaders.
package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/etribe/portal/internal/domain/identity"
	"github.com/etribe/portal/internal/domain/shared"
	"github.com/etribe/portal/internal/infrastructure/config"
	"github.com/etribe/portal/internal/infrastructure/logger"
	"github.com/etribe/portal/internal/infrastructure/session"
)

const tracerName = "github.com/etribe/portal/apiclient"

// Observer records the outcome of each outbound call. status is 0 when the
// call failed before a response arrived.
type Observer interface {
	ObserveRequest(method, endpoint string, status int, duration time.Duration)
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 0,
		RetryDelay: 500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
	}
}

// Client talks to the portal API.
type Client struct {
	httpClient     *http.Client
	baseURL        *url.URL
	creds          Credentials
	store          session.Store
	limiter        *rate.Limiter
	retry          RetryConfig
	requestTimeout time.Duration
	tracer         trace.Tracer
	propagator     propagation.TextMapPropagator
	observer       Observer
	logger         *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (tests use httptest's client)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetry overrides the retry policy
func WithRetry(r RetryConfig) Option {
	return func(c *Client) { c.retry = r }
}

// WithObserver installs a metrics observer
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithTracerProvider sets the tracer provider used for client spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// New creates a client for cfg. The session store supplies token and uid for
// every request.
func New(cfg config.APIConfig, store session.Store, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	c := &Client{
		// No global Timeout: bulk operations can be slow, deadlines are per call.
		httpClient:     &http.Client{Transport: transport, Jar: jar},
		baseURL:        base,
		creds:          Credentials{ServiceID: cfg.ServiceID, AuthKey: cfg.AuthKey, RoutingURL: cfg.RoutingURL},
		store:          store,
		retry:          retry,
		requestTimeout: cfg.RequestTimeout,
		tracer:         otel.Tracer(tracerName),
		propagator:     otel.GetTextMapPropagator(),
		logger:         zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}
	return c, nil
}

// FilePart is one file of a multipart upload.
type FilePart struct {
	Field    string
	FileName string
	Content  []byte
}

// Multipart is a multipart/form-data request body.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

// Request represents an API call.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    any
	Upload  *Multipart
	Headers map[string]string
	// Timeout overrides the configured per-call timeout (login uses a longer one).
	Timeout time.Duration
	// RequireAuth short-circuits with identity.ErrNotAuthenticated when no
	// token is stored, before any network I/O.
	RequireAuth bool
}

// Response is a successful (2xx) API response with a normalized body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	// JSON reports whether Body holds a JSON document after normalization.
	JSON bool
}

// Decode unmarshals the normalized body into dst.
func (r *Response) Decode(dst any) error {
	if !r.JSON {
		return fmt.Errorf("%w: %s", ErrUnexpectedFormat, truncate(string(r.Body), 120))
	}
	if err := json.Unmarshal(r.Body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
	}
	return nil
}

// ErrUnexpectedFormat is returned when no JSON could be recovered from a body.
var ErrUnexpectedFormat = shared.ErrUnexpectedFormat

// Do executes req. Non-2xx responses come back as *APIError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.RequireAuth && session.GetString(ctx, c.store, session.KeyToken) == "" {
		return nil, identity.ErrNotAuthenticated
	}

	u, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.requestTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "portal.api "+req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	resp, err := c.doWithRetry(ctx, req, u)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (c *Client) doWithRetry(ctx context.Context, req Request, u *url.URL) (*Response, error) {
	log := logger.Enrich(ctx, c.logger)
	retryable := req.Method == http.MethodGet || req.Method == http.MethodHead

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		resp, err := c.roundTrip(ctx, req, u)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable || !shouldRetry(err) || attempt == c.retry.MaxRetries {
			break
		}
		log.Warn("retrying API call",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

// roundTrip performs a single attempt and classifies the result.
func (c *Client) roundTrip(ctx context.Context, req Request, u *url.URL) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	if req.Upload != nil {
		httpReq.Header = BuildUploadHeaders(ctx, c.creds, c.store)
		httpReq.Header.Set(HeaderContentType, contentType)
	} else {
		httpReq.Header = BuildAuthHeaders(ctx, c.creds, c.store)
	}
	httpReq.Header.Set("Accept", "application/json")
	requestID := logger.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	c.propagator.Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		c.observe(req, 0, duration)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	c.observe(req, httpResp.StatusCode, duration)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	normalized, isJSON := NormalizeBody(raw)
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, newAPIError(req.Method, req.Path, httpResp.StatusCode, normalized)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       normalized,
		Duration:   duration,
		JSON:       isJSON,
	}, nil
}

func (c *Client) observe(req Request, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(req.Method, req.Path, status, d)
	}
}

func encodeBody(req Request) (io.Reader, string, error) {
	switch {
	case req.Upload != nil:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range req.Upload.Fields {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", fmt.Errorf("writing form field %q: %w", k, err)
			}
		}
		for _, f := range req.Upload.Files {
			part, err := w.CreateFormFile(f.Field, f.FileName)
			if err != nil {
				return nil, "", fmt.Errorf("creating form file %q: %w", f.Field, err)
			}
			if _, err := part.Write(f.Content); err != nil {
				return nil, "", fmt.Errorf("writing form file %q: %w", f.Field, err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("closing multipart body: %w", err)
		}
		return &buf, w.FormDataContentType(), nil
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("marshaling request body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	default:
		return nil, "", nil
	}
}

func shouldRetry(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Get performs a GET request that requires a session token.
func (c *Client) Get(ctx context.Context, path string, query map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, RequireAuth: true})
}

// Post performs a POST request that requires a session token.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, RequireAuth: true})
}

// Put performs a PUT request that requires a session token.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, RequireAuth: true})
}

// Delete performs a DELETE request that requires a session token.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, RequireAuth: true})
}

// buildURL joins path onto the base URL, keeping any base path prefix.
func (c *Client) buildURL(path string, query map[string]string) (*url.URL, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""

	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return &u, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retry.RetryDelay) * math.Pow(c.retry.Multiplier, float64(attempt-1))
	if delay > float64(c.retry.MaxDelay) {
		delay = float64(c.retry.MaxDelay)
	}
	// ±25% jitter
	jitter := delay * 0.25
	delay += (rand.Float64()*2 - 1) * jitter
	return time.Duration(delay)
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Session returns the session store the client reads credentials from.
func (c *Client) Session() session.Store {
	return c.store
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
