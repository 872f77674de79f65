package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-swish/clienterr"
	"github.com/gaborage/go-swish/logger"
	"github.com/gaborage/go-swish/trace"
)

const (
	// DefaultTimeout bounds one attempt, including reading the body.
	DefaultTimeout = 30 * time.Second
	// DefaultConnectTimeout bounds dialing and the TLS handshake.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultMaxResponseBytes caps the body read from one response.
	DefaultMaxResponseBytes int64 = 10 << 20

	headerAccept = "Accept"
	mediaJSON    = "application/json"

	spanSend = "swish.send"
)

var allowedMethods = map[string]bool{
	nethttp.MethodGet:    true,
	nethttp.MethodPut:    true,
	nethttp.MethodPost:   true,
	nethttp.MethodPatch:  true,
	nethttp.MethodDelete: true,
}

// client implements Client over a mutual TLS http.Client.
type client struct {
	httpClient   *nethttp.Client
	logger       logger.Logger
	config       Config
	policy       *RetryPolicy
	interceptors []RequestInterceptor
	limiter      *rate.Limiter
	inflight     *semaphore.Weighted
	tracer       oteltrace.Tracer
	metrics      *instruments
}

var _ Client = (*client)(nil)

// Builder configures and creates a Client.
type Builder struct {
	config         Config
	logger         logger.Logger
	credentials    Credentials
	policy         *RetryPolicy
	jitter         JitterSource
	interceptors   []RequestInterceptor
	tracerProvider oteltrace.TracerProvider
	meterProvider  metric.MeterProvider
}

// NewBuilder creates a builder with default timeouts and retries.
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: Config{
			Timeout:          DefaultTimeout,
			ConnectTimeout:   DefaultConnectTimeout,
			MaxRetries:       DefaultMaxRetries,
			MaxResponseBytes: DefaultMaxResponseBytes,
			DefaultHeaders:   map[string]string{headerAccept: mediaJSON},
		},
		logger: log,
	}
}

// WithBaseURL sets the URL that request URIs are appended to.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithCredentials sets the client certificate, key and optional CA bundle.
func (b *Builder) WithCredentials(creds Credentials) *Builder {
	b.credentials = creds
	return b
}

// WithTimeout sets the per-attempt timeout.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithConnectTimeout sets the dial and TLS handshake timeout.
func (b *Builder) WithConnectTimeout(timeout time.Duration) *Builder {
	b.config.ConnectTimeout = timeout
	return b
}

// WithMaxRetries sets how many times a transient failure is retried. Zero disables retries.
func (b *Builder) WithMaxRetries(maxRetries int) *Builder {
	b.config.MaxRetries = maxRetries
	return b
}

// WithRetryPolicy replaces the default retry policy.
func (b *Builder) WithRetryPolicy(policy *RetryPolicy) *Builder {
	b.policy = policy
	return b
}

// WithJitterSource sets the random source of the default retry policy.
func (b *Builder) WithJitterSource(jitter JitterSource) *Builder {
	b.jitter = jitter
	return b
}

// WithDefaultHeader adds a header sent with every request.
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds an interceptor run before every attempt.
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.interceptors = append(b.interceptors, interceptor)
	return b
}

// WithRateLimit limits outbound attempts to rps per second with the given burst.
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	b.config.RateLimit = rps
	b.config.RateBurst = burst
	return b
}

// WithMaxInFlight bounds the number of concurrent Send calls.
func (b *Builder) WithMaxInFlight(n int64) *Builder {
	b.config.MaxInFlight = n
	return b
}

// WithMaxResponseBytes caps the body size read from a response.
func (b *Builder) WithMaxResponseBytes(n int64) *Builder {
	b.config.MaxResponseBytes = n
	return b
}

// WithRequestIDHeader forwards the correlation ID as X-Request-ID.
func (b *Builder) WithRequestIDHeader(enabled bool) *Builder {
	b.config.SendRequestID = enabled
	return b
}

// WithTracerProvider overrides the global tracer provider.
func (b *Builder) WithTracerProvider(tp oteltrace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithMeterProvider overrides the global meter provider.
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.meterProvider = mp
	return b
}

// Build loads the TLS credentials and creates the client.
func (b *Builder) Build() (Client, error) {
	if b.config.BaseURL == "" {
		return nil, errors.New("httpclient: base URL is required")
	}
	if b.config.MaxRetries < 0 {
		return nil, errors.New("httpclient: max retries must not be negative")
	}

	tlsConfig, err := NewTLSConfig(b.credentials)
	if err != nil {
		return nil, err
	}

	log := b.logger
	if log == nil {
		log = logger.NewNop()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := b.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	metrics, err := newInstruments(mp)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create instruments: %w", err)
	}

	policy := b.policy
	if policy == nil {
		policy = NewRetryPolicy(b.jitter)
	}

	dialer := &net.Dialer{Timeout: b.config.ConnectTimeout, KeepAlive: 30 * time.Second}
	base := &nethttp.Transport{
		Proxy:                 nethttp.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   b.config.ConnectTimeout,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	c := &client{
		httpClient: &nethttp.Client{
			Timeout: b.config.Timeout,
			Transport: otelhttp.NewTransport(base,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithMeterProvider(mp),
			),
			// Redirects are surfaced as terminal responses.
			CheckRedirect: func(*nethttp.Request, []*nethttp.Request) error {
				return nethttp.ErrUseLastResponse
			},
		},
		logger:       log,
		config:       b.config,
		policy:       policy,
		interceptors: append([]RequestInterceptor(nil), b.interceptors...),
		tracer:       tp.Tracer(instrumentationName),
		metrics:      metrics,
	}
	c.config.DefaultHeaders = cloneHeaders(b.config.DefaultHeaders)

	if b.config.RateLimit > 0 {
		burst := b.config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(b.config.RateLimit), burst)
	}
	if b.config.MaxInFlight > 0 {
		c.inflight = semaphore.NewWeighted(b.config.MaxInFlight)
	}
	return c, nil
}

// Send implements Client.
func (c *client) Send(ctx context.Context, method, uri string, opts Options) (*Response, error) {
	method = strings.ToUpper(method)
	if !allowedMethods[method] {
		return nil, clienterr.NewValidationError(fmt.Sprintf("unsupported HTTP method %q", method), nil)
	}
	if strings.TrimSpace(uri) == "" {
		return nil, clienterr.NewValidationError("request URI must not be empty", nil)
	}

	body, err := encodeBody(opts)
	if err != nil {
		return nil, clienterr.NewValidationError("request body cannot be encoded as JSON", err)
	}

	ctx, span := c.tracer.Start(ctx, spanSend,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String("url.path", uri),
		),
	)
	defer span.End()

	ctx, requestID := trace.EnsureRequestID(ctx)

	start := time.Now()
	resp, err := c.send(ctx, method, uri, requestID, opts.Headers, body)
	c.metrics.recordSend(ctx, method, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := clienterr.StatusCode(err); code != 0 {
			span.SetAttributes(attribute.Int(attrStatusCode, code))
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int(attrStatusCode, resp.StatusCode()))
	return resp, nil
}

func (c *client) send(ctx context.Context, method, uri, requestID string, headers map[string]string, body []byte) (*Response, error) {
	if c.inflight != nil {
		if err := c.inflight.Acquire(ctx, 1); err != nil {
			return nil, c.cancelled(method, uri, err)
		}
		defer c.inflight.Release(1)
	}

	target := c.resolve(uri)

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, c.cancelled(method, uri, err)
			}
		}

		resp, err := c.attempt(ctx, method, target, uri, requestID, attempt, headers, body)
		if err == nil && resp.IsSuccessful() {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, c.cancelled(method, uri, ctxErr)
		}

		// Errors already classified are terminal.
		var ce *clienterr.Error
		if errors.As(err, &ce) {
			return nil, ce
		}

		decision := c.policy.ShouldRetry(attempt, c.config.MaxRetries, Outcome{Response: resp, Err: err})
		if decision.Retry {
			c.logRetry(method, uri, requestID, attempt, decision.Delay, resp, err)
			c.metrics.recordRetry(ctx, method)
			if sleepErr := sleepContext(ctx, decision.Delay); sleepErr != nil {
				return nil, c.cancelled(method, uri, sleepErr)
			}
			continue
		}

		if err != nil {
			c.logger.Error().
				Str("method", method).
				Str("uri", uri).
				Str("request_id", requestID).
				Err(err).
				Msg("API connection failure")
			return nil, clienterr.NewNetworkError(fmt.Sprintf("failed to connect to API: %v", err), err)
		}

		c.logger.Warn().
			Str("method", method).
			Str("uri", uri).
			Str("request_id", requestID).
			Int("status", resp.StatusCode()).
			Msg("API error")
		return nil, clienterr.Classify(resp.StatusCode(), clienterr.ParseRecords(resp.Body()), nil)
	}
}

// attempt performs one HTTP exchange. Transport failures are returned raw so
// the retry policy can judge them.
func (c *client) attempt(ctx context.Context, method, target, uri, requestID string, attempt int, headers map[string]string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, clienterr.NewValidationError("invalid request URI", err)
	}

	for k, v := range c.config.DefaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.config.SendRequestID && req.Header.Get(trace.HeaderXRequestID) == "" {
		req.Header.Set(trace.HeaderXRequestID, requestID)
	}

	for _, interceptor := range c.interceptors {
		if err := interceptor(ctx, req); err != nil {
			return nil, clienterr.NewValidationError("request interceptor failed", err)
		}
	}

	c.logger.Info().
		Str("direction", "outbound").
		Str("method", method).
		Str("uri", uri).
		Str("request_id", requestID).
		Int("attempt", attempt).
		Msg("API request")

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.recordAttempt(ctx, method, nil)
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := readLimited(httpResp.Body, c.config.MaxResponseBytes)
	if err != nil {
		c.metrics.recordAttempt(ctx, method, nil)
		if errors.Is(err, errBodyTooLarge) {
			return nil, clienterr.NewNetworkError(
				fmt.Sprintf("response body exceeds %d bytes", c.config.MaxResponseBytes), err)
		}
		return nil, err
	}

	resp := NewResponse(httpResp.StatusCode, httpResp.Header, respBody)
	c.metrics.recordAttempt(ctx, method, resp)

	c.logger.Info().
		Str("direction", "inbound").
		Str("method", method).
		Str("uri", uri).
		Str("request_id", requestID).
		Int("status", resp.StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("API response")
	return resp, nil
}

func (c *client) logRetry(method, uri, requestID string, attempt int, delay time.Duration, resp *Response, err error) {
	event := c.logger.Info().
		Str("method", method).
		Str("uri", uri).
		Str("request_id", requestID).
		Int("attempt", attempt+1).
		Int("max_retries", c.config.MaxRetries).
		Dur("delay", delay)
	if resp != nil {
		event = event.Int("status", resp.StatusCode())
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("API retry scheduled")
}

func (c *client) cancelled(method, uri string, err error) error {
	c.logger.Warn().
		Str("method", method).
		Str("uri", uri).
		Err(err).
		Msg("API request cancelled")
	return clienterr.NewNetworkError(fmt.Sprintf("request cancelled: %v", err), err)
}

func (c *client) resolve(uri string) string {
	if strings.HasPrefix(uri, "/") {
		return strings.TrimRight(c.config.BaseURL, "/") + uri
	}
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + uri
}

var errBodyTooLarge = errors.New("response body too large")

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func encodeBody(opts Options) ([]byte, error) {
	if opts.Body != nil {
		return opts.Body, nil
	}
	if opts.JSON == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(opts.JSON); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cloneHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
