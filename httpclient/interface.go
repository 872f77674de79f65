package httpclient

import (
	"context"
	nethttp "net/http"
	"time"
)

// Client sends requests to the provider API. Implementations are safe for
// concurrent use.
type Client interface {
	// Send performs method on uri, relative to the configured base URL, retrying
	// transient failures. It returns the first successful response or a
	// *clienterr.Error.
	Send(ctx context.Context, method, uri string, opts Options) (*Response, error)
}

// Options carries the per-request parts of a call.
type Options struct {
	// Headers are applied after the client defaults and override them.
	Headers map[string]string
	// Body is sent as is. It takes precedence over JSON.
	Body []byte
	// JSON is encoded with HTML escaping disabled when Body is nil.
	JSON any
}

// RequestInterceptor is called on every attempt before the request is sent.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// Config holds the transport settings assembled by Builder.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	ConnectTimeout   time.Duration
	MaxRetries       int
	MaxResponseBytes int64
	RateLimit        float64 // requests per second, 0 disables
	RateBurst        int
	MaxInFlight      int64 // concurrent sends, 0 disables
	DefaultHeaders   map[string]string
	// SendRequestID forwards the correlation ID as X-Request-ID.
	SendRequestID bool
}
