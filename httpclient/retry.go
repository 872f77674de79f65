package httpclient

import (
	"context"
	crand "crypto/rand"
	"errors"
	"math"
	"math/big"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseDelay is the first backoff step; attempt n waits BaseDelay * 2^n.
	DefaultBaseDelay = time.Second
	// DefaultMaxJitter bounds the random delay added to exponential backoff.
	DefaultMaxJitter = 500 * time.Millisecond
	// DefaultRetryAfterCap caps a provider supplied Retry-After.
	DefaultRetryAfterCap = 30 * time.Second

	maxBackoffExponent = 20
)

// JitterSource returns a uniform integer in [0, n). *math/rand.Rand satisfies it.
type JitterSource interface {
	Intn(n int) int
}

// cryptoJitter draws from crypto/rand so concurrent clients never share a seed.
type cryptoJitter struct{}

func (cryptoJitter) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// Outcome is the result of one attempt. Exactly one of Response and Err is set.
type Outcome struct {
	Response *Response
	Err      error
}

// Decision tells the transport whether to retry and how long to wait first.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// RetryPolicy decides whether a failed attempt is retried.
type RetryPolicy struct {
	BaseDelay     time.Duration
	MaxJitter     time.Duration
	RetryAfterCap time.Duration
	Jitter        JitterSource
}

// NewRetryPolicy returns the default policy. A nil jitter source uses crypto/rand.
func NewRetryPolicy(jitter JitterSource) *RetryPolicy {
	if jitter == nil {
		jitter = cryptoJitter{}
	}
	return &RetryPolicy{
		BaseDelay:     DefaultBaseDelay,
		MaxJitter:     DefaultMaxJitter,
		RetryAfterCap: DefaultRetryAfterCap,
		Jitter:        jitter,
	}
}

// ShouldRetry decides for the given 0-based attempt. No attempt at or past
// maxRetries is retried, so maxRetries 0 disables retries.
func (p *RetryPolicy) ShouldRetry(attempt, maxRetries int, outcome Outcome) Decision {
	if attempt >= maxRetries {
		return Decision{}
	}

	if outcome.Err != nil {
		if !isRetryableError(outcome.Err) {
			return Decision{}
		}
		return Decision{Retry: true, Delay: p.backoff(attempt)}
	}

	if outcome.Response == nil || !IsRetryableStatus(outcome.Response.StatusCode()) {
		return Decision{}
	}

	if outcome.Response.StatusCode() == nethttp.StatusTooManyRequests {
		if d, ok := p.retryAfter(outcome.Response); ok {
			return Decision{Retry: true, Delay: d}
		}
	}
	return Decision{Retry: true, Delay: p.backoff(attempt)}
}

// IsRetryableStatus reports the statuses that are retried: 429, 500, 502, 503 and 504.
func IsRetryableStatus(code int) bool {
	switch code {
	case nethttp.StatusTooManyRequests,
		nethttp.StatusInternalServerError,
		nethttp.StatusBadGateway,
		nethttp.StatusServiceUnavailable,
		nethttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Caller cancellation is final; every other transport error happened before a
// response and is retried.
func isRetryableError(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// retryAfter reads a numeric Retry-After in seconds. HTTP-date values and
// negative or non-finite numbers are ignored.
func (p *RetryPolicy) retryAfter(resp *Response) (time.Duration, bool) {
	raw, ok := resp.Header("Retry-After")
	if !ok {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || seconds < 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return 0, false
	}

	capSeconds := p.retryAfterCap().Seconds()
	if seconds > capSeconds {
		seconds = capSeconds
	}
	return time.Duration(seconds * 1000 * float64(time.Millisecond)), true
}

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if attempt > maxBackoffExponent {
		attempt = maxBackoffExponent
	}
	d := base * time.Duration(1<<attempt)

	if ms := int(p.MaxJitter / time.Millisecond); ms > 0 {
		jitter := p.Jitter
		if jitter == nil {
			jitter = cryptoJitter{}
		}
		d += time.Duration(jitter.Intn(ms)) * time.Millisecond
	}
	return d
}

func (p *RetryPolicy) retryAfterCap() time.Duration {
	if p.RetryAfterCap <= 0 {
		return DefaultRetryAfterCap
	}
	return p.RetryAfterCap
}
