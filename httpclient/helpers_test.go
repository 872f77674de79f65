package httpclient

import (
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-swish/internal/testutil"
	"github.com/gaborage/go-swish/logger"
)

// Test constants to avoid string duplication
const (
	testPaymentURI   = "/swish-cpcapi/api/v1/paymentrequests/AB23D7406ECE4542A80152D909EF9F6B"
	testCreateURI    = "/swish-cpcapi/api/v2/paymentrequests/AB23D7406ECE4542A80152D909EF9F6B"
	testContentType  = "Content-Type"
	testMediaJSON    = "application/json"
	testSecretMarker = "payer-ssn-197501088327"
)

// fixedJitter always returns the same value, bounded by n.
type fixedJitter struct {
	value int
	mu    sync.Mutex
	seen  []int
}

func (f *fixedJitter) Intn(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, n)
	if f.value >= n {
		return n - 1
	}
	return f.value
}

type loggedEvent struct {
	level   string
	fields  map[string]any
	message string
}

// fakeLogger records events for assertions.
type fakeLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (l *fakeLogger) newEvent(level string) logger.LogEvent {
	return &fakeLogEvent{logger: l, level: level, fields: map[string]any{}}
}

func (l *fakeLogger) Info() logger.LogEvent  { return l.newEvent("info") }
func (l *fakeLogger) Error() logger.LogEvent { return l.newEvent("error") }
func (l *fakeLogger) Debug() logger.LogEvent { return l.newEvent("debug") }
func (l *fakeLogger) Warn() logger.LogEvent  { return l.newEvent("warn") }
func (l *fakeLogger) Fatal() logger.LogEvent { return l.newEvent("fatal") }

func (l *fakeLogger) WithContext(any) logger.Logger           { return l }
func (l *fakeLogger) WithFields(map[string]any) logger.Logger { return l }

func (l *fakeLogger) snapshot() []loggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]loggedEvent(nil), l.events...)
}

func (l *fakeLogger) messages() []string {
	var out []string
	for _, e := range l.snapshot() {
		out = append(out, e.message)
	}
	return out
}

type fakeLogEvent struct {
	logger *fakeLogger
	level  string
	fields map[string]any
}

func (e *fakeLogEvent) Msg(msg string) {
	e.logger.mu.Lock()
	defer e.logger.mu.Unlock()
	e.logger.events = append(e.logger.events, loggedEvent{level: e.level, fields: maps.Clone(e.fields), message: msg})
}

func (e *fakeLogEvent) Msgf(format string, _ ...any) { e.Msg(format) }

func (e *fakeLogEvent) Err(err error) logger.LogEvent {
	e.fields["error"] = err
	return e
}

func (e *fakeLogEvent) Str(key, value string) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int(key string, value int) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int64(key string, value int64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Uint64(key string, value uint64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Dur(key string, d time.Duration) logger.LogEvent {
	e.fields[key] = d
	return e
}

func (e *fakeLogEvent) Interface(key string, i any) logger.LogEvent {
	e.fields[key] = i
	return e
}

func (e *fakeLogEvent) Bytes(key string, val []byte) logger.LogEvent {
	e.fields[key] = string(val)
	return e
}

// fastPolicy keeps backoff short so retry tests run quickly.
func fastPolicy() *RetryPolicy {
	return &RetryPolicy{
		BaseDelay:     10 * time.Millisecond,
		RetryAfterCap: DefaultRetryAfterCap,
		Jitter:        &fixedJitter{},
	}
}

func testCredentials(pki *testutil.PKI) Credentials {
	return Credentials{
		CertPath: pki.ClientCertPath,
		KeyPath:  pki.ClientKeyPath,
		CAPath:   pki.CACertPath,
	}
}

// newTestBuilder returns a builder pointed at baseURL with test credentials,
// a fast retry policy and a recording logger.
func newTestBuilder(pki *testutil.PKI, baseURL string, log logger.Logger) *Builder {
	return NewBuilder(log).
		WithBaseURL(baseURL).
		WithCredentials(testCredentials(pki)).
		WithTimeout(5 * time.Second).
		WithConnectTimeout(2 * time.Second).
		WithRetryPolicy(fastPolicy())
}

func mustBuild(t *testing.T, b *Builder) Client {
	t.Helper()
	c, err := b.Build()
	require.NoError(t, err)
	return c
}
