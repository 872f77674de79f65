package trace

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	id, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-1", id)

	_, ok = RequestIDFromContext(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}

func TestEnsureRequestIDUsesExisting(t *testing.T) {
	ctx := WithRequestID(context.Background(), "existing")
	out, id := EnsureRequestID(ctx)
	assert.Equal(t, "existing", id)
	assert.Equal(t, ctx, out)
}

func TestEnsureRequestIDGeneratesUUID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	assert.Regexp(t, regexp.MustCompile(`^[a-f0-9-]{36}$`), id)

	stored, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, stored)
}

func TestEnsureRequestIDPrefersSpanTraceID(t *testing.T) {
	traceID := oteltrace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  oteltrace.SpanID{0x01},
	})
	ctx := oteltrace.ContextWithSpanContext(context.Background(), sc)

	_, id := EnsureRequestID(ctx)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", id)
}

func TestHeaderConstant(t *testing.T) {
	assert.Equal(t, "X-Request-ID", HeaderXRequestID)
}
