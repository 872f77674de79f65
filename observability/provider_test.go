package observability

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const testServiceName = "go-swish-test"

// syncBuffer guards a bytes.Buffer shared with exporter goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// restoreGlobals puts the otel globals back after a test that installs a provider.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestNewProviderDisabledIsNoop(t *testing.T) {
	p, err := NewProvider(&Config{Enabled: false})
	require.NoError(t, err)

	assert.IsType(t, tracenoop.NewTracerProvider(), p.TracerProvider())
	assert.IsType(t, metricnoop.NewMeterProvider(), p.MeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderNilConfig(t *testing.T) {
	_, err := NewProvider(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNewProviderInvalidConfig(t *testing.T) {
	_, err := NewProvider(&Config{Enabled: true})
	assert.ErrorIs(t, err, ErrMissingServiceName)
}

func TestNewProviderDoesNotMutateConfig(t *testing.T) {
	restoreGlobals(t)
	cfg := &Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}}

	p, err := NewProvider(cfg, WithStdoutWriter(&syncBuffer{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	assert.Empty(t, cfg.Trace.Endpoint)
	assert.Nil(t, cfg.Trace.Sample.Rate)
}

func TestNewProviderStdoutExport(t *testing.T) {
	restoreGlobals(t)
	out := &syncBuffer{}

	p, err := NewProvider(&Config{
		Enabled: true,
		Service: ServiceConfig{Name: testServiceName, Version: "1.2.3"},
	}, WithStdoutWriter(out))
	require.NoError(t, err)

	require.IsType(t, &sdktrace.TracerProvider{}, p.TracerProvider())
	require.IsType(t, &sdkmetric.MeterProvider{}, p.MeterProvider())
	assert.Same(t, p.TracerProvider(), otel.GetTracerProvider())

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "swish.test.span")
	span.End()

	counter, err := CreateCounter(p.MeterProvider().Meter("test"), "swish.test.counter", "Test counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.ForceFlush(ctx))

	got := out.String()
	assert.Contains(t, got, "swish.test.span")
	assert.Contains(t, got, "swish.test.counter")
	assert.Contains(t, got, testServiceName)

	require.NoError(t, p.Shutdown(ctx))
}

func TestNewProviderSignalsCanBeDisabled(t *testing.T) {
	restoreGlobals(t)

	p, err := NewProvider(&Config{
		Enabled: true,
		Service: ServiceConfig{Name: testServiceName},
		Trace:   TraceConfig{Enabled: BoolPtr(false)},
		Metrics: MetricsConfig{Enabled: BoolPtr(false)},
	}, WithStdoutWriter(&syncBuffer{}))
	require.NoError(t, err)

	assert.IsType(t, tracenoop.NewTracerProvider(), p.TracerProvider())
	assert.IsType(t, metricnoop.NewMeterProvider(), p.MeterProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderOTLPExporters(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		endpoint string
	}{
		{"http", ProtocolHTTP, "http://127.0.0.1:4318"},
		{"grpc", ProtocolGRPC, "127.0.0.1:4317"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreGlobals(t)

			p, err := NewProvider(&Config{
				Enabled:     true,
				Service:     ServiceConfig{Name: testServiceName},
				Environment: "test",
				Trace: TraceConfig{
					Endpoint: tt.endpoint,
					Protocol: tt.protocol,
					Insecure: true,
					Headers:  map[string]string{"api-key": "secret"},
				},
			})
			require.NoError(t, err)
			assert.IsType(t, &sdktrace.TracerProvider{}, p.TracerProvider())
			assert.IsType(t, &sdkmetric.MeterProvider{}, p.MeterProvider())

			// Nothing listens on the collector port; only shutdown bookkeeping is checked.
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestMustNewProviderPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustNewProvider(&Config{Enabled: true})
	})
	assert.NotPanics(t, func() {
		MustNewProvider(&Config{})
	})
}

func TestNoopProvider(t *testing.T) {
	p := NewNoopProvider()
	assert.NotNil(t, p.TracerProvider())
	assert.NotNil(t, p.MeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}
