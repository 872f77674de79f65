package httpclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-swish/clienterr"
	"github.com/gaborage/go-swish/observability"
)

const (
	instrumentationName = "github.com/gaborage/go-swish/httpclient"

	metricAttempts     = "swish.client.attempts"      // Counter, one per HTTP exchange or connection failure
	metricRetries      = "swish.client.retries"       // Counter, one per scheduled retry
	metricSendDuration = "swish.client.send.duration" // Histogram in seconds, one per Send

	attrMethod     = "http.request.method"
	attrStatusCode = "http.response.status_code"
	attrOutcome    = "swish.outcome"
	attrErrorKind  = "error.type"
)

// Attempt outcomes.
const (
	outcomeSuccess      = "success"
	outcomeHTTPError    = "http_error"
	outcomeNetworkError = "network_error"
)

type instruments struct {
	attempts     metric.Int64Counter
	retries      metric.Int64Counter
	sendDuration metric.Float64Histogram
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(instrumentationName)

	attempts, err := observability.CreateCounter(meter, metricAttempts,
		"HTTP attempts made against the provider API", metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, err
	}

	retries, err := observability.CreateCounter(meter, metricRetries,
		"Retries scheduled after a transient failure", metric.WithUnit("{retry}"))
	if err != nil {
		return nil, err
	}

	sendDuration, err := observability.CreateHistogram(meter, metricSendDuration,
		"Duration of a Send call including retries and backoff", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &instruments{attempts: attempts, retries: retries, sendDuration: sendDuration}, nil
}

func (m *instruments) recordAttempt(ctx context.Context, method string, resp *Response) {
	attrs := []attribute.KeyValue{attribute.String(attrMethod, method)}
	switch {
	case resp == nil:
		attrs = append(attrs, attribute.String(attrOutcome, outcomeNetworkError))
	case resp.IsSuccessful():
		attrs = append(attrs,
			attribute.String(attrOutcome, outcomeSuccess),
			attribute.Int(attrStatusCode, resp.StatusCode()))
	default:
		attrs = append(attrs,
			attribute.String(attrOutcome, outcomeHTTPError),
			attribute.Int(attrStatusCode, resp.StatusCode()))
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *instruments) recordRetry(ctx context.Context, method string) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMethod, method)))
}

func (m *instruments) recordSend(ctx context.Context, method string, elapsed time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String(attrMethod, method)}
	if err != nil {
		kind := clienterr.KindOf(err)
		if kind == "" {
			kind = "unknown"
		}
		attrs = append(attrs, attribute.String(attrErrorKind, string(kind)))
	}
	m.sendDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}
