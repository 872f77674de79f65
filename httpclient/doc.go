// Package httpclient is the mutual TLS transport used to call the Swish API,
// with retries, typed errors and OpenTelemetry instrumentation.
//
// Transport
//   - The client certificate and key come from PEM files or a PKCS#12 bundle.
//   - Server certificates are always verified; TLS 1.2 is the minimum.
//   - Every request carries Accept: application/json. Content-Type is left to the caller.
//   - Logs carry method, URI and status code. Bodies are never logged.
//
// Retries
//   - Controlled via Builder.WithMaxRetries. Zero disables retries.
//   - Retries occur on:
//   - Transport errors before a response (DNS, connect, TLS handshake, read)
//   - HTTP 429, 500, 502, 503 and 504
//   - Any other status is terminal and mapped by clienterr.Classify.
//
// Backoff Strategy
//   - A 429 with a numeric Retry-After waits that many seconds, capped at 30.
//   - Otherwise delay = 1s * 2^attempt plus a jitter in [0, 500ms).
//   - Context cancellation interrupts both the attempt and the backoff sleep.
//
// Notes
//   - Request bodies are re-sent by rebuilding the http.Request on each attempt.
//   - Interceptor errors are not retried and are surfaced immediately.
package httpclient
