// Package swish is a client for the Swish merchant API. It creates and reads
// payment requests, refunds and signed payouts over mutual TLS and parses the
// callbacks the provider posts back.
//
// A Client is assembled either from parts with New, which suits tests and
// custom transports, or from a loaded configuration with NewFromConfig.
package swish

import (
	"context"
	"errors"
	"fmt"

	"github.com/gaborage/go-swish/config"
	"github.com/gaborage/go-swish/httpclient"
	"github.com/gaborage/go-swish/logger"
	"github.com/gaborage/go-swish/observability"
	"github.com/gaborage/go-swish/signing"
)

// Client groups the API services. Services share the transport and are safe
// for concurrent use.
type Client struct {
	Payments  *Payments
	Refunds   *Refunds
	Payouts   *Payouts
	Callbacks *Callbacks

	transport httpclient.Client
	signer    *signing.Signer
	obs       observability.Provider
}

// Option configures New.
type Option func(*options)

type options struct {
	log     logger.Logger
	signing SigningCredentials
}

// WithLogger sets the logger used by the services.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithSigningCredentials sets the key and certificate used by
// Payouts.CreateSigned when the call does not name a key.
func WithSigningCredentials(creds SigningCredentials) Option {
	return func(o *options) {
		o.signing = creds
	}
}

// New builds a Client on transport. signer may be nil when payouts are signed
// elsewhere. payeeAlias is the merchant's Swish number; it is the default payee
// of payment requests and the default payer of refunds and payouts.
func New(transport httpclient.Client, signer *signing.Signer, payeeAlias string, opts ...Option) *Client {
	o := options{log: logger.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		Payments: &Payments{
			transport:  transport,
			payeeAlias: payeeAlias,
			log:        o.log,
		},
		Refunds: &Refunds{
			transport:  transport,
			payerAlias: payeeAlias,
			log:        o.log,
		},
		Payouts: &Payouts{
			transport:  transport,
			signer:     signer,
			payerAlias: payeeAlias,
			signing:    o.signing,
			log:        o.log,
		},
		Callbacks: &Callbacks{log: o.log},
		transport: transport,
		signer:    signer,
	}
}

// NewFromConfig builds the mutual TLS transport and a file-backed signer from
// cfg. A nil log creates one from cfg.Log.
func NewFromConfig(cfg *config.Config, log logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("swish: config is nil")
	}
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}

	obs, err := observability.NewProvider(&cfg.Observability, observability.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("swish: observability: %w", err)
	}

	builder := httpclient.NewBuilder(log).
		WithTracerProvider(obs.TracerProvider()).
		WithMeterProvider(obs.MeterProvider()).
		WithBaseURL(cfg.ResolvedBaseURL()).
		WithCredentials(httpclient.Credentials{
			CertPath:   cfg.TLS.CertPath,
			KeyPath:    cfg.TLS.KeyPath,
			Passphrase: cfg.TLS.Passphrase,
			CAPath:     cfg.TLS.CAPath,
		}).
		WithTimeout(cfg.HTTP.Timeout).
		WithConnectTimeout(cfg.HTTP.ConnectTimeout).
		WithMaxRetries(cfg.HTTP.MaxRetries).
		WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst).
		WithMaxInFlight(cfg.HTTP.MaxInFlight)
	if cfg.HTTP.MaxResponseBytes > 0 {
		builder = builder.WithMaxResponseBytes(cfg.HTTP.MaxResponseBytes)
	}

	transport, err := builder.Build()
	if err != nil {
		_ = obs.Shutdown(context.Background())
		return nil, fmt.Errorf("swish: build transport: %w", err)
	}

	var signer *signing.Signer
	if cfg.Signing.Enabled() {
		signer = signing.NewSigner(signing.WithLogger(log))
	}

	c := New(transport, signer, cfg.PayeeAlias,
		WithLogger(log),
		WithSigningCredentials(SigningCredentials{
			KeyRef:     cfg.Signing.KeyPath,
			CertRef:    cfg.Signing.CertPath,
			Passphrase: cfg.Signing.Passphrase,
		}),
	)
	c.obs = obs
	return c, nil
}

// Close flushes and stops the tracer and meter providers started by
// NewFromConfig. It is a no-op for clients built with New.
func (c *Client) Close(ctx context.Context) error {
	if c.obs == nil {
		return nil
	}
	return c.obs.Shutdown(ctx)
}

// Signer returns the payout signer, or nil when signing is not configured.
func (c *Client) Signer() *signing.Signer {
	return c.signer
}

// Transport returns the underlying transport for calls the services do not cover.
func (c *Client) Transport() httpclient.Client {
	return c.transport
}
