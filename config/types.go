package config

import (
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-swish/observability"
)

// Config is the complete client configuration. Koanf keys are the lowercase
// tag paths, e.g. "tls.certpath", settable through SWISH_TLS_CERTPATH.
type Config struct {
	// Environment selects the API base URL: production, test or sandbox.
	Environment string `koanf:"environment" validate:"required,oneof=production test sandbox"`

	// BaseURL overrides the environment URL, e.g. for a simulator.
	BaseURL string `koanf:"baseurl" validate:"omitempty,url"`

	// PayeeAlias is the merchant Swish number used as payee on payment requests.
	PayeeAlias string `koanf:"payeealias" validate:"required,numeric"`

	TLS           TLSConfig            `koanf:"tls"`
	Signing       SigningConfig        `koanf:"signing"`
	HTTP          HTTPConfig           `koanf:"http"`
	Log           LogConfig            `koanf:"log"`
	Observability observability.Config `koanf:"observability" validate:"-"`

	// VerifyFiles checks at load time that configured credential files exist
	// and are readable.
	VerifyFiles bool `koanf:"verifyfiles"`

	k *koanf.Koanf
}

// TLSConfig holds the mTLS client identity. CertPath is either a PEM
// certificate, paired with KeyPath, or a .p12/.pfx bundle.
type TLSConfig struct {
	CertPath   string `koanf:"certpath" validate:"required"`
	KeyPath    string `koanf:"keypath"`
	CAPath     string `koanf:"capath"`
	Passphrase string `koanf:"passphrase"`
}

// SigningConfig holds the payout signing key and certificate. Both are
// optional unless payouts are created.
type SigningConfig struct {
	KeyPath    string `koanf:"keypath" validate:"required_with=CertPath"`
	CertPath   string `koanf:"certpath" validate:"required_with=KeyPath"`
	Passphrase string `koanf:"passphrase"`
}

// Enabled reports whether a signing key is configured.
func (s SigningConfig) Enabled() bool {
	return s.KeyPath != ""
}

type HTTPConfig struct {
	Timeout        time.Duration `koanf:"timeout" validate:"gte=1s"`
	ConnectTimeout time.Duration `koanf:"connecttimeout" validate:"gte=1s"`
	MaxRetries     int           `koanf:"maxretries" validate:"gte=0,lte=10"`

	// RateLimit caps outbound requests per second. 0 disables limiting.
	RateLimit float64 `koanf:"ratelimit" validate:"gte=0"`
	RateBurst int     `koanf:"rateburst" validate:"gte=0"`

	// MaxInFlight caps concurrent sends. 0 means unlimited.
	MaxInFlight int64 `koanf:"maxinflight" validate:"gte=0"`

	// MaxResponseBytes caps response bodies. 0 keeps the transport default.
	MaxResponseBytes int64 `koanf:"maxresponsebytes" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}
