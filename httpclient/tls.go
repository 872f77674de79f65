package httpclient

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/gaborage/go-swish/internal/keyutil"
)

var (
	// ErrMissingCredentials is returned when no client certificate or key is configured.
	ErrMissingCredentials = errors.New("httpclient: client certificate and private key are required")
	// ErrKeyMismatch is returned when the private key does not belong to the certificate.
	ErrKeyMismatch = errors.New("httpclient: private key does not match client certificate")
	// ErrEmptyCABundle is returned when the CA file holds no usable certificate.
	ErrEmptyCABundle = errors.New("httpclient: CA bundle contains no certificates")
)

// Credentials identify the client to the provider.
type Credentials struct {
	// CertPath is a PEM certificate chain, leaf first, or a PKCS#12 bundle (.p12, .pfx).
	CertPath string
	// KeyPath is a PEM private key. It is not used with PKCS#12 bundles.
	KeyPath string
	// Passphrase decrypts the key or the PKCS#12 bundle.
	Passphrase string
	// CAPath optionally replaces the system roots used to verify the server.
	CAPath string
}

// NewTLSConfig builds a client TLS configuration presenting the credentials.
// Server verification is always performed and TLS 1.2 is the minimum version.
func NewTLSConfig(creds Credentials) (*tls.Config, error) {
	if creds.CertPath == "" || (creds.KeyPath == "" && !keyutil.IsPKCS12Path(creds.CertPath)) {
		return nil, ErrMissingCredentials
	}

	cert, err := loadClientCertificate(creds)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if creds.CAPath != "" {
		pool, err := loadCAPool(creds.CAPath)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func loadClientCertificate(creds Credentials) (tls.Certificate, error) {
	if keyutil.IsPKCS12Path(creds.CertPath) {
		return loadPKCS12(creds.CertPath, creds.Passphrase)
	}

	certPEM, err := os.ReadFile(creds.CertPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("httpclient: read client certificate: %w", err)
	}
	certs, err := keyutil.ParseCertificates(certPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("httpclient: client certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(creds.KeyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("httpclient: read client key: %w", err)
	}
	key, err := keyutil.ParsePrivateKey(keyPEM, creds.Passphrase)
	keyutil.Zero(keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("httpclient: client key: %w", err)
	}

	return buildCertificate(key, certs)
}

func loadPKCS12(path, passphrase string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("httpclient: read pkcs12 bundle: %w", err)
	}
	key, cert, err := keyutil.DecodePKCS12(data, passphrase)
	keyutil.Zero(data)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("httpclient: client bundle: %w", err)
	}
	return buildCertificate(key, []*x509.Certificate{cert})
}

func buildCertificate(key crypto.Signer, chain []*x509.Certificate) (tls.Certificate, error) {
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(chain[0].PublicKey) {
		return tls.Certificate{}, ErrKeyMismatch
	}

	der := make([][]byte, 0, len(chain))
	for _, c := range chain {
		der = append(der, c.Raw)
	}
	return tls.Certificate{
		Certificate: der,
		PrivateKey:  key,
		Leaf:        chain[0],
	}, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, ErrEmptyCABundle
	}
	return pool, nil
}
