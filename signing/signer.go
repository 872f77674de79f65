// Package signing produces the detached payload signatures required by the
// payouts API and reads the signing certificate serial number.
package signing

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/gaborage/go-swish/clienterr"
	"github.com/gaborage/go-swish/internal/keyutil"
	"github.com/gaborage/go-swish/logger"
)

const keyLoadMessage = "failed to load signing private key: verify key format and passphrase"

// SignedPayload is a canonical payload together with its signature.
type SignedPayload struct {
	Canonical []byte
	Signature string
}

// Signer signs payloads with RSA PKCS#1 v1.5 over SHA-512. It holds no key
// material between calls and is safe for concurrent use.
type Signer struct {
	credentials CredentialProvider
	log         logger.Logger
}

// Option configures a Signer.
type Option func(*Signer)

// WithCredentialProvider replaces the default file-based provider.
func WithCredentialProvider(p CredentialProvider) Option {
	return func(s *Signer) {
		if p != nil {
			s.credentials = p
		}
	}
}

// WithLogger sets the logger used for signing events.
func WithLogger(log logger.Logger) Option {
	return func(s *Signer) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSigner creates a Signer. Without options credentials are read from local
// files and nothing is logged.
func NewSigner(opts ...Option) *Signer {
	s := &Signer{
		credentials: FileCredentialProvider{},
		log:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign canonicalizes payload and returns the base64 signature.
func (s *Signer) Sign(ctx context.Context, payload any, keyRef, passphrase string) (string, error) {
	signed, err := s.SignPayload(ctx, payload, keyRef, passphrase)
	if err != nil {
		return "", err
	}
	return signed.Signature, nil
}

// SignPayload canonicalizes payload and signs it. The returned canonical bytes
// are exactly the bytes that were signed.
func (s *Signer) SignPayload(ctx context.Context, payload any, keyRef, passphrase string) (*SignedPayload, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return nil, clienterr.NewSigningError("failed to encode payload for signing", ErrEncode)
	}
	sig, err := s.SignBytes(ctx, canonical, keyRef, passphrase)
	if err != nil {
		return nil, err
	}
	return &SignedPayload{Canonical: canonical, Signature: sig}, nil
}

// SignBytes signs already canonical bytes.
func (s *Signer) SignBytes(ctx context.Context, canonical []byte, keyRef, passphrase string) (string, error) {
	pemData, err := s.load(ctx, CredentialSigningKey, keyRef)
	if err != nil {
		return "", err
	}
	key, err := keyutil.ParsePrivateKey(pemData, passphrase)
	keyutil.Zero(pemData)
	if err != nil {
		return "", clienterr.NewSigningError(keyLoadMessage, ErrKeyLoad)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return "", clienterr.NewSigningError(keyLoadMessage, ErrKeyLoad)
	}

	digest := sha512.Sum512(canonical)
	sig, err := rsa.SignPKCS1v15(rand.Reader, rsaKey, crypto.SHA512, digest[:])
	if err != nil {
		return "", clienterr.NewSigningError("failed to sign payload", ErrSign)
	}

	s.log.Debug().
		Int("payload_bytes", len(canonical)).
		Int("modulus_bits", rsaKey.N.BitLen()).
		Msg("Payload signed")

	return base64.StdEncoding.EncodeToString(sig), nil
}

// CertificateSerialNumber returns the serial number of the certificate at
// certRef as uppercase hex. The certificate may be PEM or DER encoded.
func (s *Signer) CertificateSerialNumber(ctx context.Context, certRef string) (string, error) {
	data, err := s.load(ctx, CredentialCertificate, certRef)
	if err != nil {
		return "", err
	}
	cert, err := parseCertificate(data)
	if err != nil {
		return "", clienterr.NewSigningError("failed to parse certificate: verify certificate format", ErrCertificate)
	}
	return SerialHex(cert.SerialNumber), nil
}

// SerialHex formats a serial number as uppercase hex padded to whole bytes.
func SerialHex(serial *big.Int) string {
	h := strings.ToUpper(serial.Text(16))
	if len(h)%2 == 1 {
		h = "0" + h
	}
	return h
}

func (s *Signer) load(ctx context.Context, kind CredentialKind, ref string) ([]byte, error) {
	data, err := s.credentials.Load(ctx, kind, ref)
	if err != nil {
		if clienterr.IsKind(err, clienterr.KindSigning) {
			return nil, err
		}
		return nil, clienterr.NewSigningError(fmt.Sprintf("cannot read %s", kind), ErrNotReadable)
	}
	if len(data) == 0 {
		return nil, clienterr.NewSigningError(fmt.Sprintf("cannot read %s file", kind), ErrEmptyCredential)
	}
	return data, nil
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	if certs, err := keyutil.ParseCertificates(data); err == nil {
		return certs[0], nil
	}
	return x509.ParseCertificate(data)
}

// Verify checks a base64 signature over canonical bytes.
func Verify(pub *rsa.PublicKey, canonical []byte, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return err
	}
	digest := sha512.Sum512(canonical)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA512, digest[:], sig)
}
