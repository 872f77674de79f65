// Package keyutil decodes PEM and PKCS#12 key material for the TLS transport
// and the payload signer.
package keyutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/pkcs12"
)

var (
	// ErrNoPrivateKey means no private key PEM block was found.
	ErrNoPrivateKey = errors.New("keyutil: no private key found")
	// ErrNoCertificate means no CERTIFICATE PEM block was found.
	ErrNoCertificate = errors.New("keyutil: no certificate found")
	// ErrPassphraseRequired means the key is encrypted and no passphrase was given.
	ErrPassphraseRequired = errors.New("keyutil: key is encrypted and no passphrase was given")
	// ErrUnsupportedKey means the key type cannot be used for signing.
	ErrUnsupportedKey = errors.New("keyutil: unsupported private key type")
)

// ParsePrivateKey returns the first private key in pemData. Supported blocks are
// PKCS#1 RSA, SEC1 EC, PKCS#8, encrypted PKCS#8 and legacy encrypted PEM
// (Proc-Type: 4,ENCRYPTED). The passphrase is ignored for unencrypted keys.
func ParsePrivateKey(pemData []byte, passphrase string) (crypto.Signer, error) {
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, ErrNoPrivateKey
		}
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			continue
		}
		key, err := parseKeyBlock(block, passphrase)
		if err != nil {
			return nil, err
		}
		return asSigner(key)
	}
}

func parseKeyBlock(block *pem.Block, passphrase string) (any, error) {
	der := block.Bytes

	//nolint:staticcheck // legacy encrypted PEM is still issued by some certificate portals
	if x509.IsEncryptedPEMBlock(block) {
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase)) //nolint:staticcheck // see above
		if err != nil {
			return nil, fmt.Errorf("keyutil: decrypt legacy pem: %w", err)
		}
		defer Zero(decrypted)
		der = decrypted
	}

	switch block.Type {
	case "ENCRYPTED PRIVATE KEY":
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		key, err := pkcs8.ParsePKCS8PrivateKey(der, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("keyutil: decrypt pkcs8: %w", err)
		}
		return key, nil
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(der)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(der)
	default:
		return x509.ParsePKCS8PrivateKey(der)
	}
}

func asSigner(key any) (crypto.Signer, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return k, nil
	default:
		return nil, ErrUnsupportedKey
	}
}

// ParseCertificates returns every certificate in pemData, in file order.
func ParseCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("keyutil: parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertificate
	}
	return certs, nil
}

// DecodePKCS12 extracts the private key and leaf certificate of a PKCS#12 bundle.
func DecodePKCS12(data []byte, passphrase string) (crypto.Signer, *x509.Certificate, error) {
	key, cert, err := pkcs12.Decode(data, passphrase)
	if err != nil {
		return nil, nil, fmt.Errorf("keyutil: decode pkcs12: %w", err)
	}
	signer, err := asSigner(key)
	if err != nil {
		return nil, nil, err
	}
	return signer, cert, nil
}

// IsPKCS12Path reports whether path has a PKCS#12 file extension.
func IsPKCS12Path(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		return true
	default:
		return false
	}
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	clear(b)
}
