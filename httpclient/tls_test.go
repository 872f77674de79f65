package httpclient

import (
	"crypto/tls"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-swish/internal/testutil"
)

func TestNewTLSConfigPEM(t *testing.T) {
	pki := testutil.NewPKI(t)

	tests := []struct {
		name  string
		creds Credentials
	}{
		{"pkcs1 key", testCredentials(pki)},
		{"pkcs8 key", Credentials{CertPath: pki.ClientCertPath, KeyPath: pki.ClientPKCS8KeyPath}},
		{"encrypted key", Credentials{CertPath: pki.ClientCertPath, KeyPath: pki.ClientEncryptedKeyPath, Passphrase: testutil.TestPassphrase}},
		{"legacy encrypted key", Credentials{CertPath: pki.ClientCertPath, KeyPath: pki.ClientLegacyKeyPath, Passphrase: testutil.TestPassphrase}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewTLSConfig(tt.creds)
			require.NoError(t, err)
			assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
			assert.False(t, cfg.InsecureSkipVerify)
			require.Len(t, cfg.Certificates, 1)
			assert.Equal(t, pki.ClientCert.SerialNumber, cfg.Certificates[0].Leaf.SerialNumber)
			if tt.creds.CAPath == "" {
				assert.Nil(t, cfg.RootCAs, "system roots are used without a CA bundle")
			} else {
				assert.NotNil(t, cfg.RootCAs)
			}
		})
	}
}

func TestNewTLSConfigPKCS12(t *testing.T) {
	cfg, err := NewTLSConfig(Credentials{
		CertPath:   filepath.Join("..", "internal", "keyutil", "testdata", "client.p12"),
		Passphrase: "changeit",
	})
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	assert.Equal(t, "go-swish test client", cfg.Certificates[0].Leaf.Subject.CommonName)
}

func TestNewTLSConfigFailures(t *testing.T) {
	pki := testutil.NewPKI(t)
	emptyCA := testutil.WriteFile(t, pki.Dir, "empty-ca.pem", []byte("no certificates here"))

	tests := []struct {
		name    string
		creds   Credentials
		wantErr error
	}{
		{"no cert", Credentials{KeyPath: pki.ClientKeyPath}, ErrMissingCredentials},
		{"no key", Credentials{CertPath: pki.ClientCertPath}, ErrMissingCredentials},
		{"key mismatch", Credentials{CertPath: pki.CACertPath, KeyPath: pki.ClientKeyPath}, ErrKeyMismatch},
		{"empty ca", Credentials{CertPath: pki.ClientCertPath, KeyPath: pki.ClientKeyPath, CAPath: emptyCA}, ErrEmptyCABundle},
		{"wrong passphrase", Credentials{CertPath: pki.ClientCertPath, KeyPath: pki.ClientEncryptedKeyPath, Passphrase: "nope"}, nil},
		{"missing file", Credentials{CertPath: filepath.Join(pki.Dir, "absent.pem"), KeyPath: pki.ClientKeyPath}, nil},
		{"key is certificate", Credentials{CertPath: pki.ClientCertPath, KeyPath: pki.ClientCertPath}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewTLSConfig(tt.creds)
			require.Error(t, err)
			assert.Nil(t, cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
