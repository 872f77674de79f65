package testutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/youmark/pkcs8"
)

// PKI is a certificate authority plus one server and one client identity,
// written to a per-test temp dir.
type PKI struct {
	Dir string

	CACert     *x509.Certificate
	CACertPath string

	ClientCert *x509.Certificate
	ClientKey  *rsa.PrivateKey

	ClientCertPath         string // PEM certificate
	ClientKeyPath          string // PKCS#1 "RSA PRIVATE KEY"
	ClientPKCS8KeyPath     string // PKCS#8 "PRIVATE KEY"
	ClientEncryptedKeyPath string // encrypted PKCS#8, TestPassphrase
	ClientLegacyKeyPath    string // legacy Proc-Type encrypted PEM, TestPassphrase

	server tls.Certificate
}

type material struct {
	caKey      *rsa.PrivateKey
	caCert     *x509.Certificate
	clientKey  *rsa.PrivateKey
	clientCert *x509.Certificate
	serverKey  *rsa.PrivateKey
	serverCert *x509.Certificate
}

var (
	materialOnce sync.Once
	shared       *material
	sharedErr    error
)

// RSA key generation dominates test time, so key material is created once per
// test binary and only the files are per test.
func loadMaterial() (*material, error) {
	materialOnce.Do(func() {
		shared, sharedErr = generateMaterial()
	})
	return shared, sharedErr
}

func generateMaterial() (*material, error) {
	m := &material{}
	var err error

	if m.caKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
		return nil, err
	}
	if m.clientKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
		return nil, err
	}
	if m.serverKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
		return nil, err
	}

	now := time.Now()
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "go-swish test CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	if m.caCert, err = createCert(caTmpl, caTmpl, &m.caKey.PublicKey, m.caKey); err != nil {
		return nil, err
	}

	serial, _ := new(big.Int).SetString(TestClientSerialHex, 16)
	clientTmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: TestPayeeAlias, Organization: []string{"Test Merchant"}},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	if m.clientCert, err = createCert(clientTmpl, m.caCert, &m.clientKey.PublicKey, m.caKey); err != nil {
		return nil, err
	}

	serverTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	if m.serverCert, err = createCert(serverTmpl, m.caCert, &m.serverKey.PublicKey, m.caKey); err != nil {
		return nil, err
	}
	return m, nil
}

func createCert(tmpl, parent *x509.Certificate, pub crypto.PublicKey, signer crypto.Signer) (*x509.Certificate, error) {
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, signer)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// NewPKI writes the shared test PKI into a fresh temp dir.
func NewPKI(t testing.TB) *PKI {
	t.Helper()

	m, err := loadMaterial()
	if err != nil {
		t.Fatalf("generate test pki: %v", err)
	}

	dir := t.TempDir()
	p := &PKI{
		Dir:        dir,
		CACert:     m.caCert,
		ClientCert: m.clientCert,
		ClientKey:  m.clientKey,
	}

	p.CACertPath = WriteFile(t, dir, "ca.pem", CertPEM(m.caCert))
	p.ClientCertPath = WriteFile(t, dir, "client.pem", CertPEM(m.clientCert))
	p.ClientKeyPath = WriteFile(t, dir, "client.key", pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(m.clientKey),
	}))

	pkcs8DER, err := x509.MarshalPKCS8PrivateKey(m.clientKey)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	p.ClientPKCS8KeyPath = WriteFile(t, dir, "client-pkcs8.key", pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: pkcs8DER,
	}))

	encrypted, err := pkcs8.MarshalPrivateKey(m.clientKey, []byte(TestPassphrase), &pkcs8.Opts{
		Cipher: pkcs8.AES256CBC,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       16,
			IterationCount: 2048,
			HMACHash:       crypto.SHA256,
		},
	})
	if err != nil {
		t.Fatalf("marshal encrypted pkcs8: %v", err)
	}
	p.ClientEncryptedKeyPath = WriteFile(t, dir, "client-encrypted.key", pem.EncodeToMemory(&pem.Block{
		Type:  "ENCRYPTED PRIVATE KEY",
		Bytes: encrypted,
	}))

	//nolint:staticcheck // legacy format is exercised on purpose
	legacy, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY",
		x509.MarshalPKCS1PrivateKey(m.clientKey), []byte(TestPassphrase), x509.PEMCipherAES256)
	if err != nil {
		t.Fatalf("encrypt legacy pem: %v", err)
	}
	p.ClientLegacyKeyPath = WriteFile(t, dir, "client-legacy.key", pem.EncodeToMemory(legacy))

	p.server = tls.Certificate{
		Certificate: [][]byte{m.serverCert.Raw, m.caCert.Raw},
		PrivateKey:  m.serverKey,
		Leaf:        m.serverCert,
	}
	return p
}

// CAPool returns a pool holding the test CA.
func (p *PKI) CAPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(p.CACert)
	return pool
}

// NewTLSServer starts an HTTPS server that requires a client certificate
// issued by the test CA. The server is closed when the test ends.
func (p *PKI) NewTLSServer(t testing.TB, handler http.Handler) *httptest.Server {
	t.Helper()

	srv := httptest.NewUnstartedServer(handler)
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{p.server},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    p.CAPool(),
		MinVersion:   tls.VersionTLS12,
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

// CertPEM encodes cert as a PEM CERTIFICATE block.
func CertPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

// WriteFile writes data to dir/name with owner-only permissions and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
