package signing

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-swish/clienterr"
	"github.com/gaborage/go-swish/internal/testutil"
)

func TestValidatePathRejections(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr error
		message string
	}{
		{"empty", "", ErrEmptyPath, "signing key path must not be empty"},
		{"blank", "   \t", ErrEmptyPath, "signing key path must not be empty"},
		{"null byte", "/tmp/key\x00.pem", ErrNullByte, "invalid signing key path: contains null bytes"},
		{"php stream", "php://filter/resource=/etc/passwd", ErrSchemePath, "invalid signing key path: URI schemes are not allowed"},
		{"https", "https://example.com/key.pem", ErrSchemePath, "invalid signing key path: URI schemes are not allowed"},
		{"file scheme", "file:///etc/passwd", ErrSchemePath, "invalid signing key path: URI schemes are not allowed"},
		{"missing", filepath.Join(dir, "absent.pem"), ErrUnresolvable, "signing key file does not exist: path could not be resolved"},
		{"directory", dir, ErrNotRegularFile, "signing key path is not a regular file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidatePath(tt.path, CredentialSigningKey)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, clienterr.IsKind(err, clienterr.KindSigning))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestValidatePathNamesCredential(t *testing.T) {
	_, err := ValidatePath("", CredentialCertificate)
	require.Error(t, err)
	assert.Equal(t, "certificate path must not be empty", err.Error())
}

func TestValidatePathNullByteBeforeScheme(t *testing.T) {
	_, err := ValidatePath("https://host/\x00key", CredentialSigningKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNullByte)
}

func TestValidatePathWindowsDriveIsNotScheme(t *testing.T) {
	_, err := ValidatePath(`C:\keys\signing.pem`, CredentialSigningKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSchemePath)
}

func TestValidatePathResolvesSymlinks(t *testing.T) {
	pki := testutil.NewPKI(t)
	link := filepath.Join(pki.Dir, "link.key")
	require.NoError(t, os.Symlink(pki.ClientKeyPath, link))

	resolved, err := ValidatePath(link, CredentialSigningKey)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(pki.ClientKeyPath)
	require.NoError(t, err)
	assert.Equal(t, want, resolved)
}

func TestValidatePathDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling.key")
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone.key"), link))

	_, err := ValidatePath(link, CredentialSigningKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestValidatePathRelative(t *testing.T) {
	pki := testutil.NewPKI(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, pki.ClientKeyPath)
	require.NoError(t, err)

	_, err = ValidatePath(rel, CredentialSigningKey)
	assert.NoError(t, err)
}

func TestValidatePathUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	path := testutil.WriteFile(t, t.TempDir(), "locked.key", []byte("secret"))
	require.NoError(t, os.Chmod(path, 0o000))

	_, err := ValidatePath(path, CredentialSigningKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotReadable)
	assert.Equal(t, "signing key file is not readable", err.Error())
}

func TestValidatePathOpenFailure(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "signing.key", []byte("secret"))
	orig := openFile
	openFile = func(string) (*os.File, error) { return nil, fs.ErrPermission }
	t.Cleanup(func() { openFile = orig })

	_, err := ValidatePath(path, CredentialSigningKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotReadable)
	assert.Equal(t, "signing key file is not readable", err.Error())
	assert.NotContains(t, err.Error(), "permission denied")
}

func TestValidatePathHidesOSErrors(t *testing.T) {
	_, err := ValidatePath("/definitely/not/here/key.pem", CredentialSigningKey)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "no such file")
	assert.NotContains(t, err.Error(), "/definitely")
}

func TestFileCredentialProviderLoad(t *testing.T) {
	pki := testutil.NewPKI(t)

	data, err := FileCredentialProvider{}.Load(context.Background(), CredentialCertificate, pki.ClientCertPath)
	require.NoError(t, err)
	assert.Equal(t, testutil.CertPEM(pki.ClientCert), data)
}

func TestFileCredentialProviderCancelled(t *testing.T) {
	pki := testutil.NewPKI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FileCredentialProvider{}.Load(ctx, CredentialSigningKey, pki.ClientKeyPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
