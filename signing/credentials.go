package signing

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gaborage/go-swish/clienterr"
)

// CredentialKind names the credential being loaded in error messages.
type CredentialKind string

const (
	CredentialSigningKey  CredentialKind = "signing key"
	CredentialCertificate CredentialKind = "certificate"
)

// Sentinel causes attached to signing errors. They carry no OS error text.
var (
	ErrEmptyPath       = errors.New("signing: empty path")
	ErrNullByte        = errors.New("signing: null byte in path")
	ErrSchemePath      = errors.New("signing: URI scheme in path")
	ErrUnresolvable    = errors.New("signing: path cannot be resolved")
	ErrNotRegularFile  = errors.New("signing: not a regular file")
	ErrNotReadable     = errors.New("signing: file not readable")
	ErrEmptyCredential = errors.New("signing: credential is empty")
	ErrKeyLoad         = errors.New("signing: private key cannot be loaded")
	ErrCertificate     = errors.New("signing: certificate cannot be parsed")
	ErrSign            = errors.New("signing: signature cannot be produced")
	ErrEncode          = errors.New("signing: payload cannot be encoded")
)

// CredentialProvider loads raw credential bytes by reference. Callers zero
// the returned slice once parsed.
type CredentialProvider interface {
	Load(ctx context.Context, kind CredentialKind, ref string) ([]byte, error)
}

// FileCredentialProvider treats references as local file paths and validates
// them before reading.
type FileCredentialProvider struct{}

var _ CredentialProvider = FileCredentialProvider{}

// Load validates ref with ValidatePath and reads the file.
func (FileCredentialProvider) Load(ctx context.Context, kind CredentialKind, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, clienterr.NewSigningError("credential loading cancelled", err)
	}
	resolved, err := ValidatePath(ref, kind)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, clienterr.NewSigningError("cannot read "+string(kind)+" file", ErrNotReadable)
	}
	return data, nil
}

// openFile is replaced in tests to simulate files the process cannot open.
var openFile = os.Open

var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)

// ValidatePath checks a credential path and returns its resolved real path.
// Checks run in order: empty or blank, null byte, URI scheme prefix, resolution
// of the real path, regular file, readable. Each failure is a signing error
// naming the check.
func ValidatePath(path string, kind CredentialKind) (string, error) {
	desc := string(kind)

	if strings.TrimSpace(path) == "" {
		return "", clienterr.NewSigningError(desc+" path must not be empty", ErrEmptyPath)
	}
	if strings.ContainsRune(path, 0) {
		return "", clienterr.NewSigningError("invalid "+desc+" path: contains null bytes", ErrNullByte)
	}
	if schemePrefix.MatchString(path) {
		return "", clienterr.NewSigningError("invalid "+desc+" path: URI schemes are not allowed", ErrSchemePath)
	}

	resolved, err := realPath(path)
	if err != nil {
		return "", clienterr.NewSigningError(desc+" file does not exist: path could not be resolved", ErrUnresolvable)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", clienterr.NewSigningError(desc+" file does not exist: path could not be resolved", ErrUnresolvable)
	}
	if !info.Mode().IsRegular() {
		return "", clienterr.NewSigningError(desc+" path is not a regular file", ErrNotRegularFile)
	}

	f, err := openFile(resolved)
	if err != nil {
		return "", clienterr.NewSigningError(desc+" file is not readable", ErrNotReadable)
	}
	_ = f.Close()

	return resolved, nil
}

func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(resolved); errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	return resolved, nil
}
