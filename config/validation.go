package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Environment names.
const (
	EnvProduction = "production"
	EnvTest       = "test"
	EnvSandbox    = "sandbox"
)

var environmentURLs = map[string]string{
	EnvProduction: "https://cpc.getswish.net",
	EnvTest:       "https://mss.cpc.getswish.net",
	EnvSandbox:    "https://staging.getswish.pub.tds.tieto.com",
}

// Environments lists the known environment names.
func Environments() []string {
	return []string{EnvProduction, EnvTest, EnvSandbox}
}

// EnvironmentURL returns the API base URL of a known environment.
func EnvironmentURL(env string) (string, bool) {
	u, ok := environmentURLs[env]
	return u, ok
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report koanf keys rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg. It returns a *ConfigError describing the first problem,
// with any further problems listed in Details.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fromValidationErrors(verrs)
		}
		return err
	}

	if !isPKCS12(cfg.TLS.CertPath) && cfg.TLS.KeyPath == "" {
		return NewMissingFieldError("tls.keypath")
	}

	if err := cfg.Observability.Validate(); err != nil {
		ce := NewInvalidFieldError("observability", err.Error(), nil)
		ce.cause = err
		return ce
	}

	if cfg.VerifyFiles {
		return verifyFiles(cfg)
	}
	return nil
}

func fromValidationErrors(verrs validator.ValidationErrors) *ConfigError {
	var first *ConfigError
	var details []string
	for _, fe := range verrs {
		ce := fieldError(fe)
		if first == nil {
			first = ce
			continue
		}
		details = append(details, ce.Field+" "+ce.Message)
	}
	first.Details = details
	return first
}

func fieldError(fe validator.FieldError) *ConfigError {
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required", "required_with":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fe.Value()), strings.Fields(fe.Param()))
	case "gte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at least %s", fe.Param()), nil)
	case "lte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at most %s", fe.Param()), nil)
	case "url":
		return NewInvalidFieldError(field, "must be a valid URL", nil)
	case "numeric":
		return NewInvalidFieldError(field, "must contain digits only", nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %s validation", fe.Tag()), nil)
	}
}

// fieldPath turns "Config.tls.certpath" into "tls.certpath".
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}

func verifyFiles(cfg *Config) error {
	files := []struct {
		field string
		path  string
	}{
		{"tls.certpath", cfg.TLS.CertPath},
		{"tls.keypath", cfg.TLS.KeyPath},
		{"tls.capath", cfg.TLS.CAPath},
		{"signing.keypath", cfg.Signing.KeyPath},
		{"signing.certpath", cfg.Signing.CertPath},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if err := checkReadableFile(f.field, f.path); err != nil {
			return err
		}
	}
	return nil
}

func checkReadableFile(field, path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return NewFileError(field, path, "file not found")
	}
	f, err := os.Open(path)
	if err != nil {
		return NewFileError(field, path, "file not readable")
	}
	_ = f.Close()
	return nil
}

func isPKCS12(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".p12") || strings.HasSuffix(lower, ".pfx")
}
