// Package config loads the Swish client configuration from defaults, YAML and
// SWISH_ environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "SWISH_"

// LoadOption customises Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	files     []string
	yaml      [][]byte
	overrides map[string]any
	env       bool
	environ   func() []string
}

// WithFile adds a YAML file. Files are applied in order and must exist.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.files = append(o.files, path)
	}
}

// WithYAML adds in-memory YAML, applied after files.
func WithYAML(data []byte) LoadOption {
	return func(o *loadOptions) {
		o.yaml = append(o.yaml, data)
	}
}

// WithOverrides sets keys after every other source, e.g. from CLI flags.
func WithOverrides(values map[string]any) LoadOption {
	return func(o *loadOptions) {
		o.overrides = values
	}
}

// WithoutEnv skips environment variables.
func WithoutEnv() LoadOption {
	return func(o *loadOptions) {
		o.env = false
	}
}

// WithEnviron replaces os.Environ as the environment source.
func WithEnviron(environ func() []string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load builds a Config from, in increasing priority: defaults, YAML files,
// in-memory YAML, SWISH_ environment variables and overrides. The result is
// validated and the base URL resolved from the environment when unset.
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{env: true}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, NewSourceError("defaults", err)
	}

	for _, path := range o.files {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, NewSourceError(path, err)
		}
	}

	for _, data := range o.yaml {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, NewSourceError("yaml", err)
		}
	}

	if o.env {
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix:        EnvPrefix,
			TransformFunc: envKey,
			EnvironFunc:   o.environ,
		}), nil); err != nil {
			return nil, NewSourceError("environment", err)
		}
	}

	if len(o.overrides) > 0 {
		if err := k.Load(confmap.Provider(o.overrides, "."), nil); err != nil {
			return nil, NewSourceError("overrides", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, NewSourceError("unmarshal", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps SWISH_TLS_CERTPATH to tls.certpath.
func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"environment": EnvProduction,
		"verifyfiles": true,

		"http.timeout":        "30s",
		"http.connecttimeout": "10s",
		"http.maxretries":     3,

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":      false,
		"observability.service.name": "go-swish",
	}
	return k.Load(confmap.Provider(defaults, "."), nil)
}

// ResolvedBaseURL returns BaseURL, or the URL of Environment when BaseURL is empty.
func (c *Config) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	u, _ := EnvironmentURL(c.Environment)
	return u
}

// Unmarshal decodes a configuration section, including keys not modelled by
// Config, into out.
func (c *Config) Unmarshal(key string, out any) error {
	if c.k == nil {
		return fmt.Errorf("config: not loaded")
	}
	return c.k.UnmarshalWithConf(key, out, koanf.UnmarshalConf{Tag: "koanf"})
}

// String returns the raw string value at key, or "" when unset.
func (c *Config) String(key string) string {
	if c.k == nil {
		return ""
	}
	return c.k.String(key)
}
