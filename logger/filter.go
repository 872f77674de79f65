package logger

import (
	"encoding/json"
	"net/url"
	"reflect"
	"strings"
)

const (
	// DefaultMaskValue replaces sensitive values in log output.
	DefaultMaskValue = "***"
	// DefaultMaxDepth bounds recursion into nested maps and slices.
	DefaultMaxDepth = 8
)

// FilterConfig lists the field names treated as sensitive. Matching is a
// case-insensitive substring test, so "keyPath" matches "key".
type FilterConfig struct {
	SensitiveFields []string
	MaskValue       string
}

// DefaultFilterConfig covers credentials, key material and personal data that
// flows through payment requests.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "passphrase",
			"secret", "key", "token",
			"authorization", "credential",
			"signature", "ssn",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive values before they reach the log writer.
type SensitiveDataFilter struct {
	fields []string
	mask   string
}

// NewSensitiveDataFilter creates a filter. A nil config uses DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	mask := config.MaskValue
	if mask == "" {
		mask = DefaultMaskValue
	}
	fields := make([]string, 0, len(config.SensitiveFields))
	for _, f := range config.SensitiveFields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			fields = append(fields, f)
		}
	}
	return &SensitiveDataFilter{fields: fields, mask: mask}
}

// MaskValue returns the replacement string.
func (f *SensitiveDataFilter) MaskValue() string {
	return f.mask
}

// IsSensitive reports whether a field name matches a sensitive pattern.
func (f *SensitiveDataFilter) IsSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range f.fields {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// FilterString masks value when key is sensitive. URLs keep their structure
// with only the password replaced.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if value == "" || !f.IsSensitive(key) {
		return value
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return f.maskURL(value)
	}
	return f.mask
}

// FilterValue masks value when key is sensitive, and otherwise walks maps,
// slices and structs masking nested sensitive keys.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filter(key, value, DefaultMaxDepth)
}

// FilterFields applies FilterValue to every entry of fields.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for k, v := range fields {
		filtered[k] = f.FilterValue(k, v)
	}
	return filtered
}

func (f *SensitiveDataFilter) filter(key string, value any, depth int) any {
	if f.IsSensitive(key) {
		return f.mask
	}
	if value == nil || depth <= 0 {
		return value
	}

	switch v := value.(type) {
	case string, []byte, error:
		return value
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = f.filter(k, item, depth-1)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			out[k] = f.FilterString(k, item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = f.filter(key, item, depth-1)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return value
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return value
	}
	return f.filterStruct(value, depth)
}

// filterStruct converts a struct through its JSON form so json tags decide the
// field names that are matched.
func (f *SensitiveDataFilter) filterStruct(value any, depth int) any {
	data, err := json.Marshal(value)
	if err != nil {
		return f.mask
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return f.mask
	}
	return f.filter("", generic, depth)
}

func (f *SensitiveDataFilter) maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.mask
	}
	if parsed.User == nil {
		return raw
	}
	if _, has := parsed.User.Password(); !has {
		return raw
	}
	parsed.User = url.UserPassword(parsed.User.Username(), f.mask)
	// url.String percent-encodes the mask; undo that for readability.
	return strings.Replace(parsed.String(), url.QueryEscape(f.mask), f.mask, 1)
}
