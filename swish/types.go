package swish

import (
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Status is the lifecycle state reported for payments, refunds and payouts.
// Values the provider adds later are kept as received.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusDeclined  Status = "DECLINED"
	StatusError     Status = "ERROR"
	StatusCancelled Status = "CANCELLED"
	// StatusDebited is used by refunds and payouts once funds have left the payer.
	StatusDebited Status = "DEBITED"
)

// Final reports whether no further status change is expected.
func (s Status) Final() bool {
	switch s {
	case StatusPaid, StatusDeclined, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Currency is an ISO 4217 code. The provider only settles SEK.
type Currency string

const CurrencySEK Currency = "SEK"

// PayoutType classifies a payout.
type PayoutType string

const PayoutTypePayout PayoutType = "PAYOUT"

// timestampLayouts are tried in order. The provider sends offsets without a
// colon, e.g. 2019-01-02T14:29:51.092+0000.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseTimestamp parses a provider timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

var timeType = reflect.TypeOf(time.Time{})

func timestampHook(from, to reflect.Type, data any) (any, error) {
	if to != timeType || from.Kind() != reflect.String {
		return data, nil
	}
	s, _ := data.(string)
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return ParseTimestamp(s)
}

// decodeFields fills out from a loosely typed JSON object. Numbers are accepted
// where strings are expected since the provider is not consistent about amounts
// and aliases.
func decodeFields(fields map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.DecodeHookFuncType(timestampHook),
	})
	if err != nil {
		return err
	}
	return dec.Decode(fields)
}

// merge returns base overlaid with override. Keys of override win.
func merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

// firstString returns the first non-empty value among keys.
func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
