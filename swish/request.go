package swish

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gaborage/go-swish/clienterr"
	"github.com/gaborage/go-swish/httpclient"
)

const (
	headerContentType = "Content-Type"
	headerLocation    = "Location"
	headerToken       = "PaymentRequestToken"

	mediaJSON      = "application/json"
	mediaJSONPatch = "application/json-patch+json"
)

func jsonHeaders(mediaType string) map[string]string {
	return map[string]string{headerContentType: mediaType}
}

// resourcePath appends an escaped identifier to prefix.
func resourcePath(prefix, id string) string {
	return prefix + url.PathEscape(id)
}

// instructionIDOrNew returns id, or a fresh one when id is empty. An id made only
// of whitespace is rejected.
func instructionIDOrNew(id string) (string, error) {
	if id == "" {
		return NewInstructionID(), nil
	}
	if strings.TrimSpace(id) == "" {
		return "", clienterr.NewValidationError("instructionUUID must not be empty", nil)
	}
	return id, nil
}

// fieldsOf converts a request into the loosely typed form used to seed
// results. Empty optional fields are dropped by their omitempty tags.
func fieldsOf(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// responseFields returns the JSON object body of resp, or nil when the body is
// empty or not an object.
func responseFields(resp *httpclient.Response) map[string]any {
	fields, ok := resp.JSON()
	if !ok {
		return nil
	}
	return fields
}

func decodeFailure(resource string, status int, err error) error {
	return &clienterr.Error{
		Kind:       clienterr.KindAPI,
		Message:    fmt.Sprintf("unexpected %s response body (HTTP %d)", resource, status),
		StatusCode: status,
		Cause:      err,
	}
}

func encodeFailure(err error) error {
	return clienterr.NewValidationError("request body cannot be encoded as JSON", err)
}
