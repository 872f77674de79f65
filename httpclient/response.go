package httpclient

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// Response is an immutable view of one completed HTTP exchange.
type Response struct {
	statusCode int
	headers    []headerField
	body       []byte
}

type headerField struct {
	name   string
	values []string
}

// NewResponse copies status, headers and body into a Response. Header names
// are kept as given; entries without values are dropped.
func NewResponse(statusCode int, headers map[string][]string, body []byte) *Response {
	names := make([]string, 0, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	fields := make([]headerField, 0, len(names))
	for _, name := range names {
		fields = append(fields, headerField{name: name, values: slices.Clone(headers[name])})
	}

	return &Response{
		statusCode: statusCode,
		headers:    fields,
		body:       bytes.Clone(body),
	}
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.statusCode
}

// Body returns a copy of the raw body.
func (r *Response) Body() []byte {
	return bytes.Clone(r.body)
}

// Headers returns a copy of all headers.
func (r *Response) Headers() map[string][]string {
	out := make(map[string][]string, len(r.headers))
	for _, h := range r.headers {
		out[h.name] = slices.Clone(h.values)
	}
	return out
}

// Header returns the first value of the first header whose name matches name
// case-insensitively. Names are compared in sorted order.
func (r *Response) Header(name string) (string, bool) {
	for _, h := range r.headers {
		if strings.EqualFold(h.name, name) {
			return h.values[0], true
		}
	}
	return "", false
}

// JSON decodes the body as a JSON object. It reports false for an empty body,
// invalid JSON, or a root that is not an object. Each call decodes afresh, so
// the caller owns the returned map.
func (r *Response) JSON() (map[string]any, bool) {
	trimmed := bytes.TrimSpace(r.body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, false
	}
	return out, true
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.body, v)
}

// IsSuccessful reports a 2xx status.
func (r *Response) IsSuccessful() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}
