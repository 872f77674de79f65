package clienterr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// ParseRecords decodes a provider error body. The provider normally returns a
// JSON array of records; a single object is treated as a one-element array.
// Bodies that are not JSON, or whose root is neither an array nor an object,
// yield no records.
func ParseRecords(body []byte) []Record {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil
		}
		records := make([]Record, 0, len(raw))
		for _, item := range raw {
			if rec, ok := decodeRecord(item); ok {
				records = append(records, rec)
			}
		}
		if len(records) == 0 {
			return nil
		}
		return records
	case '{':
		if rec, ok := decodeRecord(trimmed); ok {
			return []Record{rec}
		}
	}
	return nil
}

func decodeRecord(raw json.RawMessage) (Record, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Record{}, false
	}

	// Decode loosely so non-string fields do not discard the whole record.
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, false
	}
	return Record{
		ErrorCode:             stringField(fields, "errorCode"),
		ErrorMessage:          stringField(fields, "errorMessage"),
		AdditionalInformation: stringField(fields, "additionalInformation"),
	}, true
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Classify maps a terminal HTTP status and its parsed records to a client error.
// A zero status means no response was obtained and produces a network error.
func Classify(status int, records []Record, cause error) *Error {
	if status == 0 {
		msg := "network error"
		if cause != nil {
			msg = "network error: " + cause.Error()
		}
		return NewNetworkError(msg, cause)
	}

	if cause == nil {
		cause = statusCause(status)
	}

	return &Error{
		Kind:       kindForStatus(status),
		Message:    Message(status, records),
		StatusCode: status,
		Records:    records,
		Cause:      cause,
	}
}

// Message renders "API error (HTTP {status})", followed by the first record's
// errorMessage, or its errorCode when the message is empty.
func Message(status int, records []Record) string {
	msg := fmt.Sprintf("API error (HTTP %d)", status)
	if len(records) == 0 {
		return msg
	}
	detail := records[0].ErrorMessage
	if detail == "" {
		detail = records[0].ErrorCode
	}
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthentication
	case http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindAPI
	}
}
