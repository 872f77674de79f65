package swish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gaborage/go-swish/clienterr"
	"github.com/gaborage/go-swish/logger"
)

// MaxCallbackBytes bounds the size of a callback body.
const MaxCallbackBytes = 64 << 10

// Callback is a status notification posted by the provider to a callback URL.
// It describes a payment, a refund or a payout.
type Callback struct {
	ID                       string     `json:"id"`
	Status                   Status     `json:"status"`
	PaymentReference         string     `json:"paymentReference,omitempty"`
	PayeePaymentReference    string     `json:"payeePaymentReference,omitempty"`
	PayerPaymentReference    string     `json:"payerPaymentReference,omitempty"`
	PayerAlias               string     `json:"payerAlias,omitempty"`
	PayeeAlias               string     `json:"payeeAlias,omitempty"`
	Amount                   string     `json:"amount,omitempty"`
	Currency                 Currency   `json:"currency,omitempty"`
	Message                  string     `json:"message,omitempty"`
	ErrorCode                string     `json:"errorCode,omitempty"`
	ErrorMessage             string     `json:"errorMessage,omitempty"`
	OriginalPaymentReference string     `json:"originalPaymentReference,omitempty"`
	DateCreated              *time.Time `json:"dateCreated,omitempty"`
	DatePaid                 *time.Time `json:"datePaid,omitempty"`
}

func (c *Callback) IsPaid() bool      { return c.Status == StatusPaid }
func (c *Callback) IsDeclined() bool  { return c.Status == StatusDeclined }
func (c *Callback) IsError() bool     { return c.Status == StatusError }
func (c *Callback) IsCancelled() bool { return c.Status == StatusCancelled }

// IsRefund reports whether the callback concerns a refund.
func (c *Callback) IsRefund() bool { return c.OriginalPaymentReference != "" }

// Callbacks parses callback notifications. It does not authenticate them;
// callers must receive callbacks over their own TLS endpoint. The zero value
// is ready to use.
type Callbacks struct {
	log logger.Logger
}

// Parse decodes a callback body.
func (c *Callbacks) Parse(body []byte) (*Callback, error) {
	if len(body) > MaxCallbackBytes {
		return nil, clienterr.NewValidationError(
			fmt.Sprintf("callback payload exceeds maximum allowed size of %d bytes", MaxCallbackBytes), nil)
	}

	var root any
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&root); err != nil {
		return nil, clienterr.NewValidationError("invalid callback JSON", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, clienterr.NewValidationError("invalid callback JSON: trailing data", nil)
	}
	fields, ok := root.(map[string]any)
	if !ok {
		return nil, clienterr.NewValidationError("callback payload must be a JSON object", nil)
	}
	return c.ParseFields(fields)
}

// ParseRequest reads and parses the body of an incoming callback request.
func (c *Callbacks) ParseRequest(r *http.Request) (*Callback, error) {
	if r.Body == nil {
		return nil, clienterr.NewValidationError("empty callback request body", nil)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxCallbackBytes+1))
	if err != nil {
		return nil, clienterr.NewValidationError("callback request body cannot be read", err)
	}
	if len(body) == 0 {
		return nil, clienterr.NewValidationError("empty callback request body", nil)
	}
	return c.Parse(body)
}

// ParseFields builds a callback from an already decoded JSON object.
func (c *Callbacks) ParseFields(fields map[string]any) (*Callback, error) {
	id := firstString(fields, "id", "instructionUUID", "payoutInstructionUUID")
	if id == "" {
		return nil, clienterr.NewValidationError(
			"callback payload missing required field: id (or instructionUUID/payoutInstructionUUID)", nil)
	}
	if firstString(fields, "status") == "" {
		return nil, clienterr.NewValidationError("callback payload missing required field: status", nil)
	}

	var cb Callback
	if err := decodeFields(fields, &cb); err != nil {
		return nil, clienterr.NewValidationError("callback payload has invalid fields", err)
	}
	cb.ID = id

	if c.log != nil {
		c.log.Debug().
			Str("instruction_id", cb.ID).
			Str("status", string(cb.Status)).
			Msg("Callback received")
	}
	return &cb, nil
}
