package swish

import (
	"context"
	"net/http"
	"time"

	"github.com/gaborage/go-swish/httpclient"
	"github.com/gaborage/go-swish/logger"
)

const (
	refundCreatePath = "/swish-cpcapi/api/v2/refunds/"
	refundPath       = "/swish-cpcapi/api/v1/refunds/"
)

// RefundRequest returns money from a paid payment to the payer. The merchant
// is the payer of a refund.
type RefundRequest struct {
	OriginalPaymentReference string   `json:"originalPaymentReference" validate:"notblank"`
	CallbackURL              string   `json:"callbackUrl" validate:"https_url"`
	PayerAlias               string   `json:"payerAlias" validate:"notblank"`
	Amount                   string   `json:"amount" validate:"amount"`
	Currency                 Currency `json:"currency" validate:"oneof=SEK"`
	PayerPaymentReference    string   `json:"payerPaymentReference,omitempty"`
	Message                  string   `json:"message,omitempty" validate:"max=50"`
}

// Refund is the state of a refund.
type Refund struct {
	ID                       string     `json:"id"`
	PaymentReference         string     `json:"paymentReference,omitempty"`
	PayerPaymentReference    string     `json:"payerPaymentReference,omitempty"`
	OriginalPaymentReference string     `json:"originalPaymentReference"`
	CallbackURL              string     `json:"callbackUrl,omitempty"`
	PayerAlias               string     `json:"payerAlias"`
	PayeeAlias               string     `json:"payeeAlias,omitempty"`
	Amount                   string     `json:"amount"`
	Currency                 Currency   `json:"currency"`
	Message                  string     `json:"message,omitempty"`
	Status                   Status     `json:"status"`
	DateCreated              *time.Time `json:"dateCreated,omitempty"`
	DatePaid                 *time.Time `json:"datePaid,omitempty"`
	ErrorCode                string     `json:"errorCode,omitempty"`
	ErrorMessage             string     `json:"errorMessage,omitempty"`
	Location                 string     `json:"-"`
}

// Refunds creates and reads refunds.
type Refunds struct {
	transport  httpclient.Client
	payerAlias string
	log        logger.Logger
}

// Create registers a refund under instructionID, or under a fresh ID when
// instructionID is empty. An empty PayerAlias defaults to the merchant alias.
func (r *Refunds) Create(ctx context.Context, req RefundRequest, instructionID string) (*Refund, error) {
	if req.PayerAlias == "" {
		req.PayerAlias = r.payerAlias
	}
	if req.Currency == "" {
		req.Currency = CurrencySEK
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id, err := instructionIDOrNew(instructionID)
	if err != nil {
		return nil, err
	}

	seed, err := fieldsOf(req)
	if err != nil {
		return nil, encodeFailure(err)
	}

	resp, err := r.transport.Send(ctx, http.MethodPut, resourcePath(refundCreatePath, id), httpclient.Options{
		JSON:    req,
		Headers: jsonHeaders(mediaJSON),
	})
	if err != nil {
		return nil, err
	}

	seed["id"] = id
	seed["status"] = string(StatusCreated)

	refund, err := decodeRefund(merge(seed, responseFields(resp)), resp.StatusCode())
	if err != nil {
		return nil, err
	}
	if location, ok := resp.Header(headerLocation); ok {
		refund.Location = location
	}

	r.log.Debug().
		Str("instruction_id", id).
		Str("status", string(refund.Status)).
		Msg("Refund created")
	return refund, nil
}

// Get fetches the current state of a refund.
func (r *Refunds) Get(ctx context.Context, id string) (*Refund, error) {
	if err := requireID("Refund", id); err != nil {
		return nil, err
	}
	resp, err := r.transport.Send(ctx, http.MethodGet, resourcePath(refundPath, id), httpclient.Options{})
	if err != nil {
		return nil, err
	}
	return decodeRefund(responseFields(resp), resp.StatusCode())
}

func decodeRefund(fields map[string]any, status int) (*Refund, error) {
	var refund Refund
	if err := decodeFields(fields, &refund); err != nil {
		return nil, decodeFailure("refund", status, err)
	}
	if refund.ID == "" {
		refund.ID = firstString(fields, "instructionUUID")
	}
	if refund.Currency == "" {
		refund.Currency = CurrencySEK
	}
	if refund.Status == "" {
		refund.Status = StatusCreated
	}
	return &refund, nil
}
