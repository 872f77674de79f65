package swish

import (
	"context"
	"net/http"
	"time"

	"github.com/gaborage/go-swish/httpclient"
	"github.com/gaborage/go-swish/logger"
)

const (
	paymentCreatePath = "/swish-cpcapi/api/v2/paymentrequests/"
	paymentPath       = "/swish-cpcapi/api/v1/paymentrequests/"
)

// PaymentRequest asks a payer to pay the merchant. Field order matches the
// provider's documented payload.
type PaymentRequest struct {
	PayeeAlias            string   `json:"payeeAlias" validate:"notblank"`
	Amount                string   `json:"amount" validate:"amount"`
	Currency              Currency `json:"currency" validate:"oneof=SEK"`
	CallbackURL           string   `json:"callbackUrl" validate:"https_url"`
	PayerAlias            string   `json:"payerAlias,omitempty"`
	PayeePaymentReference string   `json:"payeePaymentReference,omitempty"`
	Message               string   `json:"message,omitempty" validate:"max=50"`
	PayerSSN              string   `json:"payerSSN,omitempty"`
	AgeLimit              int      `json:"ageLimit,omitempty" validate:"omitempty,agelimit"`
}

// Payment is the state of a payment request.
type Payment struct {
	ID                    string     `json:"id"`
	PaymentReference      string     `json:"paymentReference,omitempty"`
	PayeePaymentReference string     `json:"payeePaymentReference,omitempty"`
	CallbackURL           string     `json:"callbackUrl,omitempty"`
	PayerAlias            string     `json:"payerAlias,omitempty"`
	PayeeAlias            string     `json:"payeeAlias"`
	Amount                string     `json:"amount"`
	Currency              Currency   `json:"currency"`
	Message               string     `json:"message,omitempty"`
	Status                Status     `json:"status"`
	DateCreated           *time.Time `json:"dateCreated,omitempty"`
	DatePaid              *time.Time `json:"datePaid,omitempty"`
	ErrorCode             string     `json:"errorCode,omitempty"`
	ErrorMessage          string     `json:"errorMessage,omitempty"`
	PaymentRequestToken   string     `json:"paymentRequestToken,omitempty"`
	// Location is the URL of the created payment request, when returned.
	Location string `json:"-"`
}

// Payments creates, reads and cancels payment requests.
type Payments struct {
	transport  httpclient.Client
	payeeAlias string
	log        logger.Logger
}

// Create registers a payment request under instructionID, or under a fresh ID
// when instructionID is empty. An empty PayeeAlias defaults to the merchant
// alias of the client. The result combines the request with whatever the
// provider returned, the provider's values taking precedence.
func (p *Payments) Create(ctx context.Context, req PaymentRequest, instructionID string) (*Payment, error) {
	if req.PayeeAlias == "" {
		req.PayeeAlias = p.payeeAlias
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

	resp, err := p.transport.Send(ctx, http.MethodPut, resourcePath(paymentCreatePath, id), httpclient.Options{
		JSON:    req,
		Headers: jsonHeaders(mediaJSON),
	})
	if err != nil {
		return nil, err
	}

	seed["id"] = id
	seed["status"] = string(StatusCreated)
	if token, ok := resp.Header(headerToken); ok {
		seed["paymentRequestToken"] = token
	}

	payment, err := decodePayment(merge(seed, responseFields(resp)), resp.StatusCode())
	if err != nil {
		return nil, err
	}
	if location, ok := resp.Header(headerLocation); ok {
		payment.Location = location
	}

	p.log.Debug().
		Str("instruction_id", id).
		Str("status", string(payment.Status)).
		Msg("Payment request created")
	return payment, nil
}

// Get fetches the current state of a payment request.
func (p *Payments) Get(ctx context.Context, id string) (*Payment, error) {
	if err := requireID("Payment", id); err != nil {
		return nil, err
	}
	resp, err := p.transport.Send(ctx, http.MethodGet, resourcePath(paymentPath, id), httpclient.Options{})
	if err != nil {
		return nil, err
	}
	return decodePayment(responseFields(resp), resp.StatusCode())
}

type patchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// Cancel cancels a payment request that has not been paid yet and returns its
// state afterwards. The provider answers the cancellation without a body, so
// the state is read back with Get.
func (p *Payments) Cancel(ctx context.Context, id string) (*Payment, error) {
	if err := requireID("Payment", id); err != nil {
		return nil, err
	}
	_, err := p.transport.Send(ctx, http.MethodPatch, resourcePath(paymentPath, id), httpclient.Options{
		JSON:    []patchOperation{{Op: "replace", Path: "/status", Value: "cancelled"}},
		Headers: jsonHeaders(mediaJSONPatch),
	})
	if err != nil {
		return nil, err
	}
	p.log.Debug().Str("instruction_id", id).Msg("Payment request cancelled")
	return p.Get(ctx, id)
}

func decodePayment(fields map[string]any, status int) (*Payment, error) {
	var payment Payment
	if err := decodeFields(fields, &payment); err != nil {
		return nil, decodeFailure("payment", status, err)
	}
	if payment.ID == "" {
		payment.ID = firstString(fields, "instructionUUID")
	}
	if payment.Currency == "" {
		payment.Currency = CurrencySEK
	}
	if payment.Status == "" {
		payment.Status = StatusCreated
	}
	return &payment, nil
}
