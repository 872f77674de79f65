package swish

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gaborage/go-swish/clienterr"
	"github.com/gaborage/go-swish/httpclient"
	"github.com/gaborage/go-swish/logger"
	"github.com/gaborage/go-swish/signing"
)

const payoutPath = "/swish-cpcapi/api/v1/payouts/"

// PayoutRequest moves money from the merchant to a private person. The
// struct field order is the order the provider expects in the signed payload.
type PayoutRequest struct {
	PayoutInstructionUUID          string     `json:"payoutInstructionUUID"`
	PayerPaymentReference          string     `json:"payerPaymentReference" validate:"notblank"`
	PayerAlias                     string     `json:"payerAlias" validate:"notblank"`
	PayeeAlias                     string     `json:"payeeAlias" validate:"notblank"`
	PayeeSSN                       string     `json:"payeeSSN" validate:"notblank"`
	Amount                         string     `json:"amount" validate:"amount"`
	Currency                       Currency   `json:"currency" validate:"oneof=SEK"`
	PayoutType                     PayoutType `json:"payoutType" validate:"oneof=PAYOUT"`
	InstructionDate                string     `json:"instructionDate" validate:"notblank"`
	SigningCertificateSerialNumber string     `json:"signingCertificateSerialNumber" validate:"notblank"`
	Message                        string     `json:"message,omitempty" validate:"max=50"`
}

// Payout is the state of a payout.
type Payout struct {
	PayoutInstructionUUID string     `json:"payoutInstructionUUID"`
	PaymentReference      string     `json:"paymentReference,omitempty"`
	PayerPaymentReference string     `json:"payerPaymentReference,omitempty"`
	CallbackURL           string     `json:"callbackUrl,omitempty"`
	PayerAlias            string     `json:"payerAlias"`
	PayeeAlias            string     `json:"payeeAlias"`
	PayeeSSN              string     `json:"payeeSSN,omitempty"`
	Amount                string     `json:"amount"`
	Currency              Currency   `json:"currency"`
	Message               string     `json:"message,omitempty"`
	Status                Status     `json:"status"`
	DateCreated           *time.Time `json:"dateCreated,omitempty"`
	DatePaid              *time.Time `json:"datePaid,omitempty"`
	ErrorCode             string     `json:"errorCode,omitempty"`
	ErrorMessage          string     `json:"errorMessage,omitempty"`
	Location              string     `json:"-"`
}

type payoutEnvelope struct {
	Payload     json.RawMessage `json:"payload"`
	Signature   string          `json:"signature"`
	CallbackURL string          `json:"callbackUrl"`
}

// SigningCredentials locate the key used to sign payouts and the certificate
// whose serial number goes into the payload.
type SigningCredentials struct {
	KeyRef     string
	CertRef    string
	Passphrase string
}

// Payouts creates and reads payouts.
type Payouts struct {
	transport  httpclient.Client
	signer     *signing.Signer
	payerAlias string
	signing    SigningCredentials
	log        logger.Logger
}

// Create sends a payout signed by the caller. signature must be the base64
// signature of the canonical form of req, after defaults are applied. The
// instruction UUID is part of the signed payload, so req must carry one.
func (p *Payouts) Create(ctx context.Context, req PayoutRequest, signature, callbackURL string) (*Payout, error) {
	if strings.TrimSpace(req.PayoutInstructionUUID) == "" {
		return nil, clienterr.NewValidationError("payoutInstructionUUID must not be empty", nil)
	}
	req = p.withDefaults(req)
	if strings.TrimSpace(signature) == "" {
		return nil, clienterr.NewValidationError("signature must not be empty", nil)
	}
	canonical, err := p.prepare(req, callbackURL)
	if err != nil {
		return nil, err
	}
	return p.send(ctx, req, canonical, signature, callbackURL)
}

// CreateSigned signs req and sends it. An empty keyRef selects the configured
// signing key and passphrase. When req carries no certificate serial number
// it is read from the configured signing certificate.
func (p *Payouts) CreateSigned(ctx context.Context, req PayoutRequest, callbackURL, keyRef, passphrase string) (*Payout, error) {
	if p.signer == nil {
		return nil, clienterr.NewSigningError("payout signing is not configured", signing.ErrKeyLoad)
	}
	req = p.withDefaults(req)

	if keyRef == "" {
		keyRef, passphrase = p.signing.KeyRef, p.signing.Passphrase
	}
	if req.SigningCertificateSerialNumber == "" && p.signing.CertRef != "" {
		serial, err := p.signer.CertificateSerialNumber(ctx, p.signing.CertRef)
		if err != nil {
			return nil, err
		}
		req.SigningCertificateSerialNumber = serial
	}

	canonical, err := p.prepare(req, callbackURL)
	if err != nil {
		return nil, err
	}
	signature, err := p.signer.SignBytes(ctx, canonical, keyRef, passphrase)
	if err != nil {
		return nil, err
	}
	return p.send(ctx, req, canonical, signature, callbackURL)
}

// Get fetches the current state of a payout.
func (p *Payouts) Get(ctx context.Context, id string) (*Payout, error) {
	if err := requireID("Payout", id); err != nil {
		return nil, err
	}
	resp, err := p.transport.Send(ctx, http.MethodGet, resourcePath(payoutPath, id), httpclient.Options{})
	if err != nil {
		return nil, err
	}
	return decodePayout(responseFields(resp), resp.StatusCode())
}

func (p *Payouts) withDefaults(req PayoutRequest) PayoutRequest {
	if req.PayoutInstructionUUID == "" {
		req.PayoutInstructionUUID = NewInstructionID()
	}
	if req.PayerAlias == "" {
		req.PayerAlias = p.payerAlias
	}
	if req.Currency == "" {
		req.Currency = CurrencySEK
	}
	if req.PayoutType == "" {
		req.PayoutType = PayoutTypePayout
	}
	return req
}

// prepare validates req and returns the canonical payload bytes.
func (p *Payouts) prepare(req PayoutRequest, callbackURL string) ([]byte, error) {
	if strings.TrimSpace(req.PayoutInstructionUUID) == "" {
		return nil, clienterr.NewValidationError("payoutInstructionUUID must not be empty", nil)
	}
	if strings.TrimSpace(callbackURL) == "" {
		return nil, clienterr.NewValidationError("callbackUrl must not be empty", nil)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	canonical, err := signing.Canonicalize(req)
	if err != nil {
		return nil, encodeFailure(err)
	}
	return canonical, nil
}

func (p *Payouts) send(ctx context.Context, req PayoutRequest, canonical []byte, signature, callbackURL string) (*Payout, error) {
	resp, err := p.transport.Send(ctx, http.MethodPost, payoutPath, httpclient.Options{
		JSON: payoutEnvelope{
			Payload:     canonical,
			Signature:   signature,
			CallbackURL: callbackURL,
		},
		Headers: jsonHeaders(mediaJSON),
	})
	if err != nil {
		return nil, err
	}

	seed := map[string]any{
		"payoutInstructionUUID": req.PayoutInstructionUUID,
		"status":                string(StatusCreated),
		"payerAlias":            req.PayerAlias,
		"payeeAlias":            req.PayeeAlias,
		"payeeSSN":              req.PayeeSSN,
		"amount":                req.Amount,
		"currency":              string(req.Currency),
		"callbackUrl":           callbackURL,
		"payerPaymentReference": req.PayerPaymentReference,
	}
	if req.Message != "" {
		seed["message"] = req.Message
	}

	payout, err := decodePayout(merge(seed, responseFields(resp)), resp.StatusCode())
	if err != nil {
		return nil, err
	}
	if location, ok := resp.Header(headerLocation); ok {
		payout.Location = location
	}

	p.log.Debug().
		Str("instruction_id", req.PayoutInstructionUUID).
		Str("status", string(payout.Status)).
		Msg("Payout created")
	return payout, nil
}

func decodePayout(fields map[string]any, status int) (*Payout, error) {
	var payout Payout
	if err := decodeFields(fields, &payout); err != nil {
		return nil, decodeFailure("payout", status, err)
	}
	if payout.Currency == "" {
		payout.Currency = CurrencySEK
	}
	if payout.Status == "" {
		payout.Status = StatusCreated
	}
	return &payout, nil
}
