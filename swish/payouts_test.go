package swish

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-swish/clienterr"
	"github.com/gaborage/go-swish/internal/testutil"
	"github.com/gaborage/go-swish/signing"
	"github.com/gaborage/go-swish/testing/mocks"
)

func validPayout() PayoutRequest {
	return PayoutRequest{
		PayoutInstructionUUID: testInstructionID,
		PayerPaymentReference: "payout-0001",
		PayeeAlias:            testutil.TestPayerAlias,
		PayeeSSN:              "197501088327",
		Amount:                "250.00",
		InstructionDate:       "2019-12-03T11:07:16",
		Message:               "Winnings",
	}
}

func sentEnvelope(t *testing.T, transport *mocks.MockClient) payoutEnvelope {
	t.Helper()
	env, ok := transport.SentOptions(0).JSON.(payoutEnvelope)
	require.True(t, ok)
	return env
}

func TestPayoutsCreateSigned(t *testing.T) {
	pki := testutil.NewPKI(t)
	c, transport := newTestClient(t, WithSigningCredentials(SigningCredentials{
		KeyRef:  pki.ClientKeyPath,
		CertRef: pki.ClientCertPath,
	}))
	transport.ExpectSend(http.MethodPost, payoutPath).
		Return(mocks.Response(http.StatusCreated, map[string][]string{
			"Location": {"https://cpc.getswish.net/swish-cpcapi/api/v1/payouts/" + testInstructionID},
		}, ""), nil).Once()

	p, err := c.Payouts.CreateSigned(context.Background(), validPayout(), testCallbackURL, "", "")
	require.NoError(t, err)

	assert.Equal(t, testInstructionID, p.PayoutInstructionUUID)
	assert.Equal(t, StatusCreated, p.Status)
	assert.Equal(t, testutil.TestPayeeAlias, p.PayerAlias, "the merchant pays payouts")
	assert.Equal(t, testCallbackURL, p.CallbackURL)
	assert.Equal(t, "250.00", p.Amount)
	assert.NotEmpty(t, p.Location)

	env := sentEnvelope(t, transport)
	assert.Equal(t, testCallbackURL, env.CallbackURL)
	require.NoError(t, signing.Verify(&pki.ClientKey.PublicKey, env.Payload, env.Signature))

	assert.True(t, bytes.HasPrefix(env.Payload, []byte(`{"payoutInstructionUUID":"`+testInstructionID+`","payerPaymentReference":`)))
	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, testutil.TestClientSerialHex, payload["signingCertificateSerialNumber"])
	assert.Equal(t, "PAYOUT", payload["payoutType"])
	assert.Equal(t, "SEK", payload["currency"])
	assert.Equal(t, testutil.TestPayeeAlias, payload["payerAlias"])
}

func TestPayoutsCreateSignedExplicitKey(t *testing.T) {
	pki := testutil.NewPKI(t)
	c, transport := newTestClient(t)
	transport.ExpectSend(http.MethodPost, payoutPath).
		Return(mocks.JSONResponse(http.StatusCreated, `{"status":"DEBITED"}`), nil).Once()

	req := validPayout()
	req.SigningCertificateSerialNumber = testutil.TestClientSerialHex
	p, err := c.Payouts.CreateSigned(context.Background(), req, testCallbackURL,
		pki.ClientEncryptedKeyPath, testutil.TestPassphrase)
	require.NoError(t, err)
	assert.Equal(t, StatusDebited, p.Status)

	env := sentEnvelope(t, transport)
	require.NoError(t, signing.Verify(&pki.ClientKey.PublicKey, env.Payload, env.Signature))
}

func TestPayoutsCreateSignedFailures(t *testing.T) {
	pki := testutil.NewPKI(t)

	t.Run("wrong passphrase", func(t *testing.T) {
		c, transport := newTestClient(t)
		req := validPayout()
		req.SigningCertificateSerialNumber = testutil.TestClientSerialHex

		_, err := c.Payouts.CreateSigned(context.Background(), req, testCallbackURL, pki.ClientEncryptedKeyPath, "wrong")
		assert.True(t, clienterr.IsKind(err, clienterr.KindSigning))
		assert.NotContains(t, err.Error(), pki.ClientEncryptedKeyPath)
		assertNoSend(t, transport)
	})

	t.Run("no serial and no certificate", func(t *testing.T) {
		c, transport := newTestClient(t)

		_, err := c.Payouts.CreateSigned(context.Background(), validPayout(), testCallbackURL, pki.ClientKeyPath, "")
		require.Error(t, err)
		assert.Equal(t, "signingCertificateSerialNumber must not be empty", err.Error())
		assertNoSend(t, transport)
	})

	t.Run("unreadable certificate", func(t *testing.T) {
		c, transport := newTestClient(t, WithSigningCredentials(SigningCredentials{
			KeyRef:  pki.ClientKeyPath,
			CertRef: "file:///etc/swish/signing.pem",
		}))

		_, err := c.Payouts.CreateSigned(context.Background(), validPayout(), testCallbackURL, "", "")
		assert.True(t, clienterr.IsKind(err, clienterr.KindSigning))
		assert.ErrorIs(t, err, signing.ErrSchemePath)
		assertNoSend(t, transport)
	})

	t.Run("no signer", func(t *testing.T) {
		transport := &mocks.MockClient{}
		c := New(transport, nil, testutil.TestPayeeAlias)

		_, err := c.Payouts.CreateSigned(context.Background(), validPayout(), testCallbackURL, pki.ClientKeyPath, "")
		assert.True(t, clienterr.IsKind(err, clienterr.KindSigning))
		assertNoSend(t, transport)
	})
}

func TestPayoutsCreateWithCallerSignature(t *testing.T) {
	c, transport := newTestClient(t)
	transport.ExpectSend(http.MethodPost, payoutPath).
		Return(mocks.JSONResponse(http.StatusCreated, `{"paymentReference":"`+testPaymentRef+`"}`), nil).Once()

	req := validPayout()
	req.SigningCertificateSerialNumber = testutil.TestClientSerialHex
	p, err := c.Payouts.Create(context.Background(), req, "c2lnbmF0dXJl", testCallbackURL)
	require.NoError(t, err)
	assert.Equal(t, testPaymentRef, p.PaymentReference)
	assert.Equal(t, "Winnings", p.Message)

	env := sentEnvelope(t, transport)
	assert.Equal(t, "c2lnbmF0dXJl", env.Signature)

	want, err := signing.Canonicalize(c.Payouts.withDefaults(req))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(env.Payload))
}

func TestPayoutsCreateValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*PayoutRequest)
		signature string
		callback  string
		want      string
	}{
		{"empty signature", nil, " ", testCallbackURL, "signature must not be empty"},
		{"empty callback", nil, "sig", "", "callbackUrl must not be empty"},
		{"empty instruction id", func(r *PayoutRequest) { r.PayoutInstructionUUID = "" }, "sig", testCallbackURL, "payoutInstructionUUID must not be empty"},
		{"blank instruction id", func(r *PayoutRequest) { r.PayoutInstructionUUID = "  " }, "sig", testCallbackURL, "payoutInstructionUUID must not be empty"},
		{"missing ssn", func(r *PayoutRequest) { r.PayeeSSN = "" }, "sig", testCallbackURL, "payeeSSN must not be empty"},
		{"missing date", func(r *PayoutRequest) { r.InstructionDate = "" }, "sig", testCallbackURL, "instructionDate must not be empty"},
		{"bad amount", func(r *PayoutRequest) { r.Amount = "abc" }, "sig", testCallbackURL, "amount must be a positive numeric value, got: abc"},
		{"unknown payout type", func(r *PayoutRequest) { r.PayoutType = "REFUND" }, "sig", testCallbackURL, "payoutType must be one of: PAYOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport := newTestClient(t)
			req := validPayout()
			req.SigningCertificateSerialNumber = testutil.TestClientSerialHex
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			_, err := c.Payouts.Create(context.Background(), req, tt.signature, tt.callback)
			require.Error(t, err)
			assert.True(t, clienterr.IsKind(err, clienterr.KindValidation))
			assert.Equal(t, tt.want, err.Error())
			assertNoSend(t, transport)
		})
	}
}

func TestPayoutsCreateSignedGeneratesInstructionID(t *testing.T) {
	pki := testutil.NewPKI(t)
	c, transport := newTestClient(t)
	transport.ExpectSend(http.MethodPost, payoutPath).
		Return(mocks.Response(http.StatusCreated, nil, ""), nil).Once()

	req := validPayout()
	req.PayoutInstructionUUID = ""
	req.SigningCertificateSerialNumber = testutil.TestClientSerialHex
	p, err := c.Payouts.CreateSigned(context.Background(), req, testCallbackURL, pki.ClientKeyPath, "")
	require.NoError(t, err)
	assert.Regexp(t, instructionIDPattern, p.PayoutInstructionUUID)

	env := sentEnvelope(t, transport)
	require.NoError(t, signing.Verify(&pki.ClientKey.PublicKey, env.Payload, env.Signature))
	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, p.PayoutInstructionUUID, payload["payoutInstructionUUID"])
}

func TestPayoutsDefaultsInstructionID(t *testing.T) {
	c, _ := newTestClient(t)
	req := validPayout()
	req.PayoutInstructionUUID = ""

	got := c.Payouts.withDefaults(req)
	assert.Regexp(t, instructionIDPattern, got.PayoutInstructionUUID)
	assert.Equal(t, PayoutTypePayout, got.PayoutType)
}

func TestPayoutsGet(t *testing.T) {
	c, transport := newTestClient(t)
	transport.ExpectSend(http.MethodGet, payoutPath+testInstructionID).
		Return(mocks.JSONResponse(http.StatusOK, `{
			"payoutInstructionUUID": "`+testInstructionID+`",
			"payerAlias": "1231181189",
			"payeeAlias": "46701234567",
			"payeeSSN": "197501088327",
			"amount": "250.00",
			"status": "ERROR",
			"errorCode": "BE18",
			"errorMessage": "Payee alias is invalid"
		}`), nil).Once()

	p, err := c.Payouts.Get(context.Background(), testInstructionID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, p.Status)
	assert.Equal(t, "BE18", p.ErrorCode)
	assert.Equal(t, "197501088327", p.PayeeSSN)

	_, err = c.Payouts.Get(context.Background(), "")
	assert.Equal(t, "Payout ID must not be empty", err.Error())
}
