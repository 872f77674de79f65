package swish

import (
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-swish/internal/testutil"
	"github.com/gaborage/go-swish/signing"
	"github.com/gaborage/go-swish/testing/mocks"
)

const (
	testInstructionID = "11A86BE70EA346E4B1C39C874173F088"
	testCallbackURL   = "https://shop.example.com/swish/callback"
	testPaymentRef    = "6D6CD7406ECE4542A80152D909EF9F6B"
)

func newTestClient(t *testing.T, opts ...Option) (*Client, *mocks.MockClient) {
	t.Helper()
	transport := &mocks.MockClient{}
	t.Cleanup(func() { transport.AssertExpectations(t) })
	return New(transport, signing.NewSigner(), testutil.TestPayeeAlias, opts...), transport
}

func assertNoSend(t *testing.T, transport *mocks.MockClient) {
	t.Helper()
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func validPayment() PaymentRequest {
	return PaymentRequest{
		Amount:                "100.00",
		CallbackURL:           testCallbackURL,
		PayerAlias:            testutil.TestPayerAlias,
		PayeePaymentReference: "0123456789",
		Message:               "Kingston USB Flash Drive 8 GB",
	}
}
