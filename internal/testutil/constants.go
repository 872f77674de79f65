// Package testutil provides shared constants and a throwaway PKI for tests
// across go-swish.
package testutil

const (
	// TestError is a generic error message for test error scenarios.
	TestError = "test error"

	// TestPassphrase protects the encrypted client keys written by NewPKI.
	TestPassphrase = "correct horse battery staple"

	// TestClientSerialHex is the serial number of the client certificate issued by NewPKI.
	TestClientSerialHex = "4512B3EBDA6E3CE6BFB14ABA6274A02C"

	// TestPayeeAlias is a merchant Swish number.
	TestPayeeAlias = "1231181189"

	// TestPayerAlias is a consumer Swish number.
	TestPayerAlias = "46701234567"
)
