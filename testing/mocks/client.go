// Package mocks provides testify-based mocks of the client interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-swish/httpclient"
)

// MockClient is a testify mock of httpclient.Client.
//
// Example usage:
//
//	transport := &mocks.MockClient{}
//	transport.On("Send", mock.Anything, http.MethodGet, "/swish-cpcapi/api/v1/payouts/ABC", mock.Anything).
//		Return(mocks.JSONResponse(http.StatusOK, `{"status":"PAID"}`), nil)
type MockClient struct {
	mock.Mock
}

var _ httpclient.Client = (*MockClient)(nil)

// Send implements httpclient.Client
func (m *MockClient) Send(ctx context.Context, method, uri string, opts httpclient.Options) (*httpclient.Response, error) {
	args := m.Called(ctx, method, uri, opts)
	var resp *httpclient.Response
	if r := args.Get(0); r != nil {
		resp = r.(*httpclient.Response)
	}
	return resp, args.Error(1)
}

// ExpectSend registers an expected call and returns it for further configuration.
func (m *MockClient) ExpectSend(method, uri string) *mock.Call {
	return m.On("Send", mock.Anything, method, uri, mock.Anything)
}

// JSONResponse builds a response with a JSON content type.
func JSONResponse(status int, body string) *httpclient.Response {
	return Response(status, map[string][]string{"Content-Type": {"application/json"}}, body)
}

// Response builds a response with the given headers.
func Response(status int, headers map[string][]string, body string) *httpclient.Response {
	return httpclient.NewResponse(status, headers, []byte(body))
}

// SentOptions returns the options of the n-th recorded Send call.
func (m *MockClient) SentOptions(n int) httpclient.Options {
	return m.Calls[n].Arguments.Get(3).(httpclient.Options)
}
