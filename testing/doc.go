// Package testing holds test helpers for code built on go-swish.
//
// The mocks subpackage provides a testify mock of httpclient.Client so that
// services can be tested without a network:
//
//	import "github.com/gaborage/go-swish/testing/mocks"
//
// Instrumentation helpers for spans and metrics live in observability/testing.
package testing
