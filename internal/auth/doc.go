// Package auth enforces API key authentication on the vizor-etl listeners.
//
// A Guard built from the auth mode, header name and expected key provides a
// gRPC UnaryServerInterceptor and a net/http middleware. When mode is not
// "apikey" or the key is empty every call passes through, which keeps local
// development usable with auth disabled.
package auth
