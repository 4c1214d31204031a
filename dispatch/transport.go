// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"time"
)

// Call is a fully-resolved request handed to a Transport: the session
// has already chosen the URL and attached the token.
type Call struct {
	// Method is the HTTP method.
	Method string
	// URL is the complete request URL.
	URL string
	// Authorization is the value for the Authorization header, verbatim.
	// Empty means the header is omitted.
	Authorization string
	// Body is the encoded request body, nil for body-less calls.
	Body []byte
	// Download marks calls whose response body is raw file content
	// rather than a JSON document.
	Download bool
}

// Transport executes a resolved Call and returns the response payload.
// Failures must be typed: a *TransportError for connection failures
// and non-2xx responses. The session never retries; one Call is made
// per admitted envelope.
type Transport interface {
	Do(ctx context.Context, call *Call) ([]byte, error)
}

// Authorization is the result of a successful credential exchange.
type Authorization struct {
	// Token authorizes subsequent API calls.
	Token string
	// APIURL is the base URL for regular API calls.
	APIURL string
	// DownloadURL is the base URL for download calls.
	DownloadURL string
	// ValidFor is how long the token is expected to remain valid.
	ValidFor time.Duration
}

// ExchangeFunc trades account credentials for an Authorization. It is
// supplied once at startup and invoked by the session's authenticator,
// both on explicit Authenticate calls and when the renewal timer fires.
type ExchangeFunc func(ctx context.Context, accountID, applicationKey string) (*Authorization, error)
