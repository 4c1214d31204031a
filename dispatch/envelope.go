// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"slices"
	"sync/atomic"
)

// Spec is the wire metadata and admission rule one request kind
// declares. Request constructors build a Spec once and share it across
// envelopes of that kind.
type Spec struct {
	// Operation is the API operation name (e.g. "b2_list_buckets").
	Operation string
	// Group is the API group path segment (e.g. "b2api").
	Group string
	// Version is the wire protocol version segment (e.g. "v1").
	Version string
	// Method is the HTTP method the operation requires.
	Method string
	// NeedsToken marks operations that carry the session token.
	NeedsToken bool
	// Download marks operations resolved against the download base URL
	// whose response body is file content, not JSON.
	Download bool
	// Authenticated marks operations that may only run on an
	// authenticated session; they queue while the session is merely
	// AccountKnown.
	Authenticated bool
	// FixedBaseURL, when set, overrides the session's base URL for
	// operations with a well-known endpoint of their own.
	FixedBaseURL string
	// SendStates is the set of states in which the operation may be
	// sent. Re-checked under the session mutex at dispatch time.
	SendStates StateSet
}

// VerifyVersion checks the construction-time compatibility rule: the
// request's declared version must be one the paired response type
// supports. A mismatch returns a *ProtocolError, which callers must
// treat as fatal.
func VerifyVersion(spec Spec, supported []string) error {
	if slices.Contains(supported, spec.Version) {
		return nil
	}
	return &ProtocolError{
		Operation: spec.Operation,
		Version:   spec.Version,
		Supported: supported,
	}
}

// Envelope is one submitted request: wire metadata, an encoded body,
// and a callback pair of which exactly one fires, exactly once, on a
// worker goroutine.
type Envelope struct {
	spec Spec
	body []byte

	// decode parses the raw payload into the typed response and hands
	// it to the caller's success callback. A non-nil return means the
	// payload was malformed; the envelope then fails with a
	// *PayloadError instead.
	decode func(payload []byte) error

	// fail is the caller's failure callback.
	fail func(error)

	delivered atomic.Bool
}

// NewEnvelope builds an envelope. decode and fail must both be
// non-nil; body may be nil for body-less operations.
func NewEnvelope(spec Spec, body []byte, decode func([]byte) error, fail func(error)) *Envelope {
	return &Envelope{spec: spec, body: body, decode: decode, fail: fail}
}

// Spec returns the envelope's wire metadata.
func (e *Envelope) Spec() Spec { return e.spec }

// succeed delivers a raw payload. First delivery wins; a decode
// failure converts into the failure callback without consuming a
// second delivery.
func (e *Envelope) succeed(payload []byte) {
	if !e.delivered.CompareAndSwap(false, true) {
		return
	}
	if err := e.decode(payload); err != nil {
		e.fail(&PayloadError{Operation: e.spec.Operation, Err: err})
	}
}

// reject delivers a failure. First delivery wins.
func (e *Envelope) reject(err error) {
	if !e.delivered.CompareAndSwap(false, true) {
		return
	}
	e.fail(err)
}

// url resolves the envelope's operation path against a base URL.
func (e *Envelope) url(base string) string {
	return base + "/" + e.spec.Group + "/" + e.spec.Version + "/" + e.spec.Operation
}
