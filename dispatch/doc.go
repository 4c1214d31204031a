// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch implements the authenticated request-dispatch core:
// a session state machine that gates typed API requests, queues them
// while authentication is in flight, executes them on a bounded worker
// pool once admitted, and re-authenticates before the session token
// expires.
//
// The central type is [Session]. A Session starts Uninitialized; after
// [Session.Initialize] binds a [Transport] and an [ExchangeFunc] it
// tracks five lifecycle states (see [State]) and decides, per submitted
// [Envelope], whether to dispatch it immediately, park it on the
// pending queue, or reject it. [Session.Authenticate] drives the
// credential exchange, stores the returned token and base URLs, arms a
// renewal timer, and flushes the pending queue in arrival order.
//
// An Envelope bundles one request's wire metadata (operation, protocol
// version, HTTP method, token and download flags), its admission rule
// (the set of states in which it may be sent), and exactly one
// success/failure callback pair. Exactly one of the two callbacks fires
// per envelope, always on a worker goroutine, never on the goroutine
// that called Submit.
//
// Failure kinds are typed: [ProtocolError] (request/response version
// skew) and [AuthError] (exchange failure) are process-fatal and routed
// through the session's Fatal hook; [StateError], [TransportError], and
// [PayloadError] are recoverable and delivered to the originating
// envelope's failure callback, exactly once, never retried.
//
// The session mutex covers state transitions, credential mutation, and
// queue mutation only. It is never held across a transport call; the
// worker pool performs network I/O after the admission decision has
// been taken and the token and base URL captured.
package dispatch
