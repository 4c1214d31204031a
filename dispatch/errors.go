// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"errors"
	"fmt"
)

// Process exit codes used by the default Fatal hook. The zero value is
// reserved for a normal exit.
const (
	ExitAuthenticationFailure = 1
	ExitProtocolMismatch      = 3
	ExitUnexpected            = 4
)

// ProtocolError reports a version skew between a request and the
// response type paired with it. It is detected at envelope
// construction and is fatal for the whole process: a skewed protocol
// cannot be trusted for any subsequent call.
type ProtocolError struct {
	// Operation is the API operation name.
	Operation string
	// Version is the wire version the request declares.
	Version string
	// Supported are the versions the response type understands.
	Supported []string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("dispatch: %s declares version %s but its response supports %v",
		e.Operation, e.Version, e.Supported)
}

// AuthError reports a failed or impossible authentication exchange.
// Fatal: continuing without a valid token would send authenticated
// calls that cannot succeed.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch: authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("dispatch: authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// StateError reports an envelope whose allowed-send set did not
// include the session state at the moment of dispatch. Recoverable;
// delivered to the envelope's failure callback.
type StateError struct {
	// Operation is the API operation that was refused.
	Operation string
	// State is the session state observed at dispatch time.
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("dispatch: cannot send %s while %s", e.Operation, e.State)
}

// TransportError reports a connection failure or a non-2xx response.
// Recoverable; delivered to the envelope's failure callback.
type TransportError struct {
	// Status is the HTTP status code, or zero when the connection
	// itself failed.
	Status int
	// Code is the server's machine-readable error code, when one was
	// returned.
	Code string
	// Message is the server's human-readable description.
	Message string
	// Err is the underlying connection error, when one occurred.
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch: transport: %v", e.Err)
	}
	return fmt.Sprintf("dispatch: server rejected request: %s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PayloadError reports a 2xx response whose body could not be parsed
// into the typed response. Recoverable; delivered to the envelope's
// failure callback.
type PayloadError struct {
	Operation string
	Err       error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("dispatch: malformed %s response: %v", e.Operation, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// IsFatal reports whether err is one of the process-ending kinds.
func IsFatal(err error) bool {
	var protocolErr *ProtocolError
	var authErr *AuthError
	return errors.As(err, &protocolErr) || errors.As(err, &authErr)
}

// FatalExitCode maps a fatal error to its process exit code.
func FatalExitCode(err error) int {
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return ExitProtocolMismatch
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return ExitAuthenticationFailure
	}
	return ExitUnexpected
}
