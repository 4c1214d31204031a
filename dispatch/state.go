// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

// State is one of the session lifecycle states. The machine has no
// terminal state: once credentials exist it cycles between
// StateAccountKnown, StateAuthenticating, and StateAuthenticated for
// the life of the process.
type State int

const (
	// StateUninitialized means no transport has been bound yet.
	// Submitting in this state is a programming error and is fatal.
	StateUninitialized State = iota

	// StateNoAccount means a transport is bound but no account
	// credentials are known. Submissions are dropped silently: they
	// cannot belong to any identity, so no failure is reported.
	StateNoAccount

	// StateAccountKnown means credentials are present but no
	// authentication exchange has succeeded.
	StateAccountKnown

	// StateAuthenticating means an authentication exchange is in
	// flight. All submissions queue until it completes.
	StateAuthenticating

	// StateAuthenticated means the session token is valid.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateNoAccount:
		return "no-account"
	case StateAccountKnown:
		return "account-known"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// StateSet is a bitmask of States. Each envelope declares the set of
// states in which it may be sent; the session re-checks membership
// under its mutex at the moment of dispatch.
type StateSet uint8

// States builds a StateSet from its members.
func States(states ...State) StateSet {
	var set StateSet
	for _, s := range states {
		set |= 1 << uint(s)
	}
	return set
}

// Contains reports whether s is a member of the set.
func (set StateSet) Contains(s State) bool {
	return set&(1<<uint(s)) != 0
}
