// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that code which
// schedules work in the future (notably the session's re-authentication
// timer) can be driven deterministically in tests.
//
// Production code takes a Clock value instead of calling time.Now,
// time.After, time.AfterFunc, or time.Sleep directly. Real() delegates
// to the time package; Fake() returns a clock that only moves when the
// test calls Advance. Use WaitForTimers to rendezvous with a goroutine
// that is about to register a timer before advancing past its deadline.
package clock

import "time"

// Clock is the time surface used by this module.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. A
	// non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f to run once d has elapsed. The returned
	// Timer cancels the pending call via Stop. Like time.AfterFunc,
	// the Timer carries no channel.
	AfterFunc(d time.Duration, f func()) *Timer

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Timer is a single scheduled event created by AfterFunc.
type Timer struct {
	stop  func() bool
	reset func(time.Duration) bool
}

// Stop cancels the timer. It reports whether the call prevented the
// timer from firing; false means it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Reset re-arms the timer to fire after d. It reports whether the
// timer was still active when reset.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }
