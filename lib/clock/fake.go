// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Nothing fires until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. Time moves only under
// Advance, which fires every pending event whose deadline has been
// reached, in deadline order. AfterFunc callbacks run synchronously
// inside Advance, so a callback must not call Advance or Sleep on the
// same clock.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*pendingEvent
	changed *sync.Cond
}

// pendingEvent is one scheduled After, AfterFunc, or Sleep.
type pendingEvent struct {
	deadline time.Time
	ch       chan time.Time // After and Sleep; nil for AfterFunc
	fn       func()         // AfterFunc; nil otherwise
	stopped  bool
	fired    bool
}

// Now returns the frozen current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives when the clock advances past
// d from now. Non-positive d delivers immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.pending = append(c.pending, &pendingEvent{deadline: c.now.Add(d), ch: ch})
	c.changed.Broadcast()
	return ch
}

// AfterFunc schedules f to run when the clock advances past d from
// now. Non-positive d runs f synchronously before returning.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	if d <= 0 {
		c.mu.Unlock()
		f()
		return &Timer{
			stop:  func() bool { return false },
			reset: func(time.Duration) bool { return false },
		}
	}

	event := &pendingEvent{deadline: c.now.Add(d), fn: f}
	c.pending = append(c.pending, event)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if event.stopped || event.fired {
				return false
			}
			event.stopped = true
			return true
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := !event.stopped && !event.fired
			event.deadline = c.now.Add(d)
			event.stopped = false
			if event.fired {
				// The event was dropped from the pending list when it
				// fired; a reset puts it back.
				event.fired = false
				c.pending = append(c.pending, event)
				c.changed.Broadcast()
			}
			return active
		},
	}
}

// Sleep blocks until the clock advances past d from now.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires every pending event
// whose deadline falls within the new time, in deadline order.
// Channel deliveries are non-blocking; AfterFunc callbacks run in the
// calling goroutine.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		expired := c.takeExpired(target)
		if len(expired) == 0 {
			return
		}
		sort.Slice(expired, func(i, j int) bool {
			return expired[i].deadline.Before(expired[j].deadline)
		})
		for _, event := range expired {
			if event.fn != nil {
				event.fn()
			} else {
				select {
				case event.ch <- target:
				default:
				}
			}
		}
	}
}

// takeExpired removes and returns every pending event due at or
// before target. Stopped events are discarded as a side effect.
func (c *FakeClock) takeExpired(target time.Time) []*pendingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired, remaining []*pendingEvent
	for _, event := range c.pending {
		switch {
		case event.stopped:
			// drop
		case !event.deadline.After(target):
			event.fired = true
			expired = append(expired, event)
		default:
			remaining = append(remaining, event)
		}
	}
	c.pending = remaining
	return expired
}

// WaitForTimers blocks until at least n events are pending. Call it
// before Advance when the timer is registered by another goroutine,
// so the registration cannot race the advance.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of armed events. Test assertions
// use this to check that re-arming replaced, not added, a timer.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *FakeClock) activeLocked() int {
	n := 0
	for _, event := range c.pending {
		if !event.stopped {
			n++
		}
	}
	return n
}
