// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/quarry-project/quarry/lib/clock"
)

// DefaultRenewalMargin is how long before the token's reported expiry
// the session re-authenticates. The margin absorbs clock skew and the
// time requests spend in flight with an almost-expired token.
const DefaultRenewalMargin = 10 * time.Minute

// Options configures a Session. The zero value is usable: real clock,
// default logger, one worker per CPU, the default renewal margin, and
// a Fatal hook that logs and exits the process.
type Options struct {
	// Workers is the dispatcher pool size. Non-positive means one
	// worker per available CPU.
	Workers int

	// RenewalMargin overrides DefaultRenewalMargin.
	RenewalMargin time.Duration

	// Clock supplies time; tests inject a fake.
	Clock clock.Clock

	// Logger receives structured logs. Nil means slog.Default().
	Logger *slog.Logger

	// Fatal is invoked for unrecoverable errors: protocol version
	// skew, authentication failure, and submission before the session
	// is initialized. The default logs the error and exits with the
	// code from FatalExitCode. Tests replace it to observe the fatal
	// path; a replacement must not assume the session is still usable
	// afterwards.
	Fatal func(error)
}

// Session is the process-wide authentication context: account
// credentials, the session token and base URLs, the lifecycle state,
// the pending-request queue, and the dispatcher pool. Construct one
// per process with NewSession and bind its collaborators with
// Initialize; every field mutation happens under one mutex, which is
// never held across a transport call.
type Session struct {
	pool   *pool
	clk    clock.Clock
	logger *slog.Logger
	fatal  func(error)
	margin time.Duration

	// ctx is the base context for transport calls; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          State
	transport      Transport
	exchange       ExchangeFunc
	accountID      string
	applicationKey string

	// generation increments on every credential change. An
	// authentication exchange that completes against an older
	// generation is stale and its result is discarded.
	generation uint64

	// token, apiURL, and downloadURL are all set together on a
	// successful exchange and all cleared together on any credential
	// change or re-authentication.
	token       string
	apiURL      string
	downloadURL string

	renewal *clock.Timer
	queue   []*Envelope
}

// NewSession constructs a Session in StateUninitialized and starts its
// worker pool. Call Initialize before submitting anything, and Close
// when done.
func NewSession(opts Options) *Session {
	s := &Session{
		pool:   newPool(opts.Workers),
		clk:    opts.Clock,
		logger: opts.Logger,
		fatal:  opts.Fatal,
		margin: opts.RenewalMargin,
		state:  StateUninitialized,
	}
	if s.clk == nil {
		s.clk = clock.Real()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.margin <= 0 {
		s.margin = DefaultRenewalMargin
	}
	if s.fatal == nil {
		s.fatal = func(err error) {
			s.logger.Error("unrecoverable error", "error", err)
			os.Exit(FatalExitCode(err))
		}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Initialize binds the transport and the credential exchange, moving
// the session to StateNoAccount. Any account identity, token, queued
// work, or renewal timer from a previous initialization is discarded.
func (s *Session) Initialize(transport Transport, exchange ExchangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = transport
	s.exchange = exchange
	s.accountID = ""
	s.applicationKey = ""
	s.generation++
	s.clearAuthorizationLocked()
	s.stopRenewalLocked()
	s.queue = nil
	s.state = StateNoAccount
	s.logger.Debug("session initialized")
}

// UpdateCredentials replaces the account identity. The session token
// and base URLs are invalidated, the renewal timer is cancelled, and
// every queued request is dropped without a callback: queued work
// belongs to the old identity and must not execute under the new one.
// Empty credentials return the session to StateNoAccount; otherwise
// the state becomes StateAccountKnown.
func (s *Session) UpdateCredentials(accountID, applicationKey string) {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		s.fatal(fmt.Errorf("dispatch: credentials supplied before the session was initialized"))
		return
	}
	s.accountID = accountID
	s.applicationKey = applicationKey
	s.generation++
	s.clearAuthorizationLocked()
	s.stopRenewalLocked()
	dropped := len(s.queue)
	s.queue = nil
	if accountID == "" && applicationKey == "" {
		s.state = StateNoAccount
	} else {
		s.state = StateAccountKnown
	}
	state := s.state
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Info("dropped queued requests for previous account", "count", dropped)
	}
	s.logger.Debug("credentials updated", "state", state)
}

// Submit admits, queues, or rejects an envelope according to the
// current state:
//
//   - StateUninitialized: programming error; the Fatal hook fires.
//   - StateNoAccount: dropped silently (logged at Debug). The request
//     cannot belong to any identity, so no failure is reported.
//   - StateAccountKnown: authenticated-only envelopes queue; the rest
//     dispatch immediately.
//   - StateAuthenticating: everything queues, in arrival order.
//   - StateAuthenticated: everything dispatches immediately.
//
// Dispatch re-checks the envelope's allowed-send set under the mutex
// at the moment of sending; a request whose set no longer matches
// fails with a *StateError instead of being sent.
func (s *Session) Submit(e *Envelope) {
	if e == nil {
		return
	}
	s.mu.Lock()
	switch s.state {
	case StateUninitialized:
		s.mu.Unlock()
		s.fatal(fmt.Errorf("dispatch: %s submitted before the session was initialized", e.spec.Operation))
	case StateNoAccount:
		s.mu.Unlock()
		s.logger.Debug("dropping request submitted with no account", "operation", e.spec.Operation)
	case StateAccountKnown:
		if e.spec.Authenticated {
			s.queue = append(s.queue, e)
			s.logger.Debug("queued until authenticated", "operation", e.spec.Operation, "pending", len(s.queue))
		} else {
			s.sendLocked(e)
		}
		s.mu.Unlock()
	case StateAuthenticating:
		s.queue = append(s.queue, e)
		s.mu.Unlock()
	case StateAuthenticated:
		s.sendLocked(e)
		s.mu.Unlock()
	}
}

// Authenticate drives the credential exchange: state moves to
// StateAuthenticating, any stale token is cleared, and the exchange
// runs with the mutex released. On success the token and base URLs are
// stored, the renewal timer is re-armed for the validity window minus
// the margin, and the pending queue is flushed in arrival order. An
// absent exchange function or a failed exchange is fatal.
//
// A credential change that lands while the exchange is in flight wins:
// the stale authorization is discarded and the session stays in
// whatever state the change produced.
func (s *Session) Authenticate(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		s.fatal(&AuthError{Reason: "session not initialized"})
		return
	}
	if s.exchange == nil {
		s.mu.Unlock()
		s.fatal(&AuthError{Reason: "no credential exchange configured"})
		return
	}
	if s.accountID == "" && s.applicationKey == "" {
		s.mu.Unlock()
		s.fatal(&AuthError{Reason: "no account credentials"})
		return
	}
	s.state = StateAuthenticating
	s.clearAuthorizationLocked()
	accountID, applicationKey := s.accountID, s.applicationKey
	generation := s.generation
	exchange := s.exchange
	s.mu.Unlock()

	authorization, err := exchange(ctx, accountID, applicationKey)
	if err != nil {
		s.fatal(&AuthError{Reason: "credential exchange", Err: err})
		return
	}
	if authorization == nil || authorization.Token == "" ||
		authorization.APIURL == "" || authorization.DownloadURL == "" {
		s.fatal(&AuthError{Reason: "exchange returned an incomplete authorization"})
		return
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		s.logger.Warn("discarding authorization for replaced credentials")
		return
	}
	s.token = authorization.Token
	s.apiURL = authorization.APIURL
	s.downloadURL = authorization.DownloadURL
	s.state = StateAuthenticated
	s.armRenewalLocked(authorization.ValidFor)
	pending := s.queue
	s.queue = nil
	for _, e := range pending {
		s.sendLocked(e)
	}
	s.mu.Unlock()

	s.logger.Info("authenticated", "flushed", len(pending), "valid_for", authorization.ValidFor)
}

// CurrentState returns the session state at the time of the call.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingCount returns the number of queued requests. Diagnostic.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close cancels the renewal timer, drops any queued requests, cancels
// in-flight transport contexts, and waits for the worker pool to
// drain. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.stopRenewalLocked()
	dropped := len(s.queue)
	s.queue = nil
	s.mu.Unlock()

	s.cancel()
	s.pool.close()
	if dropped > 0 {
		s.logger.Debug("closed with requests still queued", "count", dropped)
	}
}

// sendLocked dispatches an admitted envelope. Callers hold s.mu. The
// state re-check, token capture, and base URL selection happen here,
// inside the critical section; the transport call itself runs on a
// worker goroutine after the lock is released.
func (s *Session) sendLocked(e *Envelope) {
	if !e.spec.SendStates.Contains(s.state) {
		err := &StateError{Operation: e.spec.Operation, State: s.state}
		s.pool.submit(func() { e.reject(err) })
		return
	}

	base := s.apiURL
	if e.spec.Download {
		base = s.downloadURL
	}
	if e.spec.FixedBaseURL != "" {
		base = e.spec.FixedBaseURL
	}
	call := &Call{
		Method:   e.spec.Method,
		URL:      e.url(base),
		Body:     e.body,
		Download: e.spec.Download,
	}
	if e.spec.NeedsToken {
		call.Authorization = s.token
	}

	transport := s.transport
	ctx := s.ctx
	s.pool.submit(func() {
		payload, err := transport.Do(ctx, call)
		if err != nil {
			e.reject(err)
			return
		}
		e.succeed(payload)
	})
}

// armRenewalLocked replaces the renewal timer. At most one timer is
// ever armed; arming cancels the previous one. Callers hold s.mu.
func (s *Session) armRenewalLocked(validFor time.Duration) {
	s.stopRenewalLocked()
	if validFor <= 0 {
		s.logger.Warn("authorization reported no validity window; renewal disabled")
		return
	}
	delay := validFor - s.margin
	if delay <= 0 {
		delay = validFor
	}
	s.renewal = s.clk.AfterFunc(delay, func() {
		s.logger.Info("session token nearing expiry, re-authenticating")
		s.Authenticate(s.ctx)
	})
}

func (s *Session) stopRenewalLocked() {
	if s.renewal != nil {
		s.renewal.Stop()
		s.renewal = nil
	}
}

func (s *Session) clearAuthorizationLocked() {
	s.token = ""
	s.apiURL = ""
	s.downloadURL = ""
}
