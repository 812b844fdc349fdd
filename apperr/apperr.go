// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apperr defines the closed error taxonomy every service-layer
// package surfaces across its boundary, so a transport layer can translate
// a failure to a status code without ever inspecting an error string.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for transport-layer translation.
type Kind int

const (
	// Internal is the zero value deliberately, so a forgotten Kind() call
	// never masquerades as a more specific, user-actionable failure.
	Internal Kind = iota
	Validation
	Unauthenticated
	Forbidden
	NotFound
	Conflict
	BadTransition
	RateLimited
	CryptoFailure
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case BadTransition:
		return "bad_transition"
	case RateLimited:
		return "rate_limited"
	case CryptoFailure:
		return "crypto_failure"
	default:
		return "internal"
	}
}

// Error is the typed error every exported service method returns once it
// crosses a package boundary. The wrapped Cause is available to callers
// via errors.Unwrap for logging, but Kind is what transport code branches
// on.
type Error struct {
	kind    Kind
	Message string
	Field   string        // set for Validation errors
	Current string        // set for BadTransition: the state the machine was actually in
	Target  string        // set for BadTransition: the state that was rejected
	Retry   time.Duration // set for RateLimited
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Kind reports the error's taxonomy classification.
func (e *Error) Kind() Kind { return e.kind }

// New builds a typed error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying cause, preserving it
// for logging while presenting a deterministic, non-leaking message to
// callers per the taxonomy's "no stack traces leak" requirement.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, Message: message, Cause: cause}
}

// Validationf builds a field-scoped validation error.
func Validationf(field, format string, args ...any) *Error {
	return &Error{kind: Validation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// BadTransitionf builds a state-machine rejection error carrying the
// current and attempted-target state for the caller to report.
func BadTransitionf(current, target string) *Error {
	return &Error{
		kind:    BadTransition,
		Message: fmt.Sprintf("transition from %q to %q is not permitted", current, target),
		Current: current,
		Target:  target,
	}
}

// RateLimitedf builds a rate-limit error carrying a retry-after hint.
func RateLimitedf(retryAfter time.Duration) *Error {
	return &Error{
		kind:    RateLimited,
		Message: "rate limit exceeded",
		Retry:   retryAfter,
	}
}

// Conflictf builds a conflict error, e.g. a repeated idempotent operation.
func Conflictf(format string, args ...any) *Error {
	return &Error{kind: Conflict, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

// CryptoFailuref builds an opaque crypto error. The cause is preserved
// only for internal logging via Unwrap/errors.Is; callers must never
// branch on it, as doing so would open a decryption oracle.
func CryptoFailuref(cause error) *Error {
	return &Error{kind: CryptoFailure, Message: "cryptographic operation failed", Cause: cause}
}

// As reports whether err is (or wraps) an *Error, matching the stdlib
// errors.As calling convention used throughout the pack.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is an *Error, or Internal otherwise.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	return Internal
}
