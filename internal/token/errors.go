/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package token

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
// Callers branch on Kind rather than on error strings.
type Kind string

const (
	KindInsufficientBalance   Kind = "InsufficientBalance"
	KindInsufficientAllowance Kind = "InsufficientAllowance"
	KindZeroRecipientAddress  Kind = "ZeroRecipientAddress"
	KindZeroSenderAddress     Kind = "ZeroSenderAddress"
	KindOverflow              Kind = "Overflow"
	KindExternalCallFailed    Kind = "ExternalCallFailed"
	KindUnauthorized          Kind = "Unauthorized"
	KindCustom                Kind = "Custom"
)

// Error is the ledger's structured error type.
// Message is for humans except under KindCustom, where it carries the reason code.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches on Kind. A target with a Message also requires the message to match,
// so errors.Is(err, Custom("Paused")) distinguishes custom reasons.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

var (
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientAllowance = &Error{Kind: KindInsufficientAllowance}
	ErrZeroRecipientAddress  = &Error{Kind: KindZeroRecipientAddress}
	ErrZeroSenderAddress     = &Error{Kind: KindZeroSenderAddress}
	ErrOverflow              = &Error{Kind: KindOverflow}
	ErrExternalCallFailed    = &Error{Kind: KindExternalCallFailed}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrCustom                = &Error{Kind: KindCustom}
)

// Custom builds the catch-all error used by hooks and collaborators
func Custom(reason string) error {
	return &Error{Kind: KindCustom, Message: reason}
}

func newError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ExternalCallFailed wraps a failure raised by a collaborator outside the taxonomy
func ExternalCallFailed(cause error) error {
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	return &Error{Kind: KindExternalCallFailed, Cause: cause}
}

// KindOf returns the Kind of a structured error, or "" if err is not one
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// IsKind reports whether err is (or wraps) an *Error of the given Kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
