package auth

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/oauth2"
)

// Kind is the closed set of failure categories. It travels on the wire in
// login endpoint error bodies so callers can decide visibility per kind.
type Kind string

const (
	KindInvalidRequest  Kind = "invalid_request"
	KindInvalidStrategy Kind = "invalid_strategy"
	KindInvalidToken    Kind = "invalid_token"
	KindInvalidGrant    Kind = "invalid_grant"
	KindStateMismatch   Kind = "state_mismatch"
	KindProvider        Kind = "provider_error"
	KindConsent         Kind = "consent_error"
	KindNetwork         Kind = "network_error"
	KindConfig          Kind = "config_error"
	KindAbandoned       Kind = "abandoned"
	KindInternal        Kind = "internal_error"
)

var knownKinds = map[Kind]bool{
	KindInvalidRequest:  true,
	KindInvalidStrategy: true,
	KindInvalidToken:    true,
	KindInvalidGrant:    true,
	KindStateMismatch:   true,
	KindProvider:        true,
	KindConsent:         true,
	KindNetwork:         true,
	KindConfig:          true,
	KindAbandoned:       true,
	KindInternal:        true,
}

// ParseKind maps a wire value back to a Kind. Unknown values become KindInternal.
func ParseKind(s string) Kind {
	if k := Kind(s); knownKinds[k] {
		return k
	}
	return KindInternal
}

// Error is a classified authentication failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, prefixing its text with message.
func Wrap(kind Kind, message string, err error) *Error {
	msg := message
	if err != nil {
		msg = message + ": " + err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the failure category of err. Errors that were never
// classified are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return KindInvalidGrant
		}
		return KindProvider
	}

	if errors.Is(err, context.Canceled) {
		return KindAbandoned
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	return KindInternal
}

// Classify converts err into an *Error. Unrecognized errors are reported with
// a generic message so internal details do not leak to clients.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &Error{Kind: KindOf(err), Message: retrieveErrorMessage(retrieveErr), Err: err}
	}

	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

func retrieveErrorMessage(err *oauth2.RetrieveError) string {
	switch {
	case err.ErrorCode != "" && err.ErrorDescription != "":
		return err.ErrorCode + ": " + err.ErrorDescription
	case err.ErrorCode != "":
		return err.ErrorCode
	case err.Response != nil:
		return fmt.Sprintf("token endpoint returned status %d", err.Response.StatusCode)
	default:
		return "token exchange failed"
	}
}
