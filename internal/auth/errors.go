package auth

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication failure. Kinds are logged and traced,
// never returned to the client.
type Kind string

const (
	KindMalformedToken       Kind = "MALFORMED_TOKEN"
	KindKeyNotFound          Kind = "KEY_NOT_FOUND"
	KindKeySourceUnavailable Kind = "KEY_SOURCE_UNAVAILABLE"
	KindInvalidSignature     Kind = "INVALID_SIGNATURE"
	KindTokenExpired         Kind = "TOKEN_EXPIRED"
	KindClaimMismatch        Kind = "CLAIM_MISMATCH"
	KindInvalidRequest       Kind = "INVALID_REQUEST"
	KindExchangeFailed       Kind = "EXCHANGE_FAILED"
	KindProfileFetchFailed   Kind = "PROFILE_FETCH_FAILED"
	KindMissingRequiredClaim Kind = "MISSING_REQUIRED_CLAIM"

	// KindDependencyFailed covers user storage and token issuance failures.
	KindDependencyFailed Kind = "DEPENDENCY_FAILED"

	KindUnknown Kind = "UNKNOWN"
)

// CallerError reports whether the kind is caused by the credential the
// caller presented, as opposed to the environment or a dependency.
func (k Kind) CallerError() bool {
	switch k {
	case KindMalformedToken,
		KindKeyNotFound,
		KindInvalidSignature,
		KindTokenExpired,
		KindClaimMismatch,
		KindInvalidRequest,
		KindMissingRequiredClaim:
		return true
	}
	return false
}

// Error is a typed authentication failure.
type Error struct {
	Kind Kind
	Op   string // component operation, e.g. "keyset.GetKey"
	Err  error

	// Body holds the upstream response body for provider call failures.
	Body string
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s (body: %s)", msg, e.Body)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work
// with errors.Is regardless of Op and wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrMalformedToken       = &Error{Kind: KindMalformedToken}
	ErrKeyNotFound          = &Error{Kind: KindKeyNotFound}
	ErrKeySourceUnavailable = &Error{Kind: KindKeySourceUnavailable}
	ErrInvalidSignature     = &Error{Kind: KindInvalidSignature}
	ErrTokenExpired         = &Error{Kind: KindTokenExpired}
	ErrClaimMismatch        = &Error{Kind: KindClaimMismatch}
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest}
	ErrExchangeFailed       = &Error{Kind: KindExchangeFailed}
	ErrProfileFetchFailed   = &Error{Kind: KindProfileFetchFailed}
	ErrMissingRequiredClaim = &Error{Kind: KindMissingRequiredClaim}
	ErrDependencyFailed     = &Error{Kind: KindDependencyFailed}
)

// E builds an *Error of the given kind.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
