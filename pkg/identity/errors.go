package identity

import (
	"errors"
	"fmt"
)

// Kind classifies an identity error so callers can branch on the class of
// failure instead of matching message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindCredential
	KindDuplicateAccount
	KindNetwork
	KindTimeout
	KindRateLimit
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCredential:
		return "credential"
	case KindDuplicateAccount:
		return "duplicate_account"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Error is a classified identity failure. Code carries the server's stable
// error tag when one was returned.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: %s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("identity: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// NewError builds a classified error wrapping cause. cause may be nil.
func NewError(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, err: cause}
}

// KindOf returns the Kind of err, or KindUnknown when err is not an
// identity error.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindUnknown
}
