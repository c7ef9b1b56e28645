package answer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies answer-generation failures.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindNetwork   ErrorKind = "network"
	KindMalformed ErrorKind = "malformed"
	KindCanceled  ErrorKind = "canceled"
	KindUnknown   ErrorKind = "unknown"
)

// GenerationError is the typed failure every backend reports.
type GenerationError struct {
	Kind ErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is matches any GenerationError of the same kind, so callers can compare
// against ErrAuth, ErrRateLimit and friends.
func (e *GenerationError) Is(target error) bool {
	var t *GenerationError
	if errors.As(target, &t) {
		return t.Kind == e.Kind && t.Err == nil
	}
	return false
}

var (
	ErrAuth      = &GenerationError{Kind: KindAuth}
	ErrRateLimit = &GenerationError{Kind: KindRateLimit}
	ErrNetwork   = &GenerationError{Kind: KindNetwork}
	ErrMalformed = &GenerationError{Kind: KindMalformed}
	ErrCanceled  = &GenerationError{Kind: KindCanceled}
)

// NewError wraps err with kind. A nil err yields nil.
func NewError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &GenerationError{Kind: kind, Err: err}
}

// KindForStatus maps an HTTP status from a provider to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindNetwork
	default:
		return KindUnknown
	}
}

// Classify makes sure err is a *GenerationError. Errors already typed pass
// through; cancellation becomes KindCanceled; timeouts and anything else are
// treated as network failures.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return &GenerationError{Kind: KindCanceled, Err: err}
	}
	return &GenerationError{Kind: KindNetwork, Err: err}
}

// KindOf returns the kind of a classified error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}
