package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies provider failures for the retry loop and for callers.
type Kind int

const (
	KindUnavailable Kind = iota
	KindRateLimited
	KindInvalid
	KindTruncated
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate limited"
	case KindInvalid:
		return "invalid response"
	case KindTruncated:
		return "truncated response"
	default:
		return "provider unavailable"
	}
}

// Error is returned by every provider. Content holds the raw model output
// for invalid and truncated responses.
type Error struct {
	Kind       Kind
	RetryAfter time.Duration
	Content    json.RawMessage
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "llm: " + e.Kind.String()
	}
	return fmt.Sprintf("llm: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err carries a provider Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func unavailable(err error) error { return &Error{Kind: KindUnavailable, Err: err} }

func invalid(content json.RawMessage, err error) error {
	return &Error{Kind: KindInvalid, Content: content, Err: err}
}

// statusError maps an SDK error with an HTTP status to a provider Error.
func statusError(err error, status int) error {
	if status == http.StatusTooManyRequests {
		return &Error{Kind: KindRateLimited, Err: err}
	}
	return unavailable(err)
}
