package llm

import (
	"errors"
	"fmt"
	"net/http"

	"call-analysis-go/internal/extractor"
)

type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindRateLimit  ErrorKind = "rate_limit"
	KindServer     ErrorKind = "server"
	KindClient     ErrorKind = "client"
	KindParse      ErrorKind = "parse"
	KindValidation ErrorKind = "validation"
)

// ErrEmptyContent is reported when a 200 reply carries no message text.
var ErrEmptyContent = errors.New("model returned empty content")

// CallError is one failed model call, classified.
type CallError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *CallError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("llm %s error: status %d: %s", e.Kind, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("llm %s error: status %d: %v", e.Kind, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("llm %s error: %v", e.Kind, e.Err)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

// ExhaustedError wraps the last failure once a retry budget is spent.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// KindOf classifies err. ok is false for errors outside the taxonomy.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	var pe *extractor.ParseError
	if errors.As(err, &pe) {
		return KindParse, true
	}
	return "", false
}

// IsTransportRetryable is the outer-loop predicate: every HTTP-classified or
// network failure is retried.
func IsTransportRetryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindTransport, KindRateLimit, KindServer, KindClient:
		return true
	}
	return false
}

// IsContentRetryable is the inner-loop predicate: undecodable or empty replies
// earn a fresh sample.
func IsContentRetryable(err error) bool {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return false
	}
	kind, ok := KindOf(err)
	return ok && (kind == KindParse || kind == KindValidation)
}
