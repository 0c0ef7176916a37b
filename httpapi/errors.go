package httpapi

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout signals the request exceeded its deadline before the
	// backend answered.
	ErrTimeout = errors.New("httpapi: request timed out")
)

// ServerError carries a rejection produced by the backend itself, either a
// non-2xx status or a well-formed envelope with success=false. The message is
// server-supplied verbatim and safe to surface to the user.
type ServerError struct {
	Status  int
	Message string

	// enveloped marks a rejection the backend expressed through a
	// well-formed envelope. Those are deliberate answers, never resubmitted.
	enveloped bool
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("httpapi: server rejected request (status %d)", e.Status)
	}
	return fmt.Sprintf("httpapi: %s (status %d)", e.Message, e.Status)
}

// retryable reports whether the failed attempt may be resubmitted. Backend
// rejections are authoritative and never retried; only transport failures and
// 5xx responses without a decodable envelope are.
func retryable(err error) bool {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status >= 500 && !se.enveloped
	}
	return true
}
