package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by a Caller that has already been closed.
var ErrClosed = errors.New("transport: caller is closed")

// Request is a single remote call against the contract at To.
type Request struct {
	To     string            `json:"to"`
	Method string            `json:"method"`
	Params map[string]string `json:"params,omitempty"`
}

// Caller issues remote calls. The returned payload is the raw acknowledgement
// body, which may be empty for calls that produce no values.
type Caller interface {
	Call(ctx context.Context, req Request) (json.RawMessage, error)
	Close() error
}

// Rejection is returned when the backend received the call and refused it on
// business grounds (duplicate name, unauthorized caller, unmet precondition).
// Anything else a Caller returns is a delivery failure.
type Rejection struct {
	Method string
	Reason string
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Method, r.Reason)
}

// IsRejection reports whether err carries a Rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}
