package gif

import "fmt"

// RemoteCallError reports a call whose delivery or acknowledgement failed.
// The remote side may or may not have applied it.
type RemoteCallError struct {
	Stage     string
	Operation string
	Cause     error
}

func (e *RemoteCallError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: remote call failed: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("stage %s: %s: remote call failed: %v", e.Stage, e.Operation, e.Cause)
}

func (e *RemoteCallError) Unwrap() error { return e.Cause }

// RejectedError reports a call the remote service refused. Reason is the
// service's own wording.
type RejectedError struct {
	Stage     string
	Operation string
	Reason    string
}

func (e *RejectedError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: rejected: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("stage %s: %s: rejected: %s", e.Stage, e.Operation, e.Reason)
}
