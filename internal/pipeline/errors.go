package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/gifdeploy/internal/gif"
)

// SequenceViolationError reports a stage that would run without the bindings
// an earlier stage should have produced. It is a configuration defect and is
// raised before the stage issues any remote call.
type SequenceViolationError struct {
	Stage   StageID
	Missing []Key
	// Produced is true when the stage itself failed to bind its outputs.
	Produced bool
}

func (e *SequenceViolationError) Error() string {
	keys := make([]string, len(e.Missing))
	for i, k := range e.Missing {
		keys[i] = string(k)
	}
	if e.Produced {
		return fmt.Sprintf("stage %s: completed without producing %s", e.Stage, strings.Join(keys, ", "))
	}
	return fmt.Sprintf("stage %s: missing prerequisite bindings %s", e.Stage, strings.Join(keys, ", "))
}

// OperationError wraps a failure that is neither a remote call failure nor a
// rejection (a bad binding, a cancelled context) with where it happened.
type OperationError struct {
	Stage     StageID
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// tagStage records the stage on the service errors in place, so the caller
// receives the very error the facade returned. Other errors are wrapped.
func tagStage(err error, stage StageID, op string) error {
	var rc *gif.RemoteCallError
	if errors.As(err, &rc) {
		rc.Stage = string(stage)
		return err
	}
	var rj *gif.RejectedError
	if errors.As(err, &rj) {
		rj.Stage = string(stage)
		return err
	}
	var sv *SequenceViolationError
	if errors.As(err, &sv) {
		return err
	}
	return &OperationError{Stage: stage, Operation: op, Err: err}
}
