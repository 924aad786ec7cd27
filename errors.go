package shelfstar

import (
	"fmt"
)

// StageError is returned for failures which abort a run, such as an unreadable
// source or a missing required column. It names the stage and the source which
// failed so the caller can report them.
type StageError struct {
	Stage  string
	Source string
	Err    error
}

// NewStageError wraps err with the failing stage and source.
func NewStageError(stage, source string, err error) *StageError {
	return &StageError{Stage: stage, Source: source, Err: err}
}

func (e *StageError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s (%s): %v", e.Stage, e.Source, e.Err)
}

// Cause returns the underlying error for github.com/pkg/errors.
func (e *StageError) Cause() error { return e.Err }

// Unwrap returns the underlying error for the standard errors package.
func (e *StageError) Unwrap() error { return e.Err }
