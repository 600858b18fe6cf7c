package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline admission and inference outcomes.
var (
	// ErrRejected means the frame was dropped at admission: either the
	// throttle window had not elapsed or another frame was in flight.
	// Callers should submit the next frame and move on.
	ErrRejected = errors.New("pipeline: frame rejected")

	// ErrShuttingDown means the scheduler is closed.
	ErrShuttingDown = errors.New("pipeline: shutting down")

	// ErrInferenceTimeout means an external inference call exceeded its
	// step timeout.
	ErrInferenceTimeout = errors.New("pipeline: inference timed out")

	// ErrInferenceFailure means an external inference call returned an
	// error.
	ErrInferenceFailure = errors.New("pipeline: inference failed")
)

// StageError attributes a failure to a pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline [%s]: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
