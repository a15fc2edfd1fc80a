package simulation

import (
	"errors"
	"fmt"
)

var (
	// ErrSimulationFailed reports that the external solver did not produce a
	// usable result. It is fatal to the run.
	ErrSimulationFailed = errors.New("simulation failed")

	// ErrMalformedOutput reports an output channel with fewer values than
	// declared keys. It is also an ErrSimulationFailed.
	ErrMalformedOutput = fmt.Errorf("%w: malformed output", ErrSimulationFailed)

	// ErrVectorLength is returned when a design vector does not match the
	// configured parameter count.
	ErrVectorLength = errors.New("design vector length mismatch")
)

// SimulationError carries the evaluation that failed and the stage it failed in.
type SimulationError struct {
	Evaluation int
	Stage      string // "solve" or "parse"
	Kind       error
	Err        error
}

func (e *SimulationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("evaluation %d: %s: %v", e.Evaluation, e.Stage, e.Kind)
	}
	return fmt.Sprintf("evaluation %d: %s: %v: %v", e.Evaluation, e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *SimulationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
