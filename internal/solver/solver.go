package solver

import (
	"context"
	"errors"
	"time"
)

// ErrProcessFailed reports that the external program did not start, exited
// abnormally, or left no output channel behind.
var ErrProcessFailed = errors.New("solver process failed")

// Request is one evaluation request. Sequence is the zero-based index of the
// evaluation within the run.
type Request struct {
	Sequence int
	Record   string
}

// Response carries the raw lines of the output channel.
type Response struct {
	Lines    []string
	Duration time.Duration
	// Replayed is set when the response came from a recorded evaluation
	// instead of a solver launch.
	Replayed bool
}

// ExternalSolver runs one evaluation synchronously.
type ExternalSolver interface {
	Run(ctx context.Context, req Request) (Response, error)
}

// FuncSolver adapts a function to ExternalSolver.
type FuncSolver func(ctx context.Context, req Request) (Response, error)

// Run calls f(ctx, req).
func (f FuncSolver) Run(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
