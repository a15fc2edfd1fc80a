package simulation

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/panelopt/panelopt/internal/solver"
	"github.com/panelopt/panelopt/pkg/logger"
)

// Status is the state of the most recent evaluation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Observer is notified after every evaluation attempt.
type Observer interface {
	EvaluationFinished(rec Record)
	EvaluationFailed(evaluation int, err error)
}

// Adapter wraps the external solver. It turns design vectors into request
// records, parses the output channel by declared keys and keeps every
// (vector, result) pair in arrival order.
//
// An Adapter is not safe for concurrent use; evaluations are sequential.
type Adapter struct {
	solver     solver.ExternalSolver
	inputCount int
	keys       []string

	records  []Record
	status   Status
	observer Observer
	tracer   trace.Tracer
	log      *slog.Logger
}

// NewAdapter creates an adapter for vectors of inputCount values whose
// results carry outputKeys.
func NewAdapter(s solver.ExternalSolver, inputCount int, outputKeys []string) *Adapter {
	return &Adapter{
		solver:     s,
		inputCount: inputCount,
		keys:       append([]string(nil), outputKeys...),
		status:     StatusIdle,
		tracer:     otel.Tracer("github.com/panelopt/panelopt/internal/simulation"),
		log:        logger.With("component", "simulation"),
	}
}

// SetObserver registers o for evaluation notifications.
func (a *Adapter) SetObserver(o Observer) {
	a.observer = o
}

// Evaluate runs the external solver once for vector.
func (a *Adapter) Evaluate(ctx context.Context, vector []float64) (Result, error) {
	if len(vector) != a.inputCount {
		return Result{}, fmt.Errorf("%w: got %d values, expected %d", ErrVectorLength, len(vector), a.inputCount)
	}

	seq := len(a.records)
	ctx, span := a.tracer.Start(ctx, "simulation.Evaluate", trace.WithAttributes(attribute.Int("evaluation", seq)))
	defer span.End()

	a.status = StatusRunning
	resp, err := a.solver.Run(ctx, solver.Request{Sequence: seq, Record: solver.FormatRecord(vector)})
	if err != nil {
		return Result{}, a.fail(span, &SimulationError{Evaluation: seq, Stage: "solve", Kind: ErrSimulationFailed, Err: err})
	}

	if len(resp.Lines) < len(a.keys) {
		return Result{}, a.fail(span, &SimulationError{
			Evaluation: seq,
			Stage:      "parse",
			Kind:       ErrMalformedOutput,
			Err:        fmt.Errorf("%d lines for %d keys", len(resp.Lines), len(a.keys)),
		})
	}
	if len(resp.Lines) > len(a.keys) {
		a.log.Debug("ignoring extra output lines", "evaluation", seq, "lines", len(resp.Lines), "keys", len(a.keys))
	}

	values := make([]Value, len(a.keys))
	for i := range a.keys {
		values[i] = ParseValue(resp.Lines[i])
	}
	result := NewResult(a.keys, values)

	rec := Record{
		Sequence: seq,
		Design:   append([]float64(nil), vector...),
		Result:   result,
		Duration: resp.Duration,
		Replayed: resp.Replayed,
	}
	a.records = append(a.records, rec)
	a.status = StatusSucceeded

	span.SetAttributes(attribute.Bool("replayed", resp.Replayed))
	a.log.Debug("evaluation complete", "evaluation", seq, "duration", resp.Duration, "replayed", resp.Replayed)
	if a.observer != nil {
		a.observer.EvaluationFinished(rec)
	}
	return result, nil
}

func (a *Adapter) fail(span trace.Span, err *SimulationError) error {
	a.status = StatusFailed
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Kind.Error())
	a.log.Error("evaluation failed", "evaluation", err.Evaluation, "stage", err.Stage, "error", err)
	if a.observer != nil {
		a.observer.EvaluationFailed(err.Evaluation, err)
	}
	return err
}

// History returns a copy of every successful evaluation in arrival order.
func (a *Adapter) History() []Record {
	return append([]Record(nil), a.records...)
}

// Len returns the number of successful evaluations.
func (a *Adapter) Len() int { return len(a.records) }

// Status returns the state of the most recent evaluation.
func (a *Adapter) Status() Status { return a.status }

// Last returns the most recent record.
func (a *Adapter) Last() (Record, bool) {
	if len(a.records) == 0 {
		return Record{}, false
	}
	return a.records[len(a.records)-1], true
}

// Keys returns the declared output keys.
func (a *Adapter) Keys() []string {
	return append([]string(nil), a.keys...)
}
