package objective

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/panelopt/panelopt/internal/history"
	"github.com/panelopt/panelopt/internal/simulation"
	"github.com/panelopt/panelopt/internal/solver"
	"github.com/panelopt/panelopt/pkg/logger"
)

// Simulator runs one full solver request.
type Simulator interface {
	Evaluate(ctx context.Context, input []float64) (simulation.Result, error)
	Len() int
}

// Evaluation is the outcome of one objective function call.
type Evaluation struct {
	Sequence    int
	Design      []float64 // repaired design vector
	Objectives  []float64
	Constraints []float64
	Stress      float64
	Mass        float64
	WeldLength  float64
	Repaired    bool // the coupled heights were corrected by this call
}

// Feasible reports whether every constraint value is <= 0.
func (e Evaluation) Feasible() bool {
	for _, g := range e.Constraints {
		if g > 0 {
			return false
		}
	}
	return true
}

// Function evaluates raw search vectors. Values of the seed vector beyond the
// design variables (load, mesh sizes, panel dimensions) are sent unchanged
// with every request.
type Function struct {
	problem *Problem
	base    []float64
	sim     Simulator
	sink    history.Sink

	evaluations int
	repairs     int
	onRepair    func(before, after []float64)
	log         *slog.Logger
}

// NewFunction creates an objective function. seed must be a full solver
// request; sink may be nil.
func NewFunction(p *Problem, seed []float64, sim Simulator, sink history.Sink) (*Function, error) {
	if len(seed) != p.InputCount() {
		return nil, fmt.Errorf("seed has %d values, solver expects %d", len(seed), p.InputCount())
	}
	return &Function{
		problem: p,
		base:    append([]float64(nil), seed...),
		sim:     sim,
		sink:    sink,
		log:     logger.With("component", "objective"),
	}, nil
}

// Problem returns the problem definition.
func (f *Function) Problem() *Problem { return f.problem }

// SeedDesign returns the design portion of the seed vector.
func (f *Function) SeedDesign() []float64 {
	return append([]float64(nil), f.base[:f.problem.Dimension()]...)
}

// OnRepair registers a callback for coupled-variable corrections.
func (f *Function) OnRepair(fn func(before, after []float64)) {
	f.onRepair = fn
}

// Evaluations returns the number of successful calls.
func (f *Function) Evaluations() int { return f.evaluations }

// Repairs returns the number of coupled-variable corrections.
func (f *Function) Repairs() int { return f.repairs }

// Input returns the full solver request for a repaired design.
func (f *Function) Input(design []float64) []float64 {
	input := append([]float64(nil), f.base...)
	copy(input, design)
	return input
}

// Repair returns the evaluated form of raw: bounds, integer counts and the
// coupled heights. Coupled corrections are counted and reported to the
// OnRepair callback. Repairing an already repaired design changes nothing.
func (f *Function) Repair(raw []float64) []float64 {
	design, _ := f.repair(raw)
	return design
}

func (f *Function) repair(raw []float64) ([]float64, bool) {
	p := f.problem
	design, coupled := p.Repair(raw)
	if coupled {
		f.repairs++
		f.log.Debug("repaired coupled variables",
			"below", p.Names[p.Below], "raw", raw[p.Below], "repaired", design[p.Below])
		if f.onRepair != nil {
			f.onRepair(raw, design)
		}
	}
	return design, coupled
}

// Evaluate repairs raw, runs the simulation and derives objectives and
// constraints. The outputs are persisted before returning, including the raw
// outputs of a run whose stress or mass is not a number.
func (f *Function) Evaluate(ctx context.Context, raw []float64) (Evaluation, error) {
	p := f.problem
	if len(raw) != p.Dimension() {
		return Evaluation{}, fmt.Errorf("design has %d values, problem has %d variables", len(raw), p.Dimension())
	}

	design, coupled := f.repair(raw)

	input := f.Input(design)
	result, err := f.sim.Evaluate(ctx, input)
	if err != nil {
		return Evaluation{}, err
	}
	seq := f.sim.Len() - 1
	fields := make([]string, 0, result.Len()+1)
	for _, v := range result.Values() {
		fields = append(fields, v.Raw)
	}

	stress, err := result.Float(p.StressKey)
	if err == nil {
		var mass float64
		if mass, err = result.Float(p.MassKey); err == nil {
			return f.finish(seq, design, input, fields, stress, mass, coupled)
		}
	}
	if perr := f.persist(seq, fields, design); perr != nil {
		return Evaluation{}, errors.Join(err, perr)
	}
	return Evaluation{}, err
}

func (f *Function) finish(seq int, design, input []float64, fields []string, stress, mass float64, coupled bool) (Evaluation, error) {
	p := f.problem
	ev := Evaluation{
		Sequence:    seq,
		Design:      design,
		Objectives:  []float64{mass},
		Constraints: []float64{stress - p.StressLimit, design[p.Below] - design[p.Above]},
		Stress:      stress,
		Mass:        mass,
		Repaired:    coupled,
	}
	if p.NumObjectives() == 2 {
		ev.WeldLength = p.weldLength(input)
		ev.Objectives = append(ev.Objectives, ev.WeldLength)
		fields = append(fields, solver.FormatValue(ev.WeldLength))
	}

	if err := f.persist(seq, fields, design); err != nil {
		return Evaluation{}, err
	}
	f.evaluations++

	f.log.Info("evaluated design",
		"evaluation", ev.Sequence, "stress", stress, "mass", mass, "feasible", ev.Feasible())
	return ev, nil
}

func (f *Function) persist(seq int, fields []string, design []float64) error {
	if f.sink == nil {
		return nil
	}
	if err := f.sink.Append(history.Entry{Sequence: seq, Fields: fields, Design: design}); err != nil {
		return fmt.Errorf("persist evaluation %d: %w", seq, err)
	}
	return nil
}
