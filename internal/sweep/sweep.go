// Package sweep runs one-parameter sensitivity studies: a single input value
// is stepped across a range while every other value comes from the seed.
package sweep

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/exp/maps"

	"github.com/panelopt/panelopt/internal/report"
	"github.com/panelopt/panelopt/internal/simulation"
	"github.com/panelopt/panelopt/internal/solver"
	"github.com/panelopt/panelopt/pkg/config"
	"github.com/panelopt/panelopt/pkg/logger"
)

// Point is the outcome of one sweep step.
type Point struct {
	Value  float64
	Stress float64
	Result simulation.Result
}

// Sweep steps the configured parameter through its range.
type Sweep struct {
	cfg    *config.Config
	solver solver.ExternalSolver
}

// New creates a sweep for a validated configuration with a sweep section.
func New(cfg *config.Config) *Sweep {
	return &Sweep{cfg: cfg, solver: solver.NewProcessSolver(cfg)}
}

// WithSolver replaces the external solver.
func (s *Sweep) WithSolver(es solver.ExternalSolver) *Sweep {
	s.solver = es
	return s
}

// Values returns from, from+step, ... up to and including to. Values are
// computed from the index so rounding does not accumulate.
func Values(from, to, step float64) []float64 {
	if step <= 0 || to < from {
		return nil
	}
	n := int(math.Floor((to-from)/step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

// Run evaluates every sweep value and appends a value,stress row per step
// to the sweep output file.
func (s *Sweep) Run(ctx context.Context) ([]Point, error) {
	cfg := s.cfg
	sw := cfg.Sweep
	if sw == nil {
		return nil, fmt.Errorf("no sweep configured")
	}
	log := logger.With("component", "sweep", "parameter", sw.Parameter)
	start := time.Now()

	base, err := solver.LoadSeed(cfg.Path(cfg.Files.Seed))
	if err != nil {
		return nil, err
	}
	if len(base) != len(cfg.Solver.InputKeys) {
		return nil, fmt.Errorf("seed has %d values, solver expects %d", len(base), len(cfg.Solver.InputKeys))
	}
	params := []report.Parameter{
		{Name: "Parameter", Value: sw.Parameter},
		{Name: "From", Value: sw.From},
		{Name: "To", Value: sw.To},
		{Name: "Step", Value: sw.Step},
	}
	overrideNames := maps.Keys(sw.Overrides)
	slices.Sort(overrideNames)
	for _, name := range overrideNames {
		v := sw.Overrides[name]
		base[config.KeyIndex(cfg.Solver.InputKeys, name)] = v
		params = append(params, report.Parameter{Name: "Fixed " + name, Value: v})
	}
	index := config.KeyIndex(cfg.Solver.InputKeys, sw.Parameter)

	infoPath := cfg.Path(sw.Information)
	err = report.WriteInformation(infoPath, report.Information{
		Title:      "Sensitivity Analysis: " + sw.Parameter,
		Start:      start,
		Parameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write information file: %w", err)
	}

	outPath := cfg.Path(sw.Output)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, err
	}

	adapter := simulation.NewAdapter(s.solver, len(base), cfg.Solver.OutputKeys)
	values := Values(sw.From, sw.To, sw.Step)
	log.Info("starting sweep", "from", sw.From, "to", sw.To, "step", sw.Step, "points", len(values))

	points := make([]Point, 0, len(values))
	var runErr error
	for _, v := range values {
		input := append([]float64(nil), base...)
		input[index] = v

		res, err := adapter.Evaluate(ctx, input)
		if err != nil {
			runErr = fmt.Errorf("sweep value %g: %w", v, err)
			break
		}
		stress, err := res.Float(cfg.Problem.StressKey)
		if err != nil {
			runErr = fmt.Errorf("sweep value %g: %w", v, err)
			break
		}
		raw, _ := res.Get(cfg.Problem.StressKey)
		if err := solver.AppendLine(outPath, solver.FormatValue(v)+","+raw.Raw); err != nil {
			runErr = fmt.Errorf("failed to write sweep output: %w", err)
			break
		}
		points = append(points, Point{Value: v, Stress: stress, Result: res})
		log.Info("sweep point", "value", v, "stress", stress)
	}

	outcome := "completed"
	if runErr != nil {
		outcome = "failed: " + runErr.Error()
	}
	if err := report.AppendCompletion(infoPath, start, time.Now(), outcome); err != nil {
		log.Error("failed to complete information file", "error", err)
	}
	if runErr != nil {
		return points, runErr
	}
	log.Info("sweep complete", "points", len(points), "elapsed", time.Since(start))
	return points, nil
}
