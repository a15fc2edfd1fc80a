// Package report records per-generation progress of a run and writes the
// generations, results and information files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/panelopt/panelopt/internal/nsga2"
	"github.com/panelopt/panelopt/internal/solver"
)

// Generation is the recorded summary of one optimizer generation.
type Generation struct {
	Index          int       `json:"index"`
	Evaluations    int       `json:"evaluations"`
	Best           []float64 `json:"best"`
	BestObjectives []float64 `json:"best_objectives"`
	Feasible       bool      `json:"feasible"`
	Violation      float64   `json:"violation"`
	PopulationSize int       `json:"population_size"`
	FeasibleCount  int       `json:"feasible_count"`
	MeanObjective  float64   `json:"mean_objective"`
	MinObjective   float64   `json:"min_objective"`
}

// FromGeneration summarises an optimizer generation. Statistics are taken
// over the first objective of the feasible members, or of every member when
// none is feasible.
func FromGeneration(g nsga2.Generation) Generation {
	out := Generation{
		Index:          g.Index,
		Evaluations:    g.Evaluations,
		PopulationSize: len(g.Population),
	}
	if g.Best != nil {
		out.Best = append([]float64(nil), g.Best.Variables...)
		out.BestObjectives = append([]float64(nil), g.Best.Objectives...)
		out.Feasible = g.Best.Feasible()
		out.Violation = g.Best.Violation
	}

	var feasible, all []float64
	for _, ind := range g.Population {
		if len(ind.Objectives) == 0 {
			continue
		}
		all = append(all, ind.Objectives[0])
		if ind.Feasible() {
			feasible = append(feasible, ind.Objectives[0])
		}
	}
	out.FeasibleCount = len(feasible)
	sample := feasible
	if len(sample) == 0 {
		sample = all
	}
	if len(sample) > 0 {
		out.MeanObjective = stat.Mean(sample, nil)
		out.MinObjective = floats.Min(sample)
	}
	return out
}

// Report collects generations and appends a gen,evals row to the
// generations file as each one arrives.
type Report struct {
	mu          sync.Mutex
	generations []Generation
	file        *os.File
}

// New truncates the generations file at path and opens it for appending.
// An empty path keeps the report in memory only.
func New(path string) (*Report, error) {
	r := &Report{}
	if path == "" {
		return r, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open generations file: %w", err)
	}
	r.file = f
	return r, nil
}

// Record stores g and appends it to the generations file.
func (r *Report) Record(g Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations = append(r.generations, g)
	if r.file == nil {
		return nil
	}
	if _, err := fmt.Fprintf(r.file, "%d,%d\n", g.Index, g.Evaluations); err != nil {
		return fmt.Errorf("write generation %d: %w", g.Index, err)
	}
	return nil
}

// Generations returns a copy of the recorded generations.
func (r *Report) Generations() []Generation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Generation(nil), r.generations...)
}

// Last returns the most recent generation.
func (r *Report) Last() (Generation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.generations) == 0 {
		return Generation{}, false
	}
	return r.generations[len(r.generations)-1], true
}

// WriteResults writes the best design vector of every generation, one per line.
func (r *Report) WriteResults(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for _, g := range r.generations {
		b.WriteString(solver.FormatRecord(g.Best))
		b.WriteByte('\n')
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Close closes the generations file.
func (r *Report) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// GenerationRow is one line of a generations file.
type GenerationRow struct {
	Index       int
	Evaluations int
}

// ReadGenerations parses a generations file.
func ReadGenerations(path string) ([]GenerationRow, error) {
	lines, err := solver.ReadLines(path)
	if err != nil {
		return nil, err
	}
	rows := make([]GenerationRow, 0, len(lines))
	for i, line := range lines {
		fields := solver.SplitRecord(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s line %d: expected gen,evals", path, i+1)
		}
		gen, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		evals, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		rows = append(rows, GenerationRow{Index: gen, Evaluations: evals})
	}
	return rows, nil
}
