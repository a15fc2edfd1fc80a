package improvement

import (
	"context"

	"github.com/panelopt/panelopt/internal/nsga2"
	"github.com/panelopt/panelopt/internal/objective"
)

// searchProblem exposes the panel objective function to NSGA-II.
//
// Candidates are fully repaired before the optimizer compares them, so a
// child that repairs back onto an existing design is rejected as a duplicate
// before it costs a solver run.
type searchProblem struct {
	fn     *objective.Function
	bounds []nsga2.Bounds
	last   map[int]objective.Evaluation
}

func newSearchProblem(fn *objective.Function) *searchProblem {
	p := fn.Problem()
	bounds := make([]nsga2.Bounds, p.Dimension())
	for i := range bounds {
		bounds[i] = nsga2.Bounds{L: p.Lower[i], H: p.Upper[i]}
	}
	return &searchProblem{fn: fn, bounds: bounds, last: make(map[int]objective.Evaluation)}
}

func (s *searchProblem) Bounds() []nsga2.Bounds { return s.bounds }
func (s *searchProblem) NumObjectives() int     { return s.fn.Problem().NumObjectives() }

func (s *searchProblem) Repair(x []float64) []float64 {
	return s.fn.Repair(x)
}

func (s *searchProblem) Evaluate(ctx context.Context, x []float64) (nsga2.Evaluation, error) {
	ev, err := s.fn.Evaluate(ctx, x)
	if err != nil {
		return nsga2.Evaluation{}, err
	}
	s.last[ev.Sequence] = ev
	return nsga2.Evaluation{
		Variables:   ev.Design,
		Objectives:  ev.Objectives,
		Constraints: ev.Constraints,
	}, nil
}

// evaluation returns the objective function result behind an individual.
func (s *searchProblem) evaluation(ind *nsga2.Individual) (objective.Evaluation, bool) {
	if ind == nil {
		return objective.Evaluation{}, false
	}
	ev, ok := s.last[ind.Evaluation]
	return ev, ok
}
