package nsga2

import (
	"math"
	"slices"
)

// Bounds is the closed interval of one decision variable.
type Bounds struct {
	L float64
	H float64
}

// Clamp moves v into b.
func (b Bounds) Clamp(v float64) float64 {
	return math.Max(b.L, math.Min(b.H, v))
}

// Evaluation is what a problem returns for one decision vector. Constraints
// are satisfied when <= 0.
type Evaluation struct {
	Variables   []float64 // optional: the vector actually evaluated, if the problem changed it
	Objectives  []float64
	Constraints []float64
}

// Individual is one member of the population.
type Individual struct {
	Variables   []float64
	Objectives  []float64
	Constraints []float64
	Violation   float64 // sum of positive constraint values
	Evaluation  int     // global evaluation index, -1 if not evaluated

	Rank     int
	Distance float64
}

// NewIndividual wraps an unevaluated decision vector.
func NewIndividual(vars []float64) *Individual {
	return &Individual{Variables: vars, Evaluation: -1}
}

// Feasible reports whether no constraint is violated.
func (ind *Individual) Feasible() bool {
	return ind.Violation <= 0
}

// Clone returns a deep copy.
func (ind *Individual) Clone() *Individual {
	c := *ind
	c.Variables = slices.Clone(ind.Variables)
	c.Objectives = slices.Clone(ind.Objectives)
	c.Constraints = slices.Clone(ind.Constraints)
	return &c
}

func (ind *Individual) setEvaluation(ev Evaluation, index int) {
	if ev.Variables != nil {
		ind.Variables = slices.Clone(ev.Variables)
	}
	ind.Objectives = slices.Clone(ev.Objectives)
	ind.Constraints = slices.Clone(ev.Constraints)
	ind.Violation = TotalViolation(ev.Constraints)
	ind.Evaluation = index
}

// TotalViolation sums the positive parts of constraint values.
func TotalViolation(constraints []float64) float64 {
	v := 0.0
	for _, g := range constraints {
		if g > 0 {
			v += g
		}
	}
	return v
}

// Dominates reports Pareto dominance of a over b for minimisation.
func Dominates(a, b []float64) bool {
	better := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			better = true
		}
	}
	return better
}

// ConstrainedDominates applies constraint-domination: a feasible individual
// beats any infeasible one, two infeasible individuals are compared by total
// violation, two feasible ones by Pareto dominance.
func ConstrainedDominates(a, b *Individual) bool {
	af, bf := a.Feasible(), b.Feasible()
	switch {
	case af && !bf:
		return true
	case !af && bf:
		return false
	case !af && !bf:
		return a.Violation < b.Violation
	default:
		return Dominates(a.Objectives, b.Objectives)
	}
}

// Better orders two individuals for reporting: feasibility, then violation,
// then objectives lexicographically.
func Better(a, b *Individual) bool {
	af, bf := a.Feasible(), b.Feasible()
	if af != bf {
		return af
	}
	if !af && a.Violation != b.Violation {
		return a.Violation < b.Violation
	}
	return slices.Compare(a.Objectives, b.Objectives) < 0
}

// BestOf returns the best individual by Better, or nil for an empty slice.
func BestOf(pop []*Individual) *Individual {
	var best *Individual
	for _, ind := range pop {
		if best == nil || Better(ind, best) {
			best = ind
		}
	}
	return best
}
