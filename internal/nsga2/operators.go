package nsga2

import (
	"math"
	"slices"

	"golang.org/x/exp/rand"
)

// TournamentSelect runs a binary tournament. Constraint violation decides
// first, then rank, then crowding distance; a full tie goes to a coin flip.
func TournamentSelect(rng *rand.Rand, population []*Individual) *Individual {
	a := population[rng.Intn(len(population))]
	b := population[rng.Intn(len(population))]

	af, bf := a.Feasible(), b.Feasible()
	switch {
	case af && !bf:
		return a
	case bf && !af:
		return b
	case !af && !bf:
		if a.Violation < b.Violation {
			return a
		}
		if b.Violation < a.Violation {
			return b
		}
	default:
		if a.Rank != b.Rank {
			if a.Rank < b.Rank {
				return a
			}
			return b
		}
		if a.Distance != b.Distance {
			if a.Distance > b.Distance {
				return a
			}
			return b
		}
	}
	if rng.Float64() < 0.5 {
		return a
	}
	return b
}

// SBX performs bounded simulated binary crossover with distribution index
// eta. Each variable is crossed with probability 0.5 and the children swap
// positions with probability 0.5.
func SBX(rng *rand.Rand, p1, p2 []float64, bounds []Bounds, eta float64) ([]float64, []float64) {
	c1 := slices.Clone(p1)
	c2 := slices.Clone(p2)

	for i := range p1 {
		if rng.Float64() > 0.5 || math.Abs(p1[i]-p2[i]) <= 1e-14 {
			continue
		}
		y1, y2 := math.Min(p1[i], p2[i]), math.Max(p1[i], p2[i])
		lo, hi := bounds[i].L, bounds[i].H
		u := rng.Float64()

		beta := 1.0 + 2.0*(y1-lo)/(y2-y1)
		child1 := 0.5 * ((y1 + y2) - sbxSpread(u, beta, eta)*(y2-y1))

		beta = 1.0 + 2.0*(hi-y2)/(y2-y1)
		child2 := 0.5 * ((y1 + y2) + sbxSpread(u, beta, eta)*(y2-y1))

		child1 = bounds[i].Clamp(child1)
		child2 = bounds[i].Clamp(child2)
		if rng.Float64() < 0.5 {
			child1, child2 = child2, child1
		}
		c1[i], c2[i] = child1, child2
	}
	return c1, c2
}

func sbxSpread(u, beta, eta float64) float64 {
	alpha := 2.0 - math.Pow(beta, -(eta+1.0))
	if u <= 1.0/alpha {
		return math.Pow(u*alpha, 1.0/(eta+1.0))
	}
	return math.Pow(1.0/(2.0-u*alpha), 1.0/(eta+1.0))
}

// PolynomialMutation perturbs each variable with probability prob using the
// bounded polynomial distribution with index eta. x is modified in place.
func PolynomialMutation(rng *rand.Rand, x []float64, bounds []Bounds, eta, prob float64) {
	power := 1.0 / (eta + 1.0)
	for i := range x {
		if rng.Float64() >= prob {
			continue
		}
		lo, hi := bounds[i].L, bounds[i].H
		span := hi - lo
		if span <= 0 {
			continue
		}
		delta1 := (x[i] - lo) / span
		delta2 := (hi - x[i]) / span
		u := rng.Float64()

		var deltaq float64
		if u <= 0.5 {
			xy := 1.0 - delta1
			val := 2.0*u + (1.0-2.0*u)*math.Pow(xy, eta+1.0)
			deltaq = math.Pow(val, power) - 1.0
		} else {
			xy := 1.0 - delta2
			val := 2.0*(1.0-u) + 2.0*(u-0.5)*math.Pow(xy, eta+1.0)
			deltaq = 1.0 - math.Pow(val, power)
		}
		x[i] = bounds[i].Clamp(x[i] + deltaq*span)
	}
}

// Contains reports whether some individual already carries vars.
func Contains(population []*Individual, vars []float64) bool {
	for _, ind := range population {
		if slices.Equal(ind.Variables, vars) {
			return true
		}
	}
	return false
}

// EliminateDuplicates drops individuals whose decision vector repeats an
// earlier one, keeping first occurrences in order.
func EliminateDuplicates(population []*Individual) []*Individual {
	out := make([]*Individual, 0, len(population))
	for _, ind := range population {
		if !Contains(out, ind.Variables) {
			out = append(out, ind)
		}
	}
	return out
}
