package nsga2

import (
	"math"
	"sort"
)

// NonDominatedSort partitions population into fronts under
// constraint-domination and sets each Rank. Every feasible individual lands
// in an earlier front than every infeasible one.
func NonDominatedSort(population []*Individual) [][]*Individual {
	n := len(population)
	if n == 0 {
		return nil
	}
	dominated := make([][]int, n)
	domCount := make([]int, n)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case ConstrainedDominates(population[i], population[j]):
				dominated[i] = append(dominated[i], j)
				domCount[j]++
			case ConstrainedDominates(population[j], population[i]):
				dominated[j] = append(dominated[j], i)
				domCount[i]++
			}
		}
	}

	var fronts [][]*Individual
	var current []int
	for i := 0; i < n; i++ {
		if domCount[i] == 0 {
			current = append(current, i)
		}
	}

	for rank := 0; len(current) > 0; rank++ {
		front := make([]*Individual, len(current))
		var next []int
		for k, idx := range current {
			population[idx].Rank = rank
			front[k] = population[idx]
			for _, d := range dominated[idx] {
				domCount[d]--
				if domCount[d] == 0 {
					next = append(next, d)
				}
			}
		}
		fronts = append(fronts, front)
		sort.Ints(next)
		current = next
	}
	return fronts
}

// CrowdingDistance sets Distance for the members of one front. The front is
// left in its original order.
func CrowdingDistance(front []*Individual) {
	if len(front) <= 2 {
		for _, ind := range front {
			ind.Distance = math.Inf(1)
		}
		return
	}
	for _, ind := range front {
		ind.Distance = 0
	}

	sorted := make([]*Individual, len(front))
	numObjectives := len(front[0].Objectives)
	for m := 0; m < numObjectives; m++ {
		copy(sorted, front)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Objectives[m] < sorted[j].Objectives[m]
		})

		sorted[0].Distance = math.Inf(1)
		sorted[len(sorted)-1].Distance = math.Inf(1)

		objectiveRange := sorted[len(sorted)-1].Objectives[m] - sorted[0].Objectives[m]
		if objectiveRange == 0 {
			continue
		}
		for i := 1; i < len(sorted)-1; i++ {
			sorted[i].Distance += (sorted[i+1].Objectives[m] - sorted[i-1].Objectives[m]) / objectiveRange
		}
	}
}

// Rank sorts pool into fronts and sets crowding distances within each front.
func Rank(pool []*Individual) [][]*Individual {
	fronts := NonDominatedSort(pool)
	for _, front := range fronts {
		CrowdingDistance(front)
	}
	return fronts
}

// Truncate keeps the best n of ranked fronts: whole fronts first, then the
// least crowded members of the front that does not fit.
func Truncate(fronts [][]*Individual, n int) []*Individual {
	next := make([]*Individual, 0, n)
	for _, front := range fronts {
		if len(next)+len(front) <= n {
			next = append(next, front...)
			continue
		}
		rest := append([]*Individual(nil), front...)
		sort.SliceStable(rest, func(i, j int) bool {
			return rest[i].Distance > rest[j].Distance
		})
		next = append(next, rest[:n-len(next)]...)
		break
	}
	return next
}

// Survive is Rank followed by Truncate.
func Survive(pool []*Individual, n int) []*Individual {
	return Truncate(Rank(pool), n)
}
