package nsga2

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/rand"
)

// funcProblem adapts a function to Problem.
type funcProblem struct {
	bounds []Bounds
	nobj   int
	eval   func(x []float64) (Evaluation, error)
}

func (p *funcProblem) Bounds() []Bounds   { return p.bounds }
func (p *funcProblem) NumObjectives() int { return p.nobj }
func (p *funcProblem) Evaluate(_ context.Context, x []float64) (Evaluation, error) {
	return p.eval(x)
}

type roundingProblem struct {
	funcProblem
}

func (p *roundingProblem) Repair(x []float64) []float64 {
	y := append([]float64(nil), x...)
	y[0] = math.Round(y[0])
	return y
}

// constrainedSquare minimises x^2 subject to x >= 1.
func constrainedSquare() *funcProblem {
	return &funcProblem{
		bounds: []Bounds{{L: -5, H: 5}},
		nobj:   1,
		eval: func(x []float64) (Evaluation, error) {
			return Evaluation{
				Objectives:  []float64{x[0] * x[0]},
				Constraints: []float64{1 - x[0]},
			}, nil
		},
	}
}

// schaffer is the two objective problem f1 = x^2, f2 = (x-2)^2.
func schaffer() *funcProblem {
	return &funcProblem{
		bounds: []Bounds{{L: -10, H: 10}},
		nobj:   2,
		eval: func(x []float64) (Evaluation, error) {
			return Evaluation{Objectives: []float64{x[0] * x[0], (x[0] - 2) * (x[0] - 2)}}, nil
		},
	}
}

func testConfig() Config {
	return Config{
		PopulationSize:       20,
		Offspring:            8,
		Generations:          30,
		CrossoverProbability: 0.9,
		CrossoverEta:         15,
		MutationEta:          20,
		EliminateDuplicates:  true,
		Seed:                 42,
	}
}

func TestConstrainedDominates(t *testing.T) {
	feasible := &Individual{Objectives: []float64{1e9}}
	infeasible := &Individual{Objectives: []float64{1}, Constraints: []float64{2.5e7}, Violation: 2.5e7}
	lessInfeasible := &Individual{Objectives: []float64{100}, Constraints: []float64{10}, Violation: 10}

	tests := []struct {
		name string
		a, b *Individual
		want bool
	}{
		{"feasible beats infeasible regardless of objective", feasible, infeasible, true},
		{"infeasible never beats feasible", infeasible, feasible, false},
		{"smaller violation wins", lessInfeasible, infeasible, true},
		{"larger violation loses", infeasible, lessInfeasible, false},
		{"pareto among feasible", &Individual{Objectives: []float64{1, 1}}, &Individual{Objectives: []float64{1, 2}}, true},
		{"incomparable feasible", &Individual{Objectives: []float64{1, 3}}, &Individual{Objectives: []float64{2, 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConstrainedDominates(tt.a, tt.b); got != tt.want {
				t.Errorf("ConstrainedDominates = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNonDominatedSortFeasibleFirst(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		pop := make([]*Individual, 30)
		for i := range pop {
			g := []float64{rng.Float64()*2 - 1, rng.Float64()*2 - 1.5}
			pop[i] = &Individual{
				Objectives:  []float64{rng.Float64() * 100, rng.Float64() * 100},
				Constraints: g,
				Violation:   TotalViolation(g),
			}
		}
		NonDominatedSort(pop)

		for _, a := range pop {
			for _, b := range pop {
				if a.Feasible() && !b.Feasible() && a.Rank >= b.Rank {
					t.Fatalf("feasible rank %d not ahead of infeasible rank %d", a.Rank, b.Rank)
				}
			}
		}
	}
}

func TestNonDominatedSortFronts(t *testing.T) {
	pop := []*Individual{
		{Objectives: []float64{1, 4}},
		{Objectives: []float64{2, 2}},
		{Objectives: []float64{4, 1}},
		{Objectives: []float64{3, 3}},
		{Objectives: []float64{5, 5}},
	}
	fronts := NonDominatedSort(pop)

	var ranks []int
	for _, ind := range pop {
		ranks = append(ranks, ind.Rank)
	}
	if diff := cmp.Diff([]int{0, 0, 0, 1, 2}, ranks); diff != "" {
		t.Errorf("ranks mismatch (-want +got):\n%s", diff)
	}
	if len(fronts) != 3 {
		t.Errorf("expected 3 fronts, got %d", len(fronts))
	}
}

func TestCrowdingDistance(t *testing.T) {
	front := []*Individual{
		{Objectives: []float64{0, 4}},
		{Objectives: []float64{1, 2}},
		{Objectives: []float64{2, 1}},
		{Objectives: []float64{4, 0}},
	}
	CrowdingDistance(front)

	if !math.IsInf(front[0].Distance, 1) || !math.IsInf(front[3].Distance, 1) {
		t.Errorf("boundary points must have infinite distance: %v %v", front[0].Distance, front[3].Distance)
	}
	// (2-0)/4 + (4-1)/4 and (4-1)/4 + (2-0)/4
	if math.Abs(front[1].Distance-1.25) > 1e-12 || math.Abs(front[2].Distance-1.25) > 1e-12 {
		t.Errorf("interior distances = %v, %v", front[1].Distance, front[2].Distance)
	}
}

func TestTruncateKeepsLeastCrowded(t *testing.T) {
	pool := []*Individual{
		{Objectives: []float64{0, 4}},
		{Objectives: []float64{1, 2.9}},
		{Objectives: []float64{1.1, 2.8}},
		{Objectives: []float64{4, 0}},
	}
	survivors := Survive(pool, 3)
	if len(survivors) != 3 {
		t.Fatalf("expected 3 survivors, got %d", len(survivors))
	}
	for _, s := range survivors {
		if s == pool[1] {
			t.Errorf("the most crowded interior point should have been dropped")
		}
	}
}

func TestOperatorsStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	bounds := []Bounds{{L: 2, H: 9}, {L: 0.005, H: 0.075}, {L: 0.05, H: 1}}

	for n := 0; n < 5000; n++ {
		p1 := []float64{2 + rng.Float64()*7, 0.005 + rng.Float64()*0.07, 0.05 + rng.Float64()*0.95}
		p2 := []float64{2 + rng.Float64()*7, 0.005 + rng.Float64()*0.07, 0.05 + rng.Float64()*0.95}
		c1, c2 := SBX(rng, p1, p2, bounds, 40)
		PolynomialMutation(rng, c1, bounds, 140, 1)
		PolynomialMutation(rng, c2, bounds, 5, 1)
		for _, c := range [][]float64{c1, c2} {
			for i, v := range c {
				if v < bounds[i].L || v > bounds[i].H || math.IsNaN(v) {
					t.Fatalf("variable %d = %g escaped [%g, %g]", i, v, bounds[i].L, bounds[i].H)
				}
			}
		}
	}
}

func TestSBXIdenticalParents(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := []float64{1, 2, 3}
	bounds := []Bounds{{L: 0, H: 5}, {L: 0, H: 5}, {L: 0, H: 5}}
	c1, c2 := SBX(rng, p, p, bounds, 15)
	if diff := cmp.Diff(p, c1); diff != "" {
		t.Errorf("child 1 differs from identical parents:\n%s", diff)
	}
	if diff := cmp.Diff(p, c2); diff != "" {
		t.Errorf("child 2 differs from identical parents:\n%s", diff)
	}
}

func TestTournamentSelectPrefersBetter(t *testing.T) {
	tests := []struct {
		name string
		a, b *Individual
	}{
		{
			name: "feasible beats infeasible",
			a:    &Individual{Constraints: []float64{-1}, Rank: 3},
			b:    &Individual{Constraints: []float64{2}, Violation: 2},
		},
		{
			name: "smaller violation",
			a:    &Individual{Constraints: []float64{1}, Violation: 1},
			b:    &Individual{Constraints: []float64{4}, Violation: 4},
		},
		{
			name: "lower rank",
			a:    &Individual{Rank: 0, Distance: 0.1},
			b:    &Individual{Rank: 1, Distance: math.Inf(1)},
		},
		{
			name: "larger crowding distance",
			a:    &Individual{Rank: 2, Distance: 3},
			b:    &Individual{Rank: 2, Distance: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(5))
			pop := []*Individual{tt.a, tt.b}
			wins := 0
			const trials = 4000
			for i := 0; i < trials; i++ {
				if TournamentSelect(rng, pop) == tt.a {
					wins++
				}
			}
			// a wins every draw it takes part in: 3 of the 4 ordered pairs.
			share := float64(wins) / trials
			if share < 0.7 || share > 0.8 {
				t.Errorf("better individual won %.3f of tournaments, want about 0.75", share)
			}
		})
	}
}

func TestEliminateDuplicates(t *testing.T) {
	a := NewIndividual([]float64{1, 2})
	b := NewIndividual([]float64{1, 2})
	c := NewIndividual([]float64{2, 1})
	got := EliminateDuplicates([]*Individual{a, b, c})
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("unexpected result %v", got)
	}
}

func TestRunEvaluationBudget(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 6
	cfg.Offspring = 2
	cfg.Generations = 4

	o, err := New(cfg, schaffer())
	if err != nil {
		t.Fatal(err)
	}
	var gens, evals []int
	o.OnGeneration(func(g Generation) {
		gens = append(gens, g.Index)
		evals = append(evals, g.Evaluations)
		if len(g.Population) != cfg.PopulationSize {
			t.Errorf("generation %d population size %d", g.Index, len(g.Population))
		}
	})
	var states []State
	o.OnStateChange(func(s State) { states = append(states, s) })

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3}, gens); diff != "" {
		t.Errorf("generations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{6, 8, 10, 12}, evals); diff != "" {
		t.Errorf("evaluation counts mismatch (-want +got):\n%s", diff)
	}
	if res.Evaluations != 12 || o.State() != StateTerminated {
		t.Errorf("result evaluations %d, state %s", res.Evaluations, o.State())
	}
	if states[0] != StateInitialized || states[len(states)-1] != StateTerminated {
		t.Errorf("unexpected state sequence %v", states)
	}
	for _, ind := range res.Front {
		if ind.Rank != 0 {
			t.Errorf("front member with rank %d", ind.Rank)
		}
	}
}

func TestRunConvergesUnderConstraint(t *testing.T) {
	o, err := New(testConfig(), constrainedSquare())
	if err != nil {
		t.Fatal(err)
	}
	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Best.Feasible() {
		t.Fatalf("best individual infeasible: %+v", res.Best)
	}
	if math.Abs(res.Best.Variables[0]-1) > 0.15 {
		t.Errorf("best x = %g, want about 1", res.Best.Variables[0])
	}
}

func TestRunDeterministicWithSeed(t *testing.T) {
	run := func() []float64 {
		o, err := New(testConfig(), constrainedSquare())
		if err != nil {
			t.Fatal(err)
		}
		var best []float64
		o.OnGeneration(func(g Generation) { best = append(best, g.Best.Objectives[0]) })
		if _, err := o.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return best
	}

	first, second := run(), run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same seed gave different generation bests (-first +second):\n%s", diff)
	}
}

func TestRunAbortsOnEvaluationFailure(t *testing.T) {
	errSolver := errors.New("solver crashed")
	calls := 0
	p := schaffer()
	inner := p.eval
	p.eval = func(x []float64) (Evaluation, error) {
		calls++
		if calls == 23 {
			return Evaluation{}, errSolver
		}
		return inner(x)
	}

	o, err := New(testConfig(), p)
	if err != nil {
		t.Fatal(err)
	}
	_, err = o.Run(context.Background())
	if !errors.Is(err, errSolver) {
		t.Fatalf("expected the solver error, got %v", err)
	}
	var cerr *CandidateError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CandidateError, got %T", err)
	}
	// 20 initial evaluations, then the third candidate of generation 1.
	if cerr.Generation != 1 || cerr.Candidate != 2 || cerr.Evaluation != 22 {
		t.Errorf("unexpected failure context %+v", cerr)
	}
	if calls != 23 {
		t.Errorf("evaluations continued after the failure: %d calls", calls)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, err := New(testConfig(), schaffer())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunStoresRepairedVectors(t *testing.T) {
	p := &roundingProblem{funcProblem{
		bounds: []Bounds{{L: 0, H: 10}, {L: -1, H: 1}},
		nobj:   1,
	}}
	p.eval = func(x []float64) (Evaluation, error) {
		if x[0] != math.Round(x[0]) {
			return Evaluation{}, errors.New("unrepaired vector evaluated")
		}
		return Evaluation{Objectives: []float64{x[0] + x[1]*x[1]}}, nil
	}

	cfg := testConfig()
	cfg.Generations = 5
	o, err := New(cfg, p)
	if err != nil {
		t.Fatal(err)
	}
	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, ind := range res.Population {
		if ind.Variables[0] != math.Round(ind.Variables[0]) {
			t.Errorf("stored vector not repaired: %v", ind.Variables)
		}
	}
}

// couplingProblem pulls x[1] under x[0] during evaluation and reports the
// corrected vector, so children often land on a design already evaluated.
func couplingProblem() *funcProblem {
	return &funcProblem{
		bounds: []Bounds{{L: 0, H: 1}, {L: 0, H: 1}},
		nobj:   1,
		eval: func(x []float64) (Evaluation, error) {
			y := slices.Clone(x)
			if y[1] >= y[0] {
				y[1] = math.Max(y[0]-1e-4, 0)
			}
			return Evaluation{
				Variables:  y,
				Objectives: []float64{(y[0]-0.5)*(y[0]-0.5) - y[1]},
			}, nil
		},
	}
}

func TestRunSurvivorsAreUnique(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 10
	cfg.Offspring = 4
	cfg.Generations = 60
	cfg.MutationEta = 140
	o, err := New(cfg, couplingProblem())
	if err != nil {
		t.Fatal(err)
	}
	o.OnGeneration(func(g Generation) {
		for i, a := range g.Population {
			for _, b := range g.Population[i+1:] {
				if slices.Equal(a.Variables, b.Variables) {
					t.Errorf("generation %d keeps duplicate design %v", g.Index, a.Variables)
				}
			}
		}
	})
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Initial = [][]float64{{1, 2}}
	if _, err := New(cfg, schaffer()); err == nil {
		t.Error("expected error for an initial vector of the wrong length")
	}
	cfg = testConfig()
	cfg.PopulationSize = 1
	if _, err := New(cfg, schaffer()); err == nil {
		t.Error("expected error for population size 1")
	}
}
