// Package nsga2 implements the NSGA-II evolutionary search with
// constraint-domination, bounded SBX crossover and polynomial mutation.
//
// Evaluations are strictly sequential. The first failed evaluation ends the
// run; dominance ranking needs every candidate of a generation.
package nsga2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/rand"

	"github.com/panelopt/panelopt/pkg/logger"
)

// Problem is a bounded, constrained minimisation problem.
type Problem interface {
	Bounds() []Bounds
	NumObjectives() int
	Evaluate(ctx context.Context, x []float64) (Evaluation, error)
}

// Repairer is implemented by problems that move vectors onto valid designs.
// Repaired vectors are what the optimizer stores and compares for duplicates.
type Repairer interface {
	Repair(x []float64) []float64
}

// Config holds NSGA-II parameters.
type Config struct {
	PopulationSize       int
	Offspring            int
	Generations          int // including the initial generation
	CrossoverProbability float64
	CrossoverEta         float64
	MutationEta          float64
	MutationProbability  float64 // per variable; 0 means 1/n
	EliminateDuplicates  bool
	Seed                 uint64
	// Initial vectors are placed in the first population before random sampling.
	Initial [][]float64
}

// State is the position of the optimizer in its generation loop.
type State int

const (
	StateInitialized State = iota
	StateEvaluating
	StateRanked
	StateSelected
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateEvaluating:
		return "evaluating"
	case StateRanked:
		return "ranked"
	case StateSelected:
		return "selected"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Generation is the summary handed to observers after survival selection.
type Generation struct {
	Index       int
	Evaluations int // cumulative
	Evaluated   int // in this generation
	Population  []*Individual
	Best        *Individual
}

// Result is the outcome of a completed run.
type Result struct {
	Population  []*Individual
	Front       []*Individual // first non-dominated front of the final population
	Best        *Individual
	Generations int
	Evaluations int
}

// CandidateError identifies the candidate whose evaluation ended the run.
type CandidateError struct {
	Generation int
	Candidate  int
	Evaluation int
	Err        error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("generation %d candidate %d (evaluation %d): %v", e.Generation, e.Candidate, e.Evaluation, e.Err)
}

func (e *CandidateError) Unwrap() error { return e.Err }

// ErrObjectiveCount is returned when a problem answers with the wrong number
// of objectives.
var ErrObjectiveCount = errors.New("unexpected number of objectives")

const maxMatingRounds = 100

// Optimizer runs NSGA-II on a problem. It is single use.
type Optimizer struct {
	cfg      Config
	problem  Problem
	bounds   []Bounds
	repairer Repairer
	rng      *rand.Rand

	state       State
	evaluations int
	observer    func(Generation)
	onState     func(State)

	tracer trace.Tracer
	log    *slog.Logger
}

// New validates cfg against p and creates an optimizer.
func New(cfg Config, p Problem) (*Optimizer, error) {
	bounds := p.Bounds()
	if len(bounds) == 0 {
		return nil, fmt.Errorf("problem has no variables")
	}
	for i, b := range bounds {
		if b.L > b.H {
			return nil, fmt.Errorf("variable %d: lower bound %g above upper bound %g", i, b.L, b.H)
		}
	}
	if cfg.PopulationSize < 2 {
		return nil, fmt.Errorf("population size must be at least 2, got %d", cfg.PopulationSize)
	}
	if cfg.Offspring < 1 {
		return nil, fmt.Errorf("offspring must be positive, got %d", cfg.Offspring)
	}
	if cfg.Generations < 1 {
		return nil, fmt.Errorf("generations must be positive, got %d", cfg.Generations)
	}
	for i, x := range cfg.Initial {
		if len(x) != len(bounds) {
			return nil, fmt.Errorf("initial vector %d has %d values, problem has %d variables", i, len(x), len(bounds))
		}
	}
	if cfg.MutationProbability == 0 {
		cfg.MutationProbability = 1.0 / float64(len(bounds))
	}

	o := &Optimizer{
		cfg:     cfg,
		problem: p,
		bounds:  bounds,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		state:   StateInitialized,
		tracer:  otel.Tracer("github.com/panelopt/panelopt/internal/nsga2"),
		log:     logger.With("component", "nsga2"),
	}
	if r, ok := p.(Repairer); ok {
		o.repairer = r
	}
	return o, nil
}

// OnGeneration registers fn to be called after every generation.
func (o *Optimizer) OnGeneration(fn func(Generation)) {
	o.observer = fn
}

// OnStateChange registers fn to be called on every state transition.
func (o *Optimizer) OnStateChange(fn func(State)) {
	o.onState = fn
}

// State returns the current state.
func (o *Optimizer) State() State { return o.state }

// Evaluations returns the number of completed evaluations.
func (o *Optimizer) Evaluations() int { return o.evaluations }

func (o *Optimizer) setState(s State) {
	o.state = s
	if o.onState != nil {
		o.onState(s)
	}
}

// Run executes the configured number of generations.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	o.setState(StateInitialized)
	pop := o.initialPopulation()
	o.log.Info("starting NSGA-II",
		"population", o.cfg.PopulationSize, "offspring", o.cfg.Offspring,
		"generations", o.cfg.Generations, "seed", o.cfg.Seed)

	var err error
	if pop, err = o.step(ctx, 0, nil, pop); err != nil {
		return nil, err
	}
	for gen := 1; gen < o.cfg.Generations; gen++ {
		offspring := o.mate(pop)
		if pop, err = o.step(ctx, gen, pop, offspring); err != nil {
			return nil, err
		}
	}

	o.setState(StateTerminated)
	var front []*Individual
	if fronts := NonDominatedSort(slices.Clone(pop)); len(fronts) > 0 {
		front = fronts[0]
	}
	return &Result{
		Population:  pop,
		Front:       front,
		Best:        BestOf(pop),
		Generations: o.cfg.Generations,
		Evaluations: o.evaluations,
	}, nil
}

// step evaluates the new candidates, ranks them together with the current
// population and keeps the survivors.
func (o *Optimizer) step(ctx context.Context, gen int, pop, candidates []*Individual) ([]*Individual, error) {
	ctx, span := o.tracer.Start(ctx, "nsga2.Generation", trace.WithAttributes(
		attribute.Int("generation", gen),
		attribute.Int("candidates", len(candidates)),
	))
	defer span.End()

	o.setState(StateEvaluating)
	for i, ind := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, &CandidateError{Generation: gen, Candidate: i, Evaluation: o.evaluations, Err: err}
		}
		ev, err := o.problem.Evaluate(ctx, ind.Variables)
		if err != nil {
			span.RecordError(err)
			return nil, &CandidateError{Generation: gen, Candidate: i, Evaluation: o.evaluations, Err: err}
		}
		if len(ev.Objectives) != o.problem.NumObjectives() {
			return nil, &CandidateError{Generation: gen, Candidate: i, Evaluation: o.evaluations,
				Err: fmt.Errorf("%w: got %d, want %d", ErrObjectiveCount, len(ev.Objectives), o.problem.NumObjectives())}
		}
		ind.setEvaluation(ev, o.evaluations)
		o.evaluations++
	}

	pool := append(slices.Clone(pop), candidates...)
	if o.cfg.EliminateDuplicates {
		// Evaluation may move a candidate onto a design already in the pool.
		n := len(pool)
		pool = EliminateDuplicates(pool)
		if n > len(pool) {
			o.log.Debug("dropped duplicate designs before survival", "generation", gen, "dropped", n-len(pool))
		}
	}
	fronts := Rank(pool)
	o.setState(StateRanked)

	survivors := Truncate(fronts, o.cfg.PopulationSize)
	o.setState(StateSelected)

	best := BestOf(survivors)
	if best != nil {
		o.log.Info("generation complete",
			"generation", gen, "evaluations", o.evaluations,
			"best", best.Objectives, "feasible", best.Feasible(), "fronts", len(fronts))
	}
	if o.observer != nil {
		o.observer(Generation{
			Index:       gen,
			Evaluations: o.evaluations,
			Evaluated:   len(candidates),
			Population:  survivors,
			Best:        best,
		})
	}
	return survivors, nil
}

func (o *Optimizer) initialPopulation() []*Individual {
	pop := make([]*Individual, 0, o.cfg.PopulationSize)
	add := func(x []float64) {
		if len(pop) >= o.cfg.PopulationSize {
			return
		}
		x = o.prepare(x)
		if o.cfg.EliminateDuplicates && Contains(pop, x) {
			return
		}
		pop = append(pop, NewIndividual(x))
	}

	for _, x := range o.cfg.Initial {
		add(slices.Clone(x))
	}
	for round := 0; len(pop) < o.cfg.PopulationSize && round < maxMatingRounds*o.cfg.PopulationSize; round++ {
		add(o.sample())
	}
	if len(pop) < o.cfg.PopulationSize {
		o.log.Warn("could not sample a full population of unique designs", "size", len(pop))
	}
	return pop
}

func (o *Optimizer) sample() []float64 {
	x := make([]float64, len(o.bounds))
	for i, b := range o.bounds {
		x[i] = b.L + o.rng.Float64()*(b.H-b.L)
	}
	return x
}

// mate produces up to Offspring new unique candidates from pop.
func (o *Optimizer) mate(pop []*Individual) []*Individual {
	offspring := make([]*Individual, 0, o.cfg.Offspring)
	for round := 0; len(offspring) < o.cfg.Offspring && round < maxMatingRounds*o.cfg.Offspring; round++ {
		p1 := TournamentSelect(o.rng, pop)
		p2 := TournamentSelect(o.rng, pop)

		c1, c2 := slices.Clone(p1.Variables), slices.Clone(p2.Variables)
		if o.rng.Float64() < o.cfg.CrossoverProbability {
			c1, c2 = SBX(o.rng, p1.Variables, p2.Variables, o.bounds, o.cfg.CrossoverEta)
		}
		for _, c := range [][]float64{c1, c2} {
			if len(offspring) >= o.cfg.Offspring {
				break
			}
			PolynomialMutation(o.rng, c, o.bounds, o.cfg.MutationEta, o.cfg.MutationProbability)
			c = o.prepare(c)
			if o.cfg.EliminateDuplicates && (Contains(pop, c) || Contains(offspring, c)) {
				continue
			}
			offspring = append(offspring, NewIndividual(c))
		}
	}
	if len(offspring) < o.cfg.Offspring {
		o.log.Warn("mating produced fewer unique offspring than requested",
			"requested", o.cfg.Offspring, "produced", len(offspring))
	}
	return offspring
}

// prepare clamps x to the bounds and applies the problem's repair.
func (o *Optimizer) prepare(x []float64) []float64 {
	for i, b := range o.bounds {
		x[i] = b.Clamp(x[i])
	}
	if o.repairer != nil {
		x = o.repairer.Repair(x)
	}
	return x
}
