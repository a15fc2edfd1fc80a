// Package improvement runs a complete panel optimization: it wires the
// solver, simulation adapter, history log and objective function into the
// NSGA-II optimizer and records progress to the report files, the run store
// and the metrics registry.
package improvement

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/panelopt/panelopt/internal/history"
	"github.com/panelopt/panelopt/internal/metrics"
	"github.com/panelopt/panelopt/internal/monitor"
	"github.com/panelopt/panelopt/internal/nsga2"
	"github.com/panelopt/panelopt/internal/objective"
	"github.com/panelopt/panelopt/internal/report"
	"github.com/panelopt/panelopt/internal/simulation"
	"github.com/panelopt/panelopt/internal/solver"
	"github.com/panelopt/panelopt/pkg/config"
	"github.com/panelopt/panelopt/pkg/logger"
	"github.com/panelopt/panelopt/pkg/utils"
)

// Orchestrator manages one optimization run
type Orchestrator struct {
	cfg     *config.Config
	solver  solver.ExternalSolver
	store   *monitor.RunStore
	metrics *metrics.Collector
	runID   string
}

// ExperimentResult contains the outcome of an optimization run
type ExperimentResult struct {
	RunID          string
	Seed           uint64
	Best           *nsga2.Individual
	BestEvaluation objective.Evaluation
	Front          []*nsga2.Individual
	Generations    int
	Evaluations    int
	Repairs        int
	Replayed       int64
	Duration       time.Duration
}

// NewOrchestrator creates an orchestrator for a validated configuration.
// The external solver defaults to the configured process.
func NewOrchestrator(cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		solver: solver.NewProcessSolver(cfg),
		runID:  resolveRunID(cfg),
	}
}

// resolveRunID picks the configured run id, the id of the run being resumed,
// or a fresh one.
func resolveRunID(cfg *config.Config) string {
	if cfg.History.RunID != "" {
		return cfg.History.RunID
	}
	if cfg.History.Resume {
		id, err := report.ReadRunID(cfg.Path(cfg.Files.Information))
		if err == nil && id != "" {
			return id
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("cannot read previous run id", "error", err)
		}
	}
	return utils.GenerateRunID()
}

// WithSolver replaces the external solver
func (o *Orchestrator) WithSolver(s solver.ExternalSolver) *Orchestrator {
	o.solver = s
	return o
}

// WithRunStore publishes progress to store
func (o *Orchestrator) WithRunStore(store *monitor.RunStore) *Orchestrator {
	o.store = store
	return o
}

// WithMetrics records metrics on c
func (o *Orchestrator) WithMetrics(c *metrics.Collector) *Orchestrator {
	o.metrics = c
	return o
}

// WithRunID sets the run identifier
func (o *Orchestrator) WithRunID(id string) *Orchestrator {
	o.runID = id
	return o
}

// RunID returns the run identifier
func (o *Orchestrator) RunID() string { return o.runID }

// RunStore returns the store progress is published to, creating it on first use.
func (o *Orchestrator) RunStore() *monitor.RunStore {
	if o.store == nil {
		o.store = monitor.NewRunStore(o.runID, o.cfg.Problem.Mode, o.cfg.Optimizer.Generations)
	}
	return o.store
}

// Metrics returns the metrics collector, creating it on first use.
func (o *Orchestrator) Metrics() *metrics.Collector {
	if o.metrics == nil {
		o.metrics = metrics.NewCollector()
	}
	return o.metrics
}

// pipeline is the evaluation chain of one run.
type pipeline struct {
	adapter *simulation.Adapter
	fn      *objective.Function
	sink    history.Sink
}

func (p *pipeline) close() error {
	if p.sink == nil {
		return nil
	}
	return p.sink.Close()
}

func (o *Orchestrator) build(problem *objective.Problem, seed []float64, sink history.Sink, next solver.ExternalSolver) (*pipeline, error) {
	adapter := simulation.NewAdapter(next, problem.InputCount(), o.cfg.Solver.OutputKeys)
	adapter.SetObserver(o.Metrics())

	fn, err := objective.NewFunction(problem, seed, adapter, sink)
	if err != nil {
		return nil, err
	}
	collector := o.Metrics()
	fn.OnRepair(func(_, _ []float64) { collector.RepairObserved() })
	return &pipeline{adapter: adapter, fn: fn, sink: sink}, nil
}

// openHistory prepares the request channel and opens the history sinks.
//
// Without replay the channel is emptied and refilled by the solver as the
// run re-evaluates. With replay on resume the recorded answers are loaded
// into replay and the channel is kept; recorded is the number of request
// lines it already holds.
func (o *Orchestrator) openHistory(ctx context.Context, replay *solver.ReplaySolver, log *slog.Logger) (history.Sink, int, error) {
	cfg := o.cfg
	recorded := 0
	inputPath := cfg.Path(cfg.Solver.InputPath)
	historyPath := cfg.Path(cfg.Files.History)

	if cfg.History.Resume {
		state, err := loadChannels(inputPath, historyPath)
		if err != nil {
			return nil, 0, err
		}
		if replay != nil {
			if err := state.preload(replay, len(cfg.Solver.OutputKeys)); err != nil {
				return nil, 0, err
			}
			recorded = len(state.requests)
		}
		log.Info("resuming run", "recorded", len(state.rows), "replay", replay != nil)
	}
	if recorded == 0 {
		if err := resetChannel(inputPath); err != nil {
			return nil, 0, fmt.Errorf("reset request channel: %w", err)
		}
	}

	csvLog, err := history.OpenCSVLog(historyPath, cfg.History.Resume)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open history: %w", err)
	}
	if cfg.History.SQLitePath == "" {
		return csvLog, recorded, nil
	}
	mirror, err := history.OpenSQLite(ctx, cfg.Path(cfg.History.SQLitePath), o.runID)
	if err != nil {
		csvLog.Close()
		return nil, 0, fmt.Errorf("failed to open history mirror: %w", err)
	}
	return history.MultiSink{csvLog, mirror}, recorded, nil
}

// Run executes the configured optimization. The results file and the
// completion lines of the information file are written whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context) (*ExperimentResult, error) {
	cfg := o.cfg
	start := time.Now()
	log := logger.With("run_id", o.runID)
	store := o.RunStore()
	collector := o.Metrics()

	seed := cfg.Optimizer.Seed
	if seed == 0 {
		seed = uint64(start.UnixNano())
	}

	ctx, span := otel.Tracer("github.com/panelopt/panelopt/internal/improvement").Start(ctx, "improvement.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", o.runID), attribute.Int64("seed", int64(seed)))

	fail := func(err error) (*ExperimentResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		store.SetStatus(monitor.RunStatusFailed, err.Error())
		return nil, err
	}

	problem, err := objective.NewProblem(cfg)
	if err != nil {
		return fail(err)
	}
	seedVector, err := solver.LoadSeed(cfg.Path(cfg.Files.Seed))
	if err != nil {
		return fail(err)
	}

	var replay *solver.ReplaySolver
	switch {
	case cfg.Solver.Replay && cfg.History.Resume:
		replay = solver.NewReplaySolver(o.solver)
	case cfg.Solver.Replay:
		log.Warn("replay only answers from a resumed history, solving every request")
	}
	sink, recorded, err := o.openHistory(ctx, replay, log)
	if err != nil {
		return fail(err)
	}
	var next solver.ExternalSolver = o.solver
	if replay != nil {
		next = &channelRecorder{next: replay, path: cfg.Path(cfg.Solver.InputPath), recorded: recorded}
	}
	p, err := o.build(problem, seedVector, sink, next)
	if err != nil {
		sink.Close()
		return fail(err)
	}
	defer func() {
		if err := p.close(); err != nil {
			log.Error("failed to close history", "error", err)
		}
	}()

	rep, err := report.New(cfg.Path(cfg.Files.Generations))
	if err != nil {
		return fail(fmt.Errorf("failed to create generations file: %w", err))
	}
	defer rep.Close()

	infoPath := cfg.Path(cfg.Files.Information)
	if err := report.WriteInformation(infoPath, o.information(start, seed)); err != nil {
		return fail(fmt.Errorf("failed to write information file: %w", err))
	}

	search := newSearchProblem(p.fn)
	optCfg := nsga2.Config{
		PopulationSize:       cfg.Optimizer.Population,
		Offspring:            cfg.Optimizer.Offspring,
		Generations:          cfg.Optimizer.Generations,
		CrossoverProbability: cfg.Optimizer.CrossoverProb,
		CrossoverEta:         cfg.Optimizer.CrossoverEta,
		MutationEta:          cfg.Optimizer.MutationEta,
		MutationProbability:  cfg.Optimizer.MutationProb,
		EliminateDuplicates:  cfg.Optimizer.DuplicatesEliminated(),
		Seed:                 seed,
	}
	if cfg.Optimizer.IncludeSeedDesign {
		optCfg.Initial = [][]float64{p.fn.SeedDesign()}
	}
	opt, err := nsga2.New(optCfg, search)
	if err != nil {
		return fail(err)
	}

	names := problem.ObjectiveNames()
	var recordErr error
	opt.OnStateChange(func(s nsga2.State) { store.SetState(s.String()) })
	opt.OnGeneration(func(g nsga2.Generation) {
		summary := report.FromGeneration(g)
		if err := rep.Record(summary); err != nil && recordErr == nil {
			recordErr = err
			log.Error("failed to record generation", "generation", g.Index, "error", err)
		}
		store.RecordGeneration(summary)
		collector.GenerationCompleted(g.Index, names, summary.BestObjectives, summary.Feasible)
	})

	log.Info("starting optimization",
		"mode", problem.Mode, "variables", problem.Dimension(), "seed", seed,
		"population", optCfg.PopulationSize, "offspring", optCfg.Offspring, "generations", optCfg.Generations)
	store.SetStatus(monitor.RunStatusRunning, "")

	res, runErr := opt.Run(ctx)
	end := time.Now()

	if err := rep.WriteResults(cfg.Path(cfg.Files.Results)); err != nil {
		log.Error("failed to write results file", "error", err)
	}
	outcome, status := "completed", monitor.RunStatusCompleted
	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled):
		outcome, status = "cancelled", monitor.RunStatusCancelled
	case runErr != nil:
		outcome, status = "failed: "+runErr.Error(), monitor.RunStatusFailed
	case recordErr != nil:
		outcome, status = "failed: "+recordErr.Error(), monitor.RunStatusFailed
	}
	if err := report.AppendCompletion(infoPath, start, end, outcome); err != nil {
		log.Error("failed to complete information file", "error", err)
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		store.SetStatus(status, runErr.Error())
		log.Error("optimization aborted", "evaluations", opt.Evaluations(), "elapsed", end.Sub(start), "error", runErr)
		return nil, fmt.Errorf("optimization failed: %w", runErr)
	}
	if recordErr != nil {
		return fail(fmt.Errorf("failed to record generations: %w", recordErr))
	}
	store.SetStatus(status, "")

	result := &ExperimentResult{
		RunID:       o.runID,
		Seed:        seed,
		Best:        res.Best,
		Front:       res.Front,
		Generations: res.Generations,
		Evaluations: res.Evaluations,
		Repairs:     p.fn.Repairs(),
		Duration:    end.Sub(start),
	}
	if ev, ok := search.evaluation(res.Best); ok {
		result.BestEvaluation = ev
	}
	if replay != nil {
		result.Replayed = replay.Hits()
	}

	log.Info("optimization complete",
		"evaluations", humanize.Comma(int64(result.Evaluations)),
		"replayed", humanize.Comma(result.Replayed),
		"repairs", humanize.Comma(int64(result.Repairs)),
		"best_mass", humanize.CommafWithDigits(result.BestEvaluation.Mass, 2),
		"best_stress", humanize.SIWithDigits(result.BestEvaluation.Stress, 3, "Pa"),
		"feasible", res.Best != nil && res.Best.Feasible(),
		"front", len(res.Front),
		"elapsed", utils.FormatDuration(result.Duration))
	return result, nil
}

// EvaluateSeed runs the solver once on the seed design. Nothing is written
// to the history file.
func (o *Orchestrator) EvaluateSeed(ctx context.Context) (objective.Evaluation, error) {
	problem, err := objective.NewProblem(o.cfg)
	if err != nil {
		return objective.Evaluation{}, err
	}
	seed, err := solver.LoadSeed(o.cfg.Path(o.cfg.Files.Seed))
	if err != nil {
		return objective.Evaluation{}, err
	}
	p, err := o.build(problem, seed, nil, o.solver)
	if err != nil {
		return objective.Evaluation{}, err
	}
	return p.fn.Evaluate(ctx, p.fn.SeedDesign())
}

func (o *Orchestrator) information(start time.Time, seed uint64) report.Information {
	cfg := o.cfg
	params := []report.Parameter{
		{Name: "Mode", Value: cfg.Problem.Mode},
		{Name: "Population Size", Value: cfg.Optimizer.Population},
		{Name: "Offspring", Value: cfg.Optimizer.Offspring},
		{Name: "Generations", Value: cfg.Optimizer.Generations},
		{Name: "Crossover Probability", Value: cfg.Optimizer.CrossoverProb},
		{Name: "Crossover Eta", Value: cfg.Optimizer.CrossoverEta},
		{Name: "Mutation Eta", Value: cfg.Optimizer.MutationEta},
		{Name: "Eliminate Duplicates", Value: cfg.Optimizer.DuplicatesEliminated()},
		{Name: "Seed", Value: seed},
		{Name: "Stress Limit", Value: cfg.Problem.StressLimit},
		{Name: "Resume", Value: cfg.History.Resume},
	}
	for _, v := range cfg.Problem.Variables {
		params = append(params, report.Parameter{
			Name:  "Bounds " + v.Name,
			Value: fmt.Sprintf("[%g, %g]", v.Lower, v.Upper),
		})
	}
	return report.Information{
		Title:      "Stiffened Panel Optimization",
		RunID:      o.runID,
		Start:      start,
		Parameters: params,
	}
}
