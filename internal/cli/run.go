package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/panelopt/panelopt/internal/improvement"
	"github.com/panelopt/panelopt/internal/monitor"
	"github.com/panelopt/panelopt/internal/solver"
	"github.com/panelopt/panelopt/internal/tracing"
	"github.com/panelopt/panelopt/pkg/config"
	"github.com/panelopt/panelopt/pkg/logger"
	"github.com/panelopt/panelopt/pkg/utils"
)

type runFlags struct {
	resume      bool
	replay      bool
	runID       string
	seed        uint64
	mode        string
	population  int
	offspring   int
	generations int
	httpAddr    string
	grpcAddr    string
}

func newRunCommand(o *rootOptions) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the NSGA-II panel optimization",
		Long: `Run the panel optimization configured in the run configuration.

The history, generations, results and information files are written as the
run progresses. When monitor addresses are configured the run status is
served over HTTP (/v1/run, /v1/generations, /metrics) and gRPC.

Examples:
  # Fresh run with the configured settings
  panelopt run

  # Resume an interrupted run, replaying the evaluations already on disk
  panelopt run --resume --replay --seed 1234

  # Minimise mass and weld length
  panelopt run --mode mass_weld`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd, f.apply(cmd))
			if err != nil {
				return err
			}
			return runOptimization(cmd, cfg)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.resume, "resume", false, "Keep the existing history and verify re-evaluated designs against it")
	fl.BoolVar(&f.replay, "replay", false, "Answer requests already in the history from the recorded outputs")
	fl.StringVar(&f.runID, "run-id", "", "Run id for the SQLite mirror and status (resume reuses the recorded id)")
	fl.Uint64Var(&f.seed, "seed", 0, "Random seed (0 picks a time based seed)")
	fl.StringVar(&f.mode, "mode", "", "Objective mode (mass, mass_weld)")
	fl.IntVar(&f.population, "population", 0, "Population size")
	fl.IntVar(&f.offspring, "offspring", 0, "Offspring per generation")
	fl.IntVar(&f.generations, "generations", 0, "Generations including the initial one")
	fl.StringVar(&f.httpAddr, "http-addr", "", "HTTP status listen address")
	fl.StringVar(&f.grpcAddr, "grpc-addr", "", "gRPC status listen address")
	return cmd
}

// apply copies the flags the user set onto the configuration.
func (f *runFlags) apply(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		fl := cmd.Flags()
		if fl.Changed("resume") {
			cfg.History.Resume = f.resume
		}
		if fl.Changed("replay") {
			cfg.Solver.Replay = f.replay
		}
		if f.runID != "" {
			cfg.History.RunID = f.runID
		}
		if fl.Changed("seed") {
			cfg.Optimizer.Seed = f.seed
		}
		if f.mode != "" {
			cfg.Problem.Mode = f.mode
		}
		if f.population > 0 {
			cfg.Optimizer.Population = f.population
		}
		if f.offspring > 0 {
			cfg.Optimizer.Offspring = f.offspring
		}
		if f.generations > 0 {
			cfg.Optimizer.Generations = f.generations
		}
		if f.httpAddr != "" || f.grpcAddr != "" {
			if cfg.Monitor == nil {
				cfg.Monitor = &config.Monitor{}
			}
			if f.httpAddr != "" {
				cfg.Monitor.HTTPAddr = f.httpAddr
			}
			if f.grpcAddr != "" {
				cfg.Monitor.GRPCAddr = f.grpcAddr
			}
		}
	}
}

// runOptimization runs one optimization with tracing and the status servers
// around it.
func runOptimization(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	orch := improvement.NewOrchestrator(cfg)

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, orch.RunID())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}()

	servers, err := monitor.Start(cfg.Monitor, orch.RunStore(), orch.Metrics().Handler())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := servers.Shutdown(shutdownCtx); err != nil {
			logger.Error("monitor shutdown error", "error", err)
		}
	}()

	res, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	printExperiment(cmd.OutOrStdout(), cfg, res)
	return nil
}

func printExperiment(out io.Writer, cfg *config.Config, res *improvement.ExperimentResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Run\t%s\n", res.RunID)
	fmt.Fprintf(w, "Seed\t%d\n", res.Seed)
	fmt.Fprintf(w, "Generations\t%d\n", res.Generations)
	fmt.Fprintf(w, "Evaluations\t%s (%s replayed, %s repaired)\n",
		humanize.Comma(int64(res.Evaluations)), humanize.Comma(res.Replayed), humanize.Comma(int64(res.Repairs)))
	fmt.Fprintf(w, "Elapsed\t%s\n", utils.FormatDuration(res.Duration))
	if res.Best == nil {
		return
	}
	ev := res.BestEvaluation
	fmt.Fprintf(w, "Feasible\t%t\n", res.Best.Feasible())
	fmt.Fprintf(w, "Mass\t%s\n", humanize.CommafWithDigits(ev.Mass, 3))
	fmt.Fprintf(w, "Stress\t%s (limit %s)\n",
		humanize.SIWithDigits(ev.Stress, 3, "Pa"), humanize.SIWithDigits(cfg.Problem.StressLimit, 3, "Pa"))
	if cfg.Problem.Mode == config.ModeMassWeld {
		fmt.Fprintf(w, "Weld length\t%s\n", humanize.CommafWithDigits(ev.WeldLength, 3))
		fmt.Fprintf(w, "Pareto front\t%d designs\n", len(res.Front))
	}
	for i, v := range cfg.Problem.Variables {
		if i < len(res.Best.Variables) {
			fmt.Fprintf(w, "  %s\t%s\n", v.Name, solver.FormatValue(res.Best.Variables[i]))
		}
	}
}
