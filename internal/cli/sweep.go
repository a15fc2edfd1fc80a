package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/panelopt/panelopt/internal/solver"
	"github.com/panelopt/panelopt/internal/sweep"
	"github.com/panelopt/panelopt/pkg/config"
)

type sweepFlags struct {
	parameter string
	from      float64
	to        float64
	step      float64
	output    string
}

func newSweepCommand(o *rootOptions) *cobra.Command {
	f := &sweepFlags{}
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a one-parameter sensitivity sweep",
		Long: `Step one solver input from --from to --to (inclusive) by --step with every
other value taken from the seed file, and append a value,stress row per step
to the sweep output file.

Examples:
  # Plate mesh convergence study
  panelopt sweep --parameter mP --from 0.005 --to 0.5 --step 0.02`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd, f.apply(cmd))
			if err != nil {
				return err
			}
			points, err := sweep.New(cfg).Run(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintf(w, "%s\t%s\n", cfg.Sweep.Parameter, cfg.Problem.StressKey)
			for _, p := range points {
				fmt.Fprintf(w, "%s\t%s\n", solver.FormatValue(p.Value), solver.FormatValue(p.Stress))
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.parameter, "parameter", "p", "", "Input key to vary")
	fl.Float64Var(&f.from, "from", 0, "First value")
	fl.Float64Var(&f.to, "to", 0, "Last value")
	fl.Float64Var(&f.step, "step", 0, "Increment")
	fl.StringVarP(&f.output, "output", "o", "", "Sweep output file")
	return cmd
}

func (f *sweepFlags) apply(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		if cfg.Sweep == nil {
			cfg.Sweep = &config.Sweep{}
		}
		fl := cmd.Flags()
		if fl.Changed("parameter") {
			cfg.Sweep.Parameter = f.parameter
		}
		if fl.Changed("from") {
			cfg.Sweep.From = f.from
		}
		if fl.Changed("to") {
			cfg.Sweep.To = f.to
		}
		if fl.Changed("step") {
			cfg.Sweep.Step = f.step
		}
		if fl.Changed("output") {
			cfg.Sweep.Output = f.output
		}
	}
}
