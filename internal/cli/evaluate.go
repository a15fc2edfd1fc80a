package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/panelopt/panelopt/internal/improvement"
	"github.com/panelopt/panelopt/internal/solver"
)

func newEvaluateCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the seed design once",
		Long: `Run the solver once on the design in the seed file and print the
objectives and constraint values. The history file is not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd, nil)
			if err != nil {
				return err
			}
			ev, err := improvement.NewOrchestrator(cfg).EvaluateSeed(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintf(w, "Stress\t%s\t%s\n", solver.FormatValue(ev.Stress), humanize.SIWithDigits(ev.Stress, 3, "Pa"))
			fmt.Fprintf(w, "Mass\t%s\n", solver.FormatValue(ev.Mass))
			if len(ev.Objectives) > 1 {
				fmt.Fprintf(w, "Weld length\t%s\n", solver.FormatValue(ev.WeldLength))
			}
			fmt.Fprintf(w, "Stress margin\t%s\n", solver.FormatValue(-ev.Constraints[0]))
			fmt.Fprintf(w, "Feasible\t%t\n", ev.Feasible())
			fmt.Fprintf(w, "Repaired\t%t\n", ev.Repaired)
			return nil
		},
	}
}
