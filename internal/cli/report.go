package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/panelopt/panelopt/internal/history"
	"github.com/panelopt/panelopt/internal/report"
	"github.com/panelopt/panelopt/internal/solver"
)

func newReportCommand(o *rootOptions) *cobra.Command {
	var historyPath, generationsPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise the history and generations files of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd, nil)
			if err != nil {
				return err
			}
			if historyPath == "" {
				historyPath = cfg.Path(cfg.Files.History)
			}
			if generationsPath == "" {
				generationsPath = cfg.Path(cfg.Files.Generations)
			}

			rows, err := history.ReadCSV(historyPath)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}
			summary, err := report.Summarize(rows, cfg.Problem.StressLimit)
			if err != nil {
				return err
			}
			gens, err := report.ReadGenerations(generationsPath)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read generations: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintf(w, "History\t%s\n", historyPath)
			fmt.Fprintf(w, "Evaluations\t%s\n", humanize.Comma(int64(summary.Evaluations)))
			if len(gens) > 0 {
				last := gens[len(gens)-1]
				fmt.Fprintf(w, "Generations\t%d (last at evaluation %s)\n", len(gens), humanize.Comma(int64(last.Evaluations)))
			}
			if summary.Evaluations == 0 {
				return nil
			}
			fmt.Fprintf(w, "Feasible\t%s (%.1f%%)\n", humanize.Comma(int64(summary.Feasible)),
				100*float64(summary.Feasible)/float64(summary.Evaluations))
			fmt.Fprintf(w, "Mass\tmean %s, std dev %s\n",
				humanize.CommafWithDigits(summary.MeanMass, 3), humanize.CommafWithDigits(summary.StdDevMass, 3))
			fmt.Fprintf(w, "Stress\tmean %s, max %s\n",
				humanize.SIWithDigits(summary.MeanStress, 3, "Pa"), humanize.SIWithDigits(summary.MaxStress, 3, "Pa"))
			if summary.HasWeldLength {
				fmt.Fprintf(w, "Weld length\tmin %s\n", solver.FormatValue(summary.MinWeldLength))
			}
			if summary.BestIndex < 0 {
				fmt.Fprintf(w, "Best\tno feasible evaluation\n")
				return nil
			}
			fmt.Fprintf(w, "Best\tevaluation %d: mass %s at %s\n", summary.BestIndex,
				solver.FormatValue(summary.BestMass), humanize.SIWithDigits(summary.BestStress, 3, "Pa"))
			return nil
		},
	}
	cmd.Flags().StringVar(&historyPath, "history", "", "History file (defaults to the configured one)")
	cmd.Flags().StringVar(&generationsPath, "generations", "", "Generations file (defaults to the configured one)")
	return cmd
}
