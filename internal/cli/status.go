package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/panelopt/panelopt/internal/monitor"
)

func newStatusCommand() *cobra.Command {
	var addr string
	var generations int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the status of a running optimization over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("connect to %s: %w", addr, err)
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			client := monitor.NewRunMonitorClient(conn)
			st, err := client.GetStatus(ctx)
			if err != nil {
				return fmt.Errorf("get status: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			f := st.GetFields()
			fmt.Fprintf(w, "Run\t%s\n", f["id"].GetStringValue())
			fmt.Fprintf(w, "Status\t%s (%s)\n", f["status"].GetStringValue(), f["state"].GetStringValue())
			fmt.Fprintf(w, "Generation\t%.0f of %.0f\n", f["generation"].GetNumberValue()+1, f["generations"].GetNumberValue())
			fmt.Fprintf(w, "Evaluations\t%.0f\n", f["evaluations"].GetNumberValue())
			fmt.Fprintf(w, "Best\t%v (feasible %t)\n", f["best_objectives"].GetListValue().AsSlice(), f["feasible"].GetBoolValue())
			if msg := f["error"].GetStringValue(); msg != "" {
				fmt.Fprintf(w, "Error\t%s\n", msg)
			}

			if generations <= 0 {
				return nil
			}
			gens, err := client.GetGenerations(ctx, generations)
			if err != nil {
				return fmt.Errorf("get generations: %w", err)
			}
			fmt.Fprintln(w, "\nGeneration\tEvaluations\tBest\tFeasible")
			for _, v := range gens.GetFields()["generations"].GetListValue().GetValues() {
				g := v.GetStructValue().GetFields()
				fmt.Fprintf(w, "%.0f\t%.0f\t%v\t%t\n",
					g["index"].GetNumberValue(), g["evaluations"].GetNumberValue(),
					g["best_objectives"].GetListValue().AsSlice(), g["feasible"].GetBoolValue())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "gRPC address of the running optimization")
	cmd.Flags().IntVar(&generations, "generations", 0, "Also list the most recent generations")
	return cmd
}
