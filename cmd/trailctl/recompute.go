package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/info3g/hikstar-celery/internal/store"
)

func newRecomputeCmd(c *cli) *cobra.Command {
	var trailID, activityID int64
	var all bool
	var workers int

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute trail activity durations and difficulties",
		Example: `  trailctl recompute --trail 12
  trailctl recompute --activity 3
  trailctl recompute --all --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.store(store.WithWorkers(workers))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case trailID > 0:
				m, err := st.RecomputeTrailMetrics(ctx, trailID)
				if err != nil {
					return err
				}
				for _, a := range m.Activities {
					fmt.Fprintf(out, "%-20s %6s  %s\n", a.ActivityName, a.DurationLabel, a.DifficultyLabel)
				}
				fmt.Fprintf(out, "summary: %s %s\n", m.Summary.Duration, m.Summary.Difficulty)
			case activityID > 0:
				n, err := st.RecomputeActivityMetrics(ctx, activityID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d trail activit(ies) recomputed\n", n)
			case all:
				n, err := st.RecomputeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d trail(s) recomputed\n", n)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&trailID, "trail", 0, "recompute one trail")
	cmd.Flags().Int64Var(&activityID, "activity", 0, "recompute every trail using an activity")
	cmd.Flags().BoolVar(&all, "all", false, "recompute every trail")
	cmd.Flags().IntVar(&workers, "workers", store.DefaultWorkers, "trails recomputed at once with --all")
	cmd.MarkFlagsMutuallyExclusive("trail", "activity", "all")
	cmd.MarkFlagsOneRequired("trail", "activity", "all")
	return cmd
}
