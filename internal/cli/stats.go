package cli

import (
	"github.com/spf13/cobra"

	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/record"
)

var changesLimit int

type poolStats struct {
	cache.Stats
	HitRate float64 `json:"hit_rate"`
}

type statsOutput struct {
	Aggregate  *record.Aggregate `json:"aggregate,omitempty"`
	TotalHours float64           `json:"total_hours,omitempty"`
	Changes    []activity.Entry  `json:"changes,omitempty"`
	Pools      []poolStats       `json:"pools"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "stats [week-id]",
		Short: "Show a week's aggregate, its recent changes and cache counters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStats,
	}
	cmd.Flags().IntVar(&changesLimit, "changes", 10, "Number of recent changes to show")

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	var weekID int64
	if len(args) == 1 {
		id, err := parseID("week id", args[0])
		if err != nil {
			return err
		}
		weekID = id
	}
	return withApp(func(a *app) error {
		ctx := cmd.Context()
		var out statsOutput
		if weekID != 0 {
			if _, err := a.data.GetWeek(ctx, weekID); err != nil {
				return err
			}
			agg, err := a.data.GetAggregate(ctx, weekID)
			if err != nil {
				return err
			}
			out.Aggregate = &agg
			out.TotalHours = agg.Metrics.TotalHours()

			if changesLimit > 0 {
				changes, err := a.journal.Recent(ctx, activity.ListOptions{WeekID: &weekID, Limit: changesLimit})
				if err != nil {
					return err
				}
				out.Changes = changes
			}
		}
		for _, s := range a.data.CacheStats() {
			out.Pools = append(out.Pools, poolStats{Stats: s, HitRate: s.HitRate()})
		}
		return printJSON(cmd.OutOrStdout(), out)
	})
}
