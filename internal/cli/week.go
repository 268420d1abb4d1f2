package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/tally/internal/domain/week"
)

const dateLayout = "2006-01-02"

var (
	weekStart string
	weekEnd   string
	weekBonus bool
)

func init() {
	weekCmd := &cobra.Command{
		Use:   "week",
		Short: "Manage weeks",
	}

	addCmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Create a week",
		Args:  cobra.ExactArgs(1),
		RunE:  runWeekAdd,
	}
	addCmd.Flags().StringVar(&weekStart, "start", "", "First day, YYYY-MM-DD (default: this Monday)")
	addCmd.Flags().StringVar(&weekEnd, "end", "", "Last day, YYYY-MM-DD (default: six days after start)")
	addCmd.Flags().BoolVar(&weekBonus, "bonus", false, "Mark the week as a bonus week")

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List weeks",
		Args:  cobra.NoArgs,
		RunE:  runWeekList,
	}

	rmCmd := &cobra.Command{
		Use:   "rm <week-id>",
		Short: "Delete a week and its records",
		Args:  cobra.ExactArgs(1),
		RunE:  runWeekRemove,
	}

	weekCmd.AddCommand(addCmd, lsCmd, rmCmd)
	RootCmd.AddCommand(weekCmd)
}

func runWeekAdd(cmd *cobra.Command, args []string) error {
	start, end, err := weekBounds(weekStart, weekEnd, time.Now())
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		w, err := a.data.CreateWeek(cmd.Context(), week.CreateRequest{
			Label:     args[0],
			StartDate: start,
			EndDate:   end,
			IsBonus:   weekBonus,
			Bonus:     week.BonusRules{UseGlobal: true},
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), w)
	})
}

func runWeekList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		weeks, err := a.data.ListWeeks(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), weeks)
	})
}

func runWeekRemove(cmd *cobra.Command, args []string) error {
	id, err := parseID("week id", args[0])
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		if err := a.data.DeleteWeek(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted week %d\n", id)
		return nil
	})
}

// weekBounds resolves the start and end flags. Missing values default to
// the Monday of now's week and six days after the start.
func weekBounds(startFlag, endFlag string, now time.Time) (start, end time.Time, err error) {
	if startFlag != "" {
		if start, err = time.ParseInLocation(dateLayout, startFlag, time.UTC); err != nil {
			return start, end, fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
		}
	} else {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDate(0, 0, -offset)
	}
	if endFlag != "" {
		if end, err = time.ParseInLocation(dateLayout, endFlag, time.UTC); err != nil {
			return start, end, fmt.Errorf("--end must be YYYY-MM-DD: %w", err)
		}
	} else {
		end = start.AddDate(0, 0, 6)
	}
	return start, end, nil
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return id, nil
}
