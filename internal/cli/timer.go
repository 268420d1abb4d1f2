package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var timerFor time.Duration

func init() {
	cmd := &cobra.Command{
		Use:   "timer <record-id>",
		Short: "Time a record until interrupted",
		Long:  "Starts a timer on the record, saving its duration periodically, and stops it on Ctrl-C or when --for elapses.",
		Args:  cobra.ExactArgs(1),
		RunE:  runTimer,
	}
	cmd.Flags().DurationVar(&timerFor, "for", 0, "Stop automatically after this long")

	RootCmd.AddCommand(cmd)
}

func runTimer(cmd *cobra.Command, args []string) error {
	id, err := parseID("record id", args[0])
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if timerFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timerFor)
			defer cancel()
		}

		st, err := a.timers.Start(ctx, id)
		if err != nil {
			return err
		}
		a.logger.Info("timer started", "record_id", id, "week_id", st.WeekID, "elapsed", st.Elapsed)

		<-ctx.Done()

		total, err := a.timers.Stop(context.WithoutCancel(ctx), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "record %d: %s\n", id, total.Round(time.Second))
		return nil
	})
}
