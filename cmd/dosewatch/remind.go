package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dosewatch/internal/cli"
	"github.com/Veraticus/dosewatch/internal/notify"
	"github.com/Veraticus/dosewatch/internal/reminder"
	"github.com/Veraticus/dosewatch/internal/schedule"
	"github.com/Veraticus/dosewatch/internal/service"
)

func remindCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run only the reminder sweep, without a camera",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, cleanup, err := loadLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			clock := service.SystemClock{}
			out := cmd.OutOrStdout()
			notifier, closeNotifiers := buildNotifier(cfg, notify.NewTerminal(out), clock)
			defer closeNotifiers()

			sched := reminder.NewScheduler(schedule.FromConfig(cfg.Schedule), l, notifier, clock, cfg.Reminders.Interval, cfg.Reminders.Grace).
				WithRefresh(l.Load)
			if once {
				sent := sched.Sweep(cmd.Context(), clock.Now())
				if sent == 0 {
					writeOut(out, "%s\n", cli.FormatInfo("No reminders due."))
				}
				return nil
			}

			writeOut(out, "%s\n", cli.FormatInfo("Sending reminders. Press Ctrl+C to stop."))
			if err := sched.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Sweep once and exit")
	return cmd
}
