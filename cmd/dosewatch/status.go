package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dosewatch/internal/cli"
	"github.com/Veraticus/dosewatch/internal/schedule"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's doses and the current streak",
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

			out := cmd.OutOrStdout()
			now := time.Now()
			writeOut(out, "%s\n", cli.FormatTitle("Today, "+now.Format("Monday 2 January")))

			for _, w := range schedule.FromConfig(cfg.Schedule).Windows() {
				if l.IsTaken(w.Dose, now) {
					writeOut(out, "%s\n", cli.FormatSuccess(doseLine(w)))
					continue
				}
				writeOut(out, "%s\n", cli.StyleWarning("  "+doseLine(w)))
			}
			writeOut(out, "\n%s\n", cli.RenderStats(l.Stats()))
			return nil
		},
	}
}

func doseLine(w schedule.Window) string {
	return string(w.Dose) + " dose at " + w.ScheduledTime + " (" + w.Label.Normalized() + ")"
}
