package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dosewatch/internal/cli"
	"github.com/Veraticus/dosewatch/internal/model"
)

func historyCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the last seven days of doses",
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

			days := l.Week(time.Now())
			if all {
				days = l.Days()
			}

			doses := make([]model.DoseType, 0, len(cfg.Schedule))
			for _, w := range cfg.Schedule {
				doses = append(doses, w.Dose)
			}

			out := cmd.OutOrStdout()
			if len(days) == 0 {
				writeOut(out, "%s\n", cli.FormatInfo("No doses recorded yet."))
				return nil
			}
			writeOut(out, "%s", cli.RenderWeek(days, doses))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Show every stored day instead of the last seven")
	return cmd
}
