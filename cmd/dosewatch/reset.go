package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dosewatch/internal/cli"
	"github.com/Veraticus/dosewatch/internal/ledger"
	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/schedule"
)

// resetter is the session surface reset needs.
type resetter interface {
	Reset(ctx context.Context) error
}

func resetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase all adherence history and the classifier source",
		Long: `Reset deletes every recorded dose, the streak and totals, and the saved
classifier source. This cannot be undone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, cleanup, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			l := ledger.New(store, schedule.FromConfig(cfg.Schedule))
			if err := l.Load(cmd.Context()); err != nil {
				return err
			}

			sess, closeNotifiers, err := newSession(cfg, store, sessionDeps{out: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer closeNotifiers()

			return runReset(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), sess, l.Stats(), force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

func runReset(ctx context.Context, in io.Reader, out io.Writer, r resetter, stats model.Stats, force bool) error {
	if !force {
		writeOut(out, "This will delete %d recorded doses and a %d day streak.\n", stats.TotalTaken, stats.CurrentStreak)
		writeOut(out, "\nAre you sure you want to continue? [y/N]: ")

		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && response == "" {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if answer := strings.TrimSpace(response); answer != "y" && answer != "Y" {
			writeOut(out, "Reset canceled.\n")
			return nil
		}
	}

	if err := r.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	writeOut(out, "%s\n", cli.FormatSuccess("All adherence data erased."))
	return nil
}
