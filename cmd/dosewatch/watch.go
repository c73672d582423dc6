package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/dosewatch/internal/cli"
	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/service"
	"github.com/Veraticus/dosewatch/internal/session"
	"github.com/Veraticus/dosewatch/internal/tui"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the camera and record doses",
		Long: `Watch samples the camera, records each scheduled dose it sees inside its
window, and sends reminders for doses that are late.

By default a live dashboard is shown. Use --headless to print alerts as plain
lines instead, for example when running as a service.`,
		RunE: runWatch,
	}

	cmd.Flags().Bool("headless", false, "Print alerts instead of showing the dashboard")
	cmd.Flags().Bool("progress", false, "Show frame replay progress in headless mode")
	cmd.Flags().String("frames", "", "Directory of frames to replay as the camera")
	cmd.Flags().String("source", "", "Classifier manifest URL to load before watching")

	_ = viper.BindPFlag("detection.frames", cmd.Flags().Lookup("frames"))

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	headless, _ := cmd.Flags().GetBool("headless")
	progress, _ := cmd.Flags().GetBool("progress")
	source, _ := cmd.Flags().GetString("source")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Detection.Frames == "" {
		return common.NewUserError("No camera configured. Pass --frames or set detection.frames", common.ErrMissingConfig)
	}

	if !headless {
		restore, logErr := redirectLogs(cfg)
		if logErr != nil {
			return logErr
		}
		defer restore()
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	deps := sessionDeps{out: out, progress: headless && progress}
	var bridge *tui.Bridge
	if !headless {
		bridge = tui.NewBridge(cli.NewBell(out), service.SystemClock{})
		deps.tone = bridge
		deps.local = bridge
	}

	sess, closeNotifiers, err := newSession(cfg, store, deps)
	if err != nil {
		return err
	}
	defer closeNotifiers()
	defer func() { _ = sess.Close() }()

	if err := sess.Open(ctx); err != nil {
		return err
	}
	if source != "" {
		if err := sess.SetClassifierSource(ctx, source); err != nil {
			return common.NewUserError("Could not load classifier", err)
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sess.RunReminders(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("Reminder loop stopped", "error", err)
		}
	}()

	if headless {
		err = watchHeadless(runCtx, sess, out)
	} else {
		err = tui.Run(runCtx, sess, tui.WithAutoStart(true), tui.WithBridge(bridge))
	}
	if err != nil {
		return err
	}
	interrupts.Summary(sess.Stats())
	return nil
}

func watchHeadless(ctx context.Context, sess *session.Session, out io.Writer) error {
	sess.OnAlert(func(a model.AlertState, visible bool) {
		if visible {
			writeOut(out, "%s\n", cli.FormatAlert(a))
		}
	})
	defer sess.OnAlert(nil)

	if err := sess.StartDetection(ctx); err != nil {
		if banner := sess.Banner(); banner != "" {
			writeOut(out, "%s\n", cli.FormatError(banner))
		}
		return fmt.Errorf("failed to start detection: %w", err)
	}
	writeOut(out, "%s\n", cli.FormatInfo("Watching for doses. Press Ctrl+C to stop."))

	<-ctx.Done()
	return sess.StopDetection()
}
