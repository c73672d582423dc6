package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/Veraticus/dosewatch/internal/alert"
	"github.com/Veraticus/dosewatch/internal/camera"
	"github.com/Veraticus/dosewatch/internal/classifier"
	"github.com/Veraticus/dosewatch/internal/cli"
	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/config"
	"github.com/Veraticus/dosewatch/internal/ledger"
	"github.com/Veraticus/dosewatch/internal/notify"
	"github.com/Veraticus/dosewatch/internal/schedule"
	"github.com/Veraticus/dosewatch/internal/service"
	"github.com/Veraticus/dosewatch/internal/session"
	"github.com/Veraticus/dosewatch/internal/storage"
)

// loadConfig reads the typed configuration from the global viper instance.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens and migrates the configured database.
func openStore(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, func(), error) {
	store, err := storage.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}
	return store, cleanup, nil
}

// loadLedger opens the store and loads the adherence history only.
func loadLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, func(), error) {
	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	l := ledger.New(store, schedule.FromConfig(cfg.Schedule))
	if err := l.Load(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return l, cleanup, nil
}

// buildNotifier returns the configured notification fan-out. local always
// receives notifications; MQTT joins when a broker is configured.
func buildNotifier(cfg *config.Config, local service.Notifier, clock service.Clock) (service.Notifier, func()) {
	notifiers := []service.Notifier{local}
	cleanup := func() {}

	if cfg.MQTT.Broker != "" {
		m, err := notify.DialMQTT(cfg.MQTT, clock)
		if err != nil {
			slog.Warn("MQTT notifications unavailable", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			notifiers = append(notifiers, m)
			cleanup = m.Close
		}
	}
	return notify.NewGated(notify.NewMulti(notifiers...), cfg.Notifications.Enabled), cleanup
}

// sessionDeps carries the collaborators a command wants to override.
type sessionDeps struct {
	camera   service.FrameSource
	tone     service.Tone
	local    service.Notifier
	out      io.Writer
	progress bool
}

// newSession builds a session over store from cfg.
func newSession(cfg *config.Config, store service.BlobStore, deps sessionDeps) (*session.Session, func(), error) {
	clock := service.SystemClock{}

	if deps.out == nil {
		deps.out = os.Stdout
	}
	if deps.tone == nil {
		deps.tone = cli.NewBell(deps.out)
	}
	if deps.local == nil {
		deps.local = notify.NewTerminal(deps.out)
	}
	if deps.camera == nil {
		var opts []camera.Option
		if deps.progress {
			opts = append(opts, camera.WithProgress(os.Stderr))
		}
		deps.camera = camera.NewDirectorySource(cfg.Detection.Frames, opts...)
	}

	notifier, cleanup := buildNotifier(cfg, deps.local, clock)

	sess, err := session.New(session.Options{
		Store:                store,
		Loader:               classifier.NewHTTPLoader(cfg.Detection.ClassifierTimeout, service.RetryOptions{}),
		Camera:               deps.camera,
		Notifier:             notifier,
		Tone:                 deps.tone,
		Clock:                clock,
		Policy:               schedule.FromConfig(cfg.Schedule),
		DefaultClassifierURL: cfg.Detection.ClassifierURL,
		MedicationTerms:      cfg.Alerts.MedicationTerms,
		Threshold:            cfg.Detection.Threshold,
		SampleInterval:       cfg.Detection.Interval,
		ReminderInterval:     cfg.Reminders.Interval,
		ReminderGrace:        cfg.Reminders.Grace,
		Lifetimes: alert.Lifetimes{
			Info:    cfg.Alerts.InfoTTL,
			Success: cfg.Alerts.SuccessTTL,
			Warning: cfg.Alerts.WarningTTL,
		},
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return sess, cleanup, nil
}

// redirectLogs sends slog output to a file next to the database so it does
// not draw over the dashboard.
func redirectLogs(cfg *config.Config) (func(), error) {
	path := filepath.Join(filepath.Dir(cfg.Database.Path), "dosewatch.log")
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // path derives from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	level, err := common.ParseLevel(cfg.Logging.Level)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	handler, err := common.NewHandler(f, level, cfg.Logging.Format)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	previous := slog.Default()
	slog.SetDefault(slog.New(handler))
	return func() {
		slog.SetDefault(previous)
		_ = f.Close()
	}, nil
}

func writeOut(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		slog.Error("failed to write output", "error", err)
	}
}
