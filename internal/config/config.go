// Package config turns viper settings into the typed application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/model"
)

// DoseWindow configures one scheduled dose slot.
type DoseWindow struct {
	Dose          model.DoseType       `yaml:"dose"`
	Label         model.DetectionLabel `yaml:"label"`
	ScheduledTime string               `yaml:"time"`
	StartHour     int                  `yaml:"start_hour"`
	EndHour       int                  `yaml:"end_hour"`
}

// DatabaseConfig locates the local blob store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DetectionConfig tunes the sampling loop and classifier.
type DetectionConfig struct {
	ClassifierURL     string        `yaml:"classifier_url"`
	Frames            string        `yaml:"frames"`
	Threshold         float64       `yaml:"threshold"`
	Interval          time.Duration `yaml:"interval"`
	ClassifierTimeout time.Duration `yaml:"classifier_timeout"`
}

// ReminderConfig tunes the reminder sweep.
type ReminderConfig struct {
	Interval time.Duration `yaml:"interval"`
	Grace    time.Duration `yaml:"grace"`
}

// AlertConfig sets alert lifetimes and the medication matcher.
type AlertConfig struct {
	MedicationTerms []string      `yaml:"medication_terms"`
	InfoTTL         time.Duration `yaml:"info_ttl"`
	SuccessTTL      time.Duration `yaml:"success_ttl"`
	WarningTTL      time.Duration `yaml:"warning_ttl"`
}

// NotificationConfig gates system notifications.
type NotificationConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MQTTConfig configures the optional MQTT notification transport.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"-"`
	Topic    string `yaml:"topic"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete application configuration.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	MQTT          MQTTConfig         `yaml:"mqtt"`
	Logging       LoggingConfig      `yaml:"logging"`
	Alerts        AlertConfig        `yaml:"alerts"`
	Schedule      []DoseWindow       `yaml:"schedule"`
	Detection     DetectionConfig    `yaml:"detection"`
	Reminders     ReminderConfig     `yaml:"reminders"`
	Notifications NotificationConfig `yaml:"notifications"`
}

var defaultDoses = []model.DoseType{model.DoseMorning, model.DoseEvening}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "$HOME/.local/share/dosewatch/dosewatch.db")

	v.SetDefault("detection.threshold", 0.75)
	v.SetDefault("detection.interval", 500*time.Millisecond)
	v.SetDefault("detection.classifier_timeout", 10*time.Second)
	v.SetDefault("detection.classifier_url", "")
	v.SetDefault("detection.frames", "")

	v.SetDefault("schedule.morning.label", string(model.LabelPillMorning))
	v.SetDefault("schedule.morning.time", "08:00")
	v.SetDefault("schedule.morning.start_hour", 7)
	v.SetDefault("schedule.morning.end_hour", 9)
	v.SetDefault("schedule.evening.label", string(model.LabelPillEvening))
	v.SetDefault("schedule.evening.time", "20:00")
	v.SetDefault("schedule.evening.start_hour", 19)
	v.SetDefault("schedule.evening.end_hour", 21)

	v.SetDefault("reminders.interval", time.Minute)
	v.SetDefault("reminders.grace", 15*time.Minute)

	v.SetDefault("alerts.info_ttl", 3*time.Second)
	v.SetDefault("alerts.success_ttl", 5*time.Second)
	v.SetDefault("alerts.warning_ttl", 4*time.Second)
	v.SetDefault("alerts.medication_terms", []string{"pill", "med"})

	v.SetDefault("notifications.enabled", true)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "dosewatch")
	v.SetDefault("mqtt.topic", "dosewatch/notifications")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Detection: DetectionConfig{
			ClassifierURL:     v.GetString("detection.classifier_url"),
			Frames:            ExpandPath(v.GetString("detection.frames")),
			Threshold:         v.GetFloat64("detection.threshold"),
			Interval:          v.GetDuration("detection.interval"),
			ClassifierTimeout: v.GetDuration("detection.classifier_timeout"),
		},
		Reminders: ReminderConfig{
			Interval: v.GetDuration("reminders.interval"),
			Grace:    v.GetDuration("reminders.grace"),
		},
		Alerts: AlertConfig{
			MedicationTerms: v.GetStringSlice("alerts.medication_terms"),
			InfoTTL:         v.GetDuration("alerts.info_ttl"),
			SuccessTTL:      v.GetDuration("alerts.success_ttl"),
			WarningTTL:      v.GetDuration("alerts.warning_ttl"),
		},
		Notifications: NotificationConfig{
			Enabled: v.GetBool("notifications.enabled"),
		},
		MQTT: MQTTConfig{
			Broker:   v.GetString("mqtt.broker"),
			ClientID: v.GetString("mqtt.client_id"),
			Username: v.GetString("mqtt.username"),
			Password: v.GetString("mqtt.password"),
			Topic:    v.GetString("mqtt.topic"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	for _, name := range scheduleNames(v) {
		prefix := "schedule." + name + "."
		cfg.Schedule = append(cfg.Schedule, DoseWindow{
			Dose:          model.DoseType(name),
			Label:         model.DetectionLabel(v.GetString(prefix + "label")),
			ScheduledTime: v.GetString(prefix + "time"),
			StartHour:     v.GetInt(prefix + "start_hour"),
			EndHour:       v.GetInt(prefix + "end_hour"),
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// scheduleNames returns the default dose names followed by any extra slots
// defined in the config file, in a stable order.
func scheduleNames(v *viper.Viper) []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(defaultDoses))
	for _, dose := range defaultDoses {
		seen[string(dose)] = true
		names = append(names, string(dose))
	}

	var extra []string
	for name := range v.GetStringMap("schedule") {
		if !seen[name] {
			seen[name] = true
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.Detection.Threshold <= 0 || c.Detection.Threshold >= 1 {
		return fmt.Errorf("%w: detection.threshold must be between 0 and 1, got %v", common.ErrInvalidConfig, c.Detection.Threshold)
	}
	if c.Detection.Interval <= 0 {
		return fmt.Errorf("%w: detection.interval must be positive", common.ErrInvalidConfig)
	}
	if c.Reminders.Interval <= 0 {
		return fmt.Errorf("%w: reminders.interval must be positive", common.ErrInvalidConfig)
	}
	if c.Reminders.Grace < 0 {
		return fmt.Errorf("%w: reminders.grace cannot be negative", common.ErrInvalidConfig)
	}
	if c.Alerts.InfoTTL <= 0 || c.Alerts.SuccessTTL <= 0 || c.Alerts.WarningTTL <= 0 {
		return fmt.Errorf("%w: alert lifetimes must be positive", common.ErrInvalidConfig)
	}
	if len(c.Schedule) == 0 {
		return fmt.Errorf("%w: at least one scheduled dose is required", common.ErrMissingConfig)
	}

	labels := make(map[model.DetectionLabel]model.DoseType, len(c.Schedule))
	for _, w := range c.Schedule {
		if err := w.validate(); err != nil {
			return err
		}
		if other, dup := labels[w.Label]; dup {
			return fmt.Errorf("%w: label %q is mapped to both %s and %s", common.ErrInvalidConfig, w.Label, other, w.Dose)
		}
		labels[w.Label] = w.Dose
	}
	return nil
}

func (w DoseWindow) validate() error {
	if !w.Label.IsCanonical() {
		return fmt.Errorf("%w: schedule.%s.label %q must be lowercase and underscore separated", common.ErrInvalidConfig, w.Dose, w.Label)
	}
	if w.Label.IsIgnored() {
		return fmt.Errorf("%w: schedule.%s.label cannot be %q", common.ErrInvalidConfig, w.Dose, w.Label)
	}
	if _, err := time.Parse(model.TakenLayout, w.ScheduledTime); err != nil {
		return fmt.Errorf("%w: schedule.%s.time %q is not HH:MM", common.ErrInvalidConfig, w.Dose, w.ScheduledTime)
	}
	if w.StartHour < 0 || w.EndHour > 23 || w.StartHour > w.EndHour {
		return fmt.Errorf("%w: schedule.%s window [%d,%d] is not a valid hour range", common.ErrInvalidConfig, w.Dose, w.StartHour, w.EndHour)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
