package model

import "time"

// AlertKind indicates the tone of a user facing message.
type AlertKind string

// Alert kinds.
const (
	AlertInfo    AlertKind = "info"
	AlertSuccess AlertKind = "success"
	AlertWarning AlertKind = "warning"
)

// AlertState is the single transient message shown to the user.
type AlertState struct {
	ExpiresAt time.Time
	ID        string
	Kind      AlertKind
	Message   string
}

// Expired reports whether the alert's lifetime has elapsed at now.
func (a AlertState) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}
