package tui

import "time"

// tickMsg triggers a refresh from the session.
type tickMsg time.Time

// detectionToggledMsg reports the result of starting or stopping detection.
type detectionToggledMsg struct {
	err    error
	active bool
}

// alertChangedMsg is sent when the alert machine transitions.
type alertChangedMsg struct{}

// noticeMsg carries a notification such as a dose reminder.
type noticeMsg struct {
	at    time.Time
	title string
	body  string
}

// toneMsg asks the dashboard to ring the bell.
type toneMsg struct{}
