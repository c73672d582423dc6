// Package alert holds the single transient user facing message and decides
// which message each pipeline outcome produces.
package alert

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/service"
)

// Lifetimes sets how long each alert kind stays visible.
type Lifetimes struct {
	Info    time.Duration
	Success time.Duration
	Warning time.Duration
}

// DefaultLifetimes returns 3s info, 5s success and 4s warning lifetimes.
func DefaultLifetimes() Lifetimes {
	return Lifetimes{
		Info:    3 * time.Second,
		Success: 5 * time.Second,
		Warning: 4 * time.Second,
	}
}

func (l Lifetimes) forKind(kind model.AlertKind) time.Duration {
	switch kind {
	case model.AlertSuccess:
		return l.Success
	case model.AlertWarning:
		return l.Warning
	default:
		return l.Info
	}
}

// Machine is the alert state machine. At most one alert is visible; each
// alert clears itself when its lifetime elapses unless something newer
// replaced it first.
type Machine struct {
	clock     service.Clock
	current   *model.AlertState
	timer     service.Timer
	onChange  func(model.AlertState, bool)
	lifetimes Lifetimes
	mu        sync.Mutex
}

// NewMachine creates an empty machine.
func NewMachine(clock service.Clock, lifetimes Lifetimes) *Machine {
	return &Machine{clock: clock, lifetimes: lifetimes}
}

// OnChange registers fn to be called after every transition, with the new
// alert and whether one is visible. fn must not call back into the machine.
func (m *Machine) OnChange(fn func(model.AlertState, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Info shows an informational alert. It never replaces a live success or
// warning and reports whether it was shown.
func (m *Machine) Info(message string) bool {
	return m.show(model.AlertInfo, message)
}

// Success shows a success alert, replacing anything visible.
func (m *Machine) Success(message string) bool {
	return m.show(model.AlertSuccess, message)
}

// Warning shows a warning alert, replacing anything visible.
func (m *Machine) Warning(message string) bool {
	return m.show(model.AlertWarning, message)
}

func (m *Machine) show(kind model.AlertKind, message string) bool {
	m.mu.Lock()
	now := m.clock.Now()
	if kind == model.AlertInfo && m.current != nil && m.current.Kind != model.AlertInfo && !m.current.Expired(now) {
		m.mu.Unlock()
		return false
	}

	ttl := m.lifetimes.forKind(kind)

	// A repeat of the live alert extends it without a transition.
	if c := m.current; c != nil && c.Kind == kind && c.Message == message && !c.Expired(now) {
		c.ExpiresAt = now.Add(ttl)
		m.armLocked(c.ID, ttl)
		m.mu.Unlock()
		return false
	}

	state := model.AlertState{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		ExpiresAt: now.Add(ttl),
	}
	m.current = &state
	m.armLocked(state.ID, ttl)
	notify := m.onChange
	m.mu.Unlock()

	if notify != nil {
		notify(state, true)
	}
	return true
}

func (m *Machine) armLocked(id string, ttl time.Duration) {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clock.AfterFunc(ttl, func() { m.expire(id) })
}

// expire clears the alert only if it is still the one the timer was armed for.
func (m *Machine) expire(id string) {
	m.mu.Lock()
	if m.current == nil || m.current.ID != id {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.timer = nil
	notify := m.onChange
	m.mu.Unlock()

	if notify != nil {
		notify(model.AlertState{}, false)
	}
}

// Clear removes any visible alert immediately.
func (m *Machine) Clear() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	had := m.current != nil
	m.current = nil
	notify := m.onChange
	m.mu.Unlock()

	if had && notify != nil {
		notify(model.AlertState{}, false)
	}
}

// Current returns the visible alert, if any.
func (m *Machine) Current() (model.AlertState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Expired(m.clock.Now()) {
		return model.AlertState{}, false
	}
	return *m.current, true
}
