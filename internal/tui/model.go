// Package tui renders the live adherence dashboard.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/dosewatch/internal/detection"
	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/service"
	"github.com/Veraticus/dosewatch/internal/tui/themes"
)

// Dashboard is the session surface the TUI reads and drives.
type Dashboard interface {
	StartDetection(ctx context.Context) error
	StopDetection() error
	OnAlert(fn func(model.AlertState, bool))
	Stats() model.Stats
	Alert() (model.AlertState, bool)
	Week() []*model.DayLog
	Doses() []model.DoseType
	Banner() string
	LastDetection() (detection.Result, bool)
	Active() bool
	ClassifierURL() string
}

// Model holds the dashboard state. It is refreshed from the session on
// every tick and never mutates ledger state itself.
type Model struct {
	theme     themes.Theme
	ctx       context.Context
	dash      Dashboard
	bell      service.Tone
	lastError error
	keymap    KeyMap
	progress  progress.Model
	alert     model.AlertState
	notice    noticeMsg
	last      detection.Result
	week      []*model.DayLog
	doses     []model.DoseType
	source    string
	banner    string
	config    Config
	stats     model.Stats
	width     int
	height    int
	hasAlert  bool
	hasNotice bool
	hasLast   bool
	active    bool
	showHelp  bool
	quitting  bool
}

// newModel creates a new model with the given configuration.
func newModel(ctx context.Context, dash Dashboard, cfg Config) Model {
	prog := progress.New(progress.WithSolidFill(string(cfg.Theme.Success)))
	prog.Width = 30

	m := Model{
		ctx:      ctx,
		dash:     dash,
		config:   cfg,
		theme:    cfg.Theme,
		keymap:   DefaultKeyMap(),
		progress: prog,
		width:    cfg.Width,
		height:   cfg.Height,
		showHelp: cfg.ShowHelp,
	}
	if cfg.bridge != nil {
		m.bell = cfg.bridge.bell
	}
	m.sync()
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick()}
	if m.config.AutoStart && !m.active {
		cmds = append(cmds, m.toggle())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, min(m.width-30, 40))

	case tickMsg:
		m.sync()
		return m, m.tick()

	case alertChangedMsg:
		m.sync()

	case detectionToggledMsg:
		m.lastError = msg.err
		m.sync()

	case noticeMsg:
		m.notice, m.hasNotice = msg, true

	case toneMsg:
		if m.bell != nil {
			m.bell.Play()
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Toggle):
		return m, m.toggle()
	case key.Matches(msg, m.keymap.Dismiss):
		m.hasNotice = false
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
	case key.Matches(msg, m.keymap.Refresh):
		m.sync()
		return m, tea.ClearScreen
	}
	return m, nil
}

// toggle starts or stops detection off the update loop.
func (m Model) toggle() tea.Cmd {
	dash, ctx, active := m.dash, m.ctx, m.active
	return func() tea.Msg {
		if active {
			return detectionToggledMsg{err: dash.StopDetection(), active: false}
		}
		err := dash.StartDetection(ctx)
		return detectionToggledMsg{err: err, active: err == nil}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.config.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// sync copies the session views into the model.
func (m *Model) sync() {
	m.stats = m.dash.Stats()
	m.alert, m.hasAlert = m.dash.Alert()
	m.week = m.dash.Week()
	m.doses = m.dash.Doses()
	m.banner = m.dash.Banner()
	m.last, m.hasLast = m.dash.LastDetection()
	m.active = m.dash.Active()
	m.source = m.dash.ClassifierURL()
}
