package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/dosewatch/internal/model"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{m.renderHeader()}
	if m.banner != "" {
		sections = append(sections, m.theme.Banner.Render(m.banner))
	}
	if m.hasNotice {
		sections = append(sections, m.renderNotice())
	}
	sections = append(sections,
		m.renderAlert(),
		m.renderDetection(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderStats(), " ", m.renderWeek()),
	)
	if m.lastError != nil {
		sections = append(sections, m.theme.StatusError.Render("Error: "+m.lastError.Error()))
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	status := m.theme.StatusPending.Render("idle")
	if m.active {
		status = m.theme.StatusSuccess.Render("watching")
	}
	source := m.source
	if source == "" {
		source = "no classifier"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.Title.Render("💊 dosewatch"),
		"  ", status,
		"  ", m.theme.Subtitle.Render(source),
	)
}

func (m Model) renderAlert() string {
	if !m.hasAlert {
		return m.theme.StatusPending.Render(" ")
	}
	switch m.alert.Kind {
	case model.AlertSuccess:
		return m.theme.StatusSuccess.Render("✓ " + m.alert.Message)
	case model.AlertWarning:
		return m.theme.StatusWarning.Render("⚠ " + m.alert.Message)
	default:
		return m.theme.StatusInfo.Render("• " + m.alert.Message)
	}
}

func (m Model) renderNotice() string {
	head := m.theme.StatusWarning.Render(fmt.Sprintf("🔔 %s (%s)", m.notice.title, m.notice.at.Format("15:04")))
	return head + "\n" + m.theme.Subtitle.Render(m.notice.body)
}

func (m Model) renderDetection() string {
	if !m.hasLast {
		return m.theme.StatusPending.Render("No detections yet")
	}
	if !m.last.Overlay.Visible {
		return m.theme.Subtitle.Render(fmt.Sprintf("Nothing in view (%.0f%%)", m.last.Winner.Confidence*100))
	}

	o := m.last.Overlay
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(o.Color)).Bold(true)
	where := "off schedule"
	if o.OnSchedule {
		where = "on schedule"
	}
	return style.Render(fmt.Sprintf("▣ %s %.0f%% %s", o.Label.Normalized(), o.Confidence*100, where))
}

func (m Model) renderStats() string {
	rate := m.stats.AdherenceRate()
	lines := []string{
		m.theme.Bold.Render("Streak"),
		fmt.Sprintf("%d day(s)", m.stats.CurrentStreak),
		"",
		m.theme.Bold.Render("Taken"),
		fmt.Sprintf("%d of %d", m.stats.TotalTaken, m.stats.TotalScheduled),
		"",
		m.progress.ViewAs(rate),
	}
	return m.theme.RoundedBox.Render(strings.Join(lines, "\n"))
}

func (m Model) renderWeek() string {
	var rows []string

	header := fmt.Sprintf("%-6s", "")
	for _, dose := range m.doses {
		header += fmt.Sprintf(" %-8s", dose)
	}
	rows = append(rows, m.theme.Bold.Render(header))

	for _, day := range m.week {
		t, err := day.Time(time.Local)
		label := day.Date
		if err == nil {
			label = t.Format("Mon 02")
		}
		row := fmt.Sprintf("%-6s", label)
		for _, dose := range m.doses {
			row += " " + m.renderSlot(day.Slot(dose))
		}
		rows = append(rows, row)
	}
	return m.theme.RoundedBox.Render(strings.Join(rows, "\n"))
}

func (m Model) renderSlot(rec *model.DoseRecord) string {
	if rec == nil || !rec.Taken() {
		return m.theme.Missed.Render(fmt.Sprintf("%-8s", "·"))
	}
	return m.theme.Taken.Render(fmt.Sprintf("%-8s", "✓ "+*rec.TakenAt))
}

func (m Model) renderHelp() string {
	parts := make([]string, 0, len(m.keymap.ShortHelp()))
	for _, b := range m.keymap.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.Subtitle.Render(strings.Join(parts, " • "))
}
