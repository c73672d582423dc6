// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/dosewatch/internal/model"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#7C83FD")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#10B981") // Green
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#F59E0B") // Amber
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#EF4444") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#60A5FA") // Blue
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// TableHeaderStyle is used for table headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("#333"))

	// TableCellStyle formats table cells with appropriate padding.
	TableCellStyle = lipgloss.NewStyle().
			PaddingRight(2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	PillIcon    = "💊"
	BellIcon    = "🔔"
	ChartIcon   = "📊"
	MissedIcon  = "·"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the pill icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(PillIcon + " " + title)
}

// FormatNotification formats a system notification line.
func FormatNotification(title, body string) string {
	return BoldStyle.Render(BellIcon+" "+title) + " " + body
}

// FormatAlert renders an alert in the style of its kind.
func FormatAlert(a model.AlertState) string {
	switch a.Kind {
	case model.AlertSuccess:
		return FormatSuccess(a.Message)
	case model.AlertWarning:
		return FormatWarning(a.Message)
	default:
		return FormatInfo(a.Message)
	}
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	boxContent := lipgloss.JoinVertical(
		lipgloss.Left,
		boxTitle,
		content,
	)

	return BoxStyle.Render(boxContent)
}

// RenderStats renders the streak, totals and adherence rate.
func RenderStats(s model.Stats) string {
	lines := []string{
		fmt.Sprintf("%s %s", BoldStyle.Render("Current streak:"), pluralDays(s.CurrentStreak)),
		fmt.Sprintf("%s %d of %d", BoldStyle.Render("Doses taken:"), s.TotalTaken, s.TotalScheduled),
		fmt.Sprintf("%s %.0f%%", BoldStyle.Render("Adherence:"), s.AdherenceRate()*100),
	}
	return RenderBox(ChartIcon+" Adherence", strings.Join(lines, "\n"))
}

// RenderWeek renders one row per day with a column per dose.
func RenderWeek(days []*model.DayLog, doses []model.DoseType) string {
	var b strings.Builder

	header := []string{TableCellStyle.Render("Date")}
	for _, dose := range doses {
		header = append(header, TableCellStyle.Render(capitalize(string(dose))))
	}
	b.WriteString(TableHeaderStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, header...)))
	b.WriteString("\n")

	for _, day := range days {
		row := []string{TableCellStyle.Render(day.Date)}
		for _, dose := range doses {
			row = append(row, TableCellStyle.Render(formatSlot(day.Slot(dose))))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
		b.WriteString("\n")
	}
	return b.String()
}

func formatSlot(rec *model.DoseRecord) string {
	if rec == nil || !rec.Taken() {
		return SubtleStyle.Render(MissedIcon + "      ")
	}
	return SuccessStyle.Render(SuccessIcon + " " + *rec.TakenAt)
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// StyleSuccess formats text as success message.
func StyleSuccess(text string) string {
	return SuccessStyle.Render(text)
}

// StyleWarning formats text as warning message.
func StyleWarning(text string) string {
	return WarningStyle.Render(text)
}

// StyleError formats text as error message.
func StyleError(text string) string {
	return ErrorStyle.Render(text)
}
