package tui

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// barWidth is the progress bar length in cells
const barWidth = 40

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	// Title
	b.WriteString(TitleStyle.Render("🎬 " + m.Title))
	b.WriteString("\n\n")

	// Current state
	b.WriteString(m.getStateText())
	b.WriteString("\n\n")

	b.WriteString(progressBar(m.Percent, barWidth))
	b.WriteString(InfoStyle.Render(fmt.Sprintf(" %5.1f%%  %s", m.Percent, time.Since(m.Started).Round(time.Second))))
	b.WriteString("\n\n")

	// Logs
	if len(m.Logs) > 0 {
		b.WriteString(InfoStyle.Render("📝 Recent Activity:"))
		b.WriteString("\n")
		for _, entry := range m.Logs {
			b.WriteString(InfoStyle.Render(fmt.Sprintf("   %s %s", entry.Timestamp.Format("15:04:05"), entry.Message)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	// Results
	if m.State == StateComplete && m.Result != nil {
		b.WriteString(BoxStyle.Render(m.formatResult()))
		b.WriteString("\n\n")
	}

	// Help text
	if m.State == StateRunning {
		b.WriteString(InfoStyle.Render(TextFooterRunning))
	} else {
		b.WriteString(HighlightStyle.Render(TextFooterDone))
	}
	b.WriteString("\n")

	return b.String()
}

// progressBar renders pct (0-100) as a bar of width cells
func progressBar(pct float64, width int) string {
	pct = math.Min(math.Max(pct, 0), 100)
	filled := int(math.Round(pct / 100 * float64(width)))
	return barFillStyle.Render(strings.Repeat("█", filled)) +
		barTrackStyle.Render(strings.Repeat("░", width-filled))
}
