package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"reelcomposer/composer"
	"reelcomposer/types"
)

// State represents the view state machine
type State string

const (
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateError    State = "error"
)

// maxLogs is the number of activity lines kept on screen
const maxLogs = 8

// LogEntry is a single activity line with timestamp
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

// Model is the progress view of one composition
type Model struct {
	Title string

	State        State
	Stage        types.Stage
	Percent      float64
	StagePercent float64
	Logs         []LogEntry
	Result       *composer.Output
	Err          error

	Started time.Time
	cancel  context.CancelFunc
	events  <-chan types.ProgressEvent
	done    <-chan DoneMsg
}

// NewModel starts compose in the background and returns a view tracking it
func NewModel(ctx context.Context, title string, compose ComposeFunc) Model {
	ctx, cancel := context.WithCancel(ctx)
	events, done := start(ctx, compose)
	return Model{
		Title:   title,
		State:   StateRunning,
		Started: time.Now(),
		cancel:  cancel,
		events:  events,
		done:    done,
	}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return listen(m.events, m.done)
}

// AddLog appends an activity line, keeping the most recent ones
func (m Model) AddLog(msg string) Model {
	m.Logs = append(m.Logs, LogEntry{Timestamp: time.Now(), Message: msg})
	if len(m.Logs) > maxLogs {
		m.Logs = m.Logs[len(m.Logs)-maxLogs:]
	}
	return m
}

// getStateText returns the appropriate state message
func (m Model) getStateText() string {
	switch m.State {
	case StateRunning:
		return StatusStyle.Render(fmt.Sprintf("⏳ %s (%.0f%%)", stageLabel(m.Stage), m.StagePercent))
	case StateComplete:
		return HighlightStyle.Render("✅ COMPLETE")
	case StateError:
		errMsg := "Unknown error"
		if m.Err != nil {
			errMsg = m.Err.Error()
		}
		return ErrorStyle.Render(fmt.Sprintf("❌ %s: %s", kindLabel(m.Err), errMsg))
	default:
		return ""
	}
}

// formatResult formats the finished video for display
func (m Model) formatResult() string {
	out := m.Result
	var b strings.Builder

	b.WriteString(HighlightStyle.Render("Finished Video"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Path: %s\n", StatusStyle.Render(out.Path)))
	b.WriteString(fmt.Sprintf("Job: %s\n\n", out.JobID))

	if md := out.Metadata; md != nil {
		b.WriteString(fmt.Sprintf("Resolution: %dx%d @ %.2f fps\n", md.Width, md.Height, md.FPS))
		b.WriteString(fmt.Sprintf("Duration: %.2fs (target %.2fs)\n", md.Duration, out.Target))
		if md.Codec != "" {
			b.WriteString(fmt.Sprintf("Codec: %s, %d kb/s\n", md.Codec, md.Bitrate/1000))
		}
	}
	if out.Plan != nil {
		b.WriteString(fmt.Sprintf("Batches: %d, %.2fs per image\n", len(out.Plan.Batches), out.Plan.PerImage))
	}
	if out.Thumbnail != "" {
		b.WriteString(fmt.Sprintf("Thumbnail: %s\n", out.Thumbnail))
	}
	if out.WorkDir != "" {
		b.WriteString(InfoStyle.Render(fmt.Sprintf("Artifacts kept in %s", out.WorkDir)))
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\nElapsed: %s", out.Elapsed.Round(time.Millisecond)))
	return b.String()
}

func stageLabel(s types.Stage) string {
	switch s {
	case "":
		return "Starting"
	case types.StageSizing:
		return "Sizing overlays"
	case types.StageLayout:
		return "Choosing layouts"
	case types.StageBatching:
		return "Scheduling batches"
	case types.StageEncoding:
		return "Encoding"
	case types.StageStitching:
		return "Stitching batches"
	case types.StageFinalizing:
		return "Finalizing"
	default:
		return string(s)
	}
}

func kindLabel(err error) string {
	if k := types.KindOf(err); k != "" {
		return strings.ReplaceAll(string(k), "_", " ")
	}
	return "error"
}
