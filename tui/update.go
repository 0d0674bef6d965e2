package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"reelcomposer/types"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case ProgressMsg:
		return m.handleProgress(msg)
	case DoneMsg:
		return m.handleDone(msg)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.State == StateRunning && m.cancel != nil {
			m.cancel()
			m = m.AddLog("Cancelling...")
			// the pending listen delivers DoneMsg once the job has unwound
			return m, nil
		}
		return m, tea.Quit
	}
	return m, nil
}

// handleProgress folds a progress event into the view
func (m Model) handleProgress(msg ProgressMsg) (tea.Model, tea.Cmd) {
	ev := types.ProgressEvent(msg)
	if ev.Stage != types.StageFailed && ev.Stage != types.StageComplete {
		if ev.Stage != m.Stage {
			m = m.AddLog(stageLabel(ev.Stage))
		}
		m.Stage = ev.Stage
		m.StagePercent = ev.StagePercent
	}
	if ev.Percent > m.Percent {
		m.Percent = ev.Percent
	}
	if ev.Message != "" && ev.Stage != types.StageFailed {
		m = m.AddLog(ev.Message)
	}
	return m, listen(m.events, m.done)
}

// handleDone records the result and exits
func (m Model) handleDone(msg DoneMsg) (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.Result = msg.Output
	m.Err = msg.Err
	if msg.Err != nil {
		m.State = StateError
		return m, tea.Quit
	}
	m.State = StateComplete
	m.Percent = 100
	return m, tea.Quit
}
