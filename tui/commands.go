package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"reelcomposer/composer"
	"reelcomposer/types"
)

// eventBuffer bounds queued progress events; extra events are dropped
const eventBuffer = 64

// ComposeFunc runs one composition reporting to sink
type ComposeFunc func(ctx context.Context, sink types.ProgressSink) (*composer.Output, error)

// start runs compose in the background. Events arrive on the first channel,
// which is closed before the result is sent on the second.
func start(ctx context.Context, compose ComposeFunc) (<-chan types.ProgressEvent, <-chan DoneMsg) {
	events := make(chan types.ProgressEvent, eventBuffer)
	done := make(chan DoneMsg, 1)
	go func() {
		out, err := compose(ctx, func(ev types.ProgressEvent) {
			select {
			case events <- ev:
			default:
			}
		})
		close(events)
		done <- DoneMsg{Output: out, Err: err}
	}()
	return events, done
}

// listen waits for the next progress event or the final result
func listen(events <-chan types.ProgressEvent, done <-chan DoneMsg) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if ok {
			return ProgressMsg(ev)
		}
		return <-done
	}
}
