package tui

import (
	"reelcomposer/composer"
	"reelcomposer/types"
)

// ProgressMsg carries one progress event from the running job
type ProgressMsg types.ProgressEvent

// DoneMsg is sent once the composition has returned
type DoneMsg struct {
	Output *composer.Output
	Err    error
}
