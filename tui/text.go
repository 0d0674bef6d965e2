package tui

// UI Text Constants
const (
	TextFooterRunning = "Press 'q' or Ctrl+C to cancel"
	TextFooterDone    = "Done"
)
