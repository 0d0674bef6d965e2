package types

// Stage is a step of a render job
type Stage string

const (
	StageSizing     Stage = "sizing"
	StageLayout     Stage = "layout"
	StageBatching   Stage = "batching"
	StageEncoding   Stage = "encoding"
	StageStitching  Stage = "stitching"
	StageFinalizing Stage = "finalizing"
	StageComplete   Stage = "complete"
	StageFailed     Stage = "failed"
)

// ProgressEvent is emitted to the caller while a job runs.
// Percent is the overall job completion in the range 0-100.
type ProgressEvent struct {
	Stage        Stage   `json:"stage"`
	Percent      float64 `json:"percent"`
	StagePercent float64 `json:"stage_percent"`
	Message      string  `json:"message,omitempty"`
}

// ProgressSink receives progress events. It must not block for long.
type ProgressSink func(ProgressEvent)
