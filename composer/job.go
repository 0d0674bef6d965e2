package composer

import (
	"sync"

	"reelcomposer/types"
)

// stageSpan maps each stage onto its slice of the overall percentage
var stageSpan = map[types.Stage][2]float64{
	types.StageSizing:     {0, 5},
	types.StageLayout:     {5, 10},
	types.StageBatching:   {10, 15},
	types.StageEncoding:   {15, 75},
	types.StageStitching:  {75, 85},
	types.StageFinalizing: {85, 100},
	types.StageComplete:   {100, 100},
}

// Job tracks one composition while it runs
type Job struct {
	ID      string
	WorkDir string

	mu           sync.Mutex
	stagePercent float64
	percent      float64
	sink         types.ProgressSink
}

func newJob(id string, sink types.ProgressSink) *Job {
	return &Job{ID: id, sink: sink}
}

// advance records progress within a stage. The overall percentage never
// decreases.
func (j *Job) advance(stage types.Stage, stagePct float64, msg string) {
	stagePct = min(max(stagePct, 0), 100)

	j.mu.Lock()
	j.stagePercent = stagePct
	if span, ok := stageSpan[stage]; ok {
		if p := span[0] + (span[1]-span[0])*stagePct/100; p > j.percent {
			j.percent = p
		}
	}
	j.emit(types.ProgressEvent{Stage: stage, Percent: j.percent, StagePercent: stagePct, Message: msg})
	j.mu.Unlock()
}

// fail reports the failed stage without changing the overall percentage
func (j *Job) fail(msg string) {
	j.mu.Lock()
	j.emit(types.ProgressEvent{Stage: types.StageFailed, Percent: j.percent, StagePercent: j.stagePercent, Message: msg})
	j.mu.Unlock()
}

// emit delivers under j.mu so events arrive in order
func (j *Job) emit(ev types.ProgressEvent) {
	if j.sink != nil {
		j.sink(ev)
	}
}

// batchProgress averages the progress of parallel batch renders
type batchProgress struct {
	mu    sync.Mutex
	parts []float64
}

func newBatchProgress(n int) *batchProgress {
	return &batchProgress{parts: make([]float64, n)}
}

func (b *batchProgress) set(i int, pct float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parts[i] = pct
	total := 0.0
	for _, p := range b.parts {
		total += p
	}
	return total / float64(len(b.parts))
}
