package config

import "time"

// Batch Scheduling Constants
const (
	// DefaultBatchThreshold is the largest image count rendered in a single pass
	DefaultBatchThreshold = 6

	// DefaultBatchSize is the number of new images each batch contributes
	DefaultBatchSize = 3

	// DefaultBatchConcurrency limits the number of encoder subprocesses per job
	DefaultBatchConcurrency = 1

	// MaxBatchConcurrency is the hard upper bound for BatchConcurrency
	MaxBatchConcurrency = 2
)

// Timing Constants
const (
	// DefaultJobTimeout bounds a whole composition
	DefaultJobTimeout = 20 * time.Minute

	// DefaultEncodeTimeout bounds a single encoder subprocess
	DefaultEncodeTimeout = 10 * time.Minute

	// DefaultProbeTimeout bounds a single ffprobe call
	DefaultProbeTimeout = 30 * time.Second

	// DurationTolerance is the allowed drift between target and rendered duration in seconds
	DurationTolerance = 0.1
)

// Audio Constants
const (
	// VoiceOverLeadIn delays the voice-over from the start of the video in seconds
	VoiceOverLeadIn = 0.5

	// VideoEndPadding keeps the picture on screen after the voice-over ends in seconds
	VideoEndPadding = 0.5

	// MusicVolume is the background music gain when mixed under a voice-over
	MusicVolume = 0.25

	// AudioFadeSeconds is the fade in/out length applied to audio tracks
	AudioFadeSeconds = 1.5
)

// Encoding Constants
const (
	// DefaultPreset is the x264 speed preset used when a request leaves it empty
	DefaultPreset = "fast"

	// DefaultCRF is the x264 constant rate factor used when a request leaves it at zero
	DefaultCRF = 23

	// IntermediateCRF keeps batch and stitch intermediates close to lossless
	IntermediateCRF = 16

	// StderrTailLines is the number of encoder diagnostic lines kept on failure
	StderrTailLines = 20
)

// Directory Constants
const (
	// WorkDirPrefix names per-job working directories
	WorkDirPrefix = "reelcomposer-"

	// OutputDir is the default directory for finished videos
	OutputDir = "output"
)
