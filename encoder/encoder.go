// Package encoder runs ffmpeg for a graph description and classifies its failures.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"reelcomposer/graph"
	"reelcomposer/logging"
)

// Runner starts the encoder binary. stdout receives the progress stream.
type Runner interface {
	Run(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

// ExecRunner runs a local binary as a subprocess
type ExecRunner struct {
	Binary string
}

func (r ExecRunner) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second
	return cmd.Run()
}

// Result describes a finished render
type Result struct {
	Path    string
	Args    []string
	Elapsed time.Duration
}

// Encoder renders graph descriptions through a Runner
type Encoder struct {
	runner    Runner
	prober    Prober
	timeout   time.Duration
	tailLines int
	logger    *slog.Logger
}

// Config holds the encoder settings
type Config struct {
	FFmpegPath   string
	FFprobePath  string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	TailLines    int
}

// New creates an encoder backed by local ffmpeg and ffprobe binaries
func New(cfg Config, logger *slog.Logger) *Encoder {
	return NewWithRunner(ExecRunner{Binary: cfg.FFmpegPath}, NewFFProbe(cfg.FFprobePath, cfg.ProbeTimeout), cfg, logger)
}

// NewWithRunner creates an encoder with a custom subprocess boundary
func NewWithRunner(runner Runner, prober Prober, cfg Config, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Encoder{
		runner:    runner,
		prober:    prober,
		timeout:   cfg.Timeout,
		tailLines: cfg.TailLines,
		logger:    logging.WithComponent(logger, "encoder"),
	}
}

// Render encodes d into output. Failures are returned as *Error.
func (e *Encoder) Render(ctx context.Context, d *graph.Description, output string, opts Options) (*Result, error) {
	args, err := Args(d, output, opts)
	if err != nil {
		return nil, &Error{Kind: KindInvalidGraph, Err: err}
	}
	if err := e.run(ctx, args, d.Duration, opts.Progress); err != nil {
		return nil, err
	}
	return &Result{Path: output, Args: args}, nil
}

func (e *Encoder) run(ctx context.Context, args []string, duration float64, progress func(float64)) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	tail := newTailBuffer(e.tailLines)
	e.logger.Debug("starting encoder", "args", len(args), "duration", duration)

	err := e.runner.Run(ctx, args, newProgressWriter(duration, progress), tail)
	elapsed := time.Since(start)
	if err == nil {
		e.logger.Info("encoder finished", "duration_ms", elapsed.Milliseconds())
		return nil
	}

	encErr := &Error{ExitCode: -1, StderrTail: tail.Lines(), Err: err}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		encErr.Kind = KindTimeout
		encErr.Err = ctx.Err()
	case errors.Is(ctx.Err(), context.Canceled):
		encErr.Kind = KindCancelled
		encErr.Err = ctx.Err()
	case errors.As(err, &exitErr):
		encErr.Kind = KindExitNonZero
		encErr.ExitCode = exitErr.ExitCode()
	default:
		encErr.Kind = KindExitNonZero
	}
	e.logger.Warn("encoder failed",
		"kind", encErr.Kind,
		"exit_code", encErr.ExitCode,
		"duration_ms", elapsed.Milliseconds(),
		"stderr_tail", encErr.StderrTail,
	)
	return encErr
}

// Probe reads the container metadata of a media file
func (e *Encoder) Probe(ctx context.Context, path string) (*Metadata, error) {
	return e.prober.Probe(ctx, path)
}

// Thumbnail writes a single frame taken at the given second as an image
func (e *Encoder) Thumbnail(ctx context.Context, video, output string, at float64) error {
	if _, err := os.Stat(video); err != nil {
		return &Error{Kind: KindInvalidGraph, Err: err}
	}
	args := ffmpeg.Input(video, ffmpeg.KwArgs{"ss": strconv.FormatFloat(at, 'f', 3, 64)}).
		Output(output, ffmpeg.KwArgs{"frames:v": "1", "q:v": "2"}).
		OverWriteOutput().
		GetArgs()
	if err := e.run(ctx, append(append([]string{}, globalArgs...), args...), 0, nil); err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	return nil
}
