// Package composer runs render jobs: it validates a composition request,
// sizes and lays out its assets, schedules the render and drives the encoder
// until a finished video has been probed and checked.
package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelcomposer/batch"
	"reelcomposer/config"
	"reelcomposer/encoder"
	"reelcomposer/graph"
	"reelcomposer/layout"
	"reelcomposer/logging"
	"reelcomposer/platform"
	"reelcomposer/sizing"
	"reelcomposer/types"
)

// Encoder is the subprocess boundary used by the composer
type Encoder interface {
	Render(ctx context.Context, d *graph.Description, output string, opts encoder.Options) (*encoder.Result, error)
	Probe(ctx context.Context, path string) (*encoder.Metadata, error)
	Thumbnail(ctx context.Context, video, output string, at float64) error
}

// Output is the result of a successful composition
type Output struct {
	JobID        string            `json:"job_id"`
	Platform     string            `json:"platform"`
	Path         string            `json:"path"`
	Thumbnail    string            `json:"thumbnail,omitempty"`
	MetadataPath string            `json:"metadata_path,omitempty"`
	Target       float64           `json:"target"`
	Metadata     *encoder.Metadata `json:"metadata"`
	Plan         *batch.Plan       `json:"plan"`
	Layouts      []layout.Plan     `json:"layouts"`
	Sizing       sizing.Result     `json:"sizing"`
	WorkDir      string            `json:"work_dir,omitempty"`
	Elapsed      time.Duration     `json:"elapsed"`
}

// Composer turns composition requests into finished videos
type Composer struct {
	cfg     *config.Config
	catalog *platform.Catalog
	enc     Encoder
	logger  *slog.Logger
}

// New creates a composer
func New(cfg *config.Config, catalog *platform.Catalog, enc Encoder, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Composer{cfg: cfg, catalog: catalog, enc: enc, logger: logging.WithComponent(logger, "composer")}
}

// settings are the request values resolved against the template and config
type settings struct {
	tpl        *platform.Template
	frame      graph.Frame
	target     float64
	transition types.TransitionSpec
	preset     string
	crf        int
}

// Compose renders req into the configured output directory
func (c *Composer) Compose(ctx context.Context, req *types.CompositionRequest, sink types.ProgressSink) (*Output, error) {
	return c.ComposeTo(ctx, req, "", sink)
}

// ComposeTo renders req into output; an empty output picks a name in the
// configured output directory. Requests are fully validated before any
// file is created.
func (c *Composer) ComposeTo(ctx context.Context, req *types.CompositionRequest, output string, sink types.ProgressSink) (*Output, error) {
	start := time.Now()
	jobID := uuid.NewString()
	job := newJob(jobID, sink)
	log := logging.WithJobID(c.logger, jobID)

	out, err := c.compose(ctx, req, output, job, log)
	if err != nil {
		log.Error("composition failed", "kind", types.KindOf(err), "error", err)
		job.fail(err.Error())
		return nil, err
	}
	out.Elapsed = time.Since(start)
	log.Info("composition complete",
		"path", logging.SanitizePath(out.Path),
		"duration", out.Metadata.Duration,
		"elapsed", out.Elapsed.Round(time.Millisecond),
	)
	job.advance(types.StageComplete, 100, "done")
	return out, nil
}

func (c *Composer) compose(ctx context.Context, req *types.CompositionRequest, output string, job *Job, log *slog.Logger) (*Output, error) {
	if req == nil {
		return nil, types.NewError(types.KindInvalidRequest, "validate", "request is required", nil)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s, err := c.resolve(req, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.JobTimeout)
	defer cancel()

	job.advance(types.StageSizing, 0, "checking assets")
	frameDims := types.Dimensions{Width: s.tpl.Width, Height: s.tpl.Height}
	a, err := c.loadAssets(ctx, req, frameDims)
	if err != nil {
		return nil, err
	}
	if err := c.fitVoiceOver(&s, a, log); err != nil {
		return nil, err
	}

	sz := sizing.Compute(s.tpl, sizing.Input{
		Logo:             a.logo,
		ReviewCard:       a.card,
		LogoAnchor:       req.LogoAnchor,
		ReviewCardAnchor: req.ReviewCardAnchor,
	})
	job.advance(types.StageSizing, 100, "overlays sized")

	layouts := make([]layout.Plan, len(a.images))
	for i, dims := range a.images {
		layouts[i] = layout.PlanFor(req.Layout, dims, frameDims, req.BackgroundColor)
	}
	job.advance(types.StageLayout, 100, "layouts selected")

	plan, err := batch.Schedule(len(req.Images), s.target, s.transition.Duration, c.cfg.BatchThreshold, c.cfg.BatchSize)
	if err != nil {
		return nil, types.NewError(types.KindInvalidRequest, "schedule", "cannot schedule images", err)
	}
	if plan.Clamped {
		log.Warn("transition shortened to fit clips", "requested", s.transition.Duration, "used", plan.Transition)
	}
	if plan.PerImage < s.tpl.MinSceneSeconds {
		log.Warn("images shorter than the platform minimum scene", "per_image", plan.PerImage, "min", s.tpl.MinSceneSeconds)
	}
	s.transition.Duration = plan.Transition
	log.Info("render scheduled",
		"images", len(req.Images),
		"batched", plan.Batched,
		"batches", len(plan.Batches),
		"per_image", plan.PerImage,
		"target", s.target,
	)
	job.advance(types.StageBatching, 100, fmt.Sprintf("%d batch(es)", len(plan.Batches)))

	if output == "" {
		output = filepath.Join(c.cfg.OutputDir, fmt.Sprintf("%s-%s.mp4", s.tpl.ID, job.ID))
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	workDir, err := os.MkdirTemp(c.cfg.WorkDirBase, config.WorkDirPrefix+job.ID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	job.WorkDir = workDir
	defer func() {
		if req.RetainArtifacts {
			log.Info("keeping working directory", "dir", workDir)
			return
		}
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("failed to remove working directory", "dir", workDir, "error", err)
		}
	}()

	r := &render{
		c:        c,
		job:      job,
		log:      log,
		s:        s,
		plan:     plan,
		clips:    clipsFor(req, a, layouts),
		overlays: overlaysFor(req, s, sz),
		audio:    c.audioFor(a, s.tpl),
		workDir:  workDir,
		output:   output,
	}
	delivered := false
	defer func() {
		if delivered || req.RetainArtifacts {
			return
		}
		if err := os.Remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("failed to remove incomplete output", "path", logging.SanitizePath(output), "error", err)
		}
	}()
	if err := r.run(ctx); err != nil {
		return nil, err
	}

	job.advance(types.StageFinalizing, 50, "probing output")
	meta, err := c.verify(ctx, output, s)
	if err != nil {
		return nil, err
	}
	delivered = true

	res := &Output{
		JobID:    job.ID,
		Platform: s.tpl.ID,
		Path:     output,
		Target:   s.target,
		Metadata: meta,
		Plan:     plan,
		Layouts:  layouts,
		Sizing:   sz,
	}
	if req.RetainArtifacts {
		res.WorkDir = workDir
	}

	job.advance(types.StageFinalizing, 70, "extracting thumbnail")
	thumb := strings.TrimSuffix(output, filepath.Ext(output)) + ".jpg"
	if err := c.enc.Thumbnail(ctx, output, thumb, math.Min(1, meta.Duration/2)); err != nil {
		log.Warn("thumbnail extraction failed", "error", err)
	} else {
		res.Thumbnail = thumb
	}

	job.advance(types.StageFinalizing, 90, "writing metadata")
	if path, err := writeMetadata(res); err != nil {
		log.Warn("failed to write metadata record", "error", err)
	} else {
		res.MetadataPath = path
	}
	return res, nil
}

// resolve validates req against its template and fills in defaults
func (c *Composer) resolve(req *types.CompositionRequest, log *slog.Logger) (settings, error) {
	invalid := func(msg string, err error) (settings, error) {
		return settings{}, types.NewError(types.KindInvalidRequest, "validate", msg, err)
	}

	tpl, err := c.catalog.Get(req.Platform)
	if err != nil {
		return settings{}, err
	}
	if len(req.Images) < tpl.MinImages {
		return invalid(fmt.Sprintf("%s needs at least %d images, got %d", tpl.ID, tpl.MinImages, len(req.Images)), nil)
	}

	s := settings{
		tpl:    tpl,
		frame:  graph.Frame{Width: tpl.Width, Height: tpl.Height, FPS: tpl.FPS},
		target: tpl.Duration.Default,
		transition: types.TransitionSpec{
			Type:     req.Transition.Type,
			Duration: req.Transition.Duration,
		},
		preset: req.Quality.Preset,
		crf:    req.Quality.CRF,
	}
	if req.TargetDuration != nil {
		s.target = tpl.Duration.Clamp(*req.TargetDuration)
		if s.target != *req.TargetDuration {
			log.Warn("target duration clamped to platform range",
				"requested", *req.TargetDuration, "used", s.target,
				"min", tpl.Duration.Min, "max", tpl.Duration.Max)
		}
	}
	if s.transition.Type == "" {
		s.transition.Type = tpl.Transition.Type
	}
	if s.transition.Duration == 0 {
		s.transition.Duration = tpl.Transition.Duration
	}
	if !graph.ValidTransition(s.transition.Type) {
		return invalid(fmt.Sprintf("unknown transition %q", s.transition.Type), nil)
	}
	if s.preset == "" {
		s.preset = c.cfg.DefaultPreset
	}
	if s.crf == 0 {
		s.crf = c.cfg.DefaultCRF
	}
	for _, anchor := range []string{req.LogoAnchor, req.ReviewCardAnchor} {
		if anchor != "" && !sizing.ValidAnchor(anchor) {
			return invalid(fmt.Sprintf("unknown anchor %q", anchor), nil)
		}
	}
	return s, nil
}

// fitVoiceOver extends the target so the voice-over plays in full after its
// lead-in with padding at the end.
func (c *Composer) fitVoiceOver(s *settings, a *assets, log *slog.Logger) error {
	if a.voiceOver == "" {
		return nil
	}
	required := c.cfg.VoiceOverLeadIn + a.voiceLength + c.cfg.EndPadding
	if required <= s.target {
		return nil
	}
	if required > s.tpl.Duration.Max {
		return types.NewError(types.KindInvalidRequest, "validate",
			fmt.Sprintf("voice-over needs %.2fs but %s allows at most %.2fs", required, s.tpl.ID, s.tpl.Duration.Max), nil)
	}
	log.Info("extending duration for voice-over", "target", s.target, "extended", required, "voice_over", a.voiceLength)
	s.target = required
	return nil
}

// verify probes the output and checks resolution and duration
func (c *Composer) verify(ctx context.Context, output string, s settings) (*encoder.Metadata, error) {
	meta, err := c.enc.Probe(ctx, output)
	if err != nil {
		return nil, types.NewError(types.KindEncodeFailure, "verify", "output is unreadable", err)
	}
	if meta.Width != s.tpl.Width || meta.Height != s.tpl.Height {
		return nil, types.NewError(types.KindEncodeFailure, "verify",
			fmt.Sprintf("output is %dx%d, want %s", meta.Width, meta.Height, s.tpl.Resolution()), nil)
	}
	if diff := math.Abs(meta.Duration - s.target); diff > c.cfg.DurationTolerance {
		c.logger.Warn("duration mismatch", "target", s.target, "actual", meta.Duration)
		return nil, types.NewError(types.KindDurationMismatch, "verify",
			fmt.Sprintf("output is %.3fs, target %.3fs", meta.Duration, s.target), nil)
	}
	return meta, nil
}

func writeMetadata(out *Output) (string, error) {
	path := strings.TrimSuffix(out.Path, filepath.Ext(out.Path)) + ".json"
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// encodeError wraps an encoder failure for the caller
func encodeError(op, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		msg += " (job timeout)"
	}
	return types.NewError(types.KindEncodeFailure, op, msg, err)
}
