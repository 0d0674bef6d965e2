package composer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"reelcomposer/batch"
	"reelcomposer/config"
	"reelcomposer/encoder"
	"reelcomposer/graph"
	"reelcomposer/layout"
	"reelcomposer/platform"
	"reelcomposer/sizing"
	"reelcomposer/types"
)

// overlays are the positioned logo and review card, either may be nil
type overlays struct {
	logo *graph.Overlay
	card *graph.Overlay
}

// render drives the encoder for one scheduled job
type render struct {
	c        *Composer
	job      *Job
	log      *slog.Logger
	s        settings
	plan     *batch.Plan
	clips    []graph.Clip
	overlays overlays
	audio    graph.Audio
	workDir  string
	output   string
}

func clipsFor(req *types.CompositionRequest, a *assets, layouts []layout.Plan) []graph.Clip {
	clips := make([]graph.Clip, len(req.Images))
	for i, path := range req.Images {
		clips[i] = graph.Clip{Path: path, Plan: layouts[i], Placeholder: a.placeholders[i]}
	}
	return clips
}

func overlaysFor(req *types.CompositionRequest, s settings, sz sizing.Result) overlays {
	var o overlays
	if sz.Logo != nil {
		start, end := s.tpl.LogoPersistence.Window(s.target)
		o.logo = &graph.Overlay{Path: req.Logo, Placement: *sz.Logo, Start: start, End: end}
	}
	if sz.ReviewCard != nil {
		start, end := s.tpl.ReviewCardWindow.Bounds(s.target)
		if end <= start {
			start, end = 0, s.target
		}
		o.card = &graph.Overlay{Path: req.ReviewCard, Placement: *sz.ReviewCard, Start: start, End: end}
	}
	return o
}

func (c *Composer) audioFor(a *assets, tpl *platform.Template) graph.Audio {
	return graph.Audio{
		VoiceOver:   a.voiceOver,
		Music:       a.music,
		LeadIn:      c.cfg.VoiceOverLeadIn,
		MusicVolume: c.cfg.MusicVolume,
		Fade:        c.cfg.AudioFadeSeconds,
		SampleRate:  tpl.Encode.SampleRate,
		Normalize:   c.cfg.NormalizeLoudness,
	}
}

func (r *render) run(ctx context.Context) error {
	if r.plan.Batched {
		return r.batched(ctx)
	}
	return r.single(ctx)
}

// timed returns the clips of b with their scheduled durations
func (r *render) timed(b batch.Batch) []graph.Clip {
	out := make([]graph.Clip, len(b.Images))
	for i, idx := range b.Images {
		out[i] = r.clips[idx]
		out[i].Duration = b.Durations[i]
	}
	return out
}

func (r *render) deliveryOptions(stage types.Stage) encoder.Options {
	return encoder.Options{
		Preset:  r.s.preset,
		CRF:     r.s.crf,
		Profile: r.s.tpl.Encode,
		Progress: func(p float64) {
			r.job.advance(stage, p, "")
		},
	}
}

func (r *render) intermediateOptions(progress func(float64)) encoder.Options {
	return encoder.Options{
		Preset:       r.s.preset,
		CRF:          config.IntermediateCRF,
		Profile:      r.s.tpl.Encode,
		Intermediate: true,
		Progress:     progress,
	}
}

func (r *render) single(ctx context.Context) error {
	d, err := graph.Build(graph.BuildInput{
		Frame:      r.s.frame,
		Clips:      r.timed(r.plan.Batches[0]),
		Transition: r.s.transition,
		Logo:       r.overlays.logo,
		ReviewCard: r.overlays.card,
		Audio:      r.audio,
	})
	if err != nil {
		return encodeError("build", "cannot build filter graph", err)
	}
	if err := r.saveGraph("graph.json", d); err != nil {
		return err
	}

	r.job.advance(types.StageEncoding, 0, "encoding")
	if _, err := r.c.enc.Render(ctx, d, r.output, r.deliveryOptions(types.StageEncoding)); err != nil {
		return encodeError("encode", "render failed", err)
	}
	r.job.advance(types.StageEncoding, 100, "encoded")
	return nil
}

func (r *render) batched(ctx context.Context) error {
	bp := newBatchProgress(len(r.plan.Batches))
	runner := batch.NewRunner(r.c.cfg.BatchConcurrency, r.log)

	r.job.advance(types.StageEncoding, 0, fmt.Sprintf("encoding %d batches", len(r.plan.Batches)))
	paths, err := runner.Run(ctx, r.plan.Batches, func(ctx context.Context, b batch.Batch) (string, error) {
		d, err := graph.BuildVideoOnly(r.s.frame, r.timed(b), r.s.transition)
		if err != nil {
			return "", encodeError("build", fmt.Sprintf("cannot build batch %d", b.Index), err)
		}
		name := fmt.Sprintf("batch-%02d", b.Index)
		if err := r.saveGraph(name+".json", d); err != nil {
			return "", err
		}
		out := filepath.Join(r.workDir, name+".mp4")
		_, err = r.c.enc.Render(ctx, d, out, r.intermediateOptions(func(p float64) {
			r.job.advance(types.StageEncoding, bp.set(b.Index, p), "")
		}))
		if err != nil {
			return "", encodeError("encode", fmt.Sprintf("batch %d failed", b.Index), err)
		}
		return out, nil
	})
	if err != nil {
		if types.KindOf(err) == "" {
			return encodeError("encode", "batch rendering aborted", err)
		}
		return err
	}

	segments := make([]graph.Segment, len(paths))
	for i, p := range paths {
		segments[i] = graph.Segment{Path: p, Duration: r.plan.Batches[i].SegmentDuration}
	}
	r.job.advance(types.StageStitching, 0, "stitching batches")
	d, err := graph.BuildStitch(r.s.frame, segments, r.plan.Offsets, r.s.transition)
	if err != nil {
		return encodeError("build", "cannot build stitch graph", err)
	}
	if err := r.saveGraph("stitch.json", d); err != nil {
		return err
	}
	stitched := filepath.Join(r.workDir, "stitched.mp4")
	_, err = r.c.enc.Render(ctx, d, stitched, r.intermediateOptions(func(p float64) {
		r.job.advance(types.StageStitching, p, "")
	}))
	if err != nil {
		return encodeError("stitch", "stitching failed", err)
	}

	r.job.advance(types.StageFinalizing, 0, "applying overlays and audio")
	d, err = graph.BuildFinalize(r.s.frame, graph.Segment{Path: stitched, Duration: r.plan.Duration()},
		r.overlays.logo, r.overlays.card, r.audio)
	if err != nil {
		return encodeError("build", "cannot build finalize graph", err)
	}
	if err := r.saveGraph("finalize.json", d); err != nil {
		return err
	}
	opts := r.deliveryOptions(types.StageFinalizing)
	opts.Progress = func(p float64) {
		r.job.advance(types.StageFinalizing, p/2, "")
	}
	if _, err := r.c.enc.Render(ctx, d, r.output, opts); err != nil {
		return encodeError("finalize", "final render failed", err)
	}
	return nil
}

// saveGraph keeps the description next to the intermediates for debugging
func (r *render) saveGraph(name string, d *graph.Description) error {
	data, err := d.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return writeFile(filepath.Join(r.workDir, name), data)
}
