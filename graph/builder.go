package graph

import (
	"fmt"
	"strconv"

	"reelcomposer/layout"
	"reelcomposer/types"
)

// DefaultTransition is used when a request names no transition type
const DefaultTransition = "fade"

// transitions accepted by the xfade filter
var transitions = map[string]bool{
	"fade": true, "fadeblack": true, "fadewhite": true, "dissolve": true,
	"wipeleft": true, "wiperight": true, "wipeup": true, "wipedown": true,
	"slideleft": true, "slideright": true, "slideup": true, "slidedown": true,
	"smoothleft": true, "smoothright": true, "smoothup": true, "smoothdown": true,
	"circleopen": true, "circleclose": true, "circlecrop": true, "rectcrop": true,
	"distance": true, "radial": true, "pixelize": true, "zoomin": true,
	"hblur": true, "fadegrays": true, "diagtl": true, "diagtr": true,
	"diagbl": true, "diagbr": true, "hlslice": true, "hrslice": true,
	"vuslice": true, "vdslice": true, "squeezeh": true, "squeezev": true,
}

// ValidTransition reports whether name is a supported transition type
func ValidTransition(name string) bool {
	return name == "" || transitions[name]
}

// Frame is the output raster
type Frame struct {
	Width  int
	Height int
	FPS    int
}

// Clip is one still image shown for Duration seconds.
// A Placeholder clip renders a solid colour instead of reading Path.
type Clip struct {
	Path        string
	Duration    float64
	Plan        layout.Plan
	Placeholder bool
}

// Overlay is an image composited at Placement between Start and End seconds
type Overlay struct {
	Path      string
	Placement types.Placement
	Start     float64
	End       float64
}

// Audio describes the soundtrack. Empty paths mean the track is absent.
type Audio struct {
	VoiceOver   string
	Music       string
	LeadIn      float64
	MusicVolume float64
	Fade        float64
	SampleRate  int
	Normalize   bool
}

// BuildInput is a complete single-pass composition
type BuildInput struct {
	Frame      Frame
	Clips      []Clip
	Transition types.TransitionSpec
	Logo       *Overlay
	ReviewCard *Overlay
	Audio      Audio
}

// Segment is an already rendered video used as a stitch input
type Segment struct {
	Path     string
	Duration float64
}

type builder struct {
	d     *Description
	label int
}

func newBuilder(kind string, frame Frame) *builder {
	return &builder{d: &Description{
		Kind:   kind,
		Width:  frame.Width,
		Height: frame.Height,
		FPS:    frame.FPS,
	}}
}

func (b *builder) input(path string, opts ...Option) int {
	b.d.Inputs = append(b.d.Inputs, Input{Path: path, Options: opts})
	return len(b.d.Inputs) - 1
}

func (b *builder) node(filter string, inputs []string, args []string, params ...Option) string {
	out := fmt.Sprintf("s%d", b.label)
	b.label++
	b.d.Nodes = append(b.d.Nodes, Node{
		Filter: filter,
		Inputs: inputs,
		Output: out,
		Args:   args,
		Params: params,
	})
	return out
}

// then appends a single-input filter after port
func (b *builder) then(port, filter string, args []string, params ...Option) string {
	return b.node(filter, []string{port}, args, params...)
}

func (b *builder) finish(duration float64, video, audio string) (*Description, error) {
	b.d.Duration = round3(duration)
	b.d.VideoOut = video
	b.d.AudioOut = audio
	if err := b.d.Validate(); err != nil {
		return nil, err
	}
	return b.d, nil
}

func opt(k, v string) Option { return Option{Key: k, Value: v} }

// secs formats a time value with millisecond precision
func secs(v float64) string {
	return strconv.FormatFloat(round3(v), 'f', 3, 64)
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}

func itoa(v int) string { return strconv.Itoa(v) }

// Build describes a full single-pass render: image clips joined with
// transitions, overlays and the mixed soundtrack.
func Build(in BuildInput) (*Description, error) {
	if err := checkClips(in.Frame, in.Clips, in.Transition); err != nil {
		return nil, err
	}
	b := newBuilder(KindSingle, in.Frame)
	video, total := b.clips(in.Frame, in.Clips, in.Transition)
	video = b.overlays(in.Frame, video, total, in.Logo, in.ReviewCard)
	audio := b.audio(in.Audio, total)
	return b.finish(total, video, audio)
}

// BuildVideoOnly describes one batch segment: clips and transitions, no
// overlays or audio.
func BuildVideoOnly(frame Frame, clips []Clip, tr types.TransitionSpec) (*Description, error) {
	if err := checkClips(frame, clips, tr); err != nil {
		return nil, err
	}
	b := newBuilder(KindSegment, frame)
	video, total := b.clips(frame, clips, tr)
	return b.finish(total, video, "")
}

// BuildStitch joins rendered segments with a transition at each offset.
// offsets[k-1] is the start of the transition into segment k.
func BuildStitch(frame Frame, segments []Segment, offsets []float64, tr types.TransitionSpec) (*Description, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("stitch needs at least one segment")
	}
	if len(offsets) != len(segments)-1 {
		return nil, fmt.Errorf("stitch of %d segments needs %d offsets, got %d", len(segments), len(segments)-1, len(offsets))
	}
	if !ValidTransition(tr.Type) {
		return nil, fmt.Errorf("unknown transition %q", tr.Type)
	}

	b := newBuilder(KindStitch, frame)
	ports := make([]string, len(segments))
	for i, s := range segments {
		if s.Duration <= 0 {
			return nil, fmt.Errorf("segment %d has no duration", i)
		}
		idx := b.input(s.Path)
		p := b.then(InputPort(idx, "v"), "settb", []string{"AVTB"})
		p = b.then(p, "setsar", []string{"1"})
		ports[i] = b.then(p, "fps", nil, opt("fps", itoa(frame.FPS)))
	}

	out := ports[0]
	total := segments[0].Duration
	for k := 1; k < len(segments); k++ {
		off := offsets[k-1]
		if off < 0 || off > total {
			return nil, fmt.Errorf("stitch offset %d (%.3f) outside 0..%.3f", k-1, off, total)
		}
		next := ports[k]
		if cut := total - off; tr.Duration <= 0 && cut > 0 {
			// without a transition the repeated leading image is cut instead
			next = b.then(next, "trim", nil, opt("start", secs(cut)))
			next = b.then(next, "setpts", []string{"PTS-STARTPTS"})
		}
		out = b.join(out, next, tr, off)
		total = off + segments[k].Duration
	}
	out = b.then(out, "format", nil, opt("pix_fmts", "yuv420p"))
	return b.finish(total, out, "")
}

// BuildFinalize applies overlays and the soundtrack to a stitched video
func BuildFinalize(frame Frame, video Segment, logo, card *Overlay, audio Audio) (*Description, error) {
	if video.Duration <= 0 {
		return nil, fmt.Errorf("finalize needs a positive video duration")
	}
	b := newBuilder(KindFinalize, frame)
	idx := b.input(video.Path)
	port := b.then(InputPort(idx, "v"), "setsar", []string{"1"})
	port = b.overlays(frame, port, video.Duration, logo, card)
	port = b.then(port, "format", nil, opt("pix_fmts", "yuv420p"))
	a := b.audio(audio, video.Duration)
	return b.finish(video.Duration, port, a)
}

func checkClips(frame Frame, clips []Clip, tr types.TransitionSpec) error {
	if frame.Width <= 0 || frame.Height <= 0 || frame.FPS <= 0 {
		return fmt.Errorf("invalid frame %dx%d@%d", frame.Width, frame.Height, frame.FPS)
	}
	if len(clips) == 0 {
		return fmt.Errorf("no clips")
	}
	if !ValidTransition(tr.Type) {
		return fmt.Errorf("unknown transition %q", tr.Type)
	}
	for i, c := range clips {
		if c.Duration <= 0 {
			return fmt.Errorf("clip %d has no duration", i)
		}
		if len(clips) > 1 && tr.Duration > 0 && c.Duration <= tr.Duration {
			return fmt.Errorf("clip %d (%.3fs) is not longer than the transition (%.3fs)", i, c.Duration, tr.Duration)
		}
	}
	return nil
}

// clips renders every clip and chains them; it returns the final port and
// the resulting duration.
func (b *builder) clips(frame Frame, clips []Clip, tr types.TransitionSpec) (string, float64) {
	ports := make([]string, len(clips))
	for i, c := range clips {
		ports[i] = b.clip(frame, c)
	}

	out := ports[0]
	total := clips[0].Duration
	for i := 1; i < len(clips); i++ {
		if tr.Duration > 0 {
			off := total - tr.Duration
			out = b.join(out, ports[i], tr, off)
			total = off + clips[i].Duration
		} else {
			out = b.join(out, ports[i], tr, total)
			total += clips[i].Duration
		}
	}
	return out, total
}

// join connects two ports with xfade, or concat when there is no transition time
func (b *builder) join(a, c string, tr types.TransitionSpec, offset float64) string {
	if tr.Duration <= 0 {
		return b.node("concat", []string{a, c}, nil, opt("n", "2"), opt("v", "1"), opt("a", "0"))
	}
	kind := tr.Type
	if kind == "" {
		kind = DefaultTransition
	}
	return b.node("xfade", []string{a, c}, nil,
		opt("transition", kind),
		opt("duration", secs(tr.Duration)),
		opt("offset", secs(offset)),
	)
}

func (b *builder) stillInput(frame Frame, c Clip) int {
	if c.Placeholder {
		src := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", placeholderColor, frame.Width, frame.Height, frame.FPS)
		return b.input(src, opt("f", "lavfi"), opt("t", secs(c.Duration)))
	}
	return b.input(c.Path,
		opt("loop", "1"),
		opt("framerate", itoa(frame.FPS)),
		opt("t", secs(c.Duration)),
	)
}

const placeholderColor = "gray"

// clip realises the layout plan of one image and normalises its stream
func (b *builder) clip(frame Frame, c Clip) string {
	w, h := itoa(frame.Width), itoa(frame.Height)
	idx := b.stillInput(frame, c)
	port := InputPort(idx, "v")

	switch {
	case c.Placeholder:
	case c.Plan.Mode == layout.ModeLetterbox:
		port = b.then(port, "scale", nil, opt("w", itoa(c.Plan.Box.Width)), opt("h", itoa(c.Plan.Box.Height)))
		port = b.then(port, "pad", nil,
			opt("w", w), opt("h", h),
			opt("x", "(ow-iw)/2"), opt("y", "(oh-ih)/2"),
			opt("color", c.Plan.Fill),
		)
	case c.Plan.Mode == layout.ModeBlurBackground:
		bg := InputPort(b.stillInput(frame, c), "v")
		bg = b.then(bg, "scale", nil, opt("w", w), opt("h", h), opt("force_original_aspect_ratio", "increase"))
		bg = b.then(bg, "crop", []string{w, h})
		bg = b.then(bg, "gblur", nil, opt("sigma", strconv.FormatFloat(c.Plan.BlurSigma, 'f', -1, 64)))
		fg := b.then(port, "scale", nil, opt("w", itoa(c.Plan.Box.Width)), opt("h", itoa(c.Plan.Box.Height)))
		port = b.node("overlay", []string{bg, fg}, nil, opt("x", "(W-w)/2"), opt("y", "(H-h)/2"))
	default:
		port = b.then(port, "scale", nil, opt("w", w), opt("h", h), opt("force_original_aspect_ratio", "increase"))
		port = b.then(port, "crop", []string{w, h})
	}

	port = b.then(port, "setsar", []string{"1"})
	port = b.then(port, "fps", nil, opt("fps", itoa(frame.FPS)))
	return b.then(port, "format", nil, opt("pix_fmts", "yuv420p"))
}

// overlays composites the review card then the logo so the logo stays on top
func (b *builder) overlays(frame Frame, base string, duration float64, logo, card *Overlay) string {
	for _, o := range []*Overlay{card, logo} {
		if o == nil {
			continue
		}
		base = b.overlay(frame, base, duration, o)
	}
	return base
}

// overlay shows o only inside its window: the looped input lasts exactly the
// window and is shifted to its start; eof_action=pass hides it afterwards.
func (b *builder) overlay(frame Frame, base string, duration float64, o *Overlay) string {
	start, end := o.Start, o.End
	if end <= 0 || end > duration {
		end = duration
	}
	if start < 0 {
		start = 0
	}
	if end-start <= 0 {
		return base
	}
	idx := b.input(o.Path,
		opt("loop", "1"),
		opt("framerate", itoa(frame.FPS)),
		opt("t", secs(end-start)),
	)
	port := b.then(InputPort(idx, "v"), "scale", nil,
		opt("w", itoa(o.Placement.Width)), opt("h", itoa(o.Placement.Height)))
	port = b.then(port, "format", nil, opt("pix_fmts", "rgba"))
	port = b.then(port, "setpts", []string{"PTS-STARTPTS+" + secs(start) + "/TB"})
	return b.node("overlay", []string{base, port}, nil,
		opt("x", itoa(o.Placement.X)),
		opt("y", itoa(o.Placement.Y)),
		opt("eof_action", "pass"),
	)
}
