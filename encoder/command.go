package encoder

import (
	"fmt"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"reelcomposer/graph"
	"reelcomposer/platform"
)

// globalArgs precede the ffmpeg-go arguments on every invocation
var globalArgs = []string{"-hide_banner", "-nostdin", "-loglevel", "warning", "-progress", "pipe:1", "-nostats"}

// Options control the output encoding of one render
type Options struct {
	Preset string
	CRF    int
	// Profile holds the platform delivery settings; intermediates ignore
	// its rate control and audio settings
	Profile      platform.EncodeProfile
	Intermediate bool
	Progress     func(percent float64)
}

// queueSizeBase is the demuxer queue size given to repeated inputs
const queueSizeBase = 512

// Args translates a description into the ffmpeg argument list writing to output
func Args(d *graph.Description, output string, opts Options) (args []string, err error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	// ffmpeg-go reports structural problems by panicking
	defer func() {
		if r := recover(); r != nil {
			args, err = nil, fmt.Errorf("compiling graph: %v", r)
		}
	}()

	inputs := make([]*ffmpeg.Stream, len(d.Inputs))
	seen := make(map[string]int, len(d.Inputs))
	for i, in := range d.Inputs {
		kw := ffmpeg.KwArgs{}
		for _, o := range in.Options {
			kw[o.Key] = o.Value
		}
		// ffmpeg-go identifies nodes by content, so two identical inputs
		// would become one node and their filter chains would merge.
		key := inputKey(in)
		if n := seen[key]; n > 0 && !kw.HasKey("thread_queue_size") {
			kw["thread_queue_size"] = strconv.Itoa(queueSizeBase + n)
		}
		seen[key]++
		inputs[i] = ffmpeg.Input(in.Path, kw)
	}

	ports := make(map[string]*ffmpeg.Stream, len(d.Nodes))
	resolve := func(port string) (*ffmpeg.Stream, error) {
		if idx, kind, ok := graph.ParseInputPort(port); ok {
			if kind == "a" {
				return inputs[idx].Audio(), nil
			}
			return inputs[idx].Video(), nil
		}
		s, ok := ports[port]
		if !ok {
			return nil, fmt.Errorf("unresolved port %q", port)
		}
		return s, nil
	}

	for _, n := range d.Nodes {
		streams := make([]*ffmpeg.Stream, 0, len(n.Inputs))
		for _, p := range n.Inputs {
			s, err := resolve(p)
			if err != nil {
				return nil, err
			}
			streams = append(streams, s)
		}
		kw := ffmpeg.KwArgs{}
		for _, p := range n.Params {
			kw[p.Key] = p.Value
		}
		ports[n.Output] = ffmpeg.Filter(streams, n.Filter, ffmpeg.Args(n.Args), kw)
	}

	outs := make([]*ffmpeg.Stream, 0, 2)
	video, err := resolve(d.VideoOut)
	if err != nil {
		return nil, err
	}
	outs = append(outs, video)
	if d.AudioOut != "" {
		audio, err := resolve(d.AudioOut)
		if err != nil {
			return nil, err
		}
		outs = append(outs, audio)
	}

	compiled := ffmpeg.Output(outs, output, outputArgs(d, opts)).OverWriteOutput().GetArgs()
	return append(append([]string{}, globalArgs...), compiled...), nil
}

func inputKey(in graph.Input) string {
	var b strings.Builder
	b.WriteString(in.Path)
	for _, o := range in.Options {
		b.WriteString("\x00" + o.Key + "=" + o.Value)
	}
	return b.String()
}

func outputArgs(d *graph.Description, opts Options) ffmpeg.KwArgs {
	p := opts.Profile
	kw := ffmpeg.KwArgs{
		"c:v":      orDefault(p.VideoCodec, "libx264"),
		"preset":   opts.Preset,
		"crf":      strconv.Itoa(opts.CRF),
		"pix_fmt":  orDefault(p.PixFmt, "yuv420p"),
		"r":        strconv.Itoa(d.FPS),
		"t":        strconv.FormatFloat(d.Duration, 'f', 3, 64),
		"movflags": "+faststart",
	}
	if !opts.Intermediate {
		setIf(kw, "profile:v", p.Profile)
		setIf(kw, "level", p.Level)
		setIf(kw, "maxrate", p.MaxBitrate)
		setIf(kw, "bufsize", p.BufferSize)
	}
	if d.AudioOut == "" {
		kw["an"] = ""
		return kw
	}
	kw["c:a"] = orDefault(p.AudioCodec, "aac")
	setIf(kw, "b:a", p.AudioBitrate)
	if p.SampleRate > 0 {
		kw["ar"] = strconv.Itoa(p.SampleRate)
	}
	return kw
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func setIf(kw ffmpeg.KwArgs, key, value string) {
	if value != "" {
		kw[key] = value
	}
}
