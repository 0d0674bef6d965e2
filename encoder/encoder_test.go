package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"reelcomposer/graph"
	"reelcomposer/layout"
	"reelcomposer/platform"
	"reelcomposer/types"
)

type fakeRunner struct {
	stdout string
	stderr string
	err    error
	block  bool
	calls  [][]string
}

func (f *fakeRunner) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f.calls = append(f.calls, args)
	io.WriteString(stdout, f.stdout)
	io.WriteString(stderr, f.stderr)
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func twoClipGraph(t *testing.T) *graph.Description {
	t.Helper()
	plan := layout.Plan{Mode: layout.ModeCropFill}
	d, err := graph.BuildVideoOnly(graph.Frame{Width: 1080, Height: 1920, FPS: 30}, []graph.Clip{
		{Path: "a.jpg", Duration: 5, Plan: plan},
		{Path: "b.jpg", Duration: 5, Plan: plan},
	}, types.TransitionSpec{Type: "fade", Duration: 0.5})
	if err != nil {
		t.Fatalf("BuildVideoOnly() error: %v", err)
	}
	return d
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

// lastArgAfter skips input options that share a flag with output options
func lastArgAfter(args []string, flag string) string {
	for i := len(args) - 2; i >= 0; i-- {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestArgsTranslatesDescription(t *testing.T) {
	args, err := Args(twoClipGraph(t), "out.mp4", Options{Preset: "fast", CRF: 16, Intermediate: true,
		Profile: platform.EncodeProfile{Profile: "high", MaxBitrate: "8M"}})
	if err != nil {
		t.Fatalf("Args() error: %v", err)
	}
	if !slices.Equal(args[:len(globalArgs)], globalArgs) {
		t.Errorf("args start with %v, want %v", args[:len(globalArgs)], globalArgs)
	}
	if argAfter(args, "-progress") != "pipe:1" {
		t.Error("missing -progress pipe:1")
	}
	fc := argAfter(args, "-filter_complex")
	for _, want := range []string{"xfade", "offset=4.500", "transition=fade", "crop"} {
		if !strings.Contains(fc, want) {
			t.Errorf("filter_complex %q missing %q", fc, want)
		}
	}
	if !slices.Contains(args, "out.mp4") || !slices.Contains(args, "-y") {
		t.Errorf("args %v missing output or overwrite flag", args)
	}
	if !slices.Contains(args, "-an") {
		t.Error("video-only render should disable audio")
	}
	if slices.Contains(args, "-profile:v") || slices.Contains(args, "-maxrate") {
		t.Error("intermediate render should not carry delivery rate control")
	}
	if argAfter(args, "-crf") != "16" || lastArgAfter(args, "-t") != "9.500" {
		t.Errorf("crf=%s t=%s", argAfter(args, "-crf"), lastArgAfter(args, "-t"))
	}
}

func TestArgsDeliveryProfile(t *testing.T) {
	plan := layout.Plan{Mode: layout.ModeCropFill}
	d, err := graph.Build(graph.BuildInput{
		Frame:      graph.Frame{Width: 1080, Height: 1920, FPS: 30},
		Clips:      []graph.Clip{{Path: "a.jpg", Duration: 6, Plan: plan}},
		Transition: types.TransitionSpec{Duration: 0.5},
		Audio:      graph.Audio{Music: "m.mp3"},
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	args, err := Args(d, "final.mp4", Options{Preset: "medium", CRF: 23, Profile: platform.EncodeProfile{
		Profile: "high", Level: "4.1", MaxBitrate: "8M", BufferSize: "16M", AudioCodec: "aac", AudioBitrate: "128k", SampleRate: 44100,
	}})
	if err != nil {
		t.Fatalf("Args() error: %v", err)
	}
	checks := map[string]string{"-profile:v": "high", "-maxrate": "8M", "-c:a": "aac", "-b:a": "128k", "-ar": "44100"}
	for flag, want := range checks {
		if got := argAfter(args, flag); got != want {
			t.Errorf("%s = %q, want %q", flag, got, want)
		}
	}
	if slices.Contains(args, "-an") {
		t.Error("render with audio should not pass -an")
	}
}

func TestArgsRejectsInvalidGraph(t *testing.T) {
	d := twoClipGraph(t)
	d.VideoOut = "nowhere"
	if _, err := Args(d, "out.mp4", Options{}); err == nil {
		t.Error("Args() accepted an invalid graph")
	}
}

func inputFiles(args []string) []string {
	var files []string
	for i, a := range args {
		if a == "-i" && i+1 < len(args) {
			files = append(files, args[i+1])
		}
	}
	return files
}

func TestArgsKeepsRepeatedInputsApart(t *testing.T) {
	frame := graph.Frame{Width: 1080, Height: 1920, FPS: 30}
	crop := layout.Plan{Mode: layout.ModeCropFill}
	tr := types.TransitionSpec{Type: "fade", Duration: 0.5}

	cases := []struct {
		name      string
		clips     []graph.Clip
		wantFiles int
	}{
		{"repeated image", []graph.Clip{
			{Path: "a.jpg", Duration: 5, Plan: crop},
			{Path: "b.jpg", Duration: 5, Plan: crop},
			{Path: "a.jpg", Duration: 5, Plan: crop},
		}, 3},
		{"two placeholders", []graph.Clip{
			{Path: "missing-1.jpg", Duration: 4, Placeholder: true},
			{Path: "missing-2.jpg", Duration: 4, Placeholder: true},
		}, 2},
		{"repeated blurred image", []graph.Clip{
			{Path: "wide.jpg", Duration: 4, Plan: layout.Plan{Mode: layout.ModeBlurBackground, Box: types.Dimensions{Width: 1080, Height: 800}, BlurSigma: 20}},
			{Path: "wide.jpg", Duration: 4, Plan: layout.Plan{Mode: layout.ModeBlurBackground, Box: types.Dimensions{Width: 1080, Height: 800}, BlurSigma: 20}},
		}, 4},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, err := graph.BuildVideoOnly(frame, c.clips, tr)
			if err != nil {
				t.Fatalf("BuildVideoOnly() error: %v", err)
			}
			args, err := Args(d, "out.mp4", Options{Preset: "fast", CRF: 16, Intermediate: true})
			if err != nil {
				t.Fatalf("Args() error: %v", err)
			}
			if got := len(inputFiles(args)); got != c.wantFiles {
				t.Errorf("got %d inputs, want %d: %v", got, c.wantFiles, args)
			}
			fc := argAfter(args, "-filter_complex")
			if got := strings.Count(fc, "xfade"); got != len(c.clips)-1 {
				t.Errorf("filter_complex has %d xfade joins, want %d: %s", got, len(c.clips)-1, fc)
			}
			if strings.Contains(fc, "split") {
				t.Errorf("filter_complex should not need split: %s", fc)
			}
		})
	}
}

func TestArgsReportsMergedNodesAsError(t *testing.T) {
	// two identical filters on one input merge into a node with two
	// outgoing edges, which ffmpeg-go cannot serialise
	d := &graph.Description{
		Kind: graph.KindSegment, Width: 100, Height: 100, FPS: 30, Duration: 2,
		Inputs: []graph.Input{{Path: "a.jpg"}},
		Nodes: []graph.Node{
			{Filter: "scale", Inputs: []string{"0:v"}, Output: "s0", Params: []graph.Option{{Key: "w", Value: "100"}}},
			{Filter: "scale", Inputs: []string{"0:v"}, Output: "s1", Params: []graph.Option{{Key: "w", Value: "100"}}},
			{Filter: "overlay", Inputs: []string{"s0", "s1"}, Output: "s2"},
		},
		VideoOut: "s2",
	}
	if _, err := Args(d, "out.mp4", Options{}); err == nil {
		t.Fatal("Args() = nil error, want compile failure")
	}

	runner := &fakeRunner{}
	_, err := NewWithRunner(runner, nil, Config{}, nil).Render(context.Background(), d, "out.mp4", Options{})
	var encErr *Error
	if !errors.As(err, &encErr) || encErr.Kind != KindInvalidGraph {
		t.Fatalf("Render() error = %v, want invalid graph", err)
	}
	if len(runner.calls) != 0 {
		t.Error("runner called for a graph that cannot be compiled")
	}
}

func TestRenderReportsProgress(t *testing.T) {
	runner := &fakeRunner{stdout: "frame=10\nout_time_us=4750000\nprogress=continue\nout_time_us=9500000\nprogress=end\n"}
	enc := NewWithRunner(runner, nil, Config{TailLines: 5}, nil)

	var reports []float64
	res, err := enc.Render(context.Background(), twoClipGraph(t), "out.mp4", Options{
		Preset: "fast", CRF: 23, Progress: func(p float64) { reports = append(reports, p) },
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if res.Path != "out.mp4" || len(runner.calls) != 1 {
		t.Errorf("Render() result = %+v after %d calls", res, len(runner.calls))
	}
	if len(reports) < 2 || reports[0] != 50 || reports[len(reports)-1] != 100 {
		t.Errorf("progress reports = %v, want 50 ... 100", reports)
	}
}

func TestRenderClassifiesFailures(t *testing.T) {
	stderr := "line one\nline two\n[AVFilterGraph] No such filter: 'bogus'\n"
	cases := []struct {
		name   string
		runner *fakeRunner
		cfg    Config
		want   ErrorKind
	}{
		{"non-zero exit", &fakeRunner{stderr: stderr, err: errors.New("exit status 1")}, Config{TailLines: 2}, KindExitNonZero},
		{"timeout", &fakeRunner{stderr: stderr, block: true}, Config{TailLines: 2, Timeout: 20 * time.Millisecond}, KindTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc := NewWithRunner(tc.runner, nil, tc.cfg, nil)
			_, err := enc.Render(context.Background(), twoClipGraph(t), "out.mp4", Options{})
			var encErr *Error
			if !errors.As(err, &encErr) {
				t.Fatalf("Render() error = %v, want *Error", err)
			}
			if encErr.Kind != tc.want {
				t.Errorf("Kind = %s, want %s", encErr.Kind, tc.want)
			}
			if !errors.Is(err, types.ErrEncodeFailure) {
				t.Error("encoder error should match ErrEncodeFailure")
			}
			want := []string{"line two", "[AVFilterGraph] No such filter: 'bogus'"}
			if !slices.Equal(encErr.StderrTail, want) {
				t.Errorf("StderrTail = %q, want %q", encErr.StderrTail, want)
			}
		})
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{block: true}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := NewWithRunner(runner, nil, Config{}, nil).Render(ctx, twoClipGraph(t), "out.mp4", Options{})
	var encErr *Error
	if !errors.As(err, &encErr) || encErr.Kind != KindCancelled {
		t.Fatalf("Render() error = %v, want cancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("cancelled render should unwrap to context.Canceled")
	}
}

func TestRenderInvalidGraphSkipsRunner(t *testing.T) {
	runner := &fakeRunner{}
	d := twoClipGraph(t)
	d.Duration = 0
	_, err := NewWithRunner(runner, nil, Config{}, nil).Render(context.Background(), d, "out.mp4", Options{})
	var encErr *Error
	if !errors.As(err, &encErr) || encErr.Kind != KindInvalidGraph {
		t.Fatalf("Render() error = %v, want invalid graph", err)
	}
	if len(runner.calls) != 0 {
		t.Error("runner called for an invalid graph")
	}
}

func TestExecRunnerExitCode(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	enc := NewWithRunner(ExecRunner{Binary: sh}, nil, Config{TailLines: 3}, nil)
	err = enc.run(context.Background(), []string{"-c", "echo first >&2; echo boom >&2; exit 3"}, 1, nil)
	var encErr *Error
	if !errors.As(err, &encErr) {
		t.Fatalf("run() error = %v, want *Error", err)
	}
	if encErr.Kind != KindExitNonZero || encErr.ExitCode != 3 {
		t.Errorf("Kind = %s ExitCode = %d, want exit_non_zero 3", encErr.Kind, encErr.ExitCode)
	}
	if !slices.Equal(encErr.StderrTail, []string{"first", "boom"}) {
		t.Errorf("StderrTail = %q", encErr.StderrTail)
	}
	if !strings.Contains(encErr.Error(), "exit 3") {
		t.Errorf("Error() = %q", encErr.Error())
	}
}

func fakeProbeBinary(t *testing.T, script string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("write fake ffprobe: %v", err)
	}
	return path
}

func TestFFProbeReadsJSON(t *testing.T) {
	bin := fakeProbeBinary(t, `for a; do last=$a; done
[ "$last" = "clip.mp4" ] || exit 9
echo '{"streams":[{"codec_type":"video","codec_name":"h264","width":1080,"height":1920,"avg_frame_rate":"30/1"}],"format":{"duration":"15.02"}}'`)

	m, err := NewFFProbe(bin, 5*time.Second).Probe(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if m.Width != 1080 || m.Height != 1920 || m.Duration != 15.02 {
		t.Errorf("Probe() = %+v", m)
	}
}

func TestFFProbeStopsOnCancel(t *testing.T) {
	bin := fakeProbeBinary(t, "exec sleep 30")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := NewFFProbe(bin, time.Minute).Probe(ctx, "clip.mp4")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Probe() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Probe() returned after %s, want prompt return on cancel", elapsed)
	}
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	tb := newTailBuffer(3)
	for i := 0; i < 10; i++ {
		fmt.Fprintf(tb, "line %d\n", i)
	}
	io.WriteString(tb, "partial")
	want := []string{"line 8", "line 9", "partial"}
	if got := tb.Lines(); !slices.Equal(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}

	tb = newTailBuffer(2)
	io.WriteString(tb, strings.Repeat("x", 5000)+"\r\n\nshort\n")
	got := tb.Lines()
	if len(got) != 2 || len(got[0]) != maxLineBytes || got[1] != "short" {
		t.Errorf("long line handling: %d lines, first %d bytes", len(got), len(got[0]))
	}
}

func TestProgressWriter(t *testing.T) {
	var got []float64
	w := newProgressWriter(20, func(p float64) { got = append(got, p) })
	chunks := []string{"out_time_us=50", "00000\nout_time_ms=2000000\n", "bogus\nout_time_us=N/A\n", "out_time_us=10000000\n", "progress=end\n"}
	for _, c := range chunks {
		io.WriteString(w, c)
	}
	want := []float64{25, 50, 100}
	if !slices.Equal(got, want) {
		t.Errorf("reports = %v, want %v", got, want)
	}

	got = nil
	w = newProgressWriter(1, func(p float64) { got = append(got, p) })
	io.WriteString(w, "out_time_us=5000000\n")
	if len(got) != 1 || got[0] != 99.9 {
		t.Errorf("overrun reports = %v, want capped below 100 until end", got)
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1080, "height": 1920, "avg_frame_rate": "30/1", "r_frame_rate": "30/1"},
    {"codec_type": "audio", "codec_name": "aac", "duration": "30.02"}
  ],
  "format": {"duration": "30.033333", "bit_rate": "4512000"}
}`)
	m, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe() error: %v", err)
	}
	if m.Duration != 30.033333 || m.Width != 1080 || m.Height != 1920 || m.Codec != "h264" {
		t.Errorf("metadata = %+v", m)
	}
	if m.FPS != 30 || m.Bitrate != 4512000 || !m.HasAudio || !m.HasVideo {
		t.Errorf("metadata = %+v", m)
	}

	audio, err := ParseProbe([]byte(`{"streams":[{"codec_type":"audio","duration":"12.5"}],"format":{}}`))
	if err != nil || audio.Duration != 12.5 || audio.HasVideo {
		t.Errorf("audio-only probe = %+v, %v", audio, err)
	}

	if _, err := ParseProbe([]byte(`{"streams":[],"format":{}}`)); err == nil {
		t.Error("ParseProbe accepted a file without streams")
	}
	if _, err := ParseProbe([]byte(`not json`)); err == nil {
		t.Error("ParseProbe accepted garbage")
	}
}

func TestParseRate(t *testing.T) {
	cases := map[string]float64{"30/1": 30, "30000/1001": 30000.0 / 1001, "25": 25, "0/0": 0, "": 0}
	for in, want := range cases {
		if got := parseRate(in); got != want {
			t.Errorf("parseRate(%q) = %v, want %v", in, got, want)
		}
	}
}
