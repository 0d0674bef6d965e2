package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Metadata is what the engine needs to know about a media file
type Metadata struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
	Bitrate  int64   `json:"bitrate"`
	FPS      float64 `json:"fps"`
	HasAudio bool    `json:"has_audio"`
	HasVideo bool    `json:"has_video"`
}

// Prober reads media metadata
type Prober interface {
	Probe(ctx context.Context, path string) (*Metadata, error)
}

// FFProbe probes files with ffprobe
type FFProbe struct {
	Binary  string
	Timeout time.Duration
}

// NewFFProbe creates a prober; an empty binary means ffprobe on PATH
func NewFFProbe(binary string, timeout time.Duration) *FFProbe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbe{Binary: binary, Timeout: timeout}
}

func (p *FFProbe) Probe(ctx context.Context, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := p.exec(ctx, path, p.Timeout)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return ParseProbe([]byte(out))
}

// probeArgs are the ffprobe options ffmpeg-go's Probe uses
var probeArgs = ffmpeg.ConvertKwargsToCmdLineArgs(ffmpeg.KwArgs{
	"show_format":  "",
	"show_streams": "",
	"of":           "json",
})

// exec runs ffprobe under ctx so a cancelled job stops the probe too
func (p *FFProbe) exec(ctx context.Context, path string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Binary, append(append([]string{}, probeArgs...), path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// ParseProbe decodes ffprobe's JSON output
func ParseProbe(data []byte) (*Metadata, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("decode probe output: %w", err)
	}

	m := &Metadata{}
	m.Duration, _ = strconv.ParseFloat(po.Format.Duration, 64)
	m.Bitrate, _ = strconv.ParseInt(po.Format.BitRate, 10, 64)
	for _, s := range po.Streams {
		switch s.CodecType {
		case "video":
			if m.HasVideo {
				continue
			}
			m.HasVideo = true
			m.Codec = s.CodecName
			m.Width, m.Height = s.Width, s.Height
			m.FPS = parseRate(s.AvgFrameRate)
			if m.FPS == 0 {
				m.FPS = parseRate(s.RFrameRate)
			}
			if m.Duration == 0 {
				m.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			m.HasAudio = true
			if m.Duration == 0 {
				m.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		}
	}
	if !m.HasVideo && !m.HasAudio {
		return nil, fmt.Errorf("no audio or video streams")
	}
	return m, nil
}

// parseRate reads an ffprobe rational such as "30000/1001"
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
