// Package platform holds the read-only catalog of output templates keyed by
// platform identifier.
package platform

import "fmt"

// DurationRange bounds the length of a video in seconds
type DurationRange struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
}

// Clamp forces d into the range
func (r DurationRange) Clamp(d float64) float64 {
	if d < r.Min {
		return r.Min
	}
	if d > r.Max {
		return r.Max
	}
	return d
}

// Transition is the default join between clips
type Transition struct {
	Type     string  `yaml:"type"`
	Duration float64 `yaml:"duration"`
}

// Insets are fractions of the frame reserved for platform UI chrome
type Insets struct {
	Top    float64 `yaml:"top"`
	Bottom float64 `yaml:"bottom"`
	Left   float64 `yaml:"left"`
	Right  float64 `yaml:"right"`
}

// OverlayRule sizes one overlay kind relative to the frame.
// MaxWidthRatio of zero means no platform-specific cap.
type OverlayRule struct {
	Percent       float64 `yaml:"percent"`
	MaxWidthRatio float64 `yaml:"max_width_ratio"`
	MinHeight     int     `yaml:"min_height"`
	MaxHeight     int     `yaml:"max_height"`
	Anchor        string  `yaml:"anchor"`
}

// Window is a visibility interval expressed as fractions of the video duration
type Window struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// Bounds converts the window to seconds for a video of the given duration
func (w Window) Bounds(duration float64) (start, end float64) {
	return w.Start * duration, w.End * duration
}

// Logo persistence modes
const (
	PersistFull  = "full"
	PersistOutro = "outro"
)

// Persistence controls how long the logo stays on screen
type Persistence struct {
	Mode         string  `yaml:"mode"`
	OutroSeconds float64 `yaml:"outro_seconds"`
}

// Window returns the logo visibility interval in seconds for a video of the given duration
func (p Persistence) Window(duration float64) (start, end float64) {
	if p.Mode == PersistOutro && p.OutroSeconds > 0 && p.OutroSeconds < duration {
		return duration - p.OutroSeconds, duration
	}
	return 0, duration
}

// EncodeProfile holds the platform-specific output encoding options
type EncodeProfile struct {
	VideoCodec   string `yaml:"video_codec"`
	Profile      string `yaml:"profile"`
	Level        string `yaml:"level"`
	PixFmt       string `yaml:"pix_fmt"`
	MaxBitrate   string `yaml:"max_bitrate"`
	BufferSize   string `yaml:"buffer_size"`
	AudioCodec   string `yaml:"audio_codec"`
	AudioBitrate string `yaml:"audio_bitrate"`
	SampleRate   int    `yaml:"sample_rate"`
}

// Template describes one platform's output format
type Template struct {
	ID               string        `yaml:"id"`
	Width            int           `yaml:"width"`
	Height           int           `yaml:"height"`
	FPS              int           `yaml:"fps"`
	Duration         DurationRange `yaml:"duration"`
	Transition       Transition    `yaml:"transition"`
	MinImages        int           `yaml:"min_images"`
	MinSceneSeconds  float64       `yaml:"min_scene_seconds"`
	WidthReference   bool          `yaml:"width_reference"`
	SafeZone         Insets        `yaml:"safe_zone"`
	Logo             OverlayRule   `yaml:"logo"`
	ReviewCard       OverlayRule   `yaml:"review_card"`
	ReviewCardWindow Window        `yaml:"review_card_window"`
	LogoPersistence  Persistence   `yaml:"logo_persistence"`
	Encode           EncodeProfile `yaml:"encode"`
}

// Aspect returns the frame aspect ratio
func (t *Template) Aspect() float64 {
	return float64(t.Width) / float64(t.Height)
}

// Resolution returns the frame size as "WxH"
func (t *Template) Resolution() string {
	return fmt.Sprintf("%dx%d", t.Width, t.Height)
}

func (t *Template) validate() error {
	if t.ID == "" {
		return fmt.Errorf("template without id")
	}
	if t.Width <= 0 || t.Height <= 0 || t.Width%2 != 0 || t.Height%2 != 0 {
		return fmt.Errorf("%s: resolution %dx%d must be positive and even", t.ID, t.Width, t.Height)
	}
	if t.FPS <= 0 {
		return fmt.Errorf("%s: fps must be positive", t.ID)
	}
	d := t.Duration
	if d.Min <= 0 || d.Max < d.Min || d.Default < d.Min || d.Default > d.Max {
		return fmt.Errorf("%s: invalid duration range %+v", t.ID, d)
	}
	if t.Transition.Duration < 0 {
		return fmt.Errorf("%s: negative transition duration", t.ID)
	}
	if t.MinImages < 1 {
		return fmt.Errorf("%s: min_images must be at least 1", t.ID)
	}
	for name, r := range map[string]OverlayRule{"logo": t.Logo, "review_card": t.ReviewCard} {
		if r.Percent <= 0 || r.Percent > 1 {
			return fmt.Errorf("%s: %s percent %.2f outside (0,1]", t.ID, name, r.Percent)
		}
		if r.MinHeight <= 0 || r.MaxHeight < r.MinHeight {
			return fmt.Errorf("%s: %s height range [%d,%d] invalid", t.ID, name, r.MinHeight, r.MaxHeight)
		}
		if r.MaxWidthRatio < 0 || r.MaxWidthRatio > 1 {
			return fmt.Errorf("%s: %s max_width_ratio %.2f outside [0,1]", t.ID, name, r.MaxWidthRatio)
		}
	}
	w := t.ReviewCardWindow
	if w.Start < 0 || w.End > 1 || w.End <= w.Start {
		return fmt.Errorf("%s: review card window %+v invalid", t.ID, w)
	}
	switch t.LogoPersistence.Mode {
	case "":
		t.LogoPersistence.Mode = PersistFull
	case PersistFull, PersistOutro:
	default:
		return fmt.Errorf("%s: unknown logo persistence %q", t.ID, t.LogoPersistence.Mode)
	}
	if t.Encode.VideoCodec == "" || t.Encode.PixFmt == "" || t.Encode.AudioCodec == "" {
		return fmt.Errorf("%s: encode profile needs video_codec, pix_fmt and audio_codec", t.ID)
	}
	return nil
}
