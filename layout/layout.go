// Package layout decides how an image whose aspect ratio differs from the
// output frame is fitted into it. It never touches the filesystem.
package layout

import (
	"math"

	"reelcomposer/types"
)

// Mode is the fitting strategy for one image
type Mode string

const (
	ModeCropFill       Mode = "crop_fill"
	ModeLetterbox      Mode = "letterbox"
	ModeBlurBackground Mode = "blur_background"
)

// Classification thresholds on the relative aspect mismatch.
// A mismatch equal to a threshold belongs to the class above it.
const (
	BlurThreshold      = 0.2
	LetterboxThreshold = 0.5

	// letterboxFillThreshold lets a forced letterbox fill the frame instead when
	// orientations agree and the mismatch is small
	letterboxFillThreshold = 0.15
)

const (
	DefaultFill      = "black"
	DefaultBlurSigma = 30
)

// Mismatch returns |imageAspect - frameAspect| / frameAspect
func Mismatch(imageAspect, frameAspect float64) float64 {
	if frameAspect <= 0 {
		return math.Inf(1)
	}
	return math.Abs(imageAspect-frameAspect) / frameAspect
}

// Classify picks a mode from the aspect mismatch alone
func Classify(imageAspect, frameAspect float64) Mode {
	m := Mismatch(imageAspect, frameAspect)
	switch {
	case m < BlurThreshold:
		return ModeCropFill
	case m < LetterboxThreshold:
		return ModeBlurBackground
	default:
		return ModeLetterbox
	}
}

type orientation int

const (
	portrait orientation = iota
	square
	landscape
)

func orient(aspect float64) orientation {
	switch {
	case math.Abs(aspect-1) < 0.01:
		return square
	case aspect > 1:
		return landscape
	default:
		return portrait
	}
}

// Select applies a caller preference on top of Classify. A forced letterbox
// falls back to crop-fill when the image has the frame's orientation and the
// mismatch is under 15%, so near-matching images do not get thin bars.
func Select(pref types.LayoutPreference, imageAspect, frameAspect float64) Mode {
	switch pref {
	case types.LayoutCropFill:
		return ModeCropFill
	case types.LayoutBlurBackground:
		return ModeBlurBackground
	case types.LayoutLetterbox:
		if orient(imageAspect) == orient(frameAspect) && Mismatch(imageAspect, frameAspect) < letterboxFillThreshold {
			return ModeCropFill
		}
		return ModeLetterbox
	default:
		return Classify(imageAspect, frameAspect)
	}
}

// Plan is everything the graph builder needs to realise a mode for one image
type Plan struct {
	Mode      Mode             `json:"mode"`
	Mismatch  float64          `json:"mismatch"`
	Frame     types.Dimensions `json:"frame"`
	Box       types.Dimensions `json:"box"`
	Fill      string           `json:"fill,omitempty"`
	BlurSigma float64          `json:"blur_sigma,omitempty"`
}

// PlanFor builds the plan for an image of the given size.
// Box is the image scaled to fit inside the frame without cropping; for
// crop-fill it is the frame itself.
func PlanFor(pref types.LayoutPreference, image, frame types.Dimensions, fill string) Plan {
	fa := frame.Aspect()
	ia := image.Aspect()
	if ia == 0 {
		ia = fa
	}
	mode := Select(pref, ia, fa)

	p := Plan{
		Mode:     mode,
		Mismatch: Mismatch(ia, fa),
		Frame:    frame,
		Box:      frame,
	}
	switch mode {
	case ModeLetterbox:
		p.Box = fit(ia, frame)
		p.Fill = fill
		if p.Fill == "" {
			p.Fill = DefaultFill
		}
	case ModeBlurBackground:
		p.Box = fit(ia, frame)
		p.BlurSigma = DefaultBlurSigma
	}
	return p
}

// fit scales an image of aspect ia to the largest even-sided box inside frame
func fit(ia float64, frame types.Dimensions) types.Dimensions {
	w, h := float64(frame.Width), float64(frame.Height)
	if ia > frame.Aspect() {
		h = w / ia
	} else {
		w = h * ia
	}
	return types.Dimensions{Width: even(w), Height: even(h)}
}

func even(v float64) int {
	n := int(math.Round(v))
	if n%2 != 0 {
		n--
	}
	if n < 2 {
		n = 2
	}
	return n
}
